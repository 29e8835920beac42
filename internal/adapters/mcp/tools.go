package mcpadapter

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
)

// RegisterTools wires the grounding pipeline into an MCP server so chat
// clients can ask the loaded policy document directly.
func RegisterTools(server *mcpserver.MCPServer, answerer ports.PolicyAnswerer, reader ports.PolicyReader) *Handlers {
	handlers := &Handlers{
		answerer: answerer,
		reader:   reader,
	}

	server.AddTool(mcp.Tool{
		Name:        "ask_policy",
		Description: "Answer a question against the currently loaded policy document. Returns the answer text plus the grounding decision (grounded, ungrounded_general, ungrounded_internal_blocked or org_mismatch) with citations.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Question to answer, typically in Spanish",
				},
				"mode": map[string]interface{}{
					"type":        "string",
					"description": "Response mode: strict/solo_documento answers only from the document, general/hibrido may fall back to general knowledge",
				},
				"top_k": map[string]interface{}{
					"type":        "number",
					"description": "Maximum chunks to retrieve (default from runtime settings)",
				},
			},
			Required: []string{"question"},
		},
	}, handlers.AskPolicy)

	server.AddTool(mcp.Tool{
		Name:        "knowledge_status",
		Description: "Report the state of the currently loaded policy document: name, indexing status, size and truncation.",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.KnowledgeStatus)

	return handlers
}
