package mcpadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
	"github.com/kirillkom/grounded-policy-assistant/internal/core/ports"
)

type Handlers struct {
	answerer ports.PolicyAnswerer
	reader   ports.PolicyReader
}

func (h *Handlers) AskPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question argument is required and must be a string"), nil
	}

	rawMode := request.GetString("mode", "")
	mode, ok := domain.NormalizeResponseMode(rawMode)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown mode %q", rawMode)), nil
	}
	if rawMode == "" {
		mode = ""
	}

	opts := domain.AskOptions{
		TopK: request.GetInt("top_k", 0),
	}

	answer, err := h.answerer.Ask(ctx, question, mode, opts)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ask failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"text":         answer.Text,
		"decision":     answer.Decision.Mode,
		"used_context": answer.Decision.UsedContext,
		"citations":    answer.Decision.Citations,
	}
	if answer.Decision.Notice != "" {
		response["notice"] = answer.Decision.Notice
	}
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}

func (h *Handlers) KnowledgeStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	doc, err := h.reader.Status(ctx)
	if err != nil {
		if domain.IsKind(err, domain.ErrDocumentNotFound) {
			return mcp.NewToolResultText(`{"loaded":false}`), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("status lookup failed: %v", err)), nil
	}

	response := map[string]interface{}{
		"loaded":     true,
		"id":         doc.ID,
		"name":       doc.Name,
		"status":     doc.Status,
		"chars":      doc.Chars,
		"truncated":  doc.Truncated,
		"updated_at": doc.UpdatedAt,
	}
	if doc.Error != "" {
		response["error"] = doc.Error
	}
	responseJSON, err := json.Marshal(response)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(responseJSON)), nil
}
