package mcpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/kirillkom/grounded-policy-assistant/internal/core/domain"
)

type stubAnswerer struct {
	answer  *domain.Answer
	err     error
	gotMode domain.ResponseMode
}

func (s *stubAnswerer) Ask(_ context.Context, _ string, mode domain.ResponseMode, _ domain.AskOptions) (*domain.Answer, error) {
	s.gotMode = mode
	return s.answer, s.err
}

type stubReader struct {
	doc *domain.Document
	err error
}

func (s *stubReader) GetByID(context.Context, string) (*domain.Document, error) {
	return s.doc, s.err
}

func (s *stubReader) Status(context.Context) (*domain.Document, error) {
	return s.doc, s.err
}

func newRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func textContent(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatalf("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

func TestAskPolicyReturnsDecisionJSON(t *testing.T) {
	answerer := &stubAnswerer{
		answer: &domain.Answer{
			Text: "respuesta",
			Decision: domain.GroundingDecision{
				Mode:        domain.DecisionGrounded,
				UsedContext: true,
				Citations:   []domain.Citation{{SourceLabel: "Articulo 1"}},
			},
		},
	}
	h := &Handlers{answerer: answerer, reader: &stubReader{}}

	result, err := h.AskPolicy(context.Background(), newRequest(map[string]any{
		"question": "¿Que dice el articulo 1?",
		"mode":     "solo_documento",
	}))
	if err != nil {
		t.Fatalf("AskPolicy() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected tool error: %s", textContent(t, result))
	}
	if answerer.gotMode != domain.ModeStrict {
		t.Fatalf("mode = %q, want strict", answerer.gotMode)
	}

	var body struct {
		Text        string `json:"text"`
		Decision    string `json:"decision"`
		UsedContext bool   `json:"used_context"`
	}
	if err := json.Unmarshal([]byte(textContent(t, result)), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Text != "respuesta" || body.Decision != string(domain.DecisionGrounded) || !body.UsedContext {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestAskPolicyMissingQuestionIsToolError(t *testing.T) {
	h := &Handlers{answerer: &stubAnswerer{}, reader: &stubReader{}}

	result, err := h.AskPolicy(context.Background(), newRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("AskPolicy() error = %v", err)
	}
	if !result.IsError {
		t.Fatalf("expected tool error for missing question")
	}
}

func TestKnowledgeStatusNoDocument(t *testing.T) {
	h := &Handlers{
		answerer: &stubAnswerer{},
		reader:   &stubReader{err: domain.WrapError(domain.ErrDocumentNotFound, "get active", errors.New("no rows"))},
	}

	result, err := h.KnowledgeStatus(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("KnowledgeStatus() error = %v", err)
	}
	if result.IsError {
		t.Fatalf("missing document should not be a tool error")
	}
	var body struct {
		Loaded bool `json:"loaded"`
	}
	if err := json.Unmarshal([]byte(textContent(t, result)), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Loaded {
		t.Fatalf("loaded = true, want false")
	}
}

func TestKnowledgeStatusReportsDocument(t *testing.T) {
	h := &Handlers{
		answerer: &stubAnswerer{},
		reader: &stubReader{doc: &domain.Document{
			ID:        "doc-1",
			Name:      "codigo.txt",
			Status:    domain.StatusReady,
			Chars:     1200,
			Truncated: false,
		}},
	}

	result, err := h.KnowledgeStatus(context.Background(), newRequest(nil))
	if err != nil {
		t.Fatalf("KnowledgeStatus() error = %v", err)
	}
	var body struct {
		Loaded bool   `json:"loaded"`
		Status string `json:"status"`
		Chars  int    `json:"chars"`
	}
	if err := json.Unmarshal([]byte(textContent(t, result)), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !body.Loaded || body.Status != string(domain.StatusReady) || body.Chars != 1200 {
		t.Fatalf("unexpected body: %+v", body)
	}
}
