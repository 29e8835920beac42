package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/resilience"
)

// Client speaks the /v1/chat/completions shape shared by OpenAI, Groq
// and compatible gateways.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

type Generator struct {
	client   *Client
	executor *resilience.Executor
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func NewGeneratorWithExecutor(client *Client, executor *resilience.Executor) *Generator {
	return &Generator{client: client, executor: executor}
}

func (g *Generator) GenerateGrounded(ctx context.Context, question, contextText string) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: groundedSystemPrompt},
		{Role: "user", Content: fmt.Sprintf("Contexto:\n%s\n\nPregunta:\n%s", contextText, question)},
	}
	return g.complete(ctx, "openaicompat.generate_grounded", messages)
}

func (g *Generator) GenerateGeneral(ctx context.Context, question string) (string, error) {
	messages := []chatMessage{
		{Role: "system", Content: generalSystemPrompt},
		{Role: "user", Content: question},
	}
	return g.complete(ctx, "openaicompat.generate_general", messages)
}

const groundedSystemPrompt = `Eres un asistente que responde preguntas sobre un documento de politicas.
Responde UNICAMENTE con la informacion del contexto proporcionado.
Si el contexto no contiene la respuesta, dilo directamente.
Cita la seccion entre corchetes cuando sea posible.`

const generalSystemPrompt = `Eres un asistente. La pregunta no esta cubierta por el documento de
politicas cargado; responde con conocimiento general, breve y prudente,
sin inventar contenido del documento.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (g *Generator) complete(ctx context.Context, operation string, messages []chatMessage) (string, error) {
	var text string
	call := func(ctx context.Context) error {
		var err error
		text, err = g.client.chatCompletion(ctx, messages)
		return err
	}

	var err error
	if g.executor != nil {
		err = g.executor.Execute(ctx, operation, call, classifyError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return text, nil
}

func (c *Client) chatCompletion(ctx context.Context, messages []chatMessage) (string, error) {
	payload := map[string]any{
		"model":    c.model,
		"messages": messages,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &HTTPStatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	var response struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if len(response.Choices) == 0 {
		return "", errors.New("chat response has no choices")
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
