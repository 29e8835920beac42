package ollama

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/grounded-policy-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	genModel   string
	httpClient *http.Client
}

func New(baseURL, genModel string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// Generator answers questions through a local ollama server. With an
// executor set, every call goes through retry and the circuit breaker.
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
	return g.generate(ctx, "ollama.generate_grounded", buildGroundedPrompt(question, contextText))
}

func (g *Generator) GenerateGeneral(ctx context.Context, question string) (string, error) {
	return g.generate(ctx, "ollama.generate_general", buildGeneralPrompt(question))
}

func (g *Generator) generate(ctx context.Context, operation, prompt string) (string, error) {
	call := func(ctx context.Context) (string, error) {
		return g.client.generateText(ctx, prompt)
	}

	var text string
	var err error
	if g.executor != nil {
		err = g.executor.Execute(ctx, operation, func(ctx context.Context) error {
			text, err = call(ctx)
			return err
		}, classifyOllamaError)
	} else {
		text, err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}
	return text, nil
}

func (c *Client) generateText(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]any{
		"model":  c.genModel,
		"prompt": prompt,
		"stream": false,
	}

	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}
