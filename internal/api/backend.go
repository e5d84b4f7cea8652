package api

import (
	"context"
	"fmt"

	"github.com/nvoss/needforge/internal/config"
)

// Generation is the outcome of one backend call.
type Generation struct {
	Text      string
	TokensIn  int
	TokensOut int
	Model     string
	Retries   int
}

// Backend is the narrow contract the pipeline stages depend on: one prompt
// in, generated text out. Failures surface after the client's internal
// retries are exhausted.
type Backend interface {
	Generate(ctx context.Context, prompt string) (Generation, error)
}

// Generator binds a Client to one model configuration and credential so that
// pipeline stages can issue prompts without carrying config around.
type Generator struct {
	client *Client
	cfg    config.ModelConfig
	apiKey string
}

// Generator returns a Backend for the given model configuration.
func (c *Client) Generator(cfg config.ModelConfig, apiKey string) *Generator {
	return &Generator{client: c, cfg: cfg, apiKey: apiKey}
}

// Generate sends prompt as a single user message and returns the first
// choice's content together with token usage.
func (g *Generator) Generate(ctx context.Context, prompt string) (Generation, error) {
	messages := []Message{{Role: "user", Content: prompt}}

	resp, retries, err := g.client.ChatCompletion(ctx, g.cfg, g.apiKey, messages)
	if err != nil {
		return Generation{Model: g.cfg.ModelName, Retries: retries}, err
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return Generation{Model: g.cfg.ModelName, Retries: retries},
			fmt.Errorf("model %s returned an empty completion", g.cfg.ModelName)
	}

	model := resp.Model
	if model == "" {
		model = g.cfg.ModelName
	}

	return Generation{
		Text:      content,
		TokensIn:  resp.Usage.PromptTokens,
		TokensOut: resp.Usage.CompletionTokens,
		Model:     model,
		Retries:   retries,
	}, nil
}
