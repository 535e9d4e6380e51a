// Package llm backs the agent reasoning step with an OpenAI-compatible
// model through langchaingo. The adapter only moves messages across
// the wire; interpreting the structured turn the model returns is the
// engine's job.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/example/courier/internal/ports/secondary"
)

// Config holds model provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	// DefaultModel applies when a request names no model.
	DefaultModel string
}

// Completer implements secondary.Completer over an OpenAI-compatible
// endpoint.
type Completer struct {
	client       *openai.LLM
	defaultModel string
}

// NewCompleter creates a new langchaingo-backed completer. The API key
// falls back to OPENAI_API_KEY.
func NewCompleter(cfg Config) (*Completer, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("no model API key configured")
	}

	opts := []openai.Option{openai.WithToken(apiKey)}
	if cfg.DefaultModel != "" {
		opts = append(opts, openai.WithModel(cfg.DefaultModel))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	return &Completer{client: client, defaultModel: cfg.DefaultModel}, nil
}

// Complete sends one completion request and returns the raw response
// text.
func (c *Completer) Complete(ctx context.Context, req secondary.CompletionRequest) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.System))
	}
	for _, m := range req.Messages {
		messages = append(messages, llms.TextParts(toRole(m.Role), m.Content))
	}

	var callOpts []llms.CallOption
	if req.Model != "" {
		callOpts = append(callOpts, llms.WithModel(req.Model))
	} else if c.defaultModel != "" {
		callOpts = append(callOpts, llms.WithModel(c.defaultModel))
	}

	resp, err := c.client.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("model returned no choices")
	}
	return resp.Choices[0].Content, nil
}

func toRole(role string) llms.ChatMessageType {
	switch role {
	case secondary.RoleSystem:
		return llms.ChatMessageTypeSystem
	case secondary.RoleAssistant:
		return llms.ChatMessageTypeAI
	case secondary.RoleTool:
		return llms.ChatMessageTypeTool
	default:
		return llms.ChatMessageTypeHuman
	}
}

// Ensure Completer implements the interface.
var _ secondary.Completer = (*Completer)(nil)
