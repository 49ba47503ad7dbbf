// Package assistant answers schedule questions with a language model, using
// the user's surrounding tasks and events as context.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"planner/backend/internal/apperrors"
	"planner/backend/internal/config"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
)

// Client is the language model behind the assistant.
type Client interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AnthropicClient calls the Messages API. It is built once per process and
// injected where needed.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

var _ Client = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration. Extra options are
// appended after the configured ones, so tests can point it at a fake server.
func NewAnthropicClient(cfg config.AssistantConfig, opts ...anthropicopt.RequestOption) *AnthropicClient {
	base := []anthropicopt.RequestOption{
		anthropicopt.WithAPIKey(cfg.APIKey),
		anthropicopt.WithMaxRetries(0),
	}
	if cfg.CallTimeout > 0 {
		base = append(base, anthropicopt.WithRequestTimeout(cfg.CallTimeout))
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(append(base, opts...)...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", &apperrors.RemoteError{Provider: "assistant", Op: "create message", StatusCode: apiErr.StatusCode, Err: err}
		}
		return "", &apperrors.RemoteError{Provider: "assistant", Op: "create message", StatusCode: http.StatusBadGateway, Err: err}
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// String is used in logs and never includes the key.
func (c *AnthropicClient) String() string {
	return fmt.Sprintf("anthropic(%s)", c.model)
}
