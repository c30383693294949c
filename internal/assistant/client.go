// Package assistant talks to an OpenAI-compatible chat model to refine build
// prompts and to name published repositories. Everything in it degrades to a
// deterministic fallback when no model is configured.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"
	"go.uber.org/zap"

	"github.com/berth-dev/slipway/internal/config"
)

// ErrNotConfigured is returned by NewClient when no API key is available.
var ErrNotConfigured = errors.New("assistant not configured: set OPENAI_API_KEY")

var errEmptyResponse = errors.New("empty response from model")

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string
	Content string
}

// Completer returns the model's reply to msgs.
type Completer interface {
	Complete(ctx context.Context, msgs []Message, temperature float32) (string, error)
}

// Client is a Completer backed by the OpenAI chat completions API or any
// server that speaks it.
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

// NewClient creates a Client from cfg.
func NewClient(cfg config.AssistantConfig, logger *zap.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}

	return &Client{
		api:       openai.NewClientWithConfig(oc),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger,
	}, nil
}

// Complete sends one chat completion request.
func (c *Client) Complete(ctx context.Context, msgs []Message, temperature float32) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(msgs),
	}
	if c.maxTokens > 0 {
		req.MaxTokens = c.maxTokens
	}
	if temperature > 0 {
		req.Temperature = &temperature
	}

	resp, err := c.api.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	c.logger.Debug("chat completion",
		zap.String("model", c.model),
		zap.Int("messages", len(msgs)),
		zap.Int("reply_chars", len(content)))
	if content == "" {
		return "", errEmptyResponse
	}
	return content, nil
}

func toOpenAI(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		role := openai.ChatMessageRoleUser
		switch m.Role {
		case RoleSystem:
			role = openai.ChatMessageRoleSystem
		case RoleAssistant:
			role = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	return out
}
