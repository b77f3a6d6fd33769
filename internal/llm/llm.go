// Package llm talks to hosted chat models. Every provider supports a blocking
// completion and an incremental stream of the same reply.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Prompt builds the usual system + user exchange.
func Prompt(system, user string) []Message {
	return []Message{
		{Role: RoleSystem, Content: system},
		{Role: RoleUser, Content: user},
	}
}

type Client interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	// Stream calls onDelta with each piece of the reply in order and returns
	// once the provider signals the end of the reply.
	Stream(ctx context.Context, messages []Message, onDelta func(string)) error
}

// ErrEmptyResponse is returned when a provider answers with no text.
var ErrEmptyResponse = errors.New("empty response")

type Option func(*clientOptions)

type clientOptions struct {
	baseURL   string
	maxTokens int64
}

func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithMaxTokens caps reply length for providers that require a cap.
func WithMaxTokens(n int64) Option {
	return func(o *clientOptions) {
		o.maxTokens = n
	}
}

func ParseModel(model string) (provider, modelName string, err error) {
	parts := strings.SplitN(model, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid model format %q: expected provider/model_name", model)
	}
	return parts[0], parts[1], nil
}

func NewClient(provider, apiKey, model string, opts ...Option) (Client, error) {
	o := &clientOptions{maxTokens: 8192}
	for _, opt := range opts {
		opt(o)
	}

	switch provider {
	case "openai":
		return newOpenAIClient(apiKey, model, o)
	case "anthropic":
		return newAnthropicClient(apiKey, model, o)
	case "gemini":
		return newGeminiClient(apiKey, model, o)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q: supported providers are openai, anthropic, gemini", provider)
	}
}

// Open parses a "provider/model" reference and builds its client.
func Open(ref, apiKey string, opts ...Option) (Client, error) {
	provider, model, err := ParseModel(ref)
	if err != nil {
		return nil, err
	}
	return NewClient(provider, apiKey, model, opts...)
}

func hasUserMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleUser {
			return true
		}
	}
	return false
}
