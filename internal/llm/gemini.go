package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

type geminiClient struct {
	client *genai.Client
	model  string
}

func newGeminiClient(apiKey, model string, opts *clientOptions) (*geminiClient, error) {
	config := &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	if opts.baseURL != "" {
		config.HTTPOptions.BaseURL = opts.baseURL
	}

	client, err := genai.NewClient(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &geminiClient{client: client, model: model}, nil
}

// convertGeminiMessages splits out the system instruction; gemini calls the
// assistant role "model".
func convertGeminiMessages(messages []Message) (*genai.Content, []*genai.Content) {
	var systemInstruction *genai.Content
	var contents []*genai.Content

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			systemInstruction = &genai.Content{Parts: []*genai.Part{{Text: m.Content}}}
		case RoleUser:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		case RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	return systemInstruction, contents
}

func (c *geminiClient) prepare(messages []Message) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	if !hasUserMessage(messages) {
		return nil, nil, fmt.Errorf("gemini: no user message provided")
	}
	systemInstruction, contents := convertGeminiMessages(messages)
	return contents, &genai.GenerateContentConfig{SystemInstruction: systemInstruction}, nil
}

func (c *geminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	contents, config, err := c.prepare(messages)
	if err != nil {
		return "", err
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("gemini completion: %w", err)
	}

	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}
	return text, nil
}

func (c *geminiClient) Stream(ctx context.Context, messages []Message, onDelta func(string)) error {
	contents, config, err := c.prepare(messages)
	if err != nil {
		return err
	}

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, contents, config) {
		if err != nil {
			return fmt.Errorf("gemini stream: %w", err)
		}
		if delta := resp.Text(); delta != "" {
			onDelta(delta)
		}
	}
	return nil
}
