package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/feedsum/feedsum/pkg/config"
)

// Client asks an OpenAI-compatible backend to summarize a rendered prompt
type Client struct {
	client    *openai.Client
	config    config.LLMConfig
	systemMsg string
}

// default system prompt, used when the config provides none
const defaultSystemPrompt = `Summarize the provided content accurately and concisely.
Write directly about the content itself, never about "the article" or "the author".
Keep the summary to a short paragraph.`

// NewClient creates a new summarizer client
func NewClient(cfg config.LLMConfig) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	systemMsg := cfg.SystemPrompt
	if systemMsg == "" {
		systemMsg = defaultSystemPrompt
	}

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		config:    cfg,
		systemMsg: systemMsg,
	}
}

// Summarize sends the prompt to the backend and returns the generated text.
// Every call carries its own deadline, a hung backend surfaces as a per-call
// error and never blocks the refresh loop past the configured timeout.
func (c *Client) Summarize(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.config.Model,
		Temperature: float32(c.config.Temperature),
		MaxTokens:   c.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: c.systemMsg,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm request failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from llm")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty summary from llm")
	}

	return text, nil
}
