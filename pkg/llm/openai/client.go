// Package openai implements llm.Provider against the OpenAI chat
// completion API.
package openai

import (
	"context"
	"errors"

	"github.com/rune-mem/rune/pkg/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI LLM client. It implements llm.Provider.
type Client struct {
	client    *openai.Client
	model     string
	available bool
}

// Config is the configuration for the OpenAI client.
type Config struct {
	// APIKey is the OpenAI API key. Empty leaves the client unavailable.
	APIKey string

	// Model defaults to "gpt-4".
	Model string

	// BaseURL defaults to the OpenAI official address.
	BaseURL string
}

// NewClient creates a new OpenAI LLM client. A missing API key does not
// fail construction: the returned client reports IsAvailable()==false.
func NewClient(cfg *Config) *Client {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4"
	}

	return &Client{
		client:    openai.NewClientWithConfig(config),
		model:     model,
		available: cfg.APIKey != "",
	}
}

// IsAvailable reports whether an API key was configured.
func (c *Client) IsAvailable() bool {
	return c.available
}

// Generate generates text from a single prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	messages := []llm.Message{{Role: "user", Content: prompt}}
	return c.GenerateWithMessages(ctx, messages, opts...)
}

// GenerateWithMessages generates text using message history.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	if !c.available {
		return "", errors.New("openai: not available")
	}

	options := llm.ApplyGenerateOptions(opts)

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if options.System != "" {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: options.System,
		})
	}
	for _, msg := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    chatMessages,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
		TopP:        float32(options.TopP),
		Stop:        options.Stop,
	}

	resp, err := c.client.CreateChatCompletion(callCtx, req)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// Close is a no-op; the OpenAI SDK client needs no explicit shutdown.
func (c *Client) Close() error {
	return nil
}
