// Package anthropic implements llm.Provider against the Anthropic Messages
// API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rune-mem/rune/pkg/llm"
)

// Client is an Anthropic LLM client. It implements llm.Provider, separating
// system messages from the conversation per the Anthropic Messages API
// specification.
type Client struct {
	client    *http.Client
	apiKey    string
	model     string
	baseURL   string
	available bool
}

// Config is the configuration for the Anthropic client.
type Config struct {
	// APIKey is the Anthropic API key. If empty, the client is constructed
	// as unavailable rather than returning an error — callers check
	// IsAvailable before calling Generate, per spec.
	APIKey string

	// Model defaults to "claude-3-5-sonnet-20240620".
	Model string

	// BaseURL defaults to "https://api.anthropic.com".
	BaseURL string

	// HTTPClient overrides the default HTTP client (120s timeout).
	HTTPClient *http.Client
}

// NewClient creates a new Anthropic client. A missing API key does not
// fail construction: the returned client reports IsAvailable()==false and
// Generate returns an error.
func NewClient(cfg *Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	model := cfg.Model
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{
		client:    client,
		apiKey:    cfg.APIKey,
		model:     model,
		baseURL:   baseURL,
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

// GenerateWithMessages generates text using message history, separating any
// system message from the rest per the Anthropic Messages API.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	if !c.available {
		return "", errors.New("anthropic: not available")
	}

	options := llm.ApplyGenerateOptions(opts)

	systemMessage := options.System
	var filteredMessages []map[string]string
	for _, msg := range messages {
		if msg.Role == "system" {
			if systemMessage == "" {
				systemMessage = msg.Content
			}
			continue
		}
		filteredMessages = append(filteredMessages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	reqBody := map[string]interface{}{
		"model":       c.model,
		"max_tokens":  options.MaxTokens,
		"temperature": options.Temperature,
		"top_p":       options.TopP,
		"messages":    filteredMessages,
	}
	if systemMessage != "" {
		reqBody["system"] = systemMessage
	}
	if len(options.Stop) > 0 {
		reqBody["stop_sequences"] = options.Stop
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/messages", c.baseURL)
	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("anthropic: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("anthropic: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("anthropic: request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("anthropic: decode response: %w", err)
	}
	if len(response.Content) == 0 {
		return "", errors.New("anthropic: no content returned")
	}

	return response.Content[0].Text, nil
}

// Close is a no-op; the underlying HTTP client needs no explicit shutdown.
func (c *Client) Close() error {
	return nil
}
