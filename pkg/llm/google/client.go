// Package google implements llm.Provider against the Google Gemini API via
// the official google.golang.org/genai SDK.
//
// Google's API attaches the system instruction to the generation config
// rather than to the message list. Per spec, Rune treats that as model
// "instance" construction and caches the system-instruction content it
// builds, keyed by the SHA-256 hash of the system prompt, so repeated
// calls with the same system prompt reuse the same instance instead of
// rebuilding it.
package google

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"

	"google.golang.org/genai"

	"github.com/rune-mem/rune/pkg/llm"
)

// Client is a Google Gemini LLM client. It implements llm.Provider.
type Client struct {
	genaiClient *genai.Client
	model       string
	available   bool

	mu        sync.Mutex
	instances map[string]*genai.Content // keyed by sha256(system prompt)
}

// Config is the configuration for the Google client.
type Config struct {
	// APIKey is the Gemini API key. Empty leaves the client unavailable.
	APIKey string

	// Model defaults to "gemini-1.5-pro".
	Model string
}

// NewClient creates a new Google Gemini client. A missing API key does not
// fail construction: the returned client reports IsAvailable()==false and
// Generate fails with "not available".
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-pro"
	}

	if cfg.APIKey == "" {
		return &Client{model: model, available: false, instances: make(map[string]*genai.Content)}, nil
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		genaiClient: gc,
		model:       model,
		available:   true,
		instances:   make(map[string]*genai.Content),
	}, nil
}

// IsAvailable reports whether an API key was configured and the client
// constructed successfully.
func (c *Client) IsAvailable() bool {
	return c.available
}

// Generate generates text from a single prompt.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	messages := []llm.Message{{Role: "user", Content: prompt}}
	return c.GenerateWithMessages(ctx, messages, opts...)
}

// GenerateWithMessages generates text using message history. Any system
// message in the history, or the System field of the generation options,
// is attached to the request as the cached system-instruction instance.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	if !c.available {
		return "", errors.New("google: not available")
	}

	options := llm.ApplyGenerateOptions(opts)

	system := options.System
	var contents []*genai.Content
	for _, msg := range messages {
		if msg.Role == "system" {
			if system == "" {
				system = msg.Content
			}
			continue
		}
		role := genai.RoleUser
		if msg.Role == "assistant" || msg.Role == "model" {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	if len(contents) == 0 {
		return "", errors.New("google: no user/assistant content to send")
	}

	cfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(float32(options.Temperature)),
		TopP:             genai.Ptr(float32(options.TopP)),
		MaxOutputTokens:  int32(options.MaxTokens),
		StopSequences:    options.Stop,
		SystemInstruction: c.instanceFor(system),
	}

	timeout := options.Timeout
	if timeout <= 0 {
		timeout = llm.DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.genaiClient.Models.GenerateContent(callCtx, c.model, contents, cfg)
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("google: no content returned")
	}

	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// instanceFor returns the cached system-instruction Content for the given
// system prompt, constructing and caching one if this is the first call
// with that prompt. An empty prompt returns nil (no system instruction)
// and is not cached.
func (c *Client) instanceFor(system string) *genai.Content {
	if system == "" {
		return nil
	}

	key := systemKey(system)

	c.mu.Lock()
	defer c.mu.Unlock()

	if instance, ok := c.instances[key]; ok {
		return instance
	}

	instance := genai.NewContentFromText(system, genai.RoleUser)
	c.instances[key] = instance
	return instance
}

func systemKey(system string) string {
	sum := sha256.Sum256([]byte(system))
	return hex.EncodeToString(sum[:])
}

// Close releases the underlying client's resources.
func (c *Client) Close() error {
	return nil
}
