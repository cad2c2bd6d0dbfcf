// Package llm provides interfaces and utilities for Large Language Model
// (LLM) providers.
//
// It defines the Provider interface every concrete provider (Anthropic,
// OpenAI, Google) satisfies, along with message types and generation
// options. Provider is a closed, tagged-variant abstraction: there is no
// plugin registry and no dynamic dispatch over arbitrary provider names —
// "auto" is a configuration-time token resolved before any client is
// constructed (see pkg/config).
package llm

import (
	"context"
	"time"
)

// Provider defines the interface every LLM client must satisfy.
type Provider interface {
	// Generate generates text from a single prompt.
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

	// GenerateWithMessages generates text from a conversation history.
	GenerateWithMessages(ctx context.Context, messages []Message, opts ...GenerateOption) (string, error)

	// IsAvailable reports whether this client can currently serve requests
	// (e.g. it has a non-empty API key). It never panics or blocks on
	// network I/O.
	IsAvailable() bool

	// Close releases any resources held by the client.
	Close() error
}

// Message represents a single message in a conversation.
type Message struct {
	// Role is the message role: "system", "user", or "assistant".
	Role string `json:"role"`

	// Content is the message content text.
	Content string `json:"content"`
}

// GenerateOptions contains options for text generation.
type GenerateOptions struct {
	// System is a system prompt applied ahead of the conversation. For
	// providers whose wire format requires the system prompt separated
	// from the message list (Anthropic, Google), callers may also supply
	// it as a Message{Role: "system"} instead; providers accept both.
	System string

	// Temperature controls randomness (0.0-2.0). Higher = more random.
	Temperature float64

	// MaxTokens limits the maximum number of tokens in the response.
	MaxTokens int

	// TopP controls nucleus sampling (0.0-1.0). Higher = more diverse.
	TopP float64

	// Stop contains stop sequences that will end generation.
	Stop []string

	// Timeout bounds the request at the transport level. Zero means the
	// provider's default (DefaultTimeout).
	Timeout time.Duration
}

// DefaultTimeout is the transport-level timeout applied when a caller does
// not specify one.
const DefaultTimeout = 30 * time.Second

// GenerateOption is a function type for configuring generation options.
type GenerateOption func(*GenerateOptions)

// WithSystem sets the system prompt for this call.
func WithSystem(system string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.System = system
	}
}

// WithTemperature sets the temperature for text generation.
//
// Temperature controls randomness: 0.0 = deterministic, 2.0 = very random.
//
// Example:
//
//	text, _ := llm.Generate(ctx, "Hello", llm.WithTemperature(0.7))
func WithTemperature(temp float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = temp
	}
}

// WithMaxTokens sets the maximum number of tokens in the response.
//
// Example:
//
//	text, _ := llm.Generate(ctx, "Hello", llm.WithMaxTokens(100))
func WithMaxTokens(max int) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.MaxTokens = max
	}
}

// WithTopP sets the top-p (nucleus sampling) parameter.
//
// TopP controls diversity: 0.0 = most likely tokens only, 1.0 = all tokens.
//
// Example:
//
//	text, _ := llm.Generate(ctx, "Hello", llm.WithTopP(0.9))
func WithTopP(topP float64) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.TopP = topP
	}
}

// WithTimeout sets the per-call transport-level timeout.
func WithTimeout(d time.Duration) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Timeout = d
	}
}

// ApplyGenerateOptions applies a slice of GenerateOption functions to create GenerateOptions.
//
// This is a helper function used internally by LLM implementations.
// Default values: Temperature=0.7, MaxTokens=1000, TopP=1.0, Timeout=DefaultTimeout.
func ApplyGenerateOptions(opts []GenerateOption) *GenerateOptions {
	options := &GenerateOptions{
		Temperature: 0.7,
		MaxTokens:   1000,
		TopP:        1.0,
		Timeout:     DefaultTimeout,
	}
	for _, opt := range opts {
		opt(options)
	}
	return options
}
