// Package openai implements embedder.Provider against the OpenAI
// Embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// Client is an OpenAI Embedder client. It implements embedder.Provider
// against the OpenAI Embeddings API.
type Client struct {
	client     *openai.Client
	model      openai.EmbeddingModel
	dimensions int
	available  bool
}

// Config is the configuration for the OpenAI Embedder client.
type Config struct {
	// APIKey is the OpenAI API key. Empty leaves the client unavailable.
	APIKey string

	// Model is currently fixed to AdaEmbeddingV2.
	Model string

	// BaseURL defaults to the OpenAI official address.
	BaseURL string

	// Dimensions defaults to 1536 (AdaEmbeddingV2's native dimension).
	Dimensions int
}

// NewClient creates a new OpenAI Embedder client. A missing API key does
// not fail construction: the returned client reports
// IsAvailable()==false and Embed/EmbedBatch return an error.
func NewClient(cfg *Config) (*Client, error) {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	client := openai.NewClientWithConfig(config)

	// Default to Ada v2 model.
	model := openai.AdaEmbeddingV2

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 1536
	}

	return &Client{
		client:     client,
		model:      model,
		dimensions: dimensions,
		available:  cfg.APIKey != "",
	}, nil
}

// IsAvailable reports whether an API key was configured.
func (c *Client) IsAvailable() bool {
	return c.available
}

// Embed converts a single text to a vector.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple texts to vectors in a single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if !c.available {
		return nil, errors.New("openai: not available")
	}

	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: c.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: unexpected number of results (got %d, expected %d)", len(resp.Data), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, data := range resp.Data {
		embedding32 := data.Embedding
		embedding64 := make([]float64, len(embedding32))
		for j, v := range embedding32 {
			embedding64[j] = float64(v)
		}
		embeddings[i] = embedding64
	}

	return embeddings, nil
}

// Dimensions returns the configured embedding dimension D.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// Close is a no-op; the OpenAI SDK client needs no explicit shutdown.
func (c *Client) Close() error {
	return nil
}
