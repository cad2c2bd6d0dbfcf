// Package localmini implements embedder.Provider against a self-hosted
// embedding server running a multilingual-MiniLM-family model — the
// installation default named in spec (D=384), for deployments that would
// rather not send capture text to a third-party embedding API.
package localmini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client implements embedder.Provider against a self-hosted HTTP embedding
// server (e.g. a text-embeddings-inference or sentence-transformers
// server exposing a DashScope-shaped embeddings endpoint).
type Client struct {
	client     *http.Client
	model      string
	baseURL    string
	dimensions int
}

// Config contains configuration for creating a localmini Embedder client.
type Config struct {
	// Model is the served model name (default: "multilingual-minilm-l12-v2").
	Model string

	// BaseURL is the embedding server's base URL (required).
	BaseURL string

	// Dimensions is the vector dimension the installation's embedding
	// model produces (default: 384, the MiniLM-family default).
	Dimensions int

	// HTTPClient is a custom HTTP client (uses default if nil).
	HTTPClient *http.Client
}

// NewClient creates a new localmini Embedder client.
func NewClient(cfg *Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("localmini: base URL is required")
	}

	model := cfg.Model
	if model == "" {
		model = "multilingual-minilm-l12-v2"
	}

	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = 384
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	return &Client{
		client:     client,
		model:      model,
		baseURL:    cfg.BaseURL,
		dimensions: dimensions,
	}, nil
}

// Embed converts a single text string into a vector embedding.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	embeddings, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// EmbedBatch converts multiple text strings into vector embeddings in a
// single request.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"input": map[string]interface{}{
			"texts": texts,
		},
		"parameters": map[string]interface{}{
			"dimension": c.dimensions,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("localmini: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/embeddings", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("localmini: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("localmini: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("localmini: request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Output struct {
			Embeddings []struct {
				Embedding []float64 `json:"embedding"`
			} `json:"embeddings"`
		} `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("localmini: decode response: %w", err)
	}
	if len(response.Output.Embeddings) != len(texts) {
		return nil, fmt.Errorf("localmini: unexpected number of results (got %d, expected %d)", len(response.Output.Embeddings), len(texts))
	}

	embeddings := make([][]float64, len(texts))
	for i, emb := range response.Output.Embeddings {
		embeddings[i] = emb.Embedding
	}
	return embeddings, nil
}

// Dimensions returns the configured embedding dimension D.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// IsAvailable always reports true: construction already requires a
// BaseURL, and the self-hosted server it points to has no API key to be
// missing.
func (c *Client) IsAvailable() bool {
	return true
}

// Close is a no-op; the HTTP client needs no explicit shutdown.
func (c *Client) Close() error {
	return nil
}
