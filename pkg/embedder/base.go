// Package embedder provides interfaces for text embedding providers.
//
// It defines the Provider interface every embedding implementation
// satisfies, enabling text-to-vector conversion for similarity search
// across the capture and recall pipelines.
package embedder

import "context"

// Provider defines the interface for embedding providers. Implementations
// wrap a specific embedding backend (a hosted API, a self-hosted model
// server) behind the same vector-producing contract.
type Provider interface {
	// Embed converts a text string into a vector embedding.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - text: The input text to embed
	//
	// Returns the embedding vector and any error.
	Embed(ctx context.Context, text string) ([]float64, error)

	// EmbedBatch converts multiple text strings into vector embeddings.
	//
	// This method is more efficient than calling Embed multiple times,
	// as it can batch process requests.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - texts: Slice of input texts to embed
	//
	// Returns a slice of embedding vectors and any error.
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)

	// Dimensions returns the dimension D of embedding vectors produced by
	// this provider.
	Dimensions() int

	// IsAvailable reports whether this provider can currently serve
	// requests (e.g. it has the credentials or endpoint it needs). It
	// never panics or blocks on network I/O.
	IsAvailable() bool

	// Close closes the provider and releases resources.
	Close() error
}
