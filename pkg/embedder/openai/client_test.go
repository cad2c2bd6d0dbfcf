package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rune-mem/rune/pkg/embedder/openai"
)

func TestNewClientAppliesDefaultDimensions(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, 1536, client.Dimensions())
}

func TestIsAvailableReflectsAPIKey(t *testing.T) {
	withKey, err := openai.NewClient(&openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.True(t, withKey.IsAvailable())

	withoutKey, err := openai.NewClient(&openai.Config{})
	require.NoError(t, err)
	assert.False(t, withoutKey.IsAvailable())
}

func TestEmbedRejectsWhenUnavailable(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{})
	require.NoError(t, err)

	_, err = client.Embed(context.Background(), "hello")
	assert.Error(t, err)
}

func TestNewClientHonorsExplicitDimensions(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{APIKey: "sk-test", Dimensions: 256})
	require.NoError(t, err)
	assert.Equal(t, 256, client.Dimensions())
}

func TestEmbedBatchParsesEmbeddingsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{0.1, 0.2}},
				{"object": "embedding", "index": 1, "embedding": []float32{0.3, 0.4}},
			},
			"model": "text-embedding-ada-002",
			"usage": map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	defer server.Close()

	client, err := openai.NewClient(&openai.Config{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float64{0.1, 0.2}, vectors[0])
}

func TestEmbedReturnsFirstVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"object": "list",
			"data": []map[string]interface{}{
				{"object": "embedding", "index": 0, "embedding": []float32{1, 2, 3}},
			},
			"model": "text-embedding-ada-002",
		})
	}))
	defer server.Close()

	client, err := openai.NewClient(&openai.Config{APIKey: "sk-test", BaseURL: server.URL})
	require.NoError(t, err)

	vector, err := client.Embed(context.Background(), "solo")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3}, vector)
}

func TestCloseIsNoOp(t *testing.T) {
	client, err := openai.NewClient(&openai.Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
