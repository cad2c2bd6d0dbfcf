package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rune-mem/rune/pkg/llm/openai"
)

func TestIsAvailableReflectsAPIKey(t *testing.T) {
	withKey := openai.NewClient(&openai.Config{APIKey: "sk-test"})
	assert.True(t, withKey.IsAvailable())

	withoutKey := openai.NewClient(&openai.Config{})
	assert.False(t, withoutKey.IsAvailable())
}

func TestGenerateRejectsWhenUnavailable(t *testing.T) {
	client := openai.NewClient(&openai.Config{})
	_, err := client.Generate(context.Background(), "hello")
	assert.Error(t, err)
}

func TestGenerateParsesChatCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":      "cmpl-1",
			"object":  "chat.completion",
			"created": 1,
			"model":   "gpt-4",
			"choices": []map[string]interface{}{
				{
					"index":   0,
					"message": map[string]string{"role": "assistant", "content": "hello back"},
				},
			},
		})
	}))
	defer server.Close()

	client := openai.NewClient(&openai.Config{APIKey: "sk-test", BaseURL: server.URL})

	text, err := client.Generate(context.Background(), "hi there")
	require.NoError(t, err)
	assert.Equal(t, "hello back", text)
}

func TestCloseIsNoOp(t *testing.T) {
	client := openai.NewClient(&openai.Config{})
	assert.NoError(t, client.Close())
}
