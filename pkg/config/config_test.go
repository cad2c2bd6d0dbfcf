package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rune-mem/rune/pkg/config"
)

func TestLoadMissingFileYieldsDormantDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := config.NewStore(path)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, config.StateDormant, cfg.State)
	assert.Equal(t, "auto", cfg.LLM.Provider)
	assert.Equal(t, 10, cfg.Retriever.TopK)
	assert.InDelta(t, 0.5, cfg.Retriever.ConfidenceThreshold, 1e-9)
}

func TestIsActiveReflectsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	store := config.NewStore(path)

	active, err := store.IsActive()
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, store.SetState(config.StateActive))
	active, err = store.IsActive()
	require.NoError(t, err)
	assert.True(t, active)
}

func TestSaveRedactsEnvOriginatedSecrets(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.json")
	store := config.NewStore(path)

	cfg, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", cfg.LLM.AnthropicAPIKey, "in-memory cache still sees the env value")

	cfg.LLM.OpenAIAPIKey = "sk-file-value"
	require.NoError(t, store.Save(cfg))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "sk-from-env", "env-sourced secret must never round-trip to disk")
	assert.Contains(t, string(raw), "sk-file-value")

	reloaded, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", reloaded.LLM.AnthropicAPIKey, "process still has the env value after save")
}

func TestSnapshotPicksUpExternalEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	writer := config.NewStore(path)
	cfg, err := writer.Load()
	require.NoError(t, err)
	require.NoError(t, writer.Save(cfg))

	// A second Store bound to the same path models an operator editing the
	// file directly (or a prior process run): its own cache starts cold, so
	// the first Snapshot must read the state the first Store wrote.
	reader := config.NewStore(path)
	seen, err := reader.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, config.StateDormant, seen.State)

	edited := *cfg
	edited.State = config.StateActive
	require.NoError(t, writer.Save(&edited))

	seen, err = reader.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, config.StateActive, seen.State, "a warm-cache Store must pick up, via the mtime change, the on-disk state written by another Store")
}

func TestLLMConfigResolveAutoPicksFirstAvailable(t *testing.T) {
	cfg := config.LLMConfig{Provider: "auto", OpenAIAPIKey: "key"}
	resolved := cfg.Resolve()
	assert.Equal(t, "openai", resolved.Provider)
	assert.Equal(t, "openai", resolved.Tier2Provider, "tier2 falls back to the resolved primary provider")
}

func TestLLMConfigResolveLeavesExplicitProvider(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", Tier2Provider: "google"}
	resolved := cfg.Resolve()
	assert.Equal(t, "anthropic", resolved.Provider)
	assert.Equal(t, "google", resolved.Tier2Provider)
}

func TestLLMConfigResolveNoKeysLeavesAuto(t *testing.T) {
	cfg := config.LLMConfig{Provider: "auto"}
	resolved := cfg.Resolve()
	assert.Equal(t, "auto", resolved.Provider)
}
