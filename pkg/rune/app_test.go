package rune_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rs/zerolog"

	"github.com/rune-mem/rune/pkg/config"
	"github.com/rune-mem/rune/pkg/retriever"
	runeapp "github.com/rune-mem/rune/pkg/rune"
	"github.com/rune-mem/rune/pkg/scribe"
)

func newTestApp(t *testing.T) (*runeapp.App, *config.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	store := config.NewStore(path)
	app := runeapp.NewApp(store, zerolog.Nop())
	return app, store
}

// activateWithDialableVault flips the store to active with a syntactically
// valid (if unreachable) Vault endpoint, so Reload's grpc.NewClient dial
// succeeds and the test can exercise precondition checks past the state
// gate without needing a live Vault.
func activateWithDialableVault(t *testing.T, store *config.Store) {
	t.Helper()
	cfg, err := store.Snapshot()
	require.NoError(t, err)
	cfg.State = config.StateActive
	cfg.Vault.Endpoint = "127.0.0.1:0"
	cfg.EnVector.Endpoint = "http://127.0.0.1:0"
	cfg.EnVector.Index = "test-index"
	require.NoError(t, store.Save(cfg))
}

func TestDormantGateBlocksCapture(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := app.Capture(context.Background(), "we decided something", scribe.Hints{})
	require.Error(t, err)
	assert.Equal(t, runeapp.ErrDormant, runeapp.KindOf(err))
}

func TestDormantGateBlocksRecall(t *testing.T) {
	app, _ := newTestApp(t)

	_, err := app.Recall(context.Background(), "what did we decide", 5)
	require.Error(t, err)
	assert.Equal(t, runeapp.ErrDormant, runeapp.KindOf(err))
}

func TestCaptureEmptyTextShortCircuitsEvenWhenActive(t *testing.T) {
	app, store := newTestApp(t)
	activateWithDialableVault(t, store)
	require.NoError(t, app.Reload(context.Background()))
	defer app.Close()

	outcome, err := app.Capture(context.Background(), "   ", scribe.Hints{})
	require.NoError(t, err)
	assert.False(t, outcome.Captured)
	assert.Equal(t, "empty", outcome.Reason)
}

func TestRecallRejectsOutOfRangeTopK(t *testing.T) {
	app, store := newTestApp(t)
	activateWithDialableVault(t, store)
	require.NoError(t, app.Reload(context.Background()))
	defer app.Close()

	_, err := app.Recall(context.Background(), "anything", retriever.MaxTopK+1)
	require.Error(t, err)
	assert.Equal(t, runeapp.ErrBadArgument, runeapp.KindOf(err))
}

func TestRecallRejectsZeroTopK(t *testing.T) {
	app, store := newTestApp(t)
	activateWithDialableVault(t, store)
	require.NoError(t, app.Reload(context.Background()))
	defer app.Close()

	_, err := app.Recall(context.Background(), "anything", 0)
	require.Error(t, err)
	assert.Equal(t, runeapp.ErrBadArgument, runeapp.KindOf(err))
}

func TestReloadSwapsPipelinesAtomically(t *testing.T) {
	app, store := newTestApp(t)
	activateWithDialableVault(t, store)

	require.NoError(t, app.Reload(context.Background()))
	require.NoError(t, app.Reload(context.Background()), "a second reload must succeed and swap cleanly")
	app.Close()
}
