package mcpserver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	runeapp "github.com/rune-mem/rune/pkg/rune"
)

func TestToolNamesMatchTheCaptureRecallContract(t *testing.T) {
	assert.Equal(t, "capture", buildCaptureTool().Name)
	assert.Equal(t, "recall", buildRecallTool().Name)
	assert.Equal(t, "vault_status", buildVaultStatusTool().Name)
	assert.Equal(t, "reload_pipelines", buildReloadPipelinesTool().Name)
}

func TestErrorPayloadClassifiesRuneError(t *testing.T) {
	err := runeapp.NewError("Capture", runeapp.ErrDormant, nil)
	payload := errorPayload(err)

	assert.Equal(t, false, payload["ok"])
	assert.Equal(t, string(runeapp.ErrDormant), payload["error"])
	assert.Contains(t, payload["detail"], "dormant")
}

func TestErrorPayloadDefaultsUnclassifiedErrorsToInternal(t *testing.T) {
	payload := errorPayload(errors.New("unexpected"))
	assert.Equal(t, string(runeapp.ErrInternal), payload["error"])
}

func TestResultJSONNeverReturnsATransportError(t *testing.T) {
	result, err := resultJSON(map[string]interface{}{"ok": true, "found": 3})
	require.NoError(t, err, "a tool response must always be a JSON-RPC result, never a transport error")
	require.NotNil(t, result)
}
