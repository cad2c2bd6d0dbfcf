package vault_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rune-mem/rune/pkg/vault"
)

func TestPolicyDeniedError(t *testing.T) {
	err := &vault.PolicyDenied{Reason: "top_k_exceeds_cap"}
	assert.Contains(t, err.Error(), "top_k_exceeds_cap")
	assert.Contains(t, err.Error(), "policy denied")
}

func TestDialAcceptsWellFormedTarget(t *testing.T) {
	// grpc.NewClient is lazy: it validates the target syntax but does not
	// block on a live connection, so a syntactically valid, unreachable
	// address still dials successfully here.
	adapter, err := vault.Dial(vault.Config{Endpoint: "127.0.0.1:0", Insecure: true})
	if assert.NoError(t, err) {
		assert.NoError(t, adapter.Close())
	}
}
