package envector_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rune-mem/rune/pkg/envector"
)

type fakeTransport struct {
	ensureCalls int
	failUntil   int
	closed      bool
}

func (f *fakeTransport) EnsureIndex(ctx context.Context, name string) error {
	f.ensureCalls++
	if f.ensureCalls <= f.failUntil {
		return errors.New("transient")
	}
	return nil
}
func (f *fakeTransport) Insert(ctx context.Context, index string, vector []float64, metadataPlain map[string]interface{}) error {
	return nil
}
func (f *fakeTransport) Search(ctx context.Context, index string, queryVector []float64, k int) (envector.ScoreCiphertext, error) {
	return envector.ScoreCiphertext("cipher"), nil
}
func (f *fakeTransport) FetchMetadata(ctx context.Context, index string, indices []int64) ([]envector.MetadataCiphertext, error) {
	return nil, nil
}
func (f *fakeTransport) Close() error {
	f.closed = true
	return nil
}

func fastRetryConfig() envector.Config {
	return envector.Config{MaxRetries: 2, InitialInterval: time.Millisecond}
}

func TestEnsureIndexIsMemoizedAfterFirstSuccess(t *testing.T) {
	transport := &fakeTransport{}
	adapter := envector.NewAdapter(transport, "idx", envector.Config{})

	require.NoError(t, adapter.EnsureIndex(context.Background(), fastRetryConfig()))
	require.NoError(t, adapter.EnsureIndex(context.Background(), fastRetryConfig()))

	assert.Equal(t, 1, transport.ensureCalls, "a second EnsureIndex call must not re-dispatch the RPC")
}

func TestEnsureIndexRetriesThenSucceeds(t *testing.T) {
	transport := &fakeTransport{failUntil: 2}
	adapter := envector.NewAdapter(transport, "idx", envector.Config{})

	err := adapter.EnsureIndex(context.Background(), fastRetryConfig())
	require.NoError(t, err)
	assert.Equal(t, 3, transport.ensureCalls)
}

func TestEnsureIndexExhaustsRetriesAndSurfacesStoreUnavailable(t *testing.T) {
	transport := &fakeTransport{failUntil: 100}
	adapter := envector.NewAdapter(transport, "idx", envector.Config{})

	err := adapter.EnsureIndex(context.Background(), fastRetryConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, envector.ErrStoreUnavailable)
}

func TestSearchReturnsOpaqueCiphertext(t *testing.T) {
	transport := &fakeTransport{}
	adapter := envector.NewAdapter(transport, "idx", envector.Config{})

	cipher, err := adapter.Search(context.Background(), []float64{1, 0}, 5, fastRetryConfig())
	require.NoError(t, err)
	assert.Equal(t, envector.ScoreCiphertext("cipher"), cipher)
}

func TestCloseDelegatesToTransport(t *testing.T) {
	transport := &fakeTransport{}
	adapter := envector.NewAdapter(transport, "idx", envector.Config{})

	require.NoError(t, adapter.Close())
	assert.True(t, transport.closed)
}
