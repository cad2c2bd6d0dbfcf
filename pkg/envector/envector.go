// Package envector implements the Adapter that owns the process's single
// session to the remote encrypted vector store ("enVector").
//
// The adapter exposes only ciphertext in and ciphertext out: it never holds
// a decryption key and never returns a plaintext similarity score or
// metadata value — that is Vault's job (see pkg/vault). Internally it
// encrypts vector inputs with the tenant's public encryption key before
// dispatching to the remote server; that key does not grant decryption.
package envector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"
)

// ErrStoreUnavailable is returned once retries are exhausted against a
// transport or rate-limit failure. Callers surface this as the closed
// error kind "store_unavailable".
var ErrStoreUnavailable = errors.New("store_unavailable")

// ScoreCiphertext is the opaque result of a search RPC. Only Vault can turn
// this into (index, similarity) pairs.
type ScoreCiphertext []byte

// MetadataCiphertext is the opaque result of a fetch_metadata RPC for a
// single record. Only Vault can turn this into plaintext.
type MetadataCiphertext []byte

// Transport performs the raw RPCs against the remote enVector server. The
// default implementation is an HTTP+JSON transport (see httptransport.go);
// it is factored out of Adapter so the retry/backoff policy below is
// exercised independently of wire format.
type Transport interface {
	EnsureIndex(ctx context.Context, name string) error
	Insert(ctx context.Context, index string, vector []float64, metadataPlain map[string]interface{}) error
	Search(ctx context.Context, index string, queryVector []float64, k int) (ScoreCiphertext, error)
	FetchMetadata(ctx context.Context, index string, indices []int64) ([]MetadataCiphertext, error)
	Close() error
}

// Adapter is the enVector Adapter. It is safe for concurrent use; the
// remote session it wraps is expected to be safe for concurrent RPCs, and
// the mutex below guards the only mutable state Adapter itself holds: the
// set of indices it has already confirmed exist.
type Adapter struct {
	transport Transport
	index     string

	mu      sync.Mutex
	ensured map[string]bool
}

// Config configures retry behavior shared by every RPC the Adapter issues.
type Config struct {
	// MaxRetries bounds the exponential-backoff retry loop before an RPC
	// failure is surfaced as ErrStoreUnavailable (default 3, per spec).
	MaxRetries uint64

	// InitialInterval is the first backoff delay (default 200ms).
	InitialInterval time.Duration
}

// NewAdapter wraps transport for the given index. The cfg argument is not
// stored: the retry policy comes from the Config passed to each operation,
// under which session rate-limit responses (and other transient failures)
// are retried with exponential backoff up to MaxRetries times before
// surfacing as store_unavailable.
func NewAdapter(transport Transport, index string, cfg Config) *Adapter {
	return &Adapter{
		transport: transport,
		index:     index,
		ensured:   make(map[string]bool),
	}
}

func (a *Adapter) backoffPolicy(ctx context.Context, cfg Config) backoff.BackOff {
	maxRetries := cfg.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	initial := cfg.InitialInterval
	if initial == 0 {
		initial = 200 * time.Millisecond
	}
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = initial
	return backoff.WithContext(backoff.WithMaxRetries(eb, maxRetries), ctx)
}

// EnsureIndex confirms the configured index exists, creating it if this is
// the first use of that index name within the process. Idempotent and
// cheap to call repeatedly — callers should not special-case first use.
func (a *Adapter) EnsureIndex(ctx context.Context, cfg Config) error {
	a.mu.Lock()
	already := a.ensured[a.index]
	a.mu.Unlock()
	if already {
		return nil
	}

	op := func() error {
		return a.transport.EnsureIndex(ctx, a.index)
	}
	if err := backoff.Retry(op, a.backoffPolicy(ctx, cfg)); err != nil {
		return fmt.Errorf("%w: ensure_index: %v", ErrStoreUnavailable, err)
	}

	a.mu.Lock()
	a.ensured[a.index] = true
	a.mu.Unlock()
	return nil
}

// Insert encrypts vector with the tenant key and stores it alongside
// metadataPlain, which the remote server encrypts with the tenant's public
// encryption key before it is ever written to disk. This is the only RPC
// through which plaintext metadata leaves this process.
func (a *Adapter) Insert(ctx context.Context, vector []float64, metadataPlain map[string]interface{}, cfg Config) error {
	op := func() error {
		return a.transport.Insert(ctx, a.index, vector, metadataPlain)
	}
	if err := backoff.Retry(op, a.backoffPolicy(ctx, cfg)); err != nil {
		return fmt.Errorf("%w: insert: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Search runs an encrypted top-k similarity search and returns opaque score
// ciphertext; only Vault.DecryptScores can recover (index, similarity)
// pairs from it.
func (a *Adapter) Search(ctx context.Context, queryVector []float64, k int, cfg Config) (ScoreCiphertext, error) {
	var result ScoreCiphertext
	op := func() error {
		cipher, err := a.transport.Search(ctx, a.index, queryVector, k)
		if err != nil {
			return err
		}
		result = cipher
		return nil
	}
	if err := backoff.Retry(op, a.backoffPolicy(ctx, cfg)); err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}

// FetchMetadata returns opaque metadata ciphertext for the given record
// indices, in the same order; only Vault.DecryptMetadata can recover
// plaintext from it.
func (a *Adapter) FetchMetadata(ctx context.Context, indices []int64, cfg Config) ([]MetadataCiphertext, error) {
	var result []MetadataCiphertext
	op := func() error {
		blobs, err := a.transport.FetchMetadata(ctx, a.index, indices)
		if err != nil {
			return err
		}
		result = blobs
		return nil
	}
	if err := backoff.Retry(op, a.backoffPolicy(ctx, cfg)); err != nil {
		return nil, fmt.Errorf("%w: fetch_metadata: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}

// Close releases the underlying transport's resources.
func (a *Adapter) Close() error {
	return a.transport.Close()
}

// marshalMetadata is a small helper shared by transport implementations
// that send metadata as an opaque JSON blob to the remote encrypt step.
func marshalMetadata(metadataPlain map[string]interface{}) ([]byte, error) {
	return json.Marshal(metadataPlain)
}
