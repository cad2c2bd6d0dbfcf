// Package vault implements the Vault Adapter: a trust-isolated gRPC client
// that decrypts only the ciphertext it is handed. It never receives, and
// never could derive, the single secret key that lives inside Vault's own
// process boundary.
package vault

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
)

// DefaultDeadline is the default per-RPC deadline (spec: 10s).
const DefaultDeadline = 10 * time.Second

// PolicyDenied is returned when Vault rejects a call on policy grounds
// (e.g. a search result exceeding its server-enforced top-k cap). It is
// distinct from a transport failure and must not be retried.
type PolicyDenied struct {
	Reason string
}

func (e *PolicyDenied) Error() string {
	return fmt.Sprintf("vault: policy denied: %s", e.Reason)
}

// ErrUnavailable is returned when the Vault RPC fails for transport
// reasons (connection refused, deadline exceeded, etc). Callers surface
// this as the closed error kind "vault_unavailable".
var ErrUnavailable = errors.New("vault_unavailable")

// Candidate is a single decrypted (index, similarity) pair recovered from
// score ciphertext.
type Candidate struct {
	Index      int64
	Similarity float64
}

// Status reports Vault's own self-reported reachability and security
// posture.
type Status struct {
	Reachable    bool
	SecurityMode string
}

// Adapter is the Vault Adapter. It owns a single gRPC connection and
// attaches a bearer token to every call; it holds no secret key.
//
// Payloads are carried as google.protobuf.Struct rather than
// hand-generated message types: Vault's RPC surface is small and
// schema-loose (ciphertext blobs and plain scalars), so a generic
// structpb envelope avoids a brittle, unverifiable protoc-generated
// stub while keeping the transport genuinely gRPC — framing, deadlines,
// and per-RPC metadata all behave as real gRPC.
type Adapter struct {
	conn  *grpc.ClientConn
	token string
}

// Config configures a new Vault Adapter.
type Config struct {
	// Endpoint is the Vault gRPC server address ("host:port").
	Endpoint string

	// Token is the bearer token attached to every RPC as outgoing
	// "authorization" metadata.
	Token string

	// Insecure disables TLS (for local/dev Vault instances only).
	Insecure bool
}

// Dial establishes the gRPC connection to Vault.
func Dial(cfg Config) (*Adapter, error) {
	var dialOpts []grpc.DialOption
	if cfg.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(nil)))
	}

	conn, err := grpc.NewClient(cfg.Endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrUnavailable, err)
	}

	return &Adapter{conn: conn, token: cfg.Token}, nil
}

// callCtx attaches the bearer token as outgoing gRPC metadata and applies
// the default per-RPC deadline.
func (a *Adapter) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+a.token)
	return context.WithTimeout(ctx, DefaultDeadline)
}

// DecryptScores decrypts score ciphertext into (index, similarity) pairs.
// Vault enforces a hard cap (observed: 10) on the number of indices
// returned per call; a call that would exceed it comes back as
// PolicyDenied, which must not be retried.
func (a *Adapter) DecryptScores(ctx context.Context, scoreCiphertext []byte) ([]Candidate, error) {
	req, err := structpb.NewStruct(map[string]interface{}{
		"score_ciphertext": scoreCiphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	callCtx, cancel := a.callCtx(ctx)
	defer cancel()

	resp := new(structpb.Struct)
	if err := a.conn.Invoke(callCtx, "/rune.vault.Vault/DecryptScores", req, resp); err != nil {
		return nil, classifyError(err)
	}

	if denied := resp.Fields["policy_denied"]; denied != nil && denied.GetBoolValue() {
		reason := "unspecified"
		if r := resp.Fields["reason"]; r != nil {
			reason = r.GetStringValue()
		}
		return nil, &PolicyDenied{Reason: reason}
	}

	candidatesVal, ok := resp.Fields["candidates"]
	if !ok {
		return nil, fmt.Errorf("%w: decrypt_scores: malformed response", ErrUnavailable)
	}
	list := candidatesVal.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: decrypt_scores: malformed response", ErrUnavailable)
	}

	candidates := make([]Candidate, 0, len(list.Values))
	for _, v := range list.Values {
		s := v.GetStructValue()
		if s == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			Index:      int64(s.Fields["index"].GetNumberValue()),
			Similarity: s.Fields["similarity"].GetNumberValue(),
		})
	}
	return candidates, nil
}

// DecryptMetadata decrypts a batch of metadata ciphertext blobs into
// plaintext JSON strings, in the same order.
func (a *Adapter) DecryptMetadata(ctx context.Context, metadataCiphertexts [][]byte) ([]string, error) {
	blobs := make([]interface{}, len(metadataCiphertexts))
	for i, b := range metadataCiphertexts {
		blobs[i] = b
	}
	req, err := structpb.NewStruct(map[string]interface{}{
		"metadata_ciphertexts": blobs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}

	callCtx, cancel := a.callCtx(ctx)
	defer cancel()

	resp := new(structpb.Struct)
	if err := a.conn.Invoke(callCtx, "/rune.vault.Vault/DecryptMetadata", req, resp); err != nil {
		return nil, classifyError(err)
	}

	if denied := resp.Fields["policy_denied"]; denied != nil && denied.GetBoolValue() {
		reason := "unspecified"
		if r := resp.Fields["reason"]; r != nil {
			reason = r.GetStringValue()
		}
		return nil, &PolicyDenied{Reason: reason}
	}

	plainVal, ok := resp.Fields["plaintexts"]
	if !ok {
		return nil, fmt.Errorf("%w: decrypt_metadata: malformed response", ErrUnavailable)
	}
	list := plainVal.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("%w: decrypt_metadata: malformed response", ErrUnavailable)
	}

	plaintexts := make([]string, len(list.Values))
	for i, v := range list.Values {
		plaintexts[i] = v.GetStringValue()
	}
	return plaintexts, nil
}

// Status reports Vault's self-described reachability and security mode.
func (a *Adapter) Status(ctx context.Context) (Status, error) {
	callCtx, cancel := a.callCtx(ctx)
	defer cancel()

	resp := new(structpb.Struct)
	if err := a.conn.Invoke(callCtx, "/rune.vault.Vault/Status", new(structpb.Struct), resp); err != nil {
		return Status{}, classifyError(err)
	}

	return Status{
		Reachable:    resp.Fields["reachable"].GetBoolValue(),
		SecurityMode: resp.Fields["security_mode"].GetStringValue(),
	}, nil
}

// Close tears down the gRPC connection.
func (a *Adapter) Close() error {
	return a.conn.Close()
}

func classifyError(err error) error {
	var pd *PolicyDenied
	if errors.As(err, &pd) {
		return pd
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
