package envector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTransport is the default Transport: a bespoke HTTP+JSON client
// against the enVector server's RPC surface (ensure_index, insert,
// search_returning_ciphertext, fetch_metadata_ciphertext). The vector
// itself is encrypted with the tenant's public key before being sent, via
// a call to the server's own `encrypt` RPC — this adapter never holds a
// key capable of decryption.
type HTTPTransport struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// HTTPConfig configures an HTTPTransport.
type HTTPConfig struct {
	// BaseURL is the enVector server's base URL (required).
	BaseURL string

	// APIKey authenticates this tenant session.
	APIKey string

	// HTTPClient overrides the default HTTP client (30s timeout).
	HTTPClient *http.Client
}

// NewHTTPTransport constructs an HTTPTransport.
func NewHTTPTransport(cfg HTTPConfig) *HTTPTransport {
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPTransport{
		client:  client,
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
	}
}

func (t *HTTPTransport) do(ctx context.Context, path string, reqBody interface{}, respBody interface{}) error {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("envector: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s", t.baseURL, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("envector: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("envector: send request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("envector: %s failed with status %d: %s", path, resp.StatusCode, string(body))
	}

	if respBody == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("envector: decode response: %w", err)
	}
	return nil
}

// EnsureIndex confirms the named index exists, creating it if absent.
func (t *HTTPTransport) EnsureIndex(ctx context.Context, name string) error {
	req := map[string]interface{}{"name": name}
	return t.do(ctx, "ensure_index", req, nil)
}

// encryptVector calls the server's own `encrypt` RPC to turn a plaintext
// query/insert vector into ciphertext under the tenant's public key.
func (t *HTTPTransport) encryptVector(ctx context.Context, vector []float64) ([]byte, error) {
	var resp struct {
		Ciphertext string `json:"ciphertext"`
	}
	req := map[string]interface{}{"vector": vector}
	if err := t.do(ctx, "encrypt", req, &resp); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(resp.Ciphertext)
}

// Insert encrypts vector and stores it alongside already-encrypted
// metadata.
func (t *HTTPTransport) Insert(ctx context.Context, index string, vector []float64, metadataPlain map[string]interface{}) error {
	cipher, err := t.encryptVector(ctx, vector)
	if err != nil {
		return err
	}

	metaJSON, err := marshalMetadata(metadataPlain)
	if err != nil {
		return fmt.Errorf("envector: marshal metadata: %w", err)
	}
	var encResp struct {
		Ciphertext string `json:"ciphertext"`
	}
	if err := t.do(ctx, "encrypt_metadata", map[string]interface{}{"plaintext": string(metaJSON)}, &encResp); err != nil {
		return err
	}

	req := map[string]interface{}{
		"index":             index,
		"vector_ciphertext": base64.StdEncoding.EncodeToString(cipher),
		"metadata_cipher":   encResp.Ciphertext,
	}
	return t.do(ctx, "insert", req, nil)
}

// Search runs an encrypted top-k similarity search.
func (t *HTTPTransport) Search(ctx context.Context, index string, queryVector []float64, k int) (ScoreCiphertext, error) {
	cipher, err := t.encryptVector(ctx, queryVector)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ScoreCiphertext string `json:"score_ciphertext"`
	}
	req := map[string]interface{}{
		"index":             index,
		"query_ciphertext":  base64.StdEncoding.EncodeToString(cipher),
		"k":                 k,
	}
	if err := t.do(ctx, "search_returning_ciphertext", req, &resp); err != nil {
		return nil, err
	}

	decoded, err := base64.StdEncoding.DecodeString(resp.ScoreCiphertext)
	if err != nil {
		return nil, fmt.Errorf("envector: decode score ciphertext: %w", err)
	}
	return ScoreCiphertext(decoded), nil
}

// FetchMetadata retrieves metadata ciphertext for the given record
// indices, in order.
func (t *HTTPTransport) FetchMetadata(ctx context.Context, index string, indices []int64) ([]MetadataCiphertext, error) {
	var resp struct {
		MetadataCiphertexts []string `json:"metadata_ciphertexts"`
	}
	req := map[string]interface{}{
		"index":   index,
		"indices": indices,
	}
	if err := t.do(ctx, "fetch_metadata_ciphertext", req, &resp); err != nil {
		return nil, err
	}

	blobs := make([]MetadataCiphertext, len(resp.MetadataCiphertexts))
	for i, s := range resp.MetadataCiphertexts {
		decoded, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("envector: decode metadata ciphertext %d: %w", i, err)
		}
		blobs[i] = MetadataCiphertext(decoded)
	}
	return blobs, nil
}

// Close releases the underlying HTTP client's resources.
func (t *HTTPTransport) Close() error {
	return nil
}
