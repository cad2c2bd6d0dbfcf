package retriever

import (
	"context"
	"sort"
	"sync"

	"github.com/rune-mem/rune/pkg/embedder"
	"github.com/rune-mem/rune/pkg/envector"
	"github.com/rune-mem/rune/pkg/vault"
)

// Candidate is a transient recall result: it exists only for the duration
// of one recall call and carries whatever decrypted metadata was fetched
// for it.
type Candidate struct {
	Index      int64
	Similarity float64
	RecordID   string
	Record     map[string]interface{}
}

// Orchestrator runs the N parallel encrypted search branches, merges the
// candidate sets, fetches and decrypts metadata for the survivors, and
// computes confidence. Its fan-out/fan-in generalizes the
// goroutine+buffered-channel+sync.WaitGroup idiom the teacher uses for
// AddAsync/SearchAsync, adapted from "fire N async ops, collect on a
// channel" into "fire N parallel branches, join on a barrier" — recall
// has no notion of a detached background result, so a WaitGroup barrier
// replaces the channel-based async handle.
type Orchestrator struct {
	embedder embedder.Provider
	store    *envector.Adapter
	storeCfg envector.Config
	vaultAdapter *vault.Adapter
	index    string
}

// NewOrchestrator constructs an Orchestrator.
func NewOrchestrator(emb embedder.Provider, store *envector.Adapter, storeCfg envector.Config, vaultAdapter *vault.Adapter, index string) *Orchestrator {
	return &Orchestrator{
		embedder:     emb,
		store:        store,
		storeCfg:     storeCfg,
		vaultAdapter: vaultAdapter,
		index:        index,
	}
}

type branchResult struct {
	candidates []vault.Candidate
	err        error
}

// Search runs the parallel encrypted search for each query in queries,
// each capped to topk results, merges by maximum similarity per index,
// truncates to topk, and fetches+decrypts metadata for the survivors.
// Ties are broken by ascending index for determinism; parallelism across
// queries is never observable in the merged output.
func (o *Orchestrator) Search(ctx context.Context, queries []string, topk int) ([]Candidate, error) {
	results := make([]branchResult, len(queries))

	var wg sync.WaitGroup
	for i, q := range queries {
		wg.Add(1)
		go func(i int, query string) {
			defer wg.Done()
			results[i] = o.searchOne(ctx, query, topk)
		}(i, q)
	}
	wg.Wait()

	merged := make(map[int64]float64)
	for _, r := range results {
		if r.err != nil {
			continue
		}
		for _, c := range r.candidates {
			if existing, ok := merged[c.Index]; !ok || c.Similarity > existing {
				merged[c.Index] = c.Similarity
			}
		}
	}

	// Surface the first branch error only if no branch produced a
	// candidate — a partial failure across query branches should not sink
	// a recall that other branches still answered.
	if len(merged) == 0 {
		for _, r := range results {
			if r.err != nil {
				return nil, r.err
			}
		}
	}

	indices := make([]int64, 0, len(merged))
	for idx := range merged {
		indices = append(indices, idx)
	}
	sort.Slice(indices, func(i, j int) bool {
		si, sj := merged[indices[i]], merged[indices[j]]
		if si != sj {
			return si > sj
		}
		return indices[i] < indices[j]
	})
	if len(indices) > topk {
		indices = indices[:topk]
	}

	candidates := make([]Candidate, len(indices))
	for i, idx := range indices {
		candidates[i] = Candidate{Index: idx, Similarity: merged[idx]}
	}
	if len(candidates) == 0 {
		return candidates, nil
	}

	if err := o.fetchMetadata(ctx, candidates); err != nil {
		return nil, err
	}
	return candidates, nil
}

func (o *Orchestrator) searchOne(ctx context.Context, query string, topk int) branchResult {
	vec, err := o.embedder.Embed(ctx, query)
	if err != nil {
		return branchResult{err: err}
	}

	cipher, err := o.store.Search(ctx, vec, topk, o.storeCfg)
	if err != nil {
		return branchResult{err: err}
	}

	candidates, err := o.vaultAdapter.DecryptScores(ctx, cipher)
	if err != nil {
		return branchResult{err: err}
	}
	return branchResult{candidates: candidates}
}

func (o *Orchestrator) fetchMetadata(ctx context.Context, candidates []Candidate) error {
	indices := make([]int64, len(candidates))
	for i, c := range candidates {
		indices[i] = c.Index
	}

	cipherBlobs, err := o.store.FetchMetadata(ctx, indices, o.storeCfg)
	if err != nil {
		return err
	}

	raw := make([][]byte, len(cipherBlobs))
	for i, b := range cipherBlobs {
		raw[i] = b
	}
	plaintexts, err := o.vaultAdapter.DecryptMetadata(ctx, raw)
	if err != nil {
		return err
	}

	for i := range candidates {
		if i >= len(plaintexts) {
			break
		}
		rec := decodeRecordMetadata(plaintexts[i])
		candidates[i].Record = rec
		if id, ok := rec["id"].(string); ok {
			candidates[i].RecordID = id
		}
	}
	return nil
}

// Confidence returns the mean similarity across candidates, or 0 if there
// are none.
func Confidence(candidates []Candidate) float64 {
	if len(candidates) == 0 {
		return 0
	}
	var sum float64
	for _, c := range candidates {
		sum += c.Similarity
	}
	return sum / float64(len(candidates))
}
