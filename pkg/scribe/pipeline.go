package scribe

import (
	"context"
	"errors"
	"strings"

	"github.com/rune-mem/rune/pkg/embedder"
	"github.com/rune-mem/rune/pkg/envector"
)

// ErrEmptyInput marks a capture call rejected at the precondition check
// (empty or whitespace-only text).
var ErrEmptyInput = errors.New("scribe: empty input")

// Outcome is the result of a single Capture call.
type Outcome struct {
	Captured bool
	Reason   string
	RecordID string
}

// Pipeline is the sequential Tier 1 -> Tier 2 -> Tier 3 -> insert
// orchestration, generalizing the staged, structured-logging orchestration
// style of the teacher's IntelligentMemoryManager onto Rune's capture
// contract. Ordering within a single call is strictly sequential; the
// only shared mutable state is the Tier-1 cache, which is itself
// internally synchronized.
type Pipeline struct {
	embedder embedder.Provider
	store    *envector.Adapter
	storeCfg envector.Config

	tier1 *ExemplarCache
	tier2 *PolicyFilter
	tier3 *Extractor

	tier1Enabled bool
	tier2Enabled bool

	tier1Cfg Tier1Config
}

// Config configures a Pipeline.
type Config struct {
	Tier1Capacity int
	Tier1         Tier1Config
	Tier2Enabled  bool
}

// NewPipeline constructs a capture Pipeline.
func NewPipeline(emb embedder.Provider, store *envector.Adapter, storeCfg envector.Config, tier2 *PolicyFilter, tier3 *Extractor, cfg Config) *Pipeline {
	return &Pipeline{
		embedder:     emb,
		store:        store,
		storeCfg:     storeCfg,
		tier1:        NewExemplarCache(cfg.Tier1Capacity),
		tier2:        tier2,
		tier3:        tier3,
		tier2Enabled: cfg.Tier2Enabled,
		tier1Cfg:     cfg.Tier1,
	}
}

// ExemplarCache exposes the Tier-1 cache so a caller can inspect it or
// Rebuild it.
func (p *Pipeline) ExemplarCache() *ExemplarCache {
	return p.tier1
}

// matchesTriggerPhrase checks a small localized table of decision-
// indicating phrases that override a Tier-1 noise verdict even when
// similarity to known exemplars is low — e.g. a team's very first
// decision, which by definition has no prior exemplar to resemble.
func matchesTriggerPhrase(text string) bool {
	lower := strings.ToLower(text)
	phrases := []string{
		"we decided", "we've decided", "decision:", "let's go with",
		"from now on", "going forward", "the policy is", "lesson learned",
		// localized (zh) equivalents
		"我们决定", "决定采用", "政策是",
	}
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// Capture runs the full capture contract for one utterance.
func (p *Pipeline) Capture(ctx context.Context, text string, hints Hints) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{Captured: false, Reason: "empty"}, nil
	}

	vector, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return Outcome{}, err
	}

	trigger := matchesTriggerPhrase(text)
	verdict, _, autoCapture := p.tier1.Evaluate(vector, p.tier1Cfg, trigger)

	switch verdict {
	case Tier1Duplicate:
		return Outcome{Captured: false, Reason: "duplicate"}, nil
	case Tier1Noise:
		p.tier1.Insert(vector, false)
		return Outcome{Captured: false, Reason: "below_threshold"}, nil
	}

	if p.tier2Enabled && !autoCapture {
		policy := p.tier2.Classify(ctx, text)
		if !policy.Capture {
			p.tier1.Insert(vector, false)
			return Outcome{Captured: false, Reason: policy.Reason}, nil
		}
	}

	rec := p.tier3.Extract(ctx, text, hints)
	if err := rec.Validate(); err != nil {
		rec.Truncate()
	}

	metadata := map[string]interface{}{
		"id":           rec.ID,
		"timestamp":    rec.Timestamp,
		"kind":         string(rec.Kind),
		"title":        rec.Title,
		"body":         rec.Body,
		"participants": rec.Participants,
		"sources":      rec.Sources,
		"certainty":    string(rec.Certainty),
		"tags":         rec.Tags,
	}

	if err := p.store.EnsureIndex(ctx, p.storeCfg); err != nil {
		return Outcome{}, err
	}
	if err := p.store.Insert(ctx, vector, metadata, p.storeCfg); err != nil {
		p.tier1.Insert(vector, false)
		return Outcome{}, err
	}

	p.tier1.Insert(vector, true)
	return Outcome{Captured: true, RecordID: rec.ID}, nil
}
