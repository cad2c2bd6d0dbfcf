package retriever

import "context"

// DefaultTopK and MaxTopK bound the recall contract's topk parameter.
const (
	DefaultTopK = 5
	MaxTopK     = 10
	MinTopK     = 1
)

// Config configures a recall Pipeline.
type Config struct {
	ConfidenceThreshold float64
}

// Pipeline is the full recall contract: query planning, parallel
// encrypted search, confidence scoring, and synthesis.
type Pipeline struct {
	planner      *QueryPlanner
	orchestrator *Orchestrator
	synthesizer  *Synthesizer
	cfg          Config
}

// NewPipeline constructs a recall Pipeline.
func NewPipeline(planner *QueryPlanner, orchestrator *Orchestrator, synthesizer *Synthesizer, cfg Config) *Pipeline {
	return &Pipeline{planner: planner, orchestrator: orchestrator, synthesizer: synthesizer, cfg: cfg}
}

// Result is the full recall response payload.
type Result struct {
	Found          int
	Answer         string
	Sources        []Source
	Confidence     float64
	Warnings       []string
	RelatedQueries []string
}

// NormalizeTopK clamps topk to the recall contract's bounds, returning
// DefaultTopK for an unset (zero) value. Values outside [MinTopK, MaxTopK]
// are the caller's responsibility to reject before calling Recall — this
// only normalizes an already-validated value.
func NormalizeTopK(topk int) int {
	if topk == 0 {
		return DefaultTopK
	}
	if topk < MinTopK {
		return MinTopK
	}
	if topk > MaxTopK {
		return MaxTopK
	}
	return topk
}

// Recall runs the full recall contract for one question.
func (p *Pipeline) Recall(ctx context.Context, query string, topk int) (Result, error) {
	plan := p.planner.Plan(ctx, query)

	candidates, err := p.orchestrator.Search(ctx, plan.Queries, topk)
	if err != nil {
		return Result{}, err
	}

	confidence := Confidence(candidates)
	var warnings []string
	threshold := p.cfg.ConfidenceThreshold
	if threshold == 0 {
		threshold = 0.5
	}
	if confidence < threshold {
		warnings = append(warnings, "low_confidence")
	}

	answer, sources := p.synthesizer.Synthesize(ctx, query, plan.Intent, candidates)

	return Result{
		Found:          len(candidates),
		Answer:         answer,
		Sources:        sources,
		Confidence:     confidence,
		Warnings:       warnings,
		RelatedQueries: plan.Queries,
	}, nil
}
