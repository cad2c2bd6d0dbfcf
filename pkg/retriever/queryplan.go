// Package retriever implements the Recall pipeline: query expansion,
// parallel encrypted search, Vault-mediated decryption, confidence
// scoring, and LLM synthesis of a cited answer.
package retriever

import (
	"context"

	"github.com/rune-mem/rune/pkg/llm"
	"github.com/rune-mem/rune/pkg/llm/jsonutil"
)

// MaxQueries bounds the number of expanded query strings a QueryPlan may
// carry (spec: M <= 4).
const MaxQueries = 4

// QueryPlan is the Query Processor's output: an inferred intent, the
// entities it extracted, and up to MaxQueries search strings.
type QueryPlan struct {
	Intent   string
	Entities []string
	Queries  []string
}

// QueryPlanner expands a user question into a QueryPlan, generalizing the
// teacher's QueryRewriter.Rewrite: build a prompt, call the LLM, and fall
// back deterministically to the original text when no LLM is configured
// or the call fails — recall must never block on query expansion.
type QueryPlanner struct {
	provider llm.Provider
}

// NewQueryPlanner creates a QueryPlanner.
func NewQueryPlanner(provider llm.Provider) *QueryPlanner {
	return &QueryPlanner{provider: provider}
}

// Plan produces a QueryPlan for query.
func (p *QueryPlanner) Plan(ctx context.Context, query string) QueryPlan {
	if p.provider == nil || !p.provider.IsAvailable() {
		return fallbackPlan(query)
	}

	raw, err := p.provider.Generate(ctx, buildPlanPrompt(query), llm.WithSystem(planSystemPrompt))
	if err != nil {
		return fallbackPlan(query)
	}

	var parsed struct {
		Intent   string   `json:"intent"`
		Entities []string `json:"entities"`
		Queries  []string `json:"queries"`
	}
	if !jsonutil.ParseInto(raw, &parsed) || len(parsed.Queries) == 0 {
		return fallbackPlan(query)
	}

	queries := parsed.Queries
	if len(queries) > MaxQueries {
		queries = queries[:MaxQueries]
	}
	intent := parsed.Intent
	if intent == "" {
		intent = "generic"
	}
	return QueryPlan{Intent: intent, Entities: parsed.Entities, Queries: queries}
}

func fallbackPlan(query string) QueryPlan {
	return QueryPlan{Intent: "generic", Entities: []string{}, Queries: []string{query}}
}

const planSystemPrompt = `You expand a user's question into a small set of search queries against an organizational memory store. Respond ONLY with a JSON object: {"intent": "<short label>", "entities": ["..."], "queries": ["..."]} with at most 4 queries.`

func buildPlanPrompt(query string) string {
	return "Question:\n" + query + "\n\nRespond with the JSON query plan only."
}
