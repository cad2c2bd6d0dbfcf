package retriever

import (
	"context"
	"fmt"
	"strings"

	"github.com/rune-mem/rune/pkg/llm"
)

// Source is a single citation surfaced alongside the synthesized answer.
type Source struct {
	ID        string
	Title     string
	Certainty string
}

// Synthesizer produces a cited natural-language answer from the decrypted
// top-k candidates, following the same LLM-call-with-deterministic-
// fallback shape as Tier 3's Extractor. Its system prompt requires
// respecting each record's certainty annotation: the model must not
// upgrade an unknown or partially_supported record into a confident
// claim, and must cite only record ids actually present in the context it
// was given.
type Synthesizer struct {
	provider llm.Provider
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(provider llm.Provider) *Synthesizer {
	return &Synthesizer{provider: provider}
}

// Synthesize produces an answer and its sources. On LLM failure (no
// provider, transport error), it falls back to a deterministic answer:
// the candidate titles concatenated and prefixed with "Found: ".
func (s *Synthesizer) Synthesize(ctx context.Context, query, intent string, candidates []Candidate) (string, []Source) {
	sources := make([]Source, 0, len(candidates))
	for _, c := range candidates {
		title, _ := c.Record["title"].(string)
		certainty, _ := c.Record["certainty"].(string)
		sources = append(sources, Source{ID: c.RecordID, Title: title, Certainty: certainty})
	}

	if s.provider == nil || !s.provider.IsAvailable() {
		return fallbackAnswer(sources), sources
	}

	raw, err := s.provider.Generate(ctx, buildSynthesisPrompt(query, intent, candidates), llm.WithSystem(synthesisSystemPrompt))
	if err != nil || strings.TrimSpace(raw) == "" {
		return fallbackAnswer(sources), sources
	}
	return raw, sources
}

func fallbackAnswer(sources []Source) string {
	titles := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.Title != "" {
			titles = append(titles, s.Title)
		}
	}
	if len(titles) == 0 {
		return "Found: (no titled records)"
	}
	return "Found: " + strings.Join(titles, "; ")
}

const synthesisSystemPrompt = `You answer a question using only the organizational memory records provided. Cite every fact by the record's id in parentheses, e.g. (dec_20260101_decision_abc123). Never cite a record id that was not provided. Respect each record's certainty: "supported" may be stated confidently, "partially_supported" must be qualified (e.g. "it seems", "as of the last update"), and "unknown" must be explicitly caveated as uncertain. Never introduce facts absent from the records.`

func buildSynthesisPrompt(query, intent string, candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\nIntent: %s\n\nRecords:\n", query, intent)
	for _, c := range candidates {
		title, _ := c.Record["title"].(string)
		body, _ := c.Record["body"].(string)
		certainty, _ := c.Record["certainty"].(string)
		fmt.Fprintf(&b, "- id=%s certainty=%s title=%q body=%q\n", c.RecordID, certainty, title, body)
	}
	b.WriteString("\nAnswer the question, citing record ids, respecting each record's certainty.")
	return b.String()
}
