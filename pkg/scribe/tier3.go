package scribe

import (
	"context"
	"time"

	"github.com/rune-mem/rune/pkg/llm"
	"github.com/rune-mem/rune/pkg/llm/jsonutil"
	"github.com/rune-mem/rune/pkg/record"
)

// Extractor is Tier 3: an LLM call that turns the raw utterance (plus
// conversational hints) into a structured Decision Record. It generalizes
// the teacher's FactExtractor prompt-build/call/parse shape, but produces
// one Record instead of a list of fact strings, and never drops the
// candidate: a parse failure degrades to a minimal record rather than an
// error.
type Extractor struct {
	provider llm.Provider
	minter   *record.IDMinter
}

// NewExtractor creates a Tier-3 extractor.
func NewExtractor(provider llm.Provider, minter *record.IDMinter) *Extractor {
	return &Extractor{provider: provider, minter: minter}
}

// Hints carries optional conversational context passed through from the
// capture tool call.
type Hints struct {
	Source  string
	User    string
	Channel string
}

// Extract produces a Decision Record from text. On any failure — no
// provider, transport error, unparsable response, or a response missing
// required fields — it falls back to the minimal record: kind=insight,
// title=first 120 characters of text, body=text, certainty=unknown.
func (e *Extractor) Extract(ctx context.Context, text string, hints Hints) *record.Record {
	now := time.Now().UTC()

	if e.provider != nil && e.provider.IsAvailable() {
		prompt := buildExtractionPrompt(text, hints)
		raw, err := e.provider.Generate(ctx, prompt, llm.WithSystem(extractionSystemPrompt))
		if err == nil {
			if rec := e.parseRecord(raw, now, hints); rec != nil {
				return rec
			}
		}
	}

	return e.minimalRecord(text, now)
}

func (e *Extractor) parseRecord(raw string, now time.Time, hints Hints) *record.Record {
	var parsed struct {
		Kind         string   `json:"kind"`
		Title        string   `json:"title"`
		Body         string   `json:"body"`
		Participants []string `json:"participants"`
		Tags         []string `json:"tags"`
		Certainty    string   `json:"certainty"`
	}
	if !jsonutil.ParseInto(raw, &parsed) {
		return nil
	}

	kind := record.Kind(parsed.Kind)
	if !record.ValidKind(kind) {
		kind = record.KindInsight
	}
	certainty := record.Certainty(parsed.Certainty)
	if !record.ValidCertainty(certainty) {
		certainty = record.CertaintyUnknown
	}
	if parsed.Title == "" || parsed.Body == "" {
		return nil
	}

	sources := []string{}
	if hints.Source != "" {
		sources = append(sources, hints.Source)
	}
	if hints.Channel != "" {
		sources = append(sources, hints.Channel)
	}

	participants := parsed.Participants
	if hints.User != "" {
		participants = appendUnique(participants, hints.User)
	}

	rec := &record.Record{
		ID:           e.minter.Mint(kind, now),
		Timestamp:    now,
		Kind:         kind,
		Title:        parsed.Title,
		Body:         parsed.Body,
		Participants: participants,
		Sources:      sources,
		Certainty:    certainty,
		Tags:         parsed.Tags,
	}
	rec.Truncate()
	return rec
}

func (e *Extractor) minimalRecord(text string, now time.Time) *record.Record {
	title := text
	if runes := []rune(title); len(runes) > 120 {
		title = string(runes[:120])
	}

	sources := []string{}

	rec := &record.Record{
		ID:        e.minter.Mint(record.KindInsight, now),
		Timestamp: now,
		Kind:      record.KindInsight,
		Title:     title,
		Body:      text,
		Sources:   sources,
		Certainty: record.CertaintyUnknown,
	}
	rec.Truncate()
	return rec
}

func appendUnique(list []string, value string) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	return append(list, value)
}

const extractionSystemPrompt = `You extract a single structured decision record from organizational conversation. Respond ONLY with a JSON object with fields: kind (one of decision, rationale, policy, lesson, insight), title (<=140 chars), body (the full context, <=4KiB), participants (array of strings), tags (array of strings), certainty (one of supported, partially_supported, unknown — reflecting how well the conversation actually supports this record, never upgrade it).`

func buildExtractionPrompt(text string, hints Hints) string {
	prompt := "Utterance:\n" + text + "\n\n"
	if hints.Source != "" {
		prompt += "Source: " + hints.Source + "\n"
	}
	if hints.User != "" {
		prompt += "User: " + hints.User + "\n"
	}
	if hints.Channel != "" {
		prompt += "Channel: " + hints.Channel + "\n"
	}
	prompt += "\nRespond with the JSON decision record only."
	return prompt
}
