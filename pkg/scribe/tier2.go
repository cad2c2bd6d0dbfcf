package scribe

import (
	"context"

	"github.com/rune-mem/rune/pkg/llm"
	"github.com/rune-mem/rune/pkg/llm/jsonutil"
)

// PolicyVerdict is the Tier-2 classifier's decision.
type PolicyVerdict struct {
	Capture bool
	Reason  string
}

// PolicyFilter is Tier 2: an LLM-driven binary classifier that decides
// whether a candidate utterance is worth promoting to extraction. It
// generalizes the teacher's call-then-tolerantly-parse-JSON shape
// (FactExtractor/DecideActions): build a prompt, call the model, parse
// leniently, and never let a malformed response block capture.
//
// Tier 2 fails open: any error — LLM unavailable, transport failure,
// unparsable JSON — resolves to Capture:true so a transient glitch never
// silently drops a decision.
type PolicyFilter struct {
	provider  llm.Provider
	exemplars []string
}

// NewPolicyFilter creates a Tier-2 filter. exemplars are a small, rotating
// set of recent accepted/rejected utterances shown to the model as
// few-shot guidance; nil or empty is fine.
func NewPolicyFilter(provider llm.Provider, exemplars []string) *PolicyFilter {
	return &PolicyFilter{provider: provider, exemplars: exemplars}
}

// Classify returns the policy verdict for text. If the filter has no
// available provider, it passes through (Capture:true) without making a
// call.
func (f *PolicyFilter) Classify(ctx context.Context, text string) PolicyVerdict {
	if f.provider == nil || !f.provider.IsAvailable() {
		return PolicyVerdict{Capture: true, Reason: "no_policy_llm"}
	}

	prompt := buildPolicyPrompt(text, f.exemplars)
	raw, err := f.provider.Generate(ctx, prompt, llm.WithSystem(policySystemPrompt))
	if err != nil {
		return PolicyVerdict{Capture: true, Reason: "policy_llm_error"}
	}

	obj := jsonutil.ParseObject(raw)
	capture, ok := obj["capture"].(bool)
	if !ok {
		return PolicyVerdict{Capture: true, Reason: "unparsable_response"}
	}
	reason, _ := obj["reason"].(string)
	return PolicyVerdict{Capture: capture, Reason: reason}
}

const policySystemPrompt = `You are a filter deciding whether an utterance from a team conversation is worth storing as organizational memory (a decision, rationale, policy, lesson, or insight). Respond ONLY with a JSON object: {"capture": true|false, "reason": "<short reason>"}.`

func buildPolicyPrompt(text string, exemplars []string) string {
	prompt := "Candidate utterance:\n" + text + "\n\n"
	if len(exemplars) > 0 {
		prompt += "Recent capture exemplars for calibration:\n"
		for _, ex := range exemplars {
			prompt += "- " + ex + "\n"
		}
	}
	prompt += "\nShould this be captured as organizational memory? Respond with the JSON object only."
	return prompt
}
