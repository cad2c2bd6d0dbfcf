// Package jsonutil provides the tolerant JSON extraction shared by every
// LLM call site that expects a structured response: Tier 2's policy
// classifier, Tier 3's extractor, and the recall Query Processor.
//
// LLMs routinely wrap JSON in code fences or prose; this package strips
// that wrapping before handing callers a best-effort parse.
package jsonutil

import (
	"encoding/json"
	"strings"
)

// ParseObject extracts a JSON object from raw LLM output.
//
// It tries, in order:
//  1. Strip a leading/trailing ``` fence (with an optional "json" tag) and
//     parse the result directly.
//  2. On failure, locate the first '{' and last '}' in the raw text and
//     parse that substring.
//  3. On failure, return an empty, non-nil map.
//
// The returned map is never nil, so callers can index it unconditionally.
func ParseObject(raw string) map[string]interface{} {
	cleaned := stripFence(raw)

	var out map[string]interface{}
	if err := json.Unmarshal([]byte(cleaned), &out); err == nil && out != nil {
		return out
	}

	if sub, ok := braceSlice(cleaned); ok {
		if err := json.Unmarshal([]byte(sub), &out); err == nil && out != nil {
			return out
		}
	}

	return map[string]interface{}{}
}

// ParseInto extracts a JSON object from raw LLM output and unmarshals it
// into v, following the same fence-strip / brace-scan fallback as
// ParseObject. It reports whether any stage succeeded.
func ParseInto(raw string, v interface{}) bool {
	cleaned := stripFence(raw)

	if err := json.Unmarshal([]byte(cleaned), v); err == nil {
		return true
	}

	if sub, ok := braceSlice(cleaned); ok {
		if err := json.Unmarshal([]byte(sub), v); err == nil {
			return true
		}
	}

	return false
}

// stripFence removes a leading/trailing ``` or ```json fence and
// surrounding whitespace.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "JSON")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// braceSlice returns the substring spanning the first '{' and last '}' in
// s, if both are present and correctly ordered.
func braceSlice(s string) (string, bool) {
	first := strings.IndexByte(s, '{')
	last := strings.LastIndexByte(s, '}')
	if first == -1 || last == -1 || last < first {
		return "", false
	}
	return s[first : last+1], true
}
