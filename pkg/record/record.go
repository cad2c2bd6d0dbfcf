// Package record defines the Decision Record: the canonical entity Scribe
// captures and Retriever synthesizes answers from.
package record

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Kind is the closed set of Decision Record categories.
type Kind string

const (
	KindDecision  Kind = "decision"
	KindRationale Kind = "rationale"
	KindPolicy    Kind = "policy"
	KindLesson    Kind = "lesson"
	KindInsight   Kind = "insight"
)

// ValidKind reports whether k is one of the closed Kind values.
func ValidKind(k Kind) bool {
	switch k {
	case KindDecision, KindRationale, KindPolicy, KindLesson, KindInsight:
		return true
	default:
		return false
	}
}

// Certainty qualifies how confidently a record's content is supported.
// The synthesizer must preserve this qualifier verbatim through recall —
// it is fixed at capture time and never upgraded.
type Certainty string

const (
	CertaintySupported           Certainty = "supported"
	CertaintyPartiallySupported  Certainty = "partially_supported"
	CertaintyUnknown             Certainty = "unknown"
)

// ValidCertainty reports whether c is one of the closed Certainty values.
func ValidCertainty(c Certainty) bool {
	switch c {
	case CertaintySupported, CertaintyPartiallySupported, CertaintyUnknown:
		return true
	default:
		return false
	}
}

const (
	// MaxTitleLen is the maximum length, in runes, of a Decision Record title.
	MaxTitleLen = 140
	// MaxBodyBytes is the maximum length, in bytes, of a Decision Record body.
	MaxBodyBytes = 4 * 1024
)

// Record is the canonical captured entity. Once inserted, (ID, embedding,
// encrypted metadata) is immutable: deletions are allowed but updates are
// not.
type Record struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	Kind         Kind      `json:"kind"`
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Participants []string  `json:"participants,omitempty"`
	Sources      []string  `json:"sources,omitempty"`
	Certainty    Certainty `json:"certainty"`
	Tags         []string  `json:"tags,omitempty"`
}

// Validate enforces the field constraints from the Decision Record
// invariants: title length, body size, and closed-set membership for Kind
// and Certainty.
func (r *Record) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("record: id is required")
	}
	if !ValidKind(r.Kind) {
		return fmt.Errorf("record: invalid kind %q", r.Kind)
	}
	if !ValidCertainty(r.Certainty) {
		return fmt.Errorf("record: invalid certainty %q", r.Certainty)
	}
	if len([]rune(r.Title)) > MaxTitleLen {
		return fmt.Errorf("record: title exceeds %d characters", MaxTitleLen)
	}
	if len([]byte(r.Body)) > MaxBodyBytes {
		return fmt.Errorf("record: body exceeds %d bytes", MaxBodyBytes)
	}
	return nil
}

// Truncate clamps Title and Body to their maximum allowed sizes in place.
// Used when synthesizing a minimal record from raw, unvalidated text.
func (r *Record) Truncate() {
	if runes := []rune(r.Title); len(runes) > MaxTitleLen {
		r.Title = string(runes[:MaxTitleLen])
	}
	if b := []byte(r.Body); len(b) > MaxBodyBytes {
		r.Body = string(b[:MaxBodyBytes])
	}
}

// IDMinter mints stable Decision Record identifiers of the form
// dec_<utc-date>_<kind>_<rand>. The <rand> component is a Snowflake ID,
// reused here from the same library the teacher used for memory IDs, but
// repurposed from being the whole ID to being a collision-resistant
// suffix.
type IDMinter struct {
	node *snowflake.Node
}

// NewIDMinter constructs an IDMinter. nodeID distinguishes concurrent Rune
// processes sharing a clock (0 is fine for a single-process deployment).
func NewIDMinter(nodeID int64) (*IDMinter, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("record: create snowflake node: %w", err)
	}
	return &IDMinter{node: node}, nil
}

// Mint produces a new Decision Record ID for the given kind, stamped with
// the given UTC instant.
func (m *IDMinter) Mint(kind Kind, at time.Time) string {
	date := at.UTC().Format("20060102")
	rand := m.node.Generate().Base36()
	return fmt.Sprintf("dec_%s_%s_%s", date, strings.ToLower(string(kind)), rand)
}
