package record_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rune-mem/rune/pkg/record"
)

func TestValidKind(t *testing.T) {
	for _, k := range []record.Kind{
		record.KindDecision, record.KindRationale, record.KindPolicy,
		record.KindLesson, record.KindInsight,
	} {
		assert.True(t, record.ValidKind(k), "%s should be valid", k)
	}
	assert.False(t, record.ValidKind(record.Kind("todo")))
	assert.False(t, record.ValidKind(record.Kind("")))
}

func TestValidCertainty(t *testing.T) {
	for _, c := range []record.Certainty{
		record.CertaintySupported, record.CertaintyPartiallySupported, record.CertaintyUnknown,
	} {
		assert.True(t, record.ValidCertainty(c))
	}
	assert.False(t, record.ValidCertainty(record.Certainty("confident")))
}

func TestRecordValidate(t *testing.T) {
	base := func() *record.Record {
		return &record.Record{
			ID:        "dec_20260101_decision_abc",
			Kind:      record.KindDecision,
			Certainty: record.CertaintySupported,
			Title:     "We decided to use enVector",
			Body:      "Rationale goes here.",
		}
	}

	t.Run("valid record passes", func(t *testing.T) {
		assert.NoError(t, base().Validate())
	})

	t.Run("missing id rejected", func(t *testing.T) {
		r := base()
		r.ID = ""
		assert.Error(t, r.Validate())
	})

	t.Run("invalid kind rejected", func(t *testing.T) {
		r := base()
		r.Kind = "whim"
		assert.Error(t, r.Validate())
	})

	t.Run("invalid certainty rejected", func(t *testing.T) {
		r := base()
		r.Certainty = "maybe"
		assert.Error(t, r.Validate())
	})

	t.Run("oversized title rejected", func(t *testing.T) {
		r := base()
		r.Title = strings.Repeat("x", record.MaxTitleLen+1)
		assert.Error(t, r.Validate())
	})

	t.Run("oversized body rejected", func(t *testing.T) {
		r := base()
		r.Body = strings.Repeat("x", record.MaxBodyBytes+1)
		assert.Error(t, r.Validate())
	})
}

func TestRecordTruncate(t *testing.T) {
	r := &record.Record{
		Title: strings.Repeat("a", record.MaxTitleLen+50),
		Body:  strings.Repeat("b", record.MaxBodyBytes+500),
	}
	r.Truncate()
	assert.Len(t, []rune(r.Title), record.MaxTitleLen)
	assert.Len(t, []byte(r.Body), record.MaxBodyBytes)
}

func TestIDMinterProducesStableShape(t *testing.T) {
	minter, err := record.NewIDMinter(1)
	require.NoError(t, err)

	at := time.Date(2026, 3, 5, 12, 0, 0, 0, time.UTC)
	id := minter.Mint(record.KindLesson, at)

	assert.True(t, strings.HasPrefix(id, "dec_20260305_lesson_"), "got %s", id)

	idB, err := record.NewIDMinter(2)
	require.NoError(t, err)
	id2 := idB.Mint(record.KindLesson, at)
	assert.NotEqual(t, id, id2, "two mints must not collide")
}
