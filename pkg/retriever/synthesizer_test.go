package retriever_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rune-mem/rune/pkg/llm"
	"github.com/rune-mem/rune/pkg/retriever"
)

func candidateWith(id, title, certainty string) retriever.Candidate {
	return retriever.Candidate{
		RecordID: id,
		Record: map[string]interface{}{
			"title":     title,
			"certainty": certainty,
		},
	}
}

func TestSynthesizeFallsBackWithoutProvider(t *testing.T) {
	s := retriever.NewSynthesizer(nil)

	candidates := []retriever.Candidate{
		candidateWith("dec_1", "Adopt enVector", "supported"),
		candidateWith("dec_2", "Rotate on-call weekly", "supported"),
	}
	answer, sources := s.Synthesize(context.Background(), "what did we decide", "generic", candidates)

	assert.Equal(t, "Found: Adopt enVector; Rotate on-call weekly", answer)
	assert.Len(t, sources, 2)
	assert.Equal(t, "dec_1", sources[0].ID)
}

func TestSynthesizeFallbackWithNoTitledRecords(t *testing.T) {
	s := retriever.NewSynthesizer(nil)

	answer, sources := s.Synthesize(context.Background(), "q", "generic", nil)
	assert.Equal(t, "Found: (no titled records)", answer)
	assert.Empty(t, sources)
}

type fixedAnswerProvider struct {
	answer string
	err    error
}

func (p fixedAnswerProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return p.answer, p.err
}
func (p fixedAnswerProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return p.answer, p.err
}
func (fixedAnswerProvider) IsAvailable() bool { return true }
func (fixedAnswerProvider) Close() error      { return nil }

func TestSynthesizeReturnsProviderAnswer(t *testing.T) {
	s := retriever.NewSynthesizer(fixedAnswerProvider{answer: "We adopted enVector (dec_1) for encrypted search."})

	candidates := []retriever.Candidate{candidateWith("dec_1", "Adopt enVector", "supported")}
	answer, _ := s.Synthesize(context.Background(), "q", "generic", candidates)

	assert.Equal(t, "We adopted enVector (dec_1) for encrypted search.", answer)
}

func TestSynthesizeFallsBackOnProviderError(t *testing.T) {
	s := retriever.NewSynthesizer(fixedAnswerProvider{err: assertError{}})

	candidates := []retriever.Candidate{candidateWith("dec_1", "Adopt enVector", "supported")}
	answer, _ := s.Synthesize(context.Background(), "q", "generic", candidates)

	assert.Equal(t, "Found: Adopt enVector", answer)
}
