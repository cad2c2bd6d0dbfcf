package retriever_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rune-mem/rune/pkg/llm"
	"github.com/rune-mem/rune/pkg/retriever"
)

func TestQueryPlannerFallsBackWithoutProvider(t *testing.T) {
	planner := retriever.NewQueryPlanner(nil)

	plan := planner.Plan(context.Background(), "what did we decide about caching")
	assert.Equal(t, "generic", plan.Intent)
	assert.Equal(t, []string{"what did we decide about caching"}, plan.Queries)
	assert.Empty(t, plan.Entities)
}

type unavailableProvider struct{}

func (unavailableProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	panic("must not be called when unavailable")
}
func (unavailableProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	panic("must not be called when unavailable")
}
func (unavailableProvider) IsAvailable() bool { return false }
func (unavailableProvider) Close() error      { return nil }

func TestQueryPlannerFallsBackWhenProviderUnavailable(t *testing.T) {
	planner := retriever.NewQueryPlanner(unavailableProvider{})

	plan := planner.Plan(context.Background(), "why did we pick postgres")
	assert.Equal(t, "generic", plan.Intent)
	assert.Equal(t, []string{"why did we pick postgres"}, plan.Queries)
}

type erroringProvider struct{}

func (erroringProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return "", assertErr
}
func (erroringProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return "", assertErr
}
func (erroringProvider) IsAvailable() bool { return true }
func (erroringProvider) Close() error      { return nil }

var assertErr = assertError{}

type assertError struct{}

func (assertError) Error() string { return "transport failure" }

func TestQueryPlannerFallsBackOnProviderError(t *testing.T) {
	planner := retriever.NewQueryPlanner(erroringProvider{})

	plan := planner.Plan(context.Background(), "who owns the billing service")
	assert.Equal(t, "generic", plan.Intent)
	assert.Equal(t, []string{"who owns the billing service"}, plan.Queries)
}

type jsonProvider struct {
	raw string
}

func (p jsonProvider) Generate(ctx context.Context, prompt string, opts ...llm.GenerateOption) (string, error) {
	return p.raw, nil
}
func (p jsonProvider) GenerateWithMessages(ctx context.Context, messages []llm.Message, opts ...llm.GenerateOption) (string, error) {
	return p.raw, nil
}
func (jsonProvider) IsAvailable() bool { return true }
func (jsonProvider) Close() error      { return nil }

func TestQueryPlannerTruncatesToMaxQueries(t *testing.T) {
	planner := retriever.NewQueryPlanner(jsonProvider{raw: `{"intent":"lookup","entities":["caching"],"queries":["a","b","c","d","e"]}`})

	plan := planner.Plan(context.Background(), "original")
	assert.Equal(t, "lookup", plan.Intent)
	assert.Len(t, plan.Queries, retriever.MaxQueries)
	assert.Equal(t, []string{"a", "b", "c", "d"}, plan.Queries)
}

func TestQueryPlannerFallsBackOnUnparsableResponse(t *testing.T) {
	planner := retriever.NewQueryPlanner(jsonProvider{raw: "not json at all"})

	plan := planner.Plan(context.Background(), "original query")
	assert.Equal(t, []string{"original query"}, plan.Queries)
}
