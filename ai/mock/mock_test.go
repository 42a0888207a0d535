package mock

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/doccache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockEvaluatorDefault(t *testing.T) {
	m := NewMockEvaluator()
	q := core.NormalizedQuery{Text: "asyncio"}

	v, err := m.Evaluate(context.Background(), q, &core.AggregatedResult{})
	require.NoError(t, err)
	assert.True(t, v.NeedsEnrichment)
	assert.Equal(t, []string{"asyncio"}, v.MissingAspects)

	v, err = m.Evaluate(context.Background(), q, &core.AggregatedResult{Results: []core.SearchHit{{ContentID: "c"}}})
	require.NoError(t, err)
	assert.False(t, v.NeedsEnrichment)
	assert.Equal(t, 2, m.CallCount())
}

func TestMockEvaluatorInjected(t *testing.T) {
	boom := errors.New("boom")
	m := NewMockEvaluator()
	m.EvaluateFunc = func(context.Context, core.NormalizedQuery, *core.AggregatedResult) (*core.EvaluationVerdict, error) {
		return nil, boom
	}
	_, err := m.Evaluate(context.Background(), core.NormalizedQuery{}, nil)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, m.CallCount())
}

func TestMockProposerCopiesTargets(t *testing.T) {
	target := core.AcquisitionTarget{Kind: core.SourceWeb, Location: "https://example.com"}
	m := NewMockStrategyProposer(target)

	s, err := m.ProposeStrategy(context.Background(), core.NormalizedQuery{Hash: "h", Text: "q"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "h", s.QueryHash)
	require.Len(t, s.Targets, 1)
	s.Targets[0].Location = "changed"
	assert.Equal(t, "https://example.com", m.Targets[0].Location)
}

func TestMockProvider(t *testing.T) {
	p := NewMockProviderWithServices(NewMockEvaluator(), NewMockStrategyProposer())
	assert.Same(t, p.GetMockEvaluator(), p.Evaluator())
	assert.Same(t, p.GetMockProposer(), p.StrategyProposer())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
	assert.NotNil(t, NewMockProvider())
}
