package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/core"
)

// MockEvaluator is a test double for ai.Evaluator.
// The default verdict is sufficient when any result is present.
type MockEvaluator struct {
	// EvaluateFunc allows custom behavior injection for testing.
	// If nil, the default verdict is returned.
	EvaluateFunc func(ctx context.Context, query core.NormalizedQuery, result *core.AggregatedResult) (*core.EvaluationVerdict, error)

	callCount atomic.Int64
}

var _ ai.Evaluator = (*MockEvaluator)(nil)

// NewMockEvaluator creates a mock evaluator with default behavior.
func NewMockEvaluator() *MockEvaluator {
	return &MockEvaluator{}
}

// Evaluate returns the injected verdict or the default one.
func (m *MockEvaluator) Evaluate(ctx context.Context, query core.NormalizedQuery, result *core.AggregatedResult) (*core.EvaluationVerdict, error) {
	m.callCount.Add(1)

	if m.EvaluateFunc != nil {
		return m.EvaluateFunc(ctx, query, result)
	}

	if result == nil || len(result.Results) == 0 {
		return &core.EvaluationVerdict{
			Sufficiency:     0,
			Confidence:      1,
			MissingAspects:  []string{query.Text},
			NeedsEnrichment: true,
		}, nil
	}
	return &core.EvaluationVerdict{Sufficiency: 1, Confidence: 1}, nil
}

// CallCount returns the number of times Evaluate was called.
func (m *MockEvaluator) CallCount() int {
	return int(m.callCount.Load())
}
