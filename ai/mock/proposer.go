package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/core"
)

// MockStrategyProposer is a test double for ai.StrategyProposer.
type MockStrategyProposer struct {
	// ProposeStrategyFunc allows custom behavior injection for testing.
	// If nil, Targets is returned for every query.
	ProposeStrategyFunc func(ctx context.Context, query core.NormalizedQuery, verdict *core.EvaluationVerdict) (*core.EnrichmentStrategy, error)

	// Targets are returned by the default behavior.
	Targets []core.AcquisitionTarget

	callCount atomic.Int64
}

var _ ai.StrategyProposer = (*MockStrategyProposer)(nil)

// NewMockStrategyProposer creates a mock proposer returning targets.
func NewMockStrategyProposer(targets ...core.AcquisitionTarget) *MockStrategyProposer {
	return &MockStrategyProposer{Targets: targets}
}

// ProposeStrategy returns the injected strategy or one built from Targets.
func (m *MockStrategyProposer) ProposeStrategy(ctx context.Context, query core.NormalizedQuery, verdict *core.EvaluationVerdict) (*core.EnrichmentStrategy, error) {
	m.callCount.Add(1)

	if m.ProposeStrategyFunc != nil {
		return m.ProposeStrategyFunc(ctx, query, verdict)
	}

	targets := make([]core.AcquisitionTarget, len(m.Targets))
	copy(targets, m.Targets)
	return &core.EnrichmentStrategy{
		QueryHash:  query.Hash,
		Query:      query.Text,
		Technology: query.Technology,
		Targets:    targets,
		Reason:     "mock",
	}, nil
}

// CallCount returns the number of times ProposeStrategy was called.
func (m *MockStrategyProposer) CallCount() int {
	return int(m.callCount.Load())
}
