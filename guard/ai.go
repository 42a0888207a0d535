package guard

import (
	"context"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/breaker"
	"github.com/poiesic/doccache/core"
)

// Evaluator routes evaluations through an external-api breaker.
type Evaluator struct {
	next        ai.Evaluator
	registry    *breaker.Registry
	destination string
}

var _ ai.Evaluator = (*Evaluator)(nil)

// NewEvaluator wraps next. destination names the evaluator endpoint.
func NewEvaluator(next ai.Evaluator, registry *breaker.Registry, destination string) *Evaluator {
	return &Evaluator{next: next, registry: registry, destination: destination}
}

func (g *Evaluator) Evaluate(ctx context.Context, query core.NormalizedQuery, result *core.AggregatedResult) (*core.EvaluationVerdict, error) {
	return breaker.Call(ctx, g.registry, breaker.ExternalAPI, g.destination, func(ctx context.Context) (*core.EvaluationVerdict, error) {
		return g.next.Evaluate(ctx, query, result)
	})
}

// StrategyProposer routes strategy proposals through an external-api breaker.
type StrategyProposer struct {
	next        ai.StrategyProposer
	registry    *breaker.Registry
	destination string
}

var _ ai.StrategyProposer = (*StrategyProposer)(nil)

// NewStrategyProposer wraps next. destination names the proposer endpoint.
func NewStrategyProposer(next ai.StrategyProposer, registry *breaker.Registry, destination string) *StrategyProposer {
	return &StrategyProposer{next: next, registry: registry, destination: destination}
}

func (g *StrategyProposer) ProposeStrategy(ctx context.Context, query core.NormalizedQuery, verdict *core.EvaluationVerdict) (*core.EnrichmentStrategy, error) {
	return breaker.Call(ctx, g.registry, breaker.ExternalAPI, g.destination, func(ctx context.Context) (*core.EnrichmentStrategy, error) {
		return g.next.ProposeStrategy(ctx, query, verdict)
	})
}

// Provider guards both services of an ai.Provider.
type Provider struct {
	next      ai.Provider
	evaluator *Evaluator
	proposer  *StrategyProposer
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider wraps next; both services share destination.
func NewProvider(next ai.Provider, registry *breaker.Registry, destination string) *Provider {
	return &Provider{
		next:      next,
		evaluator: NewEvaluator(next.Evaluator(), registry, destination),
		proposer:  NewStrategyProposer(next.StrategyProposer(), registry, destination),
	}
}

func (p *Provider) Evaluator() ai.Evaluator               { return p.evaluator }
func (p *Provider) StrategyProposer() ai.StrategyProposer { return p.proposer }
func (p *Provider) Close() error                          { return p.next.Close() }
