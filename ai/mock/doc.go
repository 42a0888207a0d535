// Package mock provides test doubles for the ai package interfaces.
//
// The mocks answer deterministically without network access. Each exposes a
// ...Func field for injecting behavior and a CallCount for assertions.
//
//	evaluator := mock.NewMockEvaluator()
//	evaluator.EvaluateFunc = func(ctx context.Context, q core.NormalizedQuery, r *core.AggregatedResult) (*core.EvaluationVerdict, error) {
//	    return &core.EvaluationVerdict{Sufficiency: 0.1, NeedsEnrichment: true}, nil
//	}
package mock
