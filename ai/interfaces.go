// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"context"

	"github.com/poiesic/doccache/core"
)

// Evaluator judges whether an aggregated result answers a query.
// Implementations must be thread-safe for concurrent use.
type Evaluator interface {
	// Evaluate scores the sufficiency of result for query.
	// An empty result is valid input and usually yields NeedsEnrichment.
	Evaluate(ctx context.Context, query core.NormalizedQuery, result *core.AggregatedResult) (*core.EvaluationVerdict, error)
}

// StrategyProposer turns an insufficient verdict into acquisition targets.
// Implementations must be thread-safe for concurrent use.
type StrategyProposer interface {
	// ProposeStrategy returns what to acquire for query. A strategy with no
	// targets means nothing useful is known to fetch.
	ProposeStrategy(ctx context.Context, query core.NormalizedQuery, verdict *core.EvaluationVerdict) (*core.EnrichmentStrategy, error)
}

// Provider aggregates the evaluator collaborator's services.
type Provider interface {
	// Evaluator returns the evaluation service.
	Evaluator() Evaluator

	// StrategyProposer returns the strategy service.
	StrategyProposer() StrategyProposer

	// Close releases resources held by the provider and its services.
	Close() error
}
