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

package mock

import "github.com/poiesic/doccache/ai"

// MockProvider is a test double for ai.Provider.
// It aggregates mock evaluator and proposer instances.
type MockProvider struct {
	evaluator *MockEvaluator
	proposer  *MockStrategyProposer
	closed    bool
}

// NewMockProvider creates a new mock provider with default mock services.
//
// Returns ai.Provider interface for consistency with production constructors.
func NewMockProvider() ai.Provider {
	return NewMockProviderWithServices(NewMockEvaluator(), NewMockStrategyProposer())
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
// Returns the concrete type so tests can reach the services.
func NewMockProviderWithServices(evaluator *MockEvaluator, proposer *MockStrategyProposer) *MockProvider {
	return &MockProvider{
		evaluator: evaluator,
		proposer:  proposer,
	}
}

// Evaluator returns the mock evaluator.
func (p *MockProvider) Evaluator() ai.Evaluator {
	return p.evaluator
}

// StrategyProposer returns the mock strategy proposer.
func (p *MockProvider) StrategyProposer() ai.StrategyProposer {
	return p.proposer
}

// Close marks the provider closed.
func (p *MockProvider) Close() error {
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed
}

// GetMockEvaluator returns the underlying mock evaluator for test assertions.
func (p *MockProvider) GetMockEvaluator() *MockEvaluator {
	return p.evaluator
}

// GetMockProposer returns the underlying mock proposer for test assertions.
func (p *MockProvider) GetMockProposer() *MockStrategyProposer {
	return p.proposer
}
