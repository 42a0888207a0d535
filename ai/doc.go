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

// Package ai defines the evaluator collaborator used by the query engine.
//
// The engine asks an Evaluator whether an aggregated result is sufficient and,
// when it is not, asks a StrategyProposer what to acquire. Both are external
// collaborators: their contract is fixed here, their algorithm is not.
//
// # Implementation Packages
//
//   - ai/openai: LLM-backed evaluator and proposer using OpenAI-compatible chat APIs
//   - ai/heuristic: local evaluator scoring coverage by result count and top score
//   - ai/mock: test doubles for unit testing without external dependencies
//
// Public constructors return interface types. Mocks return concrete types so
// tests can inject behavior and assert call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	verdict, err := provider.Evaluator().Evaluate(ctx, query, result)
package ai
