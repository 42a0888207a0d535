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


// Package openai provides evaluator services backed by OpenAI-compatible chat APIs.
//
// This package implements the ai.Provider interface using the langchaingo
// library to talk to OpenAI or compatible servers (Ollama, LocalAI, vLLM).
// Both services request JSON mode at temperature 0 and retry malformed
// replies up to three times.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithHost("http://localhost:11434"), // /v1 added automatically
//	    ai.WithModel("qwen2.5:7b"),
//	)
//
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	verdict, err := provider.Evaluator().Evaluate(ctx, query, result)
//	if err == nil && verdict.NeedsEnrichment {
//	    strategy, err := provider.StrategyProposer().ProposeStrategy(ctx, query, verdict)
//	}
package openai
