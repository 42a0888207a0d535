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

package openai

import (
	"log/slog"

	"github.com/poiesic/doccache/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Provider implements ai.Provider using an OpenAI-compatible chat API.
// The evaluator and proposer share one client.
type Provider struct {
	config    *ai.Config
	evaluator *Evaluator
	proposer  *StrategyProposer
	logger    *slog.Logger
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a provider with LLM-backed services.
// The config is validated and normalized before use.
//
// Returns ai.Provider interface (not *Provider) to keep callers off
// OpenAI-specific details.
func NewProvider(config *ai.Config) (ai.Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(config)
	if err != nil {
		return nil, err
	}
	return newProvider(client, config), nil
}

func newProvider(client llms.Model, config *ai.Config) *Provider {
	return &Provider{
		config:    config,
		evaluator: newEvaluator(client, config),
		proposer:  newStrategyProposer(client),
		logger:    slog.Default().With("component", "openai-provider"),
	}
}

func newClient(config *ai.Config) (llms.Model, error) {
	return openai.New(
		openai.WithBaseURL(config.Host),
		openai.WithToken(config.Token),
		openai.WithModel(config.Model),
	)
}

// Evaluator returns the evaluation service.
func (p *Provider) Evaluator() ai.Evaluator {
	return p.evaluator
}

// StrategyProposer returns the strategy service.
func (p *Provider) StrategyProposer() ai.StrategyProposer {
	return p.proposer
}

// Close releases resources held by the provider.
// Currently a no-op as the underlying client needs no explicit cleanup.
func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
