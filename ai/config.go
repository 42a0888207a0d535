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
	"errors"
	"strings"
)

// Config holds configuration for the evaluator collaborator.
type Config struct {
	// Host is the base URL of an OpenAI-compatible chat API.
	// Example: "http://localhost:11434/v1". Empty selects the heuristic evaluator.
	Host string `yaml:"host"`

	// Model is the chat model used for evaluation and strategy proposals.
	// Example: "qwen2.5:7b", "gpt-4o-mini"
	Model string `yaml:"model"`

	// Token is the API token. Local servers accept any value.
	Token string `yaml:"token"`

	// EnrichmentThreshold is the sufficiency score below which enrichment is requested.
	// Default: 0.6
	EnrichmentThreshold float64 `yaml:"enrichment_threshold"`

	// MinResults is the result count the heuristic evaluator treats as full coverage.
	// Default: 5
	MinResults int `yaml:"min_results"`

	// MaxPromptResults caps how many results are shown to the model.
	// Default: 10
	MaxPromptResults int `yaml:"max_prompt_results"`
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithHost sets the chat API host URL.
func WithHost(host string) ConfigOption {
	return func(c *Config) {
		c.Host = host
	}
}

// WithModel sets the chat model identifier.
func WithModel(model string) ConfigOption {
	return func(c *Config) {
		c.Model = model
	}
}

// WithToken sets the API token.
func WithToken(token string) ConfigOption {
	return func(c *Config) {
		c.Token = token
	}
}

// WithEnrichmentThreshold sets the sufficiency threshold for enrichment.
func WithEnrichmentThreshold(threshold float64) ConfigOption {
	return func(c *Config) {
		c.EnrichmentThreshold = threshold
	}
}

// DefaultConfig returns a Config with the heuristic evaluator selected.
func DefaultConfig() *Config {
	return &Config{
		Model:               "qwen2.5:7b",
		Token:               "none",
		EnrichmentThreshold: 0.6,
		MinResults:          5,
		MaxPromptResults:    10,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithHost("http://localhost:11434/v1"),
//	    WithModel("gpt-4o-mini"),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// UsesLLM reports whether an LLM host is configured.
func (c *Config) UsesLLM() bool {
	return strings.TrimSpace(c.Host) != ""
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.Host != "" && !strings.HasSuffix(c.Host, "/v1") {
		c.Host = strings.TrimSuffix(c.Host, "/") + "/v1"
	}
	if c.Token == "" {
		c.Token = "none"
	}
}

// Validate checks that the configuration is valid.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.UsesLLM() && c.Model == "" {
		return errors.New("ai config: Model is required when Host is set")
	}
	if c.EnrichmentThreshold < 0 || c.EnrichmentThreshold > 1 {
		return errors.New("ai config: EnrichmentThreshold must be between 0 and 1")
	}
	if c.MinResults < 1 {
		return errors.New("ai config: MinResults must be at least 1")
	}
	if c.MaxPromptResults < 1 {
		return errors.New("ai config: MaxPromptResults must be at least 1")
	}
	return nil
}
