package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/core"
	"github.com/tmc/langchaingo/llms"
)

// Evaluator implements ai.Evaluator using an OpenAI-compatible chat API.
type Evaluator struct {
	client     llms.Model
	threshold  float64
	maxResults int
	logger     *slog.Logger
}

// evaluation is the JSON shape the model is asked to produce.
type evaluation struct {
	Sufficiency    float64  `json:"sufficiency"`
	Confidence     float64  `json:"confidence"`
	MissingAspects []string `json:"missing_aspects"`
	Rationale      string   `json:"rationale"`
}

var _ ai.Evaluator = (*Evaluator)(nil)

func newEvaluator(client llms.Model, config *ai.Config) *Evaluator {
	return &Evaluator{
		client:     client,
		threshold:  config.EnrichmentThreshold,
		maxResults: config.MaxPromptResults,
		logger:     slog.Default().With("component", "openai-evaluator"),
	}
}

// NewEvaluator creates an LLM evaluator from config.
func NewEvaluator(config *ai.Config) (ai.Evaluator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(config)
	if err != nil {
		return nil, err
	}
	return newEvaluator(client, config), nil
}

// Evaluate asks the model to score how well result answers query.
// The enrichment decision is made against the configured threshold, not by the model.
func (e *Evaluator) Evaluate(ctx context.Context, query core.NormalizedQuery, result *core.AggregatedResult) (*core.EvaluationVerdict, error) {
	var hits []core.SearchHit
	if result != nil {
		hits = result.Results
	}
	if len(hits) > e.maxResults {
		hits = hits[:e.maxResults]
	}

	var reply evaluation
	if err := generateJSON(ctx, e.client, e.logger, buildEvaluationPrompt(), formatResults(query, hits), &reply); err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", query.Text, err)
	}

	aspects := make([]string, 0, len(reply.MissingAspects))
	for _, a := range reply.MissingAspects {
		if a = strings.TrimSpace(a); a != "" {
			aspects = append(aspects, a)
		}
	}

	verdict := ai.Finalize(&core.EvaluationVerdict{
		Sufficiency:    reply.Sufficiency,
		Confidence:     reply.Confidence,
		MissingAspects: aspects,
		Rationale:      reply.Rationale,
	}, e.threshold)

	e.logger.Debug("evaluated results",
		"query", query.Text,
		"results", len(hits),
		"sufficiency", verdict.Sufficiency,
		"needs_enrichment", verdict.NeedsEnrichment)
	return verdict, nil
}
