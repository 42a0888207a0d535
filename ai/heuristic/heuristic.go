// Package heuristic provides a local evaluator that needs no model.
//
// Sufficiency blends three signals: result count against a target, the top
// raw score, and the fraction of query terms found in any title or snippet.
// Strategies come from a configured technology to source map.
package heuristic

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/quality"
)

const (
	countWeight = 0.4
	scoreWeight = 0.3
	termWeight  = 0.3

	// queryPlaceholder in a configured location is replaced by the escaped query text.
	queryPlaceholder = "{query}"

	// fallbackSource keys targets used for any technology without its own entry.
	fallbackSource = "*"
)

// Evaluator implements ai.Evaluator with local scoring.
type Evaluator struct {
	threshold  float64
	minResults int
}

var _ ai.Evaluator = (*Evaluator)(nil)

// NewEvaluator creates a heuristic evaluator.
func NewEvaluator(config *ai.Config) *Evaluator {
	minResults := config.MinResults
	if minResults < 1 {
		minResults = 1
	}
	return &Evaluator{threshold: config.EnrichmentThreshold, minResults: minResults}
}

// Evaluate scores coverage of query by result.
func (e *Evaluator) Evaluate(_ context.Context, query core.NormalizedQuery, result *core.AggregatedResult) (*core.EvaluationVerdict, error) {
	var hits []core.SearchHit
	if result != nil {
		hits = result.Results
	}

	terms := uniqueTerms(query.Text)
	if len(hits) == 0 {
		return ai.Finalize(&core.EvaluationVerdict{
			Confidence:     1,
			MissingAspects: terms,
			Rationale:      "no results",
		}, e.threshold), nil
	}

	var corpus strings.Builder
	top := 0.0
	for _, h := range hits {
		corpus.WriteString(h.Title)
		corpus.WriteByte(' ')
		corpus.WriteString(h.Snippet)
		corpus.WriteByte(' ')
		if h.RawScore > top {
			top = h.RawScore
		}
	}
	text := corpus.String()
	present := make(map[string]bool)
	for _, w := range quality.Tokenize(text) {
		present[w] = true
	}

	var missing []string
	for _, term := range terms {
		if !present[term] {
			missing = append(missing, term)
		}
	}

	count := float64(len(hits)) / float64(e.minResults)
	if count > 1 {
		count = 1
	}
	if top > 1 {
		top = 1
	}
	termCoverage := 1.0
	if len(terms) > 0 {
		termCoverage = float64(len(terms)-len(missing)) / float64(len(terms))
	}

	return ai.Finalize(&core.EvaluationVerdict{
		Sufficiency:    countWeight*count + scoreWeight*top + termWeight*termCoverage,
		Confidence:     0.5 + 0.5*count,
		MissingAspects: missing,
		Rationale:      "heuristic coverage",
	}, e.threshold), nil
}

// StrategyProposer implements ai.StrategyProposer from configured sources.
type StrategyProposer struct {
	sources map[string][]core.AcquisitionTarget
	logger  *slog.Logger
}

var _ ai.StrategyProposer = (*StrategyProposer)(nil)

// NewStrategyProposer creates a proposer over technology-keyed sources.
// The "*" entry applies to technologies with no entry of their own.
func NewStrategyProposer(sources map[string][]core.AcquisitionTarget) *StrategyProposer {
	normalized := make(map[string][]core.AcquisitionTarget, len(sources))
	for tech, targets := range sources {
		tech = strings.ToLower(strings.TrimSpace(tech))
		normalized[tech] = append(normalized[tech], targets...)
	}
	return &StrategyProposer{
		sources: normalized,
		logger:  slog.Default().With("component", "heuristic-proposer"),
	}
}

// ProposeStrategy returns the configured targets for the query's technology.
func (p *StrategyProposer) ProposeStrategy(_ context.Context, query core.NormalizedQuery, _ *core.EvaluationVerdict) (*core.EnrichmentStrategy, error) {
	configured, ok := p.sources[query.Technology]
	if !ok || query.Technology == "" {
		configured = p.sources[fallbackSource]
	}

	escaped := url.QueryEscape(query.Text)
	targets := make([]core.AcquisitionTarget, 0, len(configured))
	for _, t := range configured {
		if t.Kind == core.SourceWeb {
			t.Location = strings.ReplaceAll(t.Location, queryPlaceholder, escaped)
		}
		if t.Technology == "" {
			t.Technology = query.Technology
		}
		t.DocumentType = ai.NormalizeDocumentType(t.DocumentType)
		if !ai.ValidTarget(t) {
			p.logger.Warn("skipping invalid configured source", "kind", t.Kind, "location", t.Location)
			continue
		}
		targets = append(targets, t)
	}

	reason := "configured sources"
	if len(targets) == 0 {
		reason = "no sources configured"
	}
	return &core.EnrichmentStrategy{
		QueryHash:  query.Hash,
		Query:      query.Text,
		Technology: query.Technology,
		Targets:    targets,
		Reason:     reason,
	}, nil
}

// Provider implements ai.Provider with the heuristic services.
type Provider struct {
	evaluator *Evaluator
	proposer  *StrategyProposer
}

var _ ai.Provider = (*Provider)(nil)

// NewProvider creates a heuristic provider.
func NewProvider(config *ai.Config, sources map[string][]core.AcquisitionTarget) ai.Provider {
	return &Provider{
		evaluator: NewEvaluator(config),
		proposer:  NewStrategyProposer(sources),
	}
}

func (p *Provider) Evaluator() ai.Evaluator               { return p.evaluator }
func (p *Provider) StrategyProposer() ai.StrategyProposer { return p.proposer }
func (p *Provider) Close() error                          { return nil }

func uniqueTerms(text string) []string {
	words := quality.Tokenize(text)
	seen := make(map[string]bool, len(words))
	terms := make([]string, 0, len(words))
	for _, w := range words {
		if !seen[w] {
			seen[w] = true
			terms = append(terms, w)
		}
	}
	return terms
}
