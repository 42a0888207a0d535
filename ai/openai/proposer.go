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

// StrategyProposer implements ai.StrategyProposer using an OpenAI-compatible chat API.
type StrategyProposer struct {
	client llms.Model
	logger *slog.Logger
}

type proposal struct {
	Targets []core.AcquisitionTarget `json:"targets"`
	Reason  string                   `json:"reason"`
}

var _ ai.StrategyProposer = (*StrategyProposer)(nil)

func newStrategyProposer(client llms.Model) *StrategyProposer {
	return &StrategyProposer{
		client: client,
		logger: slog.Default().With("component", "openai-proposer"),
	}
}

// NewStrategyProposer creates an LLM strategy proposer from config.
func NewStrategyProposer(config *ai.Config) (ai.StrategyProposer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newClient(config)
	if err != nil {
		return nil, err
	}
	return newStrategyProposer(client), nil
}

// ProposeStrategy asks the model for acquisition targets covering the verdict's
// missing aspects. Targets the acquisition layer cannot fetch are dropped.
func (p *StrategyProposer) ProposeStrategy(ctx context.Context, query core.NormalizedQuery, verdict *core.EvaluationVerdict) (*core.EnrichmentStrategy, error) {
	var reply proposal
	if err := generateJSON(ctx, p.client, p.logger, buildStrategyPrompt(), formatGaps(query, verdict), &reply); err != nil {
		return nil, fmt.Errorf("propose strategy %q: %w", query.Text, err)
	}

	strategy := &core.EnrichmentStrategy{
		QueryHash:  query.Hash,
		Query:      query.Text,
		Technology: query.Technology,
		Targets:    make([]core.AcquisitionTarget, 0, len(reply.Targets)),
		Reason:     reply.Reason,
	}
	seen := make(map[string]struct{}, len(reply.Targets))
	for _, t := range reply.Targets {
		t.Kind = core.SourceKind(strings.ToLower(strings.TrimSpace(string(t.Kind))))
		t.Location = strings.TrimSpace(t.Location)
		if !ai.ValidTarget(t) {
			p.logger.Debug("dropping invalid target", "kind", t.Kind, "location", t.Location)
			continue
		}
		if _, dup := seen[t.Location]; dup {
			continue
		}
		seen[t.Location] = struct{}{}
		if t.Technology == "" {
			t.Technology = query.Technology
		}
		t.DocumentType = ai.NormalizeDocumentType(t.DocumentType)
		strategy.Targets = append(strategy.Targets, t)
	}

	p.logger.Debug("proposed strategy",
		"query", query.Text,
		"proposed", len(reply.Targets),
		"accepted", len(strategy.Targets))
	return strategy, nil
}
