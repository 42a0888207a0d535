package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/doccache/acquire"
	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/cache"
	"github.com/poiesic/doccache/core"
)

const retryDelay = 200 * time.Millisecond

// Job is one unit of background enrichment for a query.
type Job struct {
	ID      string
	Query   core.NormalizedQuery
	Verdict *core.EvaluationVerdict

	// Strategy skips proposal when set.
	Strategy *core.EnrichmentStrategy

	Enqueued time.Time
}

// Report summarizes what a job acquired.
type Report struct {
	JobID      string
	Reason     string
	Targets    int
	Ingested   int
	Duplicates int
	Rejected   int
	Failed     int
	ContentIDs []string
	Elapsed    time.Duration
}

// Workflow acquires the targets of an enrichment strategy and ingests what it fetches.
type Workflow struct {
	proposer   ai.StrategyProposer
	ingester   *Ingester
	normalizer *acquire.Normalizer
	fetchers   map[core.SourceKind]acquire.Fetcher
	cache      *cache.Gateway
	attempts   int
	logger     *slog.Logger
}

// NewWorkflow creates a workflow. Fetchers are keyed by their Kind; a later
// fetcher of the same kind replaces an earlier one.
func NewWorkflow(proposer ai.StrategyProposer, ingester *Ingester, normalizer *acquire.Normalizer, fetchers []acquire.Fetcher, opts ...Option) (*Workflow, error) {
	if proposer == nil {
		return nil, ErrProposerRequired
	}
	if ingester == nil {
		return nil, ErrIngesterRequired
	}
	if normalizer == nil {
		normalizer = acquire.NewNormalizer("")
	}
	o := buildOptions(opts)
	byKind := make(map[core.SourceKind]acquire.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byKind[f.Kind()] = f
	}
	return &Workflow{
		proposer:   proposer,
		ingester:   ingester,
		normalizer: normalizer,
		fetchers:   byKind,
		cache:      o.cache,
		attempts:   max(o.attempts, 1),
		logger:     o.logger.With("component", "enrich-workflow"),
	}, nil
}

// Run proposes a strategy for the job when it carries none, then acquires every target.
// Individual target failures are counted in the report, not returned.
func (w *Workflow) Run(ctx context.Context, job *Job) (*Report, error) {
	start := time.Now()
	strategy := job.Strategy
	if strategy == nil {
		var err error
		strategy, err = w.proposer.ProposeStrategy(ctx, job.Query, job.Verdict)
		if err != nil {
			return nil, fmt.Errorf("proposing strategy: %w", err)
		}
	}

	report := &Report{JobID: job.ID, Reason: strategy.Reason, Targets: len(strategy.Targets)}
	for _, target := range strategy.Targets {
		if ctx.Err() != nil {
			break
		}
		if target.Technology == "" {
			target.Technology = strategy.Technology
		}
		record, err := w.Acquire(ctx, target)
		w.count(report, target, record, err)
	}

	if report.Ingested > 0 {
		w.invalidate(ctx, job.Query.Hash)
	}
	report.Elapsed = time.Since(start)
	return report, ctx.Err()
}

// Acquire fetches one target through the fetcher of its kind and ingests it.
// Transient fetch failures are retried within the workflow's attempt budget.
func (w *Workflow) Acquire(ctx context.Context, target core.AcquisitionTarget) (*core.ContentRecord, error) {
	fetcher, ok := w.fetchers[target.Kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", acquire.ErrUnsupportedTarget, target.Kind)
	}

	var raw acquire.RawContent
	err := RetryTransient(ctx, func() error {
		var err error
		raw, err = fetcher.Fetch(ctx, target)
		return err
	}, w.attempts, retryDelay)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target.Location, err)
	}
	return w.IngestRaw(ctx, raw, target)
}

// IngestRaw normalizes already-acquired content and ingests it.
func (w *Workflow) IngestRaw(ctx context.Context, raw acquire.RawContent, target core.AcquisitionTarget) (*core.ContentRecord, error) {
	content, err := w.normalizer.Normalize(raw, target)
	if err != nil {
		return nil, err
	}
	return w.ingester.Ingest(ctx, content)
}

func (w *Workflow) count(report *Report, target core.AcquisitionTarget, record *core.ContentRecord, err error) {
	switch {
	case err == nil:
		report.Ingested++
		report.ContentIDs = append(report.ContentIDs, record.ContentID)
		return
	case errors.Is(err, core.ErrDuplicateContent):
		report.Duplicates++
	case errors.Is(err, core.ErrBelowThreshold):
		report.Rejected++
	default:
		report.Failed++
	}
	w.logger.Warn("target not ingested",
		"job", report.JobID,
		"location", target.Location,
		"class", core.Classify(err).String(),
		"err", err)
}

// invalidate drops cached answers for the query so the next search sees new content.
// The stale copy is kept as a fallback.
func (w *Workflow) invalidate(ctx context.Context, queryHash string) {
	if w.cache == nil || queryHash == "" {
		return
	}
	if err := w.cache.Invalidate(ctx,
		cache.Key(cache.SearchResults, queryHash),
		cache.Key(cache.Evaluation, queryHash),
	); err != nil {
		w.logger.Warn("failed to invalidate cached results", "query_hash", queryHash, "err", err)
	}
}
