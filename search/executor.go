package search

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

// Executor runs per-partition searches concurrently.
type Executor struct {
	index  storage.IndexStore
	cfg    config.Search
	logger *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger
		return nil
	}
}

// NewExecutor creates a new executor over index.
func NewExecutor(index storage.IndexStore, cfg config.Search, opts ...Option) (*Executor, error) {
	if index == nil {
		return nil, ErrIndexStoreRequired
	}

	e := &Executor{
		index:  index,
		cfg:    cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With("component", "search")
	return e, nil
}

// outcome is one task's result slot; each task writes only its own.
type outcome struct {
	partial *core.PartialResult
	err     error
	elapsed time.Duration
}

// Execute searches every candidate and aggregates the results.
func (e *Executor) Execute(ctx context.Context, query core.NormalizedQuery, candidates []core.WorkspaceCandidate) *core.AggregatedResult {
	return e.ExecuteWithMonitor(ctx, query, candidates, nil)
}

// ExecuteWithMonitor searches every candidate with monitoring.
// The result is partial when ctx ended before every task finished.
func (e *Executor) ExecuteWithMonitor(ctx context.Context, query core.NormalizedQuery, candidates []core.WorkspaceCandidate, monitor Monitor) *core.AggregatedResult {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	start := time.Now()
	monitor.Start(query, candidates)

	limit := max(1, e.cfg.MaxConcurrency)
	// searches counts store calls still running, including ones whose task
	// already timed out, so abandoned calls keep holding their slot.
	searches := semaphore.NewWeighted(int64(limit))
	slots := make([]outcome, len(candidates))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, c := range candidates {
		g.Go(func() error {
			slots[i] = e.runTask(ctx, searches, c.ID, query)
			if slots[i].err != nil {
				monitor.TaskFailed(c.ID, slots[i].err, slots[i].elapsed)
			} else {
				monitor.TaskFinished(c.ID, len(slots[i].partial.Hits), slots[i].elapsed)
			}
			return nil
		})
	}
	_ = g.Wait()

	partials := make([]*core.PartialResult, 0, len(slots))
	var answered, failed []string
	for i, s := range slots {
		partition := candidates[i].ID
		if s.err != nil {
			failed = append(failed, partition)
			e.logger.Warn("partition search failed", "partition", partition, "class", core.Classify(s.err).String(), "err", s.err)
			continue
		}
		answered = append(answered, partition)
		partials = append(partials, s.partial)
	}

	result := Aggregate(partials, query.Technology, e.cfg.TechnologyBoost, e.cfg.TopN)
	result.Partitions = answered
	result.FailedPartitions = failed
	result.Partial = ctx.Err() != nil && len(failed) > 0
	result.NoSources = len(answered) == 0
	result.ExecutionTime = time.Since(start)

	e.logger.Debug("fan-out complete",
		"query", query.Text,
		"candidates", len(candidates),
		"failed", len(failed),
		"results", len(result.Results),
		"elapsed", result.ExecutionTime)
	monitor.Finish(result)
	return result
}

// runTask searches one partition under the per-task timeout. A store that
// ignores cancellation is abandoned when the timeout fires, but its call
// holds a searches slot until it returns. Waiting for a slot counts against
// the task timeout.
func (e *Executor) runTask(ctx context.Context, searches *semaphore.Weighted, partition string, query core.NormalizedQuery) outcome {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return outcome{err: err}
	}

	taskCtx, cancel := context.WithTimeout(ctx, e.cfg.TaskTimeout)
	defer cancel()

	if err := searches.Acquire(taskCtx, 1); err != nil {
		return outcome{
			err:     &core.TransientError{Op: "search " + partition, Err: err},
			elapsed: time.Since(start),
		}
	}

	done := make(chan outcome, 1)
	go func() {
		defer searches.Release(1)
		partial, err := e.index.Search(taskCtx, partition, query, e.cfg.HitsPerPartition)
		done <- outcome{partial: partial, err: err}
	}()

	select {
	case o := <-done:
		o.elapsed = time.Since(start)
		if o.err == nil && o.partial == nil {
			o.partial = &core.PartialResult{Partition: partition}
		}
		return o
	case <-taskCtx.Done():
		return outcome{
			err:     &core.TransientError{Op: "search " + partition, Err: taskCtx.Err()},
			elapsed: time.Since(start),
		}
	}
}
