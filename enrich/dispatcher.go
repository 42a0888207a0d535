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

package enrich

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/doccache/config"
)

// Runner executes enrichment jobs. Workflow is the production runner.
type Runner interface {
	Run(ctx context.Context, job *Job) (*Report, error)
}

// Stats are dispatcher counters since creation.
type Stats struct {
	Queued     int
	Dispatched int64
	Completed  int64
	Failed     int64
	Dropped    int64
}

// Dispatcher runs enrichment jobs on a bounded worker pool fed by a channel.
// Dispatch never blocks; jobs run detached from the caller's context.
type Dispatcher struct {
	runner  Runner
	pool    *ants.Pool
	queue   chan *Job
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.RWMutex
	closed   bool
	pumpDone chan struct{}
	running  sync.WaitGroup

	dispatched atomic.Int64
	completed  atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
}

// NewDispatcher creates a dispatcher with cfg.Workers workers, a queue of
// cfg.QueueSize jobs and a per-job budget of cfg.JobTimeout.
func NewDispatcher(runner Runner, cfg config.Enrich, opts ...Option) (*Dispatcher, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	o := buildOptions(opts)

	size := max(cfg.Workers, 1)
	if o.poolSize > 0 {
		size = o.poolSize
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	d := &Dispatcher{
		runner:   runner,
		pool:     pool,
		queue:    make(chan *Job, max(cfg.QueueSize, 1)),
		timeout:  cfg.JobTimeout,
		logger:   o.logger.With("component", "enrich-dispatcher"),
		pumpDone: make(chan struct{}),
	}
	go d.pump()
	return d, nil
}

// Dispatch enqueues job and returns its id. A job without an id gets a new one.
// Returns ErrQueueFull when the queue has no room and ErrDispatcherClosed after Close.
func (d *Dispatcher) Dispatch(job *Job) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return "", ErrDispatcherClosed
	}
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Enqueued = time.Now().UTC()

	select {
	case d.queue <- job:
		d.dispatched.Add(1)
		d.logger.Debug("enrichment job queued", "job", job.ID, "query_hash", job.Query.Hash)
		return job.ID, nil
	default:
		d.dropped.Add(1)
		d.logger.Warn("enrichment queue full, job dropped", "query_hash", job.Query.Hash)
		return "", ErrQueueFull
	}
}

// pump moves queued jobs onto the pool. Submit blocks while every worker is busy.
func (d *Dispatcher) pump() {
	defer close(d.pumpDone)
	for job := range d.queue {
		d.running.Add(1)
		if err := d.pool.Submit(func() {
			defer d.running.Done()
			d.run(job)
		}); err != nil {
			d.running.Done()
			d.failed.Add(1)
			d.logger.Error("error submitting enrichment job", "job", job.ID, "err", err)
		}
	}
}

func (d *Dispatcher) run(job *Job) {
	ctx := context.Background()
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	report, err := d.runner.Run(ctx, job)
	if err != nil {
		d.failed.Add(1)
		d.logger.Error("error processing enrichment job", "job", job.ID, "err", err)
		return
	}
	d.completed.Add(1)
	d.logger.Info("enrichment job finished",
		"job", job.ID,
		"targets", report.Targets,
		"ingested", report.Ingested,
		"duplicates", report.Duplicates,
		"rejected", report.Rejected,
		"failed", report.Failed,
		"queued_for", time.Since(job.Enqueued),
		"elapsed", report.Elapsed)
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Queued:     len(d.queue),
		Dispatched: d.dispatched.Load(),
		Completed:  d.completed.Load(),
		Failed:     d.failed.Load(),
		Dropped:    d.dropped.Load(),
	}
}

// Close stops accepting jobs, waits for queued and running jobs to finish and
// releases the pool. If ctx ends first the pool is released anyway and ctx's
// error is returned. Close is idempotent.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	drained := make(chan struct{})
	go func() {
		<-d.pumpDone
		d.running.Wait()
		close(drained)
	}()

	defer d.pool.Release()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
