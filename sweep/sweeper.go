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

// Package sweep evicts expired content on a schedule.
//
// Each sweep deletes expired documents from every index partition in bounded
// batches, marks content records whose expiry passed as expired and decays
// the freshness score of the records still live.
// A failing partition is logged and skipped; the sweep moves on.
package sweep

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/storage"
	"github.com/poiesic/doccache/ttl"
)

var (
	// ErrManagerRequired is returned when a TTL manager is not provided.
	ErrManagerRequired = errors.New("ttl manager required")

	// ErrIndexStoreRequired is returned when an index store is not provided.
	ErrIndexStoreRequired = errors.New("index store required")
)

// Report summarizes one sweep.
type Report struct {
	StartedAt        time.Time
	Elapsed          time.Duration
	Partitions       []ttl.CleanupReport
	FailedSweeps     []string // Partitions whose cleanup returned an error
	Deleted          int
	Failed           int
	RecordsExpired   int
	FreshnessUpdated int
}

// Sweeper runs TTL cleanup across all partitions.
type Sweeper struct {
	manager   *ttl.Manager
	index     storage.IndexStore
	interval  time.Duration
	batchSize int
	progress  io.Writer
	logger    *slog.Logger

	mu   sync.Mutex
	last *Report
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithProgress writes per-partition progress to w during each sweep.
func WithProgress(w io.Writer) Option {
	return func(s *Sweeper) {
		s.progress = w
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSweeper creates a sweeper. index lists the partitions to sweep and is
// usually the same store the manager deletes from.
func NewSweeper(manager *ttl.Manager, index storage.IndexStore, cfg config.Storage, opts ...Option) (*Sweeper, error) {
	if manager == nil {
		return nil, ErrManagerRequired
	}
	if index == nil {
		return nil, ErrIndexStoreRequired
	}
	s := &Sweeper{
		manager:   manager,
		index:     index,
		interval:  cfg.SweepInterval,
		batchSize: cfg.SweepBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "sweeper")
	return s, nil
}

// Sweep cleans every partition once. It fails only when partitions cannot be
// listed or ctx ends.
func (s *Sweeper) Sweep(ctx context.Context) (*Report, error) {
	report := &Report{StartedAt: time.Now().UTC()}
	partitions, err := s.index.Partitions(ctx)
	if err != nil {
		return report, err
	}

	var tracker *ProgressTracker
	if s.progress != nil {
		tracker = NewProgressTracker(s.progress, len(partitions))
		tracker.Start()
	}

	for _, partition := range partitions {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		pr, err := s.manager.CleanupExpired(ctx, partition, s.batchSize)
		report.Partitions = append(report.Partitions, pr)
		report.Deleted += pr.Deleted
		report.Failed += pr.Failed
		if tracker != nil {
			tracker.PartitionDone(pr.Deleted)
		}
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.FailedSweeps = append(report.FailedSweeps, partition)
			s.logger.Warn("partition cleanup failed", "partition", partition, "err", err)
		}
	}

	records, err := s.manager.ExpireRecords(ctx, "", s.batchSize)
	report.RecordsExpired = records.Deleted
	report.Failed += records.Failed
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		s.logger.Warn("content record expiry failed", "err", err)
	}

	refreshed, err := s.manager.RefreshFreshness(ctx, s.batchSize)
	report.FreshnessUpdated = refreshed
	if err != nil {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		s.logger.Warn("freshness refresh failed", "err", err)
	}

	if tracker != nil {
		tracker.Finish()
	}
	report.Elapsed = time.Since(report.StartedAt)
	s.setLast(report)

	s.logger.Info("sweep complete",
		"partitions", len(partitions),
		"deleted", report.Deleted,
		"records_expired", report.RecordsExpired,
		"freshness_updated", report.FreshnessUpdated,
		"failed", report.Failed,
		"elapsed", report.Elapsed)
	return report, nil
}

// Run sweeps every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("error sweeping expired content", "err", err)
			}
		}
	}
}

// LastReport returns the report of the last completed sweep, or nil.
func (s *Sweeper) LastReport() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Sweeper) setLast(r *Report) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}
