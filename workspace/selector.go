// Package workspace selects the content partitions a query is searched against.
package workspace

import (
	"cmp"
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

// ErrRepositoryRequired is returned when no workspace repository is provided.
var ErrRepositoryRequired = errors.New("workspace repository required")

// Selector ranks workspace candidates from a cached snapshot of the mapping
// collaborator. A failed refresh keeps the last good snapshot.
type Selector struct {
	repo     storage.WorkspaceRepository
	max      int
	interval time.Duration
	logger   *slog.Logger

	mu        sync.RWMutex
	snapshot  []core.WorkspaceCandidate
	loaded    bool
	refreshed time.Time
}

// Option configures a Selector.
type Option func(*Selector)

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSelector creates a selector returning at most maxPartitions candidates.
func NewSelector(repo storage.WorkspaceRepository, cfg config.Workspace, maxPartitions int, opts ...Option) (*Selector, error) {
	if repo == nil {
		return nil, ErrRepositoryRequired
	}
	s := &Selector{
		repo:     repo,
		max:      maxPartitions,
		interval: cfg.RefreshInterval,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "workspace")
	return s, nil
}

// Refresh reloads the candidate snapshot.
func (s *Selector) Refresh(ctx context.Context) error {
	candidates, err := s.repo.ListCandidates(ctx)
	if err != nil {
		s.mu.RLock()
		kept := len(s.snapshot)
		s.mu.RUnlock()
		s.logger.Warn("workspace refresh failed, keeping last snapshot", "candidates", kept, "err", err)
		return err
	}

	s.mu.Lock()
	s.snapshot = candidates
	s.loaded = true
	s.refreshed = time.Now()
	s.mu.Unlock()

	s.logger.Debug("workspace snapshot refreshed", "candidates", len(candidates))
	return nil
}

// Select returns the ranked candidates for query. It loads the snapshot on
// first use and returns an empty list, never an error, when nothing is known.
func (s *Selector) Select(ctx context.Context, query core.NormalizedQuery) []core.WorkspaceCandidate {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if !loaded {
		_ = s.Refresh(ctx)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Rank(s.snapshot, query.Technology, s.max)
}

// Run refreshes the snapshot every refresh interval until ctx is done.
func (s *Selector) Run(ctx context.Context) {
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
			_ = s.Refresh(ctx)
		}
	}
}

// LastRefresh is the time of the last successful refresh.
func (s *Selector) LastRefresh() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshed
}

// Rank orders candidates and keeps at most limit. With a technology hint,
// matching candidates come first. Within a group the order is relevance
// descending, then most recent update, then ID.
func Rank(candidates []core.WorkspaceCandidate, technology string, limit int) []core.WorkspaceCandidate {
	ranked := slices.Clone(candidates)
	slices.SortFunc(ranked, func(a, b core.WorkspaceCandidate) int {
		if technology != "" {
			am, bm := a.Technology == technology, b.Technology == technology
			if am != bm {
				if am {
					return -1
				}
				return 1
			}
		}
		return cmp.Or(
			cmp.Compare(b.RelevanceScore, a.RelevanceScore),
			b.LastUpdated.Compare(a.LastUpdated),
			cmp.Compare(a.ID, b.ID),
		)
	})
	if limit >= 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	if ranked == nil {
		ranked = []core.WorkspaceCandidate{}
	}
	return ranked
}
