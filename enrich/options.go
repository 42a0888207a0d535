package enrich

import (
	"log/slog"

	"github.com/poiesic/doccache/cache"
	"github.com/poiesic/doccache/storage"
)

type options struct {
	logger     *slog.Logger
	cache      *cache.Gateway
	workspaces storage.WorkspaceRepository
	poolSize   int
	attempts   int
}

// Option configures an Ingester, Workflow or Dispatcher. Options that do not
// apply to a component are ignored by it.
type Option func(*options)

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithCache lets the Ingester record processed content and the Workflow
// invalidate cached results for queries it enriched.
func WithCache(g *cache.Gateway) Option {
	return func(o *options) {
		o.cache = g
	}
}

// WithWorkspaces lets the Ingester register partitions it writes to as workspace candidates.
func WithWorkspaces(repo storage.WorkspaceRepository) Option {
	return func(o *options) {
		o.workspaces = repo
	}
}

// WithPoolSize overrides the number of dispatcher workers.
func WithPoolSize(size int) Option {
	return func(o *options) {
		o.poolSize = max(size, 1)
	}
}

// WithFetchAttempts sets how many times a transient fetch failure is tried (default 2).
func WithFetchAttempts(n int) Option {
	return func(o *options) {
		o.attempts = n
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default(), attempts: 2}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
