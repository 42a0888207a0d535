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

// Package doccache assembles the documentation cache engine from its parts:
// storage collaborators, breakers, the evaluator provider, the query
// orchestrator, background enrichment and the expiry sweeper.
package doccache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/doccache/acquire"
	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/ai/heuristic"
	"github.com/poiesic/doccache/ai/openai"
	"github.com/poiesic/doccache/breaker"
	"github.com/poiesic/doccache/cache"
	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/enrich"
	"github.com/poiesic/doccache/guard"
	"github.com/poiesic/doccache/orchestrator"
	"github.com/poiesic/doccache/quality"
	"github.com/poiesic/doccache/search"
	"github.com/poiesic/doccache/storage"
	badgerstore "github.com/poiesic/doccache/storage/badger"
	redisstore "github.com/poiesic/doccache/storage/redis"
	"github.com/poiesic/doccache/storage/sqlite"
	"github.com/poiesic/doccache/sweep"
	"github.com/poiesic/doccache/ttl"
	"github.com/poiesic/doccache/workspace"
)

// heuristicDestination names the breaker of the local evaluator.
const heuristicDestination = "heuristic"

// Engine is the documentation cache: it answers queries from the indexed
// corpus, enriches uncovered queries in the background and evicts content
// as it expires. It owns every store it opens and is safe for concurrent use.
type Engine struct {
	cfg config.Config

	backend    *badgerstore.Backend
	cacheStore storage.CacheStore
	contentDB  *sqlite.DB
	content    storage.ContentRepository
	index      storage.IndexStore
	workspaces storage.WorkspaceRepository

	breakers   *breaker.Registry
	provider   ai.Provider
	gateway    *cache.Gateway
	selector   *workspace.Selector
	lifetimes  *ttl.Manager
	workflow   *enrich.Workflow
	dispatcher *enrich.Dispatcher
	queries    *orchestrator.Orchestrator
	sweeper    *sweep.Sweeper

	logger *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running sync.WaitGroup
	closed  bool
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	logger     *slog.Logger
	provider   ai.Provider
	cacheStore storage.CacheStore
	fetchers   []acquire.Fetcher
	progress   io.Writer
}

// WithLogger sets the logger every component derives its own from.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithProvider replaces the evaluator provider chosen from the AI configuration.
// The engine still guards it with a breaker and closes it on Close.
func WithProvider(p ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = p
	}
}

// WithCacheStore replaces the configured cache backend.
func WithCacheStore(store storage.CacheStore) EngineOption {
	return func(o *engineOptions) {
		o.cacheStore = store
	}
}

// WithFetchers replaces the code-host and web clients.
func WithFetchers(fetchers ...acquire.Fetcher) EngineOption {
	return func(o *engineOptions) {
		o.fetchers = fetchers
	}
}

// WithProgress makes sweeps report per-partition progress to w.
func WithProgress(w io.Writer) EngineOption {
	return func(o *engineOptions) {
		o.progress = w
	}
}

// NewEngine validates cfg and wires every component. Storage is opened
// in memory when cfg.Storage.DataDir is empty.
func NewEngine(ctx context.Context, cfg config.Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	options := &engineOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	e := &Engine{cfg: cfg, logger: logger.With("component", "engine")}
	if err := e.openStorage(ctx, options); err != nil {
		e.closeStorage()
		return nil, err
	}
	if err := e.wire(options); err != nil {
		e.closeStorage()
		return nil, err
	}
	return e, nil
}

func (e *Engine) openStorage(ctx context.Context, options *engineOptions) error {
	backend, err := badgerstore.OpenBackend(e.cfg.Storage.DataDir, e.cfg.Storage.DataDir == "",
		badgerstore.WithLogger(options.logger))
	if err != nil {
		return fmt.Errorf("open badger backend: %w", err)
	}
	e.backend = backend

	switch {
	case options.cacheStore != nil:
		e.cacheStore = options.cacheStore
	case e.cfg.Cache.Backend == "redis":
		store, err := redisstore.Dial(ctx, e.cfg.Cache.RedisAddr, e.cfg.Cache.RedisPassword, e.cfg.Cache.RedisDB)
		if err != nil {
			return err
		}
		e.cacheStore = store
	default:
		e.cacheStore = badgerstore.NewCacheStore(backend)
	}

	db, err := sqlite.Open(e.cfg.Storage.ContentDSN, sqlite.WithLogger(options.logger))
	if err != nil {
		return err
	}
	e.contentDB = db
	content, err := sqlite.NewContentRepository(ctx, db)
	if err != nil {
		return err
	}
	e.content = content
	e.workspaces = badgerstore.NewWorkspaceRepository(backend)

	e.breakers = breaker.NewRegistry(e.cfg.Breakers, breaker.WithLogger(options.logger))
	e.index = guard.NewIndexStore(badgerstore.NewIndexStore(backend), e.breakers)
	return nil
}

func (e *Engine) wire(options *engineOptions) error {
	logger := options.logger

	provider, destination, err := e.newProvider(options.provider)
	if err != nil {
		return err
	}
	e.provider = guard.NewProvider(provider, e.breakers, destination)

	e.gateway = cache.NewGateway(e.cacheStore, e.cfg.Cache, cache.WithLogger(logger))

	if e.selector, err = workspace.NewSelector(e.workspaces, e.cfg.Workspace, e.cfg.Search.MaxPartitions,
		workspace.WithLogger(logger)); err != nil {
		return err
	}
	executor, err := search.NewExecutor(e.index, e.cfg.Search, search.WithLogger(logger))
	if err != nil {
		return err
	}
	if e.lifetimes, err = ttl.NewManager(e.cfg.TTL,
		ttl.WithIndexStore(e.index),
		ttl.WithContentRepository(e.content),
		ttl.WithLogger(logger)); err != nil {
		return err
	}

	ingester, err := enrich.NewIngester(e.content, e.index, quality.NewScorer(e.cfg.Quality), e.lifetimes,
		enrich.WithCache(e.gateway),
		enrich.WithWorkspaces(e.workspaces),
		enrich.WithLogger(logger))
	if err != nil {
		return err
	}
	fetchers := options.fetchers
	if fetchers == nil {
		fetchers = e.defaultFetchers(logger)
	}
	if e.workflow, err = enrich.NewWorkflow(e.provider.StrategyProposer(), ingester,
		acquire.NewNormalizer(e.cfg.Enrich.DefaultPartition), fetchers,
		enrich.WithCache(e.gateway),
		enrich.WithLogger(logger)); err != nil {
		return err
	}
	if e.dispatcher, err = enrich.NewDispatcher(&refreshingRunner{workflow: e.workflow, selector: e.selector, logger: e.logger},
		e.cfg.Enrich, enrich.WithLogger(logger)); err != nil {
		return err
	}

	if e.queries, err = orchestrator.New(e.gateway, e.selector, executor, e.provider.Evaluator(), e.cfg.Search,
		orchestrator.WithDispatcher(e.dispatcher),
		orchestrator.WithRateLimit(e.cfg.Cache.RateLimit),
		orchestrator.WithLogger(logger)); err != nil {
		return err
	}

	sweepOpts := []sweep.Option{sweep.WithLogger(logger)}
	if options.progress != nil {
		sweepOpts = append(sweepOpts, sweep.WithProgress(options.progress))
	}
	e.sweeper, err = sweep.NewSweeper(e.lifetimes, e.index, e.cfg.Storage, sweepOpts...)
	return err
}

// newProvider returns given when set, the LLM provider when a host is
// configured, and the heuristic provider otherwise.
func (e *Engine) newProvider(given ai.Provider) (ai.Provider, string, error) {
	switch {
	case given != nil:
		return given, "provider", nil
	case e.cfg.AI.UsesLLM():
		p, err := openai.NewProvider(&e.cfg.AI)
		if err != nil {
			return nil, "", fmt.Errorf("create AI provider: %w", err)
		}
		return p, e.cfg.AI.Host, nil
	default:
		return heuristic.NewProvider(&e.cfg.AI, e.cfg.Enrich.Sources), heuristicDestination, nil
	}
}

func (e *Engine) defaultFetchers(logger *slog.Logger) []acquire.Fetcher {
	return []acquire.Fetcher{
		guard.NewFetcher(acquire.NewCodeHostClient(e.cfg.Enrich, acquire.WithLogger(logger)), e.breakers),
		guard.NewFetcher(acquire.NewWebClient(e.cfg.Enrich, acquire.WithLogger(logger)), e.breakers),
	}
}

// Start launches the workspace refresh and expiry sweep loops. They stop on
// Close or when ctx is done. Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil || e.closed {
		return
	}
	ctx, e.cancel = context.WithCancel(ctx)

	e.running.Add(2)
	go func() {
		defer e.running.Done()
		e.selector.Run(ctx)
	}()
	go func() {
		defer e.running.Done()
		e.sweeper.Run(ctx)
	}()
	e.logger.Info("engine started",
		"refresh_interval", e.cfg.Workspace.RefreshInterval,
		"sweep_interval", e.cfg.Storage.SweepInterval)
}

// Query answers a documentation query through the orchestrator pipeline.
func (e *Engine) Query(ctx context.Context, req orchestrator.Request) (*orchestrator.Response, error) {
	return e.queries.Query(ctx, req)
}

// Acquire fetches target and ingests it synchronously.
func (e *Engine) Acquire(ctx context.Context, target core.AcquisitionTarget) (*core.ContentRecord, error) {
	record, err := e.workflow.Acquire(ctx, target)
	e.refreshAfterIngest(ctx, record, err)
	return record, err
}

// IngestRaw ingests content the caller already holds.
func (e *Engine) IngestRaw(ctx context.Context, raw acquire.RawContent, target core.AcquisitionTarget) (*core.ContentRecord, error) {
	record, err := e.workflow.IngestRaw(ctx, raw, target)
	e.refreshAfterIngest(ctx, record, err)
	return record, err
}

func (e *Engine) refreshAfterIngest(ctx context.Context, record *core.ContentRecord, err error) {
	if err != nil || record == nil || record.Status != core.StatusProcessed {
		return
	}
	if err := e.selector.Refresh(ctx); err != nil {
		e.logger.Debug("workspace snapshot not refreshed after ingest", "content_id", record.ContentID, "err", err)
	}
}

// Sweep removes expired content from every partition once.
func (e *Engine) Sweep(ctx context.Context) (*sweep.Report, error) {
	return e.sweeper.Sweep(ctx)
}

// ComputeTTL is the lifetime the engine would assign to a document with the
// given description. Signals are detected from text.
func (e *Engine) ComputeTTL(technology string, docType core.DocumentType, text, version string) time.Duration {
	return e.lifetimes.ComputeTTL(technology, ai.NormalizeDocumentType(docType), ttl.DetectSignals(text),
		core.VersionSignal{Version: version})
}

// Feedback adjusts a record's quality score. A record driven to rejected is
// removed from its partition.
func (e *Engine) Feedback(ctx context.Context, contentID string, delta float64) (*core.ContentRecord, error) {
	record, err := e.content.ApplyFeedback(ctx, contentID, delta)
	if err != nil {
		return nil, err
	}
	if record.Status == core.StatusRejected {
		if err := e.index.DeleteExpired(ctx, record.Partition, record.ContentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("failed to remove rejected content from index",
				"content_id", record.ContentID, "partition", record.Partition, "err", err)
		}
	}
	return record, nil
}

// Record returns the content record with contentID.
func (e *Engine) Record(ctx context.Context, contentID string) (*core.ContentRecord, error) {
	return e.content.Get(ctx, contentID)
}

// Breakers reports the state of every breaker the engine has used.
func (e *Engine) Breakers() []breaker.State {
	return e.breakers.Snapshot()
}

// EnrichStats reports the enrichment dispatcher counters.
func (e *Engine) EnrichStats() enrich.Stats {
	return e.dispatcher.Stats()
}

// Config returns the validated configuration the engine runs with.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// Close stops the background loops and waits for queued enrichment up to
// the job timeout, then releases storage. It is safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	cancel := e.cancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.running.Wait()

	ctx, done := context.WithTimeout(context.Background(), e.cfg.Enrich.JobTimeout)
	defer done()
	if err := e.dispatcher.Close(ctx); err != nil {
		e.logger.Error("error closing enrichment dispatcher", "err", err)
	}
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}
	return e.closeStorage()
}

func (e *Engine) closeStorage() error {
	var errs []error
	if e.content != nil {
		errs = append(errs, e.content.Close())
	}
	if e.contentDB != nil {
		if err := e.contentDB.Close(); err != nil {
			e.logger.Error("error closing content database", "err", err)
			errs = append(errs, err)
		}
	}
	if e.cacheStore != nil {
		if err := e.cacheStore.Close(); err != nil {
			e.logger.Error("error closing cache store", "err", err)
			errs = append(errs, err)
		}
	}
	if e.index != nil {
		errs = append(errs, e.index.Close())
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// refreshingRunner reloads the workspace snapshot after a job ingests
// content, so new partitions become searchable without waiting for the
// refresh interval.
type refreshingRunner struct {
	workflow *enrich.Workflow
	selector *workspace.Selector
	logger   *slog.Logger
}

func (r *refreshingRunner) Run(ctx context.Context, job *enrich.Job) (*enrich.Report, error) {
	report, err := r.workflow.Run(ctx, job)
	if report != nil && report.Ingested > 0 {
		if err := r.selector.Refresh(ctx); err != nil {
			r.logger.Debug("workspace snapshot not refreshed after enrichment", "ingested", report.Ingested, "err", err)
		}
	}
	return report, err
}
