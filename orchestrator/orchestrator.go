package orchestrator

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/doccache/ai"
	"github.com/poiesic/doccache/cache"
	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/enrich"
	"github.com/poiesic/doccache/query"
	"github.com/poiesic/doccache/search"
	"github.com/poiesic/doccache/workspace"
)

// maxFanoutHeadroom caps the time reserved after fan-out for aggregation,
// caching and evaluation within the response deadline.
const maxFanoutHeadroom = 250 * time.Millisecond

// Selector picks the partitions to search for a query.
type Selector interface {
	Select(ctx context.Context, query core.NormalizedQuery) []core.WorkspaceCandidate
}

// Searcher fans a query out over candidates.
type Searcher interface {
	ExecuteWithMonitor(ctx context.Context, query core.NormalizedQuery, candidates []core.WorkspaceCandidate, monitor search.Monitor) *core.AggregatedResult
}

// Dispatcher accepts enrichment jobs without blocking.
type Dispatcher interface {
	Dispatch(job *enrich.Job) (string, error)
}

var (
	_ Selector   = (*workspace.Selector)(nil)
	_ Searcher   = (*search.Executor)(nil)
	_ Dispatcher = (*enrich.Dispatcher)(nil)
)

// Request is one query.
type Request struct {
	Query      string
	Technology string

	// Deadline bounds the response. Zero uses the configured default.
	Deadline time.Duration

	// ClientID is counted against the rate limit when set.
	ClientID string

	// NoEnrich suppresses background enrichment.
	NoEnrich bool
}

// Response is the answer to a Request.
type Response struct {
	Query    core.NormalizedQuery
	Result   *core.AggregatedResult
	CacheHit bool

	// Stale is set when Result is the fallback copy served because sources failed.
	Stale bool

	// Verdict is nil when evaluation failed or ran out of time.
	Verdict *core.EvaluationVerdict

	// EnrichmentJob is the id of the job dispatched for this query, if any.
	EnrichmentJob string

	Stages  []Stage
	Elapsed time.Duration
}

// Partial reports whether the deadline cut the fan-out short.
func (r *Response) Partial() bool {
	return r.Result != nil && r.Result.Partial
}

// Orchestrator runs the query pipeline.
type Orchestrator struct {
	gateway    *cache.Gateway
	selector   Selector
	searcher   Searcher
	evaluator  ai.Evaluator
	dispatcher Dispatcher
	cfg        config.Search
	rateLimit  int64
	logger     *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithDispatcher enables background enrichment.
func WithDispatcher(d Dispatcher) Option {
	return func(o *Orchestrator) {
		o.dispatcher = d
	}
}

// WithRateLimit sets requests allowed per client per rate-limit window. Zero disables limiting.
func WithRateLimit(limit int64) Option {
	return func(o *Orchestrator) {
		o.rateLimit = limit
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates an orchestrator.
func New(gateway *cache.Gateway, selector Selector, searcher Searcher, evaluator ai.Evaluator, cfg config.Search, opts ...Option) (*Orchestrator, error) {
	if gateway == nil {
		return nil, ErrGatewayRequired
	}
	if selector == nil {
		return nil, ErrSelectorRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if evaluator == nil {
		return nil, ErrEvaluatorRequired
	}
	o := &Orchestrator{
		gateway:   gateway,
		selector:  selector,
		searcher:  searcher,
		evaluator: evaluator,
		cfg:       cfg,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With("component", "orchestrator")
	return o, nil
}

// Query answers req. It returns core.ErrEmptyQuery for blank input,
// core.ErrRateLimited when the client is over its allowance and
// core.ErrCacheUnavailable when the cache cannot be read. When no partition
// answered and no stale copy exists it returns the response together with
// an error matching core.ErrNoSources.
func (o *Orchestrator) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	tr := &trail{}

	tr.add(StageNormalize)
	q, err := query.Normalize(req.Query, req.Technology)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, cmp.Or(req.Deadline, o.cfg.DefaultDeadline))
	defer cancel()

	if req.ClientID != "" {
		if err := o.gateway.Allow(ctx, req.ClientID, o.rateLimit); err != nil {
			return nil, err
		}
	}

	resp := &Response{Query: q}

	tr.add(StageCacheCheck)
	run := &fanout{}
	result, hit, err := cache.GetOrCompute(ctx, o.gateway, cache.Key(cache.SearchResults, q.Hash),
		func(cctx context.Context) (*core.AggregatedResult, time.Duration, error) {
			res := o.search(cctx, q, tr, run)
			return res, o.resultTTL(res), nil
		})
	switch {
	case err == nil:
	case errors.Is(err, core.ErrCacheUnavailable):
		return nil, err
	case ctx.Err() != nil:
		// Deadline hit while waiting on another caller's fan-out.
		result = run.result()
		if result == nil {
			result = &core.AggregatedResult{Results: []core.SearchHit{}, Partial: true}
		}
	default:
		return nil, fmt.Errorf("search %q: %w", q.Text, err)
	}
	resp.Result = result
	resp.CacheHit = hit

	if !hit && o.needsFallback(result, run) {
		if stale, ok, _ := cache.GetJSON[*core.AggregatedResult](ctx, o.gateway, cache.Key(cache.SearchStale, q.Hash)); ok && stale != nil {
			o.logger.Info("serving stale results", "query", q.Text, "failed", result.FailedPartitions)
			resp.Result = stale
			resp.Stale = true
		}
	}

	tr.add(StageEvaluate)
	resp.Verdict = o.evaluate(ctx, q, resp)

	if !hit && !req.NoEnrich && resp.Verdict != nil && resp.Verdict.NeedsEnrichment {
		tr.add(StageEnrich)
		resp.EnrichmentJob = o.enrich(ctx, q, resp.Verdict)
	}

	if !hit && o.resultTTL(result) > 0 {
		tr.add(StageStore)
	}
	tr.add(StageReturn)
	resp.Stages = tr.list()
	resp.Elapsed = time.Since(start)

	o.logger.Debug("query answered",
		"query", q.Text,
		"cache_hit", resp.CacheHit,
		"stale", resp.Stale,
		"partial", resp.Partial(),
		"results", len(resp.Result.Results),
		"elapsed", resp.Elapsed)

	if resp.Result.NoSources && !resp.Stale {
		return resp, fmt.Errorf("%w: %q", core.ErrNoSources, q.Text)
	}
	return resp, nil
}

// search runs SELECT, FANOUT and AGGREGATE on the single-flight goroutine.
// Fan-out stops short of the deadline so the caller has time to use the result.
func (o *Orchestrator) search(ctx context.Context, q core.NormalizedQuery, tr *trail, run *fanout) *core.AggregatedResult {
	if deadline, ok := ctx.Deadline(); ok {
		headroom := min(time.Until(deadline)/10, maxFanoutHeadroom)
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, deadline.Add(-headroom))
		defer cancel()
	}

	tr.add(StageSelect)
	candidates := o.selector.Select(ctx, q)

	tr.add(StageFanout, StageAggregate)
	monitor := &failureMonitor{}
	result := o.searcher.ExecuteWithMonitor(ctx, q, candidates, monitor)
	run.set(result, monitor.circuitOpen.Load())

	if ttl := o.resultTTL(result); ttl > 0 {
		cache.SetJSON(context.WithoutCancel(ctx), o.gateway, cache.Key(cache.SearchStale, q.Hash), result, o.gateway.TTLFor(cache.SearchStale))
	}
	return result
}

// resultTTL is zero for results that must not be cached: partial, no-sources
// or missing a failed partition.
func (o *Orchestrator) resultTTL(result *core.AggregatedResult) time.Duration {
	if result == nil || result.Partial || result.NoSources || len(result.FailedPartitions) > 0 {
		return 0
	}
	return o.gateway.TTLFor(cache.SearchResults)
}

// needsFallback reports whether the stale copy should replace result: every
// partition failed, or a breaker was open for one of them.
func (o *Orchestrator) needsFallback(result *core.AggregatedResult, run *fanout) bool {
	if len(result.FailedPartitions) == 0 {
		return false
	}
	return result.NoSources || run.circuitOpen() > 0
}

// evaluate returns the cached or freshly computed verdict. Failures are logged and absorbed.
func (o *Orchestrator) evaluate(ctx context.Context, q core.NormalizedQuery, resp *Response) *core.EvaluationVerdict {
	if ctx.Err() != nil {
		o.logger.Debug("no time left to evaluate", "query", q.Text)
		return nil
	}

	var ttl time.Duration
	if resp.CacheHit || (!resp.Stale && o.resultTTL(resp.Result) > 0) {
		ttl = o.gateway.TTLFor(cache.Evaluation)
	}
	verdict, _, err := cache.GetOrCompute(ctx, o.gateway, cache.Key(cache.Evaluation, q.Hash),
		func(cctx context.Context) (*core.EvaluationVerdict, time.Duration, error) {
			v, err := o.evaluator.Evaluate(cctx, q, resp.Result)
			return v, ttl, err
		})
	if err != nil {
		o.logger.Warn("evaluation failed", "query", q.Text, "class", core.Classify(err).String(), "err", err)
		return nil
	}
	return verdict
}

// enrich hands the query to the dispatcher once per cooldown.
func (o *Orchestrator) enrich(ctx context.Context, q core.NormalizedQuery, verdict *core.EvaluationVerdict) string {
	if o.dispatcher == nil {
		return ""
	}
	if !o.gateway.Claim(ctx, cache.Key(cache.EnrichPending, q.Hash), o.gateway.TTLFor(cache.EnrichPending)) {
		o.logger.Debug("enrichment already pending", "query", q.Text)
		return ""
	}
	id, err := o.dispatcher.Dispatch(&enrich.Job{Query: q, Verdict: verdict})
	if err != nil {
		o.logger.Warn("enrichment not dispatched", "query", q.Text, "err", err)
		return ""
	}
	return id
}

// fanout holds what this caller's own fan-out observed. It stays empty for
// callers that joined another caller's computation.
type fanout struct {
	mu     sync.Mutex
	res    *core.AggregatedResult
	opened int64
}

func (f *fanout) set(res *core.AggregatedResult, opened int64) {
	f.mu.Lock()
	f.res, f.opened = res, opened
	f.mu.Unlock()
}

func (f *fanout) result() *core.AggregatedResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res
}

func (f *fanout) circuitOpen() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// failureMonitor counts partition failures rejected by an open breaker.
type failureMonitor struct {
	circuitOpen atomic.Int64
}

var _ search.Monitor = (*failureMonitor)(nil)

func (m *failureMonitor) Start(core.NormalizedQuery, []core.WorkspaceCandidate) {}
func (m *failureMonitor) TaskFinished(string, int, time.Duration)               {}
func (m *failureMonitor) Finish(*core.AggregatedResult)                          {}

func (m *failureMonitor) TaskFailed(_ string, err error, _ time.Duration) {
	if errors.Is(err, core.ErrCircuitOpen) {
		m.circuitOpen.Add(1)
	}
}
