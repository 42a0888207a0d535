package guard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/doccache/acquire"
	"github.com/poiesic/doccache/ai/mock"
	"github.com/poiesic/doccache/breaker"
	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingIndex fails every search with err and counts calls.
type failingIndex struct {
	storage.IndexStore
	err   error
	calls atomic.Int64
}

func (f *failingIndex) Search(ctx context.Context, partition string, q core.NormalizedQuery, limit int) (*core.PartialResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &core.PartialResult{Partition: partition}, nil
}

func (f *failingIndex) DeleteExpired(ctx context.Context, partition, contentID string) error {
	f.calls.Add(1)
	return f.err
}

func (f *failingIndex) Close() error { return nil }

func newRegistry() *breaker.Registry {
	return breaker.NewRegistry(config.Default().Breakers)
}

func TestIndexStoreOpensPerPartition(t *testing.T) {
	ctx := context.Background()
	inner := &failingIndex{err: &core.TransientError{Op: "search", Err: errors.New("refused")}}
	registry := newRegistry()
	g := NewIndexStore(inner, registry)

	threshold := int(config.Default().Breakers.InternalService.FailureThreshold)
	for range threshold {
		_, err := g.Search(ctx, "python", core.NormalizedQuery{Text: "q"}, 10)
		assert.ErrorIs(t, err, core.ErrTransient)
	}
	assert.Equal(t, "open", registry.State(breaker.InternalService, Destination("python")))

	_, err := g.Search(ctx, "python", core.NormalizedQuery{Text: "q"}, 10)
	assert.ErrorIs(t, err, core.ErrCircuitOpen)
	var open *core.CircuitOpenError
	require.ErrorAs(t, err, &open)
	assert.Equal(t, "vector-store/python", open.Destination)
	assert.Equal(t, int64(threshold), inner.calls.Load())

	// Other partitions have their own breaker.
	inner.err = nil
	res, err := g.Search(ctx, "react", core.NormalizedQuery{Text: "q"}, 10)
	require.NoError(t, err)
	assert.Equal(t, "react", res.Partition)
}

func TestIndexStoreNotFoundIsBenign(t *testing.T) {
	ctx := context.Background()
	inner := &failingIndex{err: storage.ErrNotFound}
	registry := newRegistry()
	g := NewIndexStore(inner, registry)

	for range 10 {
		assert.ErrorIs(t, g.DeleteExpired(ctx, "python", "c1"), storage.ErrNotFound)
	}
	assert.Equal(t, "closed", registry.State(breaker.InternalService, Destination("python")))
	assert.NoError(t, g.Close())
}

func TestEvaluatorGuard(t *testing.T) {
	ctx := context.Background()
	boom := &core.TransientError{Op: "llm", Err: errors.New("503")}
	evaluator := mock.NewMockEvaluator()
	evaluator.EvaluateFunc = func(context.Context, core.NormalizedQuery, *core.AggregatedResult) (*core.EvaluationVerdict, error) {
		return nil, boom
	}
	registry := newRegistry()
	provider := NewProvider(mock.NewMockProviderWithServices(evaluator, mock.NewMockStrategyProposer()), registry, "llm/test")

	threshold := int(config.Default().Breakers.ExternalAPI.FailureThreshold)
	for range threshold {
		_, err := provider.Evaluator().Evaluate(ctx, core.NormalizedQuery{}, nil)
		assert.ErrorIs(t, err, core.ErrTransient)
	}
	_, err := provider.Evaluator().Evaluate(ctx, core.NormalizedQuery{}, nil)
	assert.ErrorIs(t, err, core.ErrCircuitOpen)
	assert.Equal(t, threshold, evaluator.CallCount())

	// The proposer shares the destination, so it is open too.
	_, err = provider.StrategyProposer().ProposeStrategy(ctx, core.NormalizedQuery{}, nil)
	assert.ErrorIs(t, err, core.ErrCircuitOpen)
	assert.NoError(t, provider.Close())
}

// stubFetcher returns err for every fetch.
type stubFetcher struct {
	kind  core.SourceKind
	err   error
	calls atomic.Int64
}

func (s *stubFetcher) Kind() core.SourceKind { return s.kind }

func (s *stubFetcher) Destination(target core.AcquisitionTarget) string { return target.Location }

func (s *stubFetcher) Fetch(ctx context.Context, target core.AcquisitionTarget) (acquire.RawContent, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &acquire.ManualContent{Body: "ok"}, nil
}

func TestFetcherCategories(t *testing.T) {
	registry := newRegistry()
	assert.Equal(t, breaker.ExternalAPI, NewFetcher(&stubFetcher{kind: core.SourceCodeHost}, registry).Category())
	assert.Equal(t, breaker.WebScraping, NewFetcher(&stubFetcher{kind: core.SourceWeb}, registry).Category())
}

func TestFetcherPermanentErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	inner := &stubFetcher{kind: core.SourceWeb, err: core.ErrSourceNotFound}
	registry := newRegistry()
	g := NewFetcher(inner, registry)
	target := core.AcquisitionTarget{Kind: core.SourceWeb, Location: "docs.example.com"}

	for range 5 {
		_, err := g.Fetch(ctx, target)
		assert.ErrorIs(t, err, core.ErrSourceNotFound)
	}
	assert.Equal(t, "closed", registry.State(breaker.WebScraping, "docs.example.com"))

	inner.err = &core.TransientError{Op: "get", Err: errors.New("timeout")}
	for range 3 {
		_, _ = g.Fetch(ctx, target)
	}
	assert.Equal(t, "open", registry.State(breaker.WebScraping, "docs.example.com"))
	assert.Equal(t, "docs.example.com", g.Destination(target))
	assert.Equal(t, core.SourceWeb, g.Kind())
}

func TestFetcherRequestTimeout(t *testing.T) {
	cfg := config.Default().Breakers
	cfg.WebScraping.RequestTimeout = 20 * time.Millisecond
	registry := breaker.NewRegistry(cfg)
	g := NewFetcher(&slowFetcher{}, registry)

	_, err := g.Fetch(context.Background(), core.AcquisitionTarget{Kind: core.SourceWeb, Location: "slow.example.com"})
	assert.ErrorIs(t, err, core.ErrTransient)
}

type slowFetcher struct{ stubFetcher }

func (s *slowFetcher) Kind() core.SourceKind { return core.SourceWeb }

func (s *slowFetcher) Fetch(ctx context.Context, target core.AcquisitionTarget) (acquire.RawContent, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}
