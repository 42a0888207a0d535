package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/poiesic/doccache/acquire"
	"github.com/poiesic/doccache/ai/mock"
	"github.com/poiesic/doccache/cache"
	"github.com/poiesic/doccache/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testFetcher serves markdown pages by URL and fails for the rest.
type testFetcher struct {
	pages    map[string]string
	failures map[string]error
	calls    atomic.Int64
}

func (f *testFetcher) Kind() core.SourceKind { return core.SourceWeb }

func (f *testFetcher) Destination(target core.AcquisitionTarget) string { return "docs.example.com" }

func (f *testFetcher) Fetch(ctx context.Context, target core.AcquisitionTarget) (acquire.RawContent, error) {
	f.calls.Add(1)
	if err, ok := f.failures[target.Location]; ok {
		return nil, err
	}
	body, ok := f.pages[target.Location]
	if !ok {
		return nil, &acquire.StatusError{URL: target.Location, Code: 404}
	}
	return &acquire.ScrapedContent{URL: target.Location, StatusCode: 200, ContentType: "text/markdown", Body: []byte(body)}, nil
}

func webTarget(url string) core.AcquisitionTarget {
	return core.AcquisitionTarget{Kind: core.SourceWeb, Location: url, Technology: "python"}
}

func TestNewWorkflow_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewWorkflow(nil, env.ingester(t, nil), nil, nil)
	assert.ErrorIs(t, err, ErrProposerRequired)
	_, err = NewWorkflow(mock.NewMockStrategyProposer(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrIngesterRequired)
}

func TestWorkflow_Run(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	fetcher := &testFetcher{
		pages: map[string]string{
			"https://docs.example.com/asyncio": richDoc,
			"https://docs.example.com/copy":    richDoc,
			"https://docs.example.com/thin":    "just a sentence",
		},
	}
	proposer := mock.NewMockStrategyProposer(
		webTarget("https://docs.example.com/asyncio"),
		webTarget("https://docs.example.com/copy"),
		webTarget("https://docs.example.com/thin"),
		webTarget("https://docs.example.com/missing"),
		core.AcquisitionTarget{Kind: core.SourceCodeHost, Location: "python/cpython/README.rst"},
	)
	wf, err := NewWorkflow(proposer, env.ingester(t, nil), acquire.NewNormalizer("general"), []acquire.Fetcher{fetcher}, WithCache(env.gateway))
	require.NoError(t, err)

	q := core.NormalizedQuery{Text: "python asyncio", Hash: "qh"}
	env.gateway.Set(ctx, cache.Key(cache.SearchResults, q.Hash), []byte("old"), env.gateway.TTLFor(cache.SearchResults))
	env.gateway.Set(ctx, cache.Key(cache.SearchStale, q.Hash), []byte("old"), env.gateway.TTLFor(cache.SearchStale))

	report, err := wf.Run(ctx, &Job{ID: "job-1", Query: q, Verdict: &core.EvaluationVerdict{NeedsEnrichment: true}})
	require.NoError(t, err)
	assert.Equal(t, "job-1", report.JobID)
	assert.Equal(t, 5, report.Targets)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 1, report.Duplicates)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 2, report.Failed)
	assert.Len(t, report.ContentIDs, 1)
	assert.Equal(t, 1, proposer.CallCount())

	_, hit, err := env.gateway.Get(ctx, cache.Key(cache.SearchResults, q.Hash))
	require.NoError(t, err)
	assert.False(t, hit, "fresh results are invalidated")
	_, hit, err = env.gateway.Get(ctx, cache.Key(cache.SearchStale, q.Hash))
	require.NoError(t, err)
	assert.True(t, hit, "stale copy survives")

	record, err := env.repo.Get(ctx, report.ContentIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "python", record.Partition)
	assert.Equal(t, "web:docs.example.com", record.SourceProvider)
}

func TestWorkflow_UsesGivenStrategy(t *testing.T) {
	env := newTestEnv(t)
	fetcher := &testFetcher{pages: map[string]string{"https://docs.example.com/asyncio": richDoc}}
	proposer := mock.NewMockStrategyProposer()
	wf, err := NewWorkflow(proposer, env.ingester(t, nil), nil, []acquire.Fetcher{fetcher})
	require.NoError(t, err)

	report, err := wf.Run(context.Background(), &Job{
		Strategy: &core.EnrichmentStrategy{
			Technology: "python",
			Targets:    []core.AcquisitionTarget{{Kind: core.SourceWeb, Location: "https://docs.example.com/asyncio"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 0, proposer.CallCount())

	record, err := env.repo.Get(context.Background(), report.ContentIDs[0])
	require.NoError(t, err)
	assert.Equal(t, "python", record.Technology, "strategy technology fills the target")
}

func TestWorkflow_ProposerError(t *testing.T) {
	env := newTestEnv(t)
	proposer := mock.NewMockStrategyProposer()
	proposer.ProposeStrategyFunc = func(context.Context, core.NormalizedQuery, *core.EvaluationVerdict) (*core.EnrichmentStrategy, error) {
		return nil, errors.New("llm down")
	}
	wf, err := NewWorkflow(proposer, env.ingester(t, nil), nil, nil)
	require.NoError(t, err)

	_, err = wf.Run(context.Background(), &Job{})
	assert.ErrorContains(t, err, "llm down")
}

func TestWorkflow_AcquireRetriesTransient(t *testing.T) {
	env := newTestEnv(t)
	target := webTarget("https://docs.example.com/flaky")
	fetcher := &testFetcher{failures: map[string]error{
		target.Location: &core.TransientError{Op: "fetch", Err: errors.New("connection reset")},
	}}
	wf, err := NewWorkflow(mock.NewMockStrategyProposer(), env.ingester(t, nil), nil, []acquire.Fetcher{fetcher}, WithFetchAttempts(3))
	require.NoError(t, err)

	_, err = wf.Acquire(context.Background(), target)
	assert.ErrorIs(t, err, core.ErrTransient)
	assert.EqualValues(t, 3, fetcher.calls.Load())

	fetcher.calls.Store(0)
	_, err = wf.Acquire(context.Background(), webTarget("https://docs.example.com/gone"))
	assert.ErrorIs(t, err, core.ErrSourceNotFound)
	assert.EqualValues(t, 1, fetcher.calls.Load(), "permanent failures are not retried")
}

func TestWorkflow_IngestRaw(t *testing.T) {
	env := newTestEnv(t)
	wf, err := NewWorkflow(mock.NewMockStrategyProposer(), env.ingester(t, nil), acquire.NewNormalizer("general"), nil)
	require.NoError(t, err)

	record, err := wf.IngestRaw(context.Background(), &acquire.ManualContent{Body: richDoc}, core.AcquisitionTarget{Kind: core.SourceManual})
	require.NoError(t, err)
	assert.Equal(t, "general", record.Partition)
	assert.Equal(t, "asyncio", record.Title)
	assert.Equal(t, "manual", record.SourceProvider)
}
