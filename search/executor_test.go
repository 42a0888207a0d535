package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
	"github.com/poiesic/doccache/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIndex serves scripted partitions and records concurrency.
type fakeIndex struct {
	storage.IndexStore

	hits   map[string][]core.SearchHit
	errs   map[string]error
	delays map[string]time.Duration
	// ignoreCancel makes a delayed search sleep through cancellation.
	ignoreCancel bool

	inFlight atomic.Int64
	peak     atomic.Int64
}

func (f *fakeIndex) Search(ctx context.Context, partition string, q core.NormalizedQuery, limit int) (*core.PartialResult, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	if d := f.delays[partition]; d > 0 {
		if f.ignoreCancel {
			time.Sleep(d)
		} else {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err := f.errs[partition]; err != nil {
		return nil, err
	}
	return &core.PartialResult{Partition: partition, Hits: f.hits[partition]}, nil
}

func hits(partition, tech string, n int, score float64, hashPrefix string) []core.SearchHit {
	out := make([]core.SearchHit, n)
	for i := range n {
		out[i] = core.SearchHit{
			ContentID:   fmt.Sprintf("%s-%02d", partition, i),
			Title:       fmt.Sprintf("doc %d", i),
			RawScore:    score - float64(i)*0.01,
			ContentHash: fmt.Sprintf("%s%02d", hashPrefix, i),
			Technology:  tech,
		}
	}
	return out
}

func candidates(ids ...string) []core.WorkspaceCandidate {
	out := make([]core.WorkspaceCandidate, len(ids))
	for i, id := range ids {
		out[i] = core.WorkspaceCandidate{ID: id, RelevanceScore: 1, LastUpdated: time.Now()}
	}
	return out
}

func testConfig() config.Search {
	cfg := config.Default().Search
	cfg.TaskTimeout = 100 * time.Millisecond
	return cfg
}

func TestNewExecutor(t *testing.T) {
	t.Run("valid configuration", func(t *testing.T) {
		e, err := NewExecutor(&fakeIndex{}, testConfig())
		require.NoError(t, err)
		assert.NotNil(t, e)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		e, err := NewExecutor(&fakeIndex{}, testConfig(), WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, e)
	})

	t.Run("with custom logger", func(t *testing.T) {
		_, err := NewExecutor(&fakeIndex{}, testConfig(), WithLogger(slog.Default()))
		require.NoError(t, err)
	})

	t.Run("nil index store", func(t *testing.T) {
		_, err := NewExecutor(nil, testConfig())
		assert.Equal(t, ErrIndexStoreRequired, err)
	})
}

func TestExecute_TwoOfThreeSucceed(t *testing.T) {
	// "python asyncio", no technology hint, 3 candidates; two answer with 10
	// and 8 hits sharing 2 hashes, the third fails.
	a := hits("a", "python", 10, 0.9, "h")
	b := hits("b", "python", 8, 0.85, "x")
	b[0].ContentHash = a[3].ContentHash
	b[1].ContentHash = a[4].ContentHash

	index := &fakeIndex{
		hits: map[string][]core.SearchHit{"a": a, "b": b},
		errs: map[string]error{"c": errors.New("connection refused")},
	}
	e, err := NewExecutor(index, testConfig())
	require.NoError(t, err)

	result := e.Execute(context.Background(), core.NormalizedQuery{Text: "python asyncio"}, candidates("a", "b", "c"))

	assert.Len(t, result.Results, 16)
	assert.Equal(t, 18, result.TotalConsidered)
	assert.Equal(t, []string{"a", "b"}, result.Partitions)
	assert.Equal(t, []string{"c"}, result.FailedPartitions)
	assert.False(t, result.Partial)
	assert.False(t, result.NoSources)

	seen := map[string]bool{}
	for i, r := range result.Results {
		assert.False(t, seen[r.ContentHash], "duplicate hash %s", r.ContentHash)
		seen[r.ContentHash] = true
		if i > 0 {
			assert.GreaterOrEqual(t, result.Results[i-1].Score, r.Score)
		}
	}
}

func TestExecute_BoundedConcurrency(t *testing.T) {
	ids := make([]string, 12)
	delays := map[string]time.Duration{}
	for i := range ids {
		ids[i] = fmt.Sprintf("p%d", i)
		delays[ids[i]] = 20 * time.Millisecond
	}
	index := &fakeIndex{delays: delays}
	cfg := testConfig()
	e, err := NewExecutor(index, cfg)
	require.NoError(t, err)

	result := e.Execute(context.Background(), core.NormalizedQuery{Text: "q"}, candidates(ids...))
	assert.Len(t, result.Partitions, 12)
	assert.LessOrEqual(t, index.peak.Load(), int64(cfg.MaxConcurrency))
	assert.Equal(t, int64(cfg.MaxConcurrency), index.peak.Load())
}

func TestExecute_TaskTimeoutExcluded(t *testing.T) {
	index := &fakeIndex{
		hits:         map[string][]core.SearchHit{"fast": hits("fast", "", 3, 0.5, "f"), "slow": hits("slow", "", 3, 0.9, "s")},
		delays:       map[string]time.Duration{"slow": 500 * time.Millisecond},
		ignoreCancel: true,
	}
	e, err := NewExecutor(index, testConfig())
	require.NoError(t, err)

	start := time.Now()
	result := e.Execute(context.Background(), core.NormalizedQuery{Text: "q"}, candidates("fast", "slow"))
	assert.Less(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, []string{"slow"}, result.FailedPartitions)
	assert.Len(t, result.Results, 3)
	assert.False(t, result.Partial, "a per-task timeout is not a deadline overrun")
}

func TestExecute_AbandonedSearchesHoldSlots(t *testing.T) {
	ids := []string{"p0", "p1", "p2", "p3", "p4", "p5"}
	delays := map[string]time.Duration{}
	for _, id := range ids {
		delays[id] = 300 * time.Millisecond
	}
	index := &fakeIndex{delays: delays, ignoreCancel: true}
	cfg := testConfig()
	cfg.MaxConcurrency = 2
	cfg.TaskTimeout = 30 * time.Millisecond
	e, err := NewExecutor(index, cfg)
	require.NoError(t, err)

	result := e.Execute(context.Background(), core.NormalizedQuery{Text: "q"}, candidates(ids...))
	assert.Len(t, result.FailedPartitions, len(ids))
	assert.True(t, result.NoSources)
	assert.Equal(t, int64(2), index.peak.Load(), "timed-out searches still count against the limit")

	assert.Eventually(t, func() bool { return index.inFlight.Load() == 0 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(2), index.peak.Load())
}

func TestExecute_DeadlinePartial(t *testing.T) {
	index := &fakeIndex{
		hits:   map[string][]core.SearchHit{"fast": hits("fast", "", 2, 0.5, "f")},
		delays: map[string]time.Duration{"slow": time.Second},
	}
	cfg := testConfig()
	cfg.TaskTimeout = 2 * time.Second
	e, err := NewExecutor(index, cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	result := e.Execute(ctx, core.NormalizedQuery{Text: "q"}, candidates("fast", "slow"))
	assert.True(t, result.Partial)
	assert.Len(t, result.Results, 2)
	assert.Equal(t, []string{"slow"}, result.FailedPartitions)
}

func TestExecute_NoCandidates(t *testing.T) {
	e, err := NewExecutor(&fakeIndex{}, testConfig())
	require.NoError(t, err)
	result := e.Execute(context.Background(), core.NormalizedQuery{Text: "q"}, nil)
	assert.True(t, result.NoSources)
	assert.NotNil(t, result.Results)
	assert.Empty(t, result.Results)
}

// recordingMonitor captures hook calls.
type recordingMonitor struct {
	mu       sync.Mutex
	started  bool
	finished []string
	failed   []string
	result   *core.AggregatedResult
}

func (m *recordingMonitor) Start(core.NormalizedQuery, []core.WorkspaceCandidate) { m.started = true }
func (m *recordingMonitor) TaskFinished(p string, _ int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, p)
}
func (m *recordingMonitor) TaskFailed(p string, _ error, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = append(m.failed, p)
}
func (m *recordingMonitor) Finish(r *core.AggregatedResult) { m.result = r }

func TestExecuteWithMonitor(t *testing.T) {
	index := &fakeIndex{errs: map[string]error{"bad": errors.New("boom")}}
	e, err := NewExecutor(index, testConfig())
	require.NoError(t, err)

	m := &recordingMonitor{}
	result := e.ExecuteWithMonitor(context.Background(), core.NormalizedQuery{Text: "q"}, candidates("good", "bad"), m)
	assert.True(t, m.started)
	assert.Equal(t, []string{"good"}, m.finished)
	assert.Equal(t, []string{"bad"}, m.failed)
	assert.Same(t, result, m.result)
}

func TestExecute_Badger(t *testing.T) {
	ctx := context.Background()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	defer stores.Close()

	for i, body := range []string{"asyncio event loop basics", "asyncio tasks and the event loop"} {
		doc := &storage.Document{
			ContentID:   fmt.Sprintf("doc-%d", i),
			Title:       "asyncio",
			Body:        body,
			ContentHash: fmt.Sprintf("hash-%d", i),
			Technology:  "python",
		}
		require.NoError(t, stores.Index.Upload(ctx, "python", doc, time.Hour, "test"))
	}

	e, err := NewExecutor(stores.Index, testConfig())
	require.NoError(t, err)
	result := e.Execute(ctx, core.NormalizedQuery{Text: "asyncio event loop", Technology: "python"}, candidates("python", "empty"))
	require.Len(t, result.Results, 2)
	assert.Equal(t, []string{"python", "empty"}, result.Partitions)
	assert.InDelta(t, result.Results[0].RawScore*1.2, result.Results[0].Score, 1e-9)
}
