package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/doccache/cache"
	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/quality"
	"github.com/poiesic/doccache/storage"
	"github.com/poiesic/doccache/storage/badger"
	"github.com/poiesic/doccache/storage/sqlite"
	"github.com/poiesic/doccache/ttl"
	"github.com/stretchr/testify/require"
)

const richDoc = "# asyncio\n\n" +
	"## Event loop\n\nThe event loop runs tasks. See [docs](https://docs.python.org/3/library/asyncio.html).\n\n" +
	"```python\nimport asyncio\n\nasync def main():\n    await asyncio.sleep(1)\n\nasyncio.run(main())\n```\n\n" +
	"## Tasks\n\nCoroutines are wrapped in tasks.\n\n### Cancellation\n\nTasks can be cancelled.\n\n## Streams\n\nHigh level networking.\n"

type testEnv struct {
	stores    *badger.MemoryStores
	repo      *sqlite.ContentRepository
	gateway   *cache.Gateway
	scorer    *quality.Scorer
	lifetimes *ttl.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	stores, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	repo, err := sqlite.NewContentRepository(context.Background(), db)
	require.NoError(t, err)

	cfg := config.Default()
	lifetimes, err := ttl.NewManager(cfg.TTL)
	require.NoError(t, err)

	return &testEnv{
		stores:    stores,
		repo:      repo,
		gateway:   cache.NewGateway(stores.Cache, cfg.Cache),
		scorer:    quality.NewScorer(cfg.Quality),
		lifetimes: lifetimes,
	}
}

func (e *testEnv) ingester(t *testing.T, index storage.IndexStore, opts ...Option) *Ingester {
	t.Helper()
	if index == nil {
		index = e.stores.Index
	}
	opts = append([]Option{WithCache(e.gateway), WithWorkspaces(e.stores.Workspaces)}, opts...)
	ing, err := NewIngester(e.repo, index, e.scorer, e.lifetimes, opts...)
	require.NoError(t, err)
	return ing
}

func canonical(id, body string) *core.CanonicalContent {
	return &core.CanonicalContent{
		ContentID:      id,
		Title:          "asyncio",
		Body:           body,
		SourceURL:      "https://docs.python.org/3/library/asyncio.html",
		SourceProvider: "web:docs.python.org",
		Technology:     "python",
		DocumentType:   core.DocumentTypeReference,
		Partition:      "python-docs",
	}
}

// failingIndex rejects uploads and passes everything else through.
type failingIndex struct {
	storage.IndexStore
}

func (f *failingIndex) Upload(context.Context, string, *storage.Document, time.Duration, string) error {
	return &core.TransientError{Op: "upload", Err: context.DeadlineExceeded}
}
