package badger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *IndexStore {
	t.Helper()
	stores, err := NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores.Index
}

func testDoc(id, title, body string) *storage.Document {
	return &storage.Document{
		ContentID:   id,
		Title:       title,
		Body:        body,
		ContentHash: "hash-" + id,
		Technology:  "python",
	}
}

func normalized(text string) core.NormalizedQuery {
	return core.NormalizedQuery{Raw: text, Text: text}
}

func TestIndexStore_UploadSearch(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	require.NoError(t, idx.Upload(ctx, "python-docs", testDoc("a", "asyncio", "The asyncio event loop runs coroutines."), time.Hour, "web"))
	require.NoError(t, idx.Upload(ctx, "python-docs", testDoc("b", "threading", "Threads share memory. Unlike asyncio."), time.Hour, "web"))
	require.NoError(t, idx.Upload(ctx, "python-docs", testDoc("c", "packaging", "Wheels and sdists."), time.Hour, "web"))
	require.NoError(t, idx.Upload(ctx, "rust-docs", testDoc("d", "asyncio", "Not this partition."), time.Hour, "web"))

	result, err := idx.Search(ctx, "python-docs", normalized("python asyncio"), 10)
	require.NoError(t, err)
	assert.Equal(t, "python-docs", result.Partition)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, "a", result.Hits[0].ContentID, "title match ranks first")
	assert.Equal(t, "b", result.Hits[1].ContentID)
	assert.Equal(t, "hash-a", result.Hits[0].ContentHash)
	assert.Equal(t, result.Hits[0].Score, result.Hits[0].RawScore)
	assert.Contains(t, result.Hits[0].Snippet, "asyncio")

	limited, err := idx.Search(ctx, "python-docs", normalized("asyncio"), 1)
	require.NoError(t, err)
	assert.Len(t, limited.Hits, 1)
}

func TestIndexStore_Search_Validation(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	_, err := idx.Search(ctx, "", normalized("x"), 10)
	assert.ErrorIs(t, err, storage.ErrPartitionRequired)
	_, err = idx.Search(ctx, "a:b", normalized("x"), 10)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
	_, err = idx.Search(ctx, "p", normalized("x"), 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestIndexStore_Search_Cancelled(t *testing.T) {
	idx := newTestIndex(t)
	require.NoError(t, idx.Upload(context.Background(), "p", testDoc("a", "x", "x"), time.Hour, "web"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := idx.Search(ctx, "p", normalized("x"), 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIndexStore_Upload_ReplacesSameHash(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	first := testDoc("a", "asyncio", "event loop")
	require.NoError(t, idx.Upload(ctx, "p", first, time.Hour, "web"))

	second := testDoc("a2", "asyncio", "event loop")
	second.ContentHash = first.ContentHash
	require.NoError(t, idx.Upload(ctx, "p", second, time.Hour, "code-host"))

	result, err := idx.Search(ctx, "p", normalized("asyncio"), 10)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1)
	assert.Equal(t, "a2", result.Hits[0].ContentID)
	assert.Equal(t, "code-host", second.SourceProvider)
}

func TestIndexStore_ExpiryLifecycle(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)
	base := time.Now().UTC()
	idx.now = func() time.Time { return base }

	require.NoError(t, idx.Upload(ctx, "p", testDoc("short", "asyncio", "asyncio"), time.Minute, "web"))
	require.NoError(t, idx.Upload(ctx, "p", testDoc("mid", "asyncio", "asyncio"), 2*time.Minute, "web"))
	require.NoError(t, idx.Upload(ctx, "p", testDoc("long", "asyncio", "asyncio"), time.Hour, "web"))

	later := base.Add(2 * time.Minute)
	idx.now = func() time.Time { return later }

	expired, err := idx.FindExpired(ctx, "p", later, 0)
	require.NoError(t, err)
	require.Len(t, expired, 2)
	assert.Equal(t, "short", expired[0].ContentID, "oldest expiry first")
	assert.Equal(t, "mid", expired[1].ContentID)

	limited, err := idx.FindExpired(ctx, "p", later, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	result, err := idx.Search(ctx, "p", normalized("asyncio"), 10)
	require.NoError(t, err)
	require.Len(t, result.Hits, 1, "expired documents are not searchable")
	assert.Equal(t, "long", result.Hits[0].ContentID)

	require.NoError(t, idx.DeleteExpired(ctx, "p", "short"))
	assert.ErrorIs(t, idx.DeleteExpired(ctx, "p", "short"), storage.ErrNotFound)

	expired, err = idx.FindExpired(ctx, "p", later, 0)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "mid", expired[0].ContentID)
}

func TestIndexStore_Partitions(t *testing.T) {
	ctx := context.Background()
	idx := newTestIndex(t)

	for _, p := range []string{"react", "go", "go-ext", "react"} {
		doc := testDoc(p+"-"+strings.Repeat("x", len(p)), "t", "b")
		doc.ContentHash = doc.ContentID
		require.NoError(t, idx.Upload(ctx, p, doc, time.Hour, "web"))
	}

	partitions, err := idx.Partitions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"go", "go-ext", "react"}, partitions)
}

func TestSnippet(t *testing.T) {
	body := strings.Repeat("filler ", 100) + "asyncio appears here" + strings.Repeat(" tail", 100)
	s := snippet(body, "asyncio")
	assert.Contains(t, s, "asyncio appears here")
	assert.LessOrEqual(t, len(s), snippetLength)

	assert.Equal(t, "short", snippet("short", "missing"))
	assert.NotPanics(t, func() { snippet(strings.Repeat("é", 300), "x") })
}
