package ttl

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
	badgerstore "github.com/poiesic/doccache/storage/badger"
	"github.com/poiesic/doccache/storage/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyIndex fails deletion of selected ids.
type flakyIndex struct {
	storage.IndexStore
	failIDs map[string]bool
}

func (f *flakyIndex) DeleteExpired(ctx context.Context, partition, contentID string) error {
	if f.failIDs[contentID] {
		return errors.New("vector store unavailable")
	}
	return f.IndexStore.DeleteExpired(ctx, partition, contentID)
}

func seedIndex(t *testing.T, idx storage.IndexStore, partition string, n int, ttl time.Duration) {
	t.Helper()
	for i := range n {
		id := fmt.Sprintf("%s-%02d", partition, i)
		doc := &storage.Document{ContentID: id, Title: id, Body: "body " + id, ContentHash: "h-" + id}
		require.NoError(t, idx.Upload(context.Background(), partition, doc, ttl, "web"))
	}
}

func newStores(t *testing.T) *badgerstore.MemoryStores {
	t.Helper()
	stores, err := badgerstore.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { stores.Close() })
	return stores
}

func TestFindExpired_RequiresIndex(t *testing.T) {
	m := newTestManager(t)
	_, err := m.FindExpired(context.Background(), "p", 10)
	assert.ErrorIs(t, err, ErrIndexStoreRequired)
	_, err = m.CleanupExpired(context.Background(), "p", 10)
	assert.ErrorIs(t, err, ErrIndexStoreRequired)
}

func TestCleanupExpired_Batches(t *testing.T) {
	ctx := context.Background()
	stores := newStores(t)
	seedIndex(t, stores.Index, "p", 7, time.Minute)
	seedIndex(t, stores.Index, "keep", 2, time.Minute)

	m := newTestManager(t, WithIndexStore(stores.Index))
	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	expired, err := m.FindExpired(ctx, "p", 0)
	require.NoError(t, err)
	assert.Len(t, expired, 7)

	report, err := m.CleanupExpired(ctx, "p", 3)
	require.NoError(t, err)
	assert.Equal(t, CleanupReport{Partition: "p", Deleted: 7, Failed: 0, Batches: 3}, report)

	left, err := m.FindExpired(ctx, "p", 0)
	require.NoError(t, err)
	assert.Empty(t, left)

	other, err := m.FindExpired(ctx, "keep", 0)
	require.NoError(t, err)
	assert.Len(t, other, 2, "other partitions untouched")
}

func TestCleanupExpired_NothingExpired(t *testing.T) {
	stores := newStores(t)
	seedIndex(t, stores.Index, "p", 3, time.Hour)

	m := newTestManager(t, WithIndexStore(stores.Index))
	report, err := m.CleanupExpired(context.Background(), "p", 10)
	require.NoError(t, err)
	assert.Equal(t, CleanupReport{Partition: "p"}, report)
}

func TestCleanupExpired_PartialFailure(t *testing.T) {
	ctx := context.Background()
	stores := newStores(t)
	seedIndex(t, stores.Index, "p", 4, time.Minute)

	idx := &flakyIndex{IndexStore: stores.Index, failIDs: map[string]bool{"p-01": true}}
	m := newTestManager(t, WithIndexStore(idx))
	m.now = func() time.Time { return time.Now().Add(time.Hour) }

	report, err := m.CleanupExpired(ctx, "p", 10)
	require.NoError(t, err, "one failure does not abort the batch")
	assert.Equal(t, 3, report.Deleted)
	assert.Equal(t, 1, report.Failed)

	left, err := m.FindExpired(ctx, "p", 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "p-01", left[0].ContentID)
}

func TestCleanupExpired_MarksRecordsExpired(t *testing.T) {
	ctx := context.Background()
	stores := newStores(t)
	seedIndex(t, stores.Index, "p", 2, time.Minute)

	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo, err := sqlite.NewContentRepository(ctx, db)
	require.NoError(t, err)

	now := time.Now().UTC()
	for _, id := range []string{"p-00", "p-01"} {
		require.NoError(t, repo.Insert(ctx, &core.ContentRecord{
			ContentID: id, Hash: "h-" + id, Partition: "p", Status: core.StatusProcessed,
			CreatedAt: now, ExpiresAt: now.Add(time.Minute),
		}))
	}

	m := newTestManager(t, WithIndexStore(stores.Index), WithContentRepository(repo))
	m.now = func() time.Time { return now.Add(time.Hour) }

	report, err := m.CleanupExpired(ctx, "p", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Deleted)

	for _, id := range []string{"p-00", "p-01"} {
		rec, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, core.StatusExpired, rec.Status)
	}
}

func TestExpireRecords(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo, err := sqlite.NewContentRepository(ctx, db)
	require.NoError(t, err)

	now := time.Now().UTC()
	for i := range 5 {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, repo.Insert(ctx, &core.ContentRecord{
			ContentID: id, Hash: "h" + id, Partition: "p", Status: core.StatusProcessed,
			CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
		}))
	}

	m := newTestManager(t, WithContentRepository(repo))
	m.now = func() time.Time { return now }

	report, err := m.ExpireRecords(ctx, "", 2)
	require.NoError(t, err)
	assert.Equal(t, 5, report.Deleted)
	assert.Equal(t, 3, report.Batches)

	left, err := repo.FindExpired(ctx, "", now, 0)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRefreshFreshness(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(":memory:")
	require.NoError(t, err)
	defer db.Close()
	repo, err := sqlite.NewContentRepository(ctx, db)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Microsecond)
	for i := range 3 {
		id := fmt.Sprintf("r%d", i)
		require.NoError(t, repo.Insert(ctx, &core.ContentRecord{
			ContentID: id, Hash: "h" + id, Partition: "p", Status: core.StatusProcessed,
			QualityScore: 0.7, FreshnessScore: 1,
			CreatedAt: now, ExpiresAt: now.Add(4 * time.Hour),
		}))
	}
	require.NoError(t, repo.Insert(ctx, &core.ContentRecord{
		ContentID: "gone", Hash: "hgone", Partition: "p", Status: core.StatusProcessed,
		FreshnessScore: 1, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
	}))

	m := newTestManager(t, WithContentRepository(repo))
	m.now = func() time.Time { return now }
	updated, err := m.RefreshFreshness(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, updated, "records at creation are fully fresh")

	m.now = func() time.Time { return now.Add(3 * time.Hour) }
	updated, err = m.RefreshFreshness(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	for i := range 3 {
		rec, err := repo.Get(ctx, fmt.Sprintf("r%d", i))
		require.NoError(t, err)
		assert.InDelta(t, 0.25, rec.FreshnessScore, 0.001)
		assert.InDelta(t, 0.7, rec.QualityScore, 0.001)
	}

	gone, err := repo.Get(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, 1.0, gone.FreshnessScore, "expired records are left to expiry")
}
