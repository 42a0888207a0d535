package ttl

import (
	"context"
	"errors"
	"math"

	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

// CleanupReport counts the outcome of a cleanup run.
type CleanupReport struct {
	Partition string
	Deleted   int
	Failed    int
	Batches   int
}

// FindExpired returns up to limit documents in partition that have expired.
func (m *Manager) FindExpired(ctx context.Context, partition string, limit int) ([]*storage.Document, error) {
	if m.index == nil {
		return nil, ErrIndexStoreRequired
	}
	return m.index.FindExpired(ctx, partition, m.now(), limit)
}

// CleanupExpired deletes expired documents from partition in batches of batchSize.
// A failed deletion is counted and skipped. The run ends when a batch comes
// back short, when any deletion in a batch fails (the rest wait for the next
// run), or when ctx is done.
func (m *Manager) CleanupExpired(ctx context.Context, partition string, batchSize int) (CleanupReport, error) {
	report := CleanupReport{Partition: partition}
	if m.index == nil {
		return report, ErrIndexStoreRequired
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	for {
		docs, err := m.FindExpired(ctx, partition, batchSize)
		if err != nil {
			return report, err
		}
		if len(docs) == 0 {
			return report, nil
		}
		report.Batches++

		failed := 0
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := m.index.DeleteExpired(ctx, partition, doc.ContentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
				failed++
				report.Failed++
				m.logger.Warn("failed to delete expired document", "partition", partition, "content_id", doc.ContentID, "err", err)
				continue
			}
			report.Deleted++
			m.markExpired(ctx, doc.ContentID)
		}

		m.logger.Debug("cleanup batch complete", "partition", partition, "batch", report.Batches, "size", len(docs), "failed", failed)
		if failed > 0 || len(docs) < batchSize {
			return report, nil
		}
	}
}

func (m *Manager) markExpired(ctx context.Context, contentID string) {
	if m.content == nil {
		return
	}
	err := m.content.UpdateStatus(ctx, contentID, core.StatusExpired)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.logger.Warn("failed to mark content record expired", "content_id", contentID, "err", err)
	}
}

// ExpireRecords moves processed content records past their expiry to expired,
// in batches, for records that have no index document left to delete.
// An empty partition covers every partition.
func (m *Manager) ExpireRecords(ctx context.Context, partition string, batchSize int) (CleanupReport, error) {
	report := CleanupReport{Partition: partition}
	if m.content == nil {
		return report, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	for {
		records, err := m.content.FindExpired(ctx, partition, m.now(), batchSize)
		if err != nil {
			return report, err
		}
		if len(records) == 0 {
			return report, nil
		}
		report.Batches++

		failed := 0
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			if err := m.content.UpdateStatus(ctx, rec.ContentID, core.StatusExpired); err != nil {
				failed++
				report.Failed++
				m.logger.Warn("failed to expire content record", "content_id", rec.ContentID, "err", err)
				continue
			}
			report.Deleted++
		}
		if failed > 0 || len(records) < batchSize {
			return report, nil
		}
	}
}

// freshnessStep is the smallest freshness change worth writing back.
const freshnessStep = 0.01

// RefreshFreshness rewrites the freshness score of every live processed record
// to the fraction of its lifetime left, walking records in batches of
// batchSize. It returns how many records changed.
func (m *Manager) RefreshFreshness(ctx context.Context, batchSize int) (int, error) {
	if m.content == nil {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	now := m.now()
	updated := 0
	after := ""
	for {
		records, err := m.content.ListLive(ctx, now, after, batchSize)
		if err != nil {
			return updated, err
		}
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				return updated, err
			}
			after = rec.ContentID
			fresh := Freshness(rec, now)
			if math.Abs(fresh-rec.FreshnessScore) < freshnessStep {
				continue
			}
			if err := m.content.UpdateScores(ctx, rec.ContentID, rec.QualityScore, fresh); err != nil {
				m.logger.Warn("failed to refresh freshness", "content_id", rec.ContentID, "err", err)
				continue
			}
			updated++
		}
		if len(records) < batchSize {
			return updated, nil
		}
	}
}
