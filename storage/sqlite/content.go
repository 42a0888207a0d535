package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

const contentSchema = `
CREATE TABLE IF NOT EXISTS content_records (
	content_id      TEXT PRIMARY KEY,
	content_hash    TEXT NOT NULL UNIQUE,
	title           TEXT NOT NULL DEFAULT '',
	technology      TEXT NOT NULL DEFAULT '',
	document_type   TEXT NOT NULL DEFAULT '',
	partition_id    TEXT NOT NULL DEFAULT '',
	source_provider TEXT NOT NULL DEFAULT '',
	quality_score   REAL NOT NULL DEFAULT 0,
	freshness_score REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL,
	created_at      INTEGER NOT NULL,
	updated_at      INTEGER NOT NULL,
	expires_at      INTEGER NOT NULL,
	source_id       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_content_records_expiry ON content_records(status, expires_at);
CREATE INDEX IF NOT EXISTS idx_content_records_source ON content_records(source_id, status);
`

const contentColumns = `content_id, content_hash, title, technology, document_type, partition_id,
	source_provider, quality_score, freshness_score, status, created_at, updated_at, expires_at, source_id`

// ContentRepository stores ContentRecords in the content_records table.
// Timestamps are stored as Unix microseconds.
type ContentRepository struct {
	db  *DB
	now func() time.Time
}

var _ storage.ContentRepository = (*ContentRepository)(nil)

// NewContentRepository creates the repository and ensures its schema exists.
func NewContentRepository(ctx context.Context, db *DB) (*ContentRepository, error) {
	if _, err := db.Execute(ctx, contentSchema); err != nil {
		return nil, fmt.Errorf("ensure content schema: %w", err)
	}
	return &ContentRepository{db: db, now: time.Now}, nil
}

// Close is a no-op; the DB is closed by its owner.
func (r *ContentRepository) Close() error {
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*core.ContentRecord, error) {
	var (
		rec                           core.ContentRecord
		docType, status               string
		createdAt, updatedAt, expires int64
	)
	err := s.Scan(&rec.ContentID, &rec.Hash, &rec.Title, &rec.Technology, &docType, &rec.Partition,
		&rec.SourceProvider, &rec.QualityScore, &rec.FreshnessScore, &status, &createdAt, &updatedAt, &expires, &rec.SourceID)
	if err != nil {
		return nil, err
	}
	rec.DocumentType = core.DocumentType(docType)
	rec.Status = core.ProcessingStatus(status)
	rec.CreatedAt = time.UnixMicro(createdAt).UTC()
	rec.UpdatedAt = time.UnixMicro(updatedAt).UTC()
	rec.ExpiresAt = time.UnixMicro(expires).UTC()
	return &rec, nil
}

func (r *ContentRepository) fetch(ctx context.Context, where string, arg any) (*core.ContentRecord, error) {
	var rec *core.ContentRecord
	err := r.db.FetchOne(ctx, func(row *sql.Row) error {
		var err error
		rec, err = scanRecord(row)
		return err
	}, "SELECT "+contentColumns+" FROM content_records WHERE "+where, arg)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Get retrieves a record by content id.
func (r *ContentRepository) Get(ctx context.Context, contentID string) (*core.ContentRecord, error) {
	return r.fetch(ctx, "content_id = ?", contentID)
}

// FindByHash retrieves the record holding hash.
func (r *ContentRepository) FindByHash(ctx context.Context, hash string) (*core.ContentRecord, error) {
	return r.fetch(ctx, "content_hash = ?", hash)
}

// FindCurrent returns the newest processed record of sourceID.
func (r *ContentRepository) FindCurrent(ctx context.Context, sourceID string) (*core.ContentRecord, error) {
	var rec *core.ContentRecord
	err := r.db.FetchOne(ctx, func(row *sql.Row) error {
		var err error
		rec, err = scanRecord(row)
		return err
	}, "SELECT "+contentColumns+` FROM content_records
		WHERE source_id = ? AND status = ?
		ORDER BY created_at DESC, content_id DESC LIMIT 1`,
		sourceID, string(core.StatusProcessed))
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Insert adds a new record. Zero timestamps default to now and an empty
// SourceID defaults to ContentID.
func (r *ContentRepository) Insert(ctx context.Context, record *core.ContentRecord) error {
	now := r.now().UTC()
	if record.SourceID == "" {
		record.SourceID = record.ContentID
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = record.CreatedAt
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt
	}
	if record.Status == "" {
		record.Status = core.StatusPending
	}
	if err := core.ValidateContentRecord(record); err != nil {
		return err
	}

	_, err := r.db.Execute(ctx, "INSERT INTO content_records ("+contentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		record.ContentID, record.Hash, record.Title, record.Technology, string(record.DocumentType), record.Partition,
		record.SourceProvider, record.QualityScore, record.FreshnessScore, string(record.Status),
		record.CreatedAt.UnixMicro(), record.UpdatedAt.UnixMicro(), record.ExpiresAt.UnixMicro(), record.SourceID)
	return err
}

func (r *ContentRepository) update(ctx context.Context, query string, args ...any) error {
	n, err := r.db.Execute(ctx, query, args...)
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Renew rewrites a record in place for re-acquired content.
func (r *ContentRepository) Renew(ctx context.Context, record *core.ContentRecord) error {
	record.UpdatedAt = r.now().UTC()
	return r.update(ctx, `UPDATE content_records SET title = ?, technology = ?, document_type = ?, partition_id = ?,
		source_provider = ?, quality_score = ?, freshness_score = ?, status = ?, updated_at = ?, expires_at = ?
		WHERE content_id = ?`,
		record.Title, record.Technology, string(record.DocumentType), record.Partition, record.SourceProvider,
		clamp01(record.QualityScore), clamp01(record.FreshnessScore), string(record.Status),
		record.UpdatedAt.UnixMicro(), record.ExpiresAt.UnixMicro(), record.ContentID)
}

// UpdateStatus moves a record to status.
func (r *ContentRepository) UpdateStatus(ctx context.Context, contentID string, status core.ProcessingStatus) error {
	return r.update(ctx, "UPDATE content_records SET status = ?, updated_at = ? WHERE content_id = ?",
		string(status), r.now().UnixMicro(), contentID)
}

// UpdateScores replaces quality and freshness scores, clamped to [0,1].
func (r *ContentRepository) UpdateScores(ctx context.Context, contentID string, quality, freshness float64) error {
	return r.update(ctx, "UPDATE content_records SET quality_score = ?, freshness_score = ?, updated_at = ? WHERE content_id = ?",
		clamp01(quality), clamp01(freshness), r.now().UnixMicro(), contentID)
}

// ApplyFeedback adjusts the quality score inside a transaction.
func (r *ContentRepository) ApplyFeedback(ctx context.Context, contentID string, delta float64) (*core.ContentRecord, error) {
	var rec *core.ContentRecord
	err := r.db.ExecuteTransaction(ctx, func(tx *sql.Tx) error {
		var err error
		row := tx.QueryRowContext(ctx, "SELECT "+contentColumns+" FROM content_records WHERE content_id = ?", contentID)
		rec, err = scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}

		rec.QualityScore = clamp01(rec.QualityScore + delta)
		if rec.QualityScore == 0 && rec.Status == core.StatusProcessed {
			rec.Status = core.StatusRejected
		}
		rec.UpdatedAt = r.now().UTC().Truncate(time.Microsecond)

		_, err = tx.ExecContext(ctx, "UPDATE content_records SET quality_score = ?, status = ?, updated_at = ? WHERE content_id = ?",
			rec.QualityScore, string(rec.Status), rec.UpdatedAt.UnixMicro(), contentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindExpired returns processed records past their expiry, oldest first.
func (r *ContentRepository) FindExpired(ctx context.Context, partition string, now time.Time, limit int) ([]*core.ContentRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	var records []*core.ContentRecord
	err := r.db.FetchAll(ctx, func(rows *sql.Rows) error {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	}, "SELECT "+contentColumns+` FROM content_records
		WHERE status = ? AND expires_at <= ? AND (? = '' OR partition_id = ?)
		ORDER BY expires_at, content_id LIMIT ?`,
		string(core.StatusProcessed), now.UnixMicro(), partition, partition, limit)
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ListLive returns up to limit unexpired processed records with ids after after, in id order.
func (r *ContentRepository) ListLive(ctx context.Context, now time.Time, after string, limit int) ([]*core.ContentRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	var records []*core.ContentRecord
	err := r.db.FetchAll(ctx, func(rows *sql.Rows) error {
		rec, err := scanRecord(rows)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	}, "SELECT "+contentColumns+` FROM content_records
		WHERE status = ? AND expires_at > ? AND content_id > ?
		ORDER BY content_id LIMIT ?`,
		string(core.StatusProcessed), now.UnixMicro(), after, limit)
	if err != nil {
		return nil, err
	}
	return records, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
