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

package storage

import (
	"context"
	"time"

	"github.com/poiesic/doccache/core"
)

// CacheStore is the key-value collaborator behind the cache gateway.
// Implementations enforce entry expiry themselves.
type CacheStore interface {
	// Get returns the entry stored under key.
	// Returns ErrNotFound if the key is absent or expired.
	Get(ctx context.Context, key string) (*core.CacheEntry, error)

	// Set stores entry under entry.Key until entry.ExpiresAt, replacing any previous value.
	Set(ctx context.Context, entry *core.CacheEntry) error

	// Delete removes keys. Missing keys are ignored.
	Delete(ctx context.Context, keys ...string) error

	// Increment atomically adds one to the counter under key and returns the new value.
	// A new counter expires after ttl; incrementing does not extend it.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Touch increments the entry's access count without changing its expiry.
	// Returns ErrNotFound if the key is absent or expired.
	Touch(ctx context.Context, key string) error

	// Close releases resources.
	Close() error
}

// Document is one unit of content held by an index partition.
type Document struct {
	ContentID      string
	Title          string
	Body           string
	ContentHash    string
	Technology     string
	DocumentType   core.DocumentType
	SourceProvider string
	Partition      string
	CreatedAt      time.Time
	ExpiresAt      time.Time
}

// IndexStore is the vector/index collaborator holding searchable partitions.
// The engine computes TTLs; the store only records them.
type IndexStore interface {
	// Search returns at most limit hits for query from partition, best first.
	Search(ctx context.Context, partition string, query core.NormalizedQuery, limit int) (*core.PartialResult, error)

	// Upload indexes doc in partition, expiring ttl from now.
	// Content with the same hash in the same partition is replaced.
	Upload(ctx context.Context, partition string, doc *Document, ttl time.Duration, sourceProvider string) error

	// FindExpired returns up to limit documents in partition whose expiry is at or before now,
	// oldest expiry first.
	FindExpired(ctx context.Context, partition string, now time.Time, limit int) ([]*Document, error)

	// DeleteExpired removes a document and its index entries.
	// Returns ErrNotFound if the document doesn't exist.
	DeleteExpired(ctx context.Context, partition string, contentID string) error

	// Partitions lists every partition holding at least one document.
	Partitions(ctx context.Context) ([]string, error)

	// Close releases resources.
	Close() error
}

// ContentRepository persists ContentRecords. Hash is unique across records.
type ContentRepository interface {
	// Get retrieves a record by content id.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, contentID string) (*core.ContentRecord, error)

	// FindByHash retrieves the record holding hash.
	// Returns ErrNotFound if no record has the hash.
	FindByHash(ctx context.Context, hash string) (*core.ContentRecord, error)

	// FindCurrent retrieves the newest processed record of sourceID.
	// Returns ErrNotFound if the source has no processed record.
	FindCurrent(ctx context.Context, sourceID string) (*core.ContentRecord, error)

	// Insert adds a new record. An empty SourceID defaults to ContentID.
	// Returns ErrDuplicateKey if the id or hash already exists.
	Insert(ctx context.Context, record *core.ContentRecord) error

	// Renew rewrites the mutable fields of the record with record.ContentID:
	// descriptive fields, scores, status and expiry. Hash and CreatedAt are kept.
	// Returns ErrNotFound if the record doesn't exist.
	Renew(ctx context.Context, record *core.ContentRecord) error

	// UpdateStatus moves a record to status and touches UpdatedAt.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateStatus(ctx context.Context, contentID string, status core.ProcessingStatus) error

	// UpdateScores replaces quality and freshness scores.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateScores(ctx context.Context, contentID string, quality, freshness float64) error

	// ApplyFeedback adds delta to the quality score, clamped to [0,1], and
	// returns the updated record. A processed record driven to zero becomes rejected.
	ApplyFeedback(ctx context.Context, contentID string, delta float64) (*core.ContentRecord, error)

	// FindExpired returns up to limit processed records in partition whose expiry
	// is at or before now. An empty partition matches every partition.
	FindExpired(ctx context.Context, partition string, now time.Time, limit int) ([]*core.ContentRecord, error)

	// ListLive returns up to limit processed records not expired at now whose
	// content id sorts after after, in content id order.
	ListLive(ctx context.Context, now time.Time, after string, limit int) ([]*core.ContentRecord, error)

	// Close releases resources.
	Close() error
}

// WorkspaceRepository is the mapping collaborator that knows which partitions exist.
type WorkspaceRepository interface {
	// ListCandidates returns every known workspace candidate.
	ListCandidates(ctx context.Context) ([]core.WorkspaceCandidate, error)

	// PutCandidates creates or replaces candidates by ID.
	PutCandidates(ctx context.Context, candidates ...core.WorkspaceCandidate) error
}
