package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/doccache/cache"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/quality"
	"github.com/poiesic/doccache/storage"
	"github.com/poiesic/doccache/ttl"
)

// processedDocument is the payload cached under content:processed:{hash}.
type processedDocument struct {
	ContentID string    `json:"content_id"`
	Partition string    `json:"partition"`
	Quality   float64   `json:"quality"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Ingester writes canonical content into the content repository and the index.
type Ingester struct {
	content    storage.ContentRepository
	index      storage.IndexStore
	scorer     *quality.Scorer
	lifetimes  *ttl.Manager
	cache      *cache.Gateway
	workspaces storage.WorkspaceRepository
	logger     *slog.Logger
	now        func() time.Time
}

// NewIngester creates an ingester. The index store is usually breaker-guarded.
func NewIngester(content storage.ContentRepository, index storage.IndexStore, scorer *quality.Scorer, lifetimes *ttl.Manager, opts ...Option) (*Ingester, error) {
	if content == nil {
		return nil, ErrContentRepositoryRequired
	}
	if index == nil {
		return nil, ErrIndexStoreRequired
	}
	if scorer == nil {
		return nil, ErrScorerRequired
	}
	if lifetimes == nil {
		return nil, ErrTTLManagerRequired
	}
	o := buildOptions(opts)
	return &Ingester{
		content:    content,
		index:      index,
		scorer:     scorer,
		lifetimes:  lifetimes,
		cache:      o.cache,
		workspaces: o.workspaces,
		logger:     o.logger.With("component", "ingester"),
		now:        time.Now,
	}, nil
}

// Ingest stores and indexes content. It returns the record written, which for
// below-threshold content is the rejected record alongside a *core.BelowThresholdError.
// Content whose hash is already known returns core.ErrDuplicateContent.
func (i *Ingester) Ingest(ctx context.Context, content *core.CanonicalContent) (*core.ContentRecord, error) {
	if content == nil || strings.TrimSpace(content.Body) == "" {
		return nil, fmt.Errorf("%w: empty body", core.ErrMalformedContent)
	}
	if content.Partition == "" {
		return nil, fmt.Errorf("%w: no partition", core.ErrMalformedContent)
	}

	hash := quality.Fingerprint(content.Body)
	revived, err := i.checkKnown(ctx, hash)
	if err != nil {
		return nil, err
	}

	score, gateErr := i.scorer.Assess(content.Body)
	record, lifetime := i.lifetimes.Assign(content, score)

	if revived != nil {
		record.ContentID = revived.ContentID
		record.SourceID = revived.SourceID
		record.CreatedAt = revived.CreatedAt
	}
	previous, err := i.supersedes(ctx, record, revived != nil)
	if err != nil {
		return nil, err
	}

	if gateErr != nil {
		record.Status = core.StatusRejected
		if err := i.store(ctx, record, revived != nil); err != nil {
			i.logger.Warn("failed to record rejected content", "content_id", record.ContentID, "err", err)
		}
		return record, gateErr
	}

	if err := i.store(ctx, record, revived != nil); err != nil {
		return nil, err
	}

	doc := &storage.Document{
		ContentID:      record.ContentID,
		Title:          content.Title,
		Body:           content.Body,
		ContentHash:    hash,
		Technology:     content.Technology,
		DocumentType:   content.DocumentType,
		SourceProvider: content.SourceProvider,
		Partition:      content.Partition,
		CreatedAt:      record.CreatedAt,
		ExpiresAt:      record.ExpiresAt,
	}
	if err := i.index.Upload(ctx, content.Partition, doc, lifetime, content.SourceProvider); err != nil {
		if statusErr := i.content.UpdateStatus(context.WithoutCancel(ctx), record.ContentID, core.StatusFailed); statusErr != nil {
			i.logger.Warn("failed to mark content failed", "content_id", record.ContentID, "err", statusErr)
		}
		record.Status = core.StatusFailed
		return record, fmt.Errorf("indexing %s: %w", record.ContentID, err)
	}

	if err := i.content.UpdateStatus(ctx, record.ContentID, core.StatusProcessed); err != nil {
		return record, fmt.Errorf("marking %s processed: %w", record.ContentID, err)
	}
	record.Status = core.StatusProcessed

	if previous != nil {
		i.retire(ctx, previous)
	}
	i.remember(ctx, record, lifetime)
	i.register(ctx, record)

	i.logger.Info("content ingested",
		"content_id", record.ContentID,
		"partition", record.Partition,
		"quality", score,
		"ttl", lifetime)
	return record, nil
}

// checkKnown reports content already seen by hash. A processed cache hit
// answers without touching the repository. Expired and failed records are
// returned for renewal.
func (i *Ingester) checkKnown(ctx context.Context, hash string) (*core.ContentRecord, error) {
	if i.cache != nil {
		if doc, ok, _ := cache.GetJSON[processedDocument](ctx, i.cache, cache.Key(cache.ProcessedContent, hash)); ok {
			return nil, fmt.Errorf("%w: %s matches %s", core.ErrDuplicateContent, hash, doc.ContentID)
		}
	}

	existing, err := i.content.FindByHash(ctx, hash)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("dedup lookup: %w", err)
	case existing.Status == core.StatusRejected:
		return nil, &core.BelowThresholdError{Score: existing.QualityScore, Threshold: i.scorer.Threshold()}
	case existing.Status == core.StatusExpired || existing.Status == core.StatusFailed:
		return existing, nil
	default:
		return nil, fmt.Errorf("%w: %s matches %s", core.ErrDuplicateContent, hash, existing.ContentID)
	}
}

// supersedes returns the processed revision of record's source that record
// replaces. A new record whose id is taken gets an id suffixed with its hash.
func (i *Ingester) supersedes(ctx context.Context, record *core.ContentRecord, renew bool) (*core.ContentRecord, error) {
	current, err := i.content.FindCurrent(ctx, record.SourceID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		current = nil
	case err != nil:
		return nil, fmt.Errorf("revision lookup: %w", err)
	case current.ContentID == record.ContentID:
		current = nil
	}
	if renew {
		return current, nil
	}

	_, err = i.content.Get(ctx, record.ContentID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("revision lookup: %w", err)
	default:
		record.ContentID = record.SourceID + "-" + record.Hash[:8]
	}
	return current, nil
}

func (i *Ingester) store(ctx context.Context, record *core.ContentRecord, renew bool) error {
	if renew {
		return i.content.Renew(ctx, record)
	}
	err := i.content.Insert(ctx, record)
	if errors.Is(err, storage.ErrDuplicateKey) {
		return fmt.Errorf("%w: %s", core.ErrDuplicateContent, record.Hash)
	}
	return err
}

// retire expires a superseded record and drops it from the index.
func (i *Ingester) retire(ctx context.Context, previous *core.ContentRecord) {
	if previous.Status != core.StatusProcessed {
		return
	}
	if err := i.index.DeleteExpired(ctx, previous.Partition, previous.ContentID); err != nil && !errors.Is(err, storage.ErrNotFound) {
		i.logger.Warn("failed to drop superseded content", "content_id", previous.ContentID, "err", err)
	}
	if err := i.content.UpdateStatus(ctx, previous.ContentID, core.StatusExpired); err != nil {
		i.logger.Warn("failed to expire superseded content", "content_id", previous.ContentID, "err", err)
	}
}

func (i *Ingester) remember(ctx context.Context, record *core.ContentRecord, lifetime time.Duration) {
	if i.cache == nil {
		return
	}
	keep := min(i.cache.TTLFor(cache.ProcessedContent), lifetime)
	cache.SetJSON(ctx, i.cache, cache.Key(cache.ProcessedContent, record.Hash), processedDocument{
		ContentID: record.ContentID,
		Partition: record.Partition,
		Quality:   record.QualityScore,
		ExpiresAt: record.ExpiresAt,
	}, keep)
}

// register upserts the partition as a workspace candidate. Relevance only grows.
func (i *Ingester) register(ctx context.Context, record *core.ContentRecord) {
	if i.workspaces == nil {
		return
	}
	candidate := core.WorkspaceCandidate{
		ID:             record.Partition,
		Technology:     record.Technology,
		RelevanceScore: record.QualityScore,
		LastUpdated:    i.now().UTC(),
	}
	existing, err := i.workspaces.ListCandidates(ctx)
	if err != nil {
		i.logger.Warn("failed to list workspace candidates", "err", err)
		return
	}
	for _, c := range existing {
		if c.ID != candidate.ID {
			continue
		}
		candidate.RelevanceScore = max(c.RelevanceScore, candidate.RelevanceScore)
		if candidate.Technology == "" {
			candidate.Technology = c.Technology
		}
		break
	}
	if err := i.workspaces.PutCandidates(ctx, candidate); err != nil {
		i.logger.Warn("failed to register workspace candidate", "partition", candidate.ID, "err", err)
	}
}
