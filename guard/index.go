// Package guard decorates outbound collaborators with circuit breakers.
//
// Each decorator implements the interface it wraps, so components take the
// plain interface and never see breakers. Lookups that miss and validation
// rejections are returned to the caller without counting against the
// destination.
package guard

import (
	"context"
	"errors"
	"time"

	"github.com/poiesic/doccache/breaker"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

// vectorStore prefixes index store destinations.
const vectorStore = "vector-store"

// IndexStore routes every call through an internal-service breaker per partition.
type IndexStore struct {
	next     storage.IndexStore
	registry *breaker.Registry
}

var _ storage.IndexStore = (*IndexStore)(nil)

// NewIndexStore wraps next.
func NewIndexStore(next storage.IndexStore, registry *breaker.Registry) *IndexStore {
	return &IndexStore{next: next, registry: registry}
}

// Destination is the breaker destination of partition.
func Destination(partition string) string {
	return vectorStore + "/" + partition
}

func (g *IndexStore) Search(ctx context.Context, partition string, query core.NormalizedQuery, limit int) (*core.PartialResult, error) {
	return guarded(ctx, g.registry, breaker.InternalService, Destination(partition), func(ctx context.Context) (*core.PartialResult, error) {
		return g.next.Search(ctx, partition, query, limit)
	})
}

func (g *IndexStore) Upload(ctx context.Context, partition string, doc *storage.Document, ttl time.Duration, sourceProvider string) error {
	_, err := guarded(ctx, g.registry, breaker.InternalService, Destination(partition), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.Upload(ctx, partition, doc, ttl, sourceProvider)
	})
	return err
}

func (g *IndexStore) FindExpired(ctx context.Context, partition string, now time.Time, limit int) ([]*storage.Document, error) {
	return guarded(ctx, g.registry, breaker.InternalService, Destination(partition), func(ctx context.Context) ([]*storage.Document, error) {
		return g.next.FindExpired(ctx, partition, now, limit)
	})
}

func (g *IndexStore) DeleteExpired(ctx context.Context, partition string, contentID string) error {
	_, err := guarded(ctx, g.registry, breaker.InternalService, Destination(partition), func(ctx context.Context) (struct{}, error) {
		return struct{}{}, g.next.DeleteExpired(ctx, partition, contentID)
	})
	return err
}

func (g *IndexStore) Partitions(ctx context.Context) ([]string, error) {
	return guarded(ctx, g.registry, breaker.InternalService, vectorStore, g.next.Partitions)
}

// Close closes the wrapped store.
func (g *IndexStore) Close() error {
	return g.next.Close()
}

// guarded runs fn under the breaker, reporting benign errors as successes
// to the breaker while still returning them.
func guarded[T any](ctx context.Context, r *breaker.Registry, category breaker.Category, destination string, fn func(context.Context) (T, error)) (T, error) {
	var benignErr error
	v, err := breaker.Call(ctx, r, category, destination, func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if err != nil && benign(err) {
			benignErr = err
			return v, nil
		}
		return v, err
	})
	if err != nil {
		return v, err
	}
	return v, benignErr
}

func benign(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrPartitionRequired) ||
		errors.Is(err, storage.ErrDuplicateKey)
}
