package badger

import (
	"context"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

// WorkspaceRepository stores workspace candidates keyed by id.
type WorkspaceRepository struct {
	backend *Backend
}

var _ storage.WorkspaceRepository = (*WorkspaceRepository)(nil)

// NewWorkspaceRepository creates a new WorkspaceRepository.
func NewWorkspaceRepository(backend *Backend) *WorkspaceRepository {
	return &WorkspaceRepository{backend: backend}
}

// ListCandidates returns every stored candidate in id order.
func (r *WorkspaceRepository) ListCandidates(ctx context.Context) ([]core.WorkspaceCandidate, error) {
	var candidates []core.WorkspaceCandidate
	err := r.backend.View(func(tx *badger.Txn) error {
		return scanPrefix(tx, []byte(workspacePrefix+keyFieldSeparator), func(_, val []byte) error {
			c, err := storage.UnmarshalCandidate(val)
			if err != nil {
				return err
			}
			candidates = append(candidates, *c)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

// PutCandidates creates or replaces candidates.
func (r *WorkspaceRepository) PutCandidates(ctx context.Context, candidates ...core.WorkspaceCandidate) error {
	for i := range candidates {
		if err := core.ValidateCandidate(&candidates[i]); err != nil {
			return fmt.Errorf("candidate %d: %w", i, err)
		}
	}
	return r.backend.Update(func(tx *badger.Txn) error {
		for i := range candidates {
			c := &candidates[i]
			if err := tx.Set(makeWorkspaceKey(c.ID), storage.MarshalCandidate(c)); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteCandidate removes a candidate. Missing ids are ignored.
func (r *WorkspaceRepository) DeleteCandidate(ctx context.Context, id string) error {
	return r.backend.Update(func(tx *badger.Txn) error {
		return tx.Delete(makeWorkspaceKey(id))
	})
}
