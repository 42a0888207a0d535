package badger

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

// CacheStore is a storage.CacheStore on badger. Entries carry a native
// badger TTL, and reads also check the envelope expiry since badger
// expires at second granularity.
type CacheStore struct {
	backend *Backend
	now     func() time.Time
	mu      sync.Mutex // serializes read-modify-write of counters and access counts
}

var _ storage.CacheStore = (*CacheStore)(nil)

// NewCacheStore creates a new CacheStore.
func NewCacheStore(backend *Backend) *CacheStore {
	return &CacheStore{backend: backend, now: time.Now}
}

// Close is a no-op; the backend is closed by its owner.
func (s *CacheStore) Close() error {
	return nil
}

// Get returns the entry stored under key.
func (s *CacheStore) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	var entry *core.CacheEntry
	err := s.backend.View(func(tx *badger.Txn) error {
		var err error
		entry, err = s.read(tx, key)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Set stores entry until entry.ExpiresAt. An already-expired entry deletes the key.
func (s *CacheStore) Set(ctx context.Context, entry *core.CacheEntry) error {
	if err := core.ValidateCacheEntry(entry); err != nil {
		return err
	}
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, entry.Key)
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		return s.write(tx, entry, ttl)
	})
}

// Delete removes keys. Missing keys are ignored.
func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.backend.Update(func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(makeCacheKey(key)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Increment adds one to the counter under key. Counters are stored as
// envelopes with a decimal value.
func (s *CacheStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var count int64
	err := s.backend.Update(func(tx *badger.Txn) error {
		now := s.now()
		entry, err := s.read(tx, key)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			entry = &core.CacheEntry{Key: key, CreatedAt: now, ExpiresAt: now.Add(ttl)}
			count = 0
		case err != nil:
			return err
		default:
			count, err = strconv.ParseInt(string(entry.Value), 10, 64)
			if err != nil {
				return storage.ErrSerializationFailed
			}
		}
		count++
		entry.Value = []byte(strconv.FormatInt(count, 10))
		return s.write(tx, entry, entry.ExpiresAt.Sub(now))
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Touch increments the entry's access count, preserving its expiry.
func (s *CacheStore) Touch(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.backend.Update(func(tx *badger.Txn) error {
		entry, err := s.read(tx, key)
		if err != nil {
			return err
		}
		entry.AccessCount++
		return s.write(tx, entry, entry.ExpiresAt.Sub(s.now()))
	})
}

func (s *CacheStore) read(tx *badger.Txn, key string) (*core.CacheEntry, error) {
	val, err := getValue(tx, makeCacheKey(key))
	if err != nil {
		return nil, err
	}
	entry, err := storage.UnmarshalCacheEntry(val)
	if err != nil {
		return nil, err
	}
	if entry.Expired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return entry, nil
}

func (s *CacheStore) write(tx *badger.Txn, entry *core.CacheEntry, ttl time.Duration) error {
	if ttl <= 0 {
		return tx.Delete(makeCacheKey(entry.Key))
	}
	// badger TTLs are whole seconds; round up so the envelope expires first
	if rem := ttl % time.Second; rem != 0 {
		ttl += time.Second - rem
	}
	e := badger.NewEntry(makeCacheKey(entry.Key), storage.MarshalCacheEntry(entry)).WithTTL(ttl)
	return tx.SetEntry(e)
}
