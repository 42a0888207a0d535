// Package redis provides a storage.CacheStore on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
	goredis "github.com/redis/go-redis/v9"
)

const maxWatchRetries = 8

// CacheStore keeps cache envelopes as Redis strings with native expiry.
// Counters written by Increment are plain Redis integers and are not
// readable through Get.
type CacheStore struct {
	client goredis.UniversalClient
	now    func() time.Time
}

var _ storage.CacheStore = (*CacheStore)(nil)

// NewCacheStore wraps an existing client.
func NewCacheStore(client goredis.UniversalClient) *CacheStore {
	return &CacheStore{client: client, now: time.Now}
}

// Dial connects to addr and verifies the connection.
func Dial(ctx context.Context, addr, password string, db int) (*CacheStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewCacheStore(client), nil
}

// Close closes the client.
func (s *CacheStore) Close() error {
	return s.client.Close()
}

// Get returns the entry stored under key.
func (s *CacheStore) Get(ctx context.Context, key string) (*core.CacheEntry, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	entry, err := storage.UnmarshalCacheEntry(data)
	if err != nil {
		return nil, err
	}
	if entry.Expired(s.now()) {
		return nil, storage.ErrNotFound
	}
	return entry, nil
}

// Set stores entry with a Redis expiry matching entry.ExpiresAt.
func (s *CacheStore) Set(ctx context.Context, entry *core.CacheEntry) error {
	if err := core.ValidateCacheEntry(entry); err != nil {
		return err
	}
	ttl := entry.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.Delete(ctx, entry.Key)
	}
	return s.client.Set(ctx, entry.Key, storage.MarshalCacheEntry(entry), ttl).Err()
}

// Delete removes keys.
func (s *CacheStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

// Increment uses INCR; the first increment of a window sets its expiry.
func (s *CacheStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, ttl).Err(); err != nil {
			return n, err
		}
	}
	return n, nil
}

// Touch bumps the access count under WATCH, keeping the key's TTL.
func (s *CacheStore) Touch(ctx context.Context, key string) error {
	touch := func(tx *goredis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, goredis.Nil) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		entry, err := storage.UnmarshalCacheEntry(data)
		if err != nil {
			return err
		}
		entry.AccessCount++
		payload := storage.MarshalCacheEntry(entry)

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.SetArgs(ctx, key, payload, goredis.SetArgs{KeepTTL: true})
			return nil
		})
		return err
	}

	var err error
	for range maxWatchRetries {
		err = s.client.Watch(ctx, touch, key)
		if !errors.Is(err, goredis.TxFailedErr) {
			return err
		}
	}
	return err
}
