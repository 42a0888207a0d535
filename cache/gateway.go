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

// Package cache implements the cache gateway: namespaced, TTL-classified
// access to a storage.CacheStore with single-flight refill.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/poiesic/doccache/config"
	"github.com/poiesic/doccache/core"
	"github.com/poiesic/doccache/storage"
)

// Gateway fronts a cache store. Read failures surface as core.ErrCacheUnavailable;
// write failures are logged and absorbed. It is safe for concurrent use.
type Gateway struct {
	store  storage.CacheStore
	cfg    config.Cache
	group  singleflight.Group
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger. If nil, slog.Default() is used.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// NewGateway creates a gateway over store.
func NewGateway(store storage.CacheStore, cfg config.Cache, opts ...Option) *Gateway {
	g := &Gateway{
		store:  store,
		cfg:    cfg,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With("component", "cache")
	return g
}

// TTLFor returns the configured TTL of namespace ns.
func (g *Gateway) TTLFor(ns Namespace) time.Duration {
	return ttlFor(g.cfg, ns)
}

// Get returns the raw value under key. A miss returns ok=false and no error.
// Hits bump the entry's access count best-effort.
func (g *Gateway) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := g.store.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: get %s: %v", core.ErrCacheUnavailable, key, err)
	}
	if err := g.store.Touch(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		g.logger.Debug("failed to touch cache entry", "key", key, "err", err)
	}
	return entry.Value, true, nil
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
// Failures are logged, never returned.
func (g *Gateway) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	now := g.now()
	entry := &core.CacheEntry{
		Key:       key,
		Value:     value,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := g.store.Set(ctx, entry); err != nil {
		g.logger.Warn("failed to set cache entry", "key", key, "ttl", ttl, "err", err)
	}
}

// Invalidate removes keys.
func (g *Gateway) Invalidate(ctx context.Context, keys ...string) error {
	if err := g.store.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("%w: delete: %v", core.ErrCacheUnavailable, err)
	}
	return nil
}

// Allow counts a request from clientID against limit per rate-limit window.
// A non-positive limit disables limiting. Counter failures allow the request.
func (g *Gateway) Allow(ctx context.Context, clientID string, limit int64) error {
	if limit <= 0 {
		return nil
	}
	n, err := g.store.Increment(ctx, Key(RateLimit, clientID), g.TTLFor(RateLimit))
	if err != nil {
		g.logger.Warn("rate limit counter unavailable", "client", clientID, "err", err)
		return nil
	}
	if n > limit {
		return fmt.Errorf("%w: %s made %d requests, limit %d", core.ErrRateLimited, clientID, n, limit)
	}
	return nil
}

// Claim reports whether the caller is first to claim key within ttl.
// Counter failures report the claim as won.
func (g *Gateway) Claim(ctx context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		return true
	}
	n, err := g.store.Increment(ctx, key, ttl)
	if err != nil {
		g.logger.Warn("claim counter unavailable", "key", key, "err", err)
		return true
	}
	return n == 1
}

// GetJSON decodes the JSON value under key into a T.
// Undecodable entries are dropped and reported as misses.
func GetJSON[T any](ctx context.Context, g *Gateway, key string) (T, bool, error) {
	var v T
	raw, ok, err := g.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		g.logger.Warn("dropping undecodable cache entry", "key", key, "err", err)
		if err := g.store.Delete(ctx, key); err != nil {
			g.logger.Debug("failed to drop cache entry", "key", key, "err", err)
		}
		var zero T
		return zero, false, nil
	}
	return v, true, nil
}

// SetJSON stores v as JSON under key for ttl.
func SetJSON(ctx context.Context, g *Gateway, key string, v any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		g.logger.Warn("failed to encode cache entry", "key", key, "err", err)
		return
	}
	g.Set(ctx, key, raw, ttl)
}

// ComputeFunc produces a value and the TTL to cache it for. A zero TTL
// returns the value without caching it.
type ComputeFunc[T any] func(ctx context.Context) (T, time.Duration, error)

type computed[T any] struct {
	value T
	hit   bool
}

// GetOrCompute returns the cached value under key, or runs compute on a miss.
// Concurrent misses for one key share a single compute. The compute runs on
// a context that keeps ctx's deadline but not its cancellation, so one
// caller giving up does not fail the others.
func GetOrCompute[T any](ctx context.Context, g *Gateway, key string, compute ComputeFunc[T]) (T, bool, error) {
	if v, ok, err := GetJSON[T](ctx, g, key); err != nil || ok {
		return v, ok, err
	}

	ch := g.group.DoChan(key, func() (any, error) {
		cctx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			cctx, cancel = context.WithDeadline(cctx, deadline)
			defer cancel()
		}

		// A flight that finished after our miss may already have filled key.
		if v, ok, err := GetJSON[T](cctx, g, key); err == nil && ok {
			return computed[T]{value: v, hit: true}, nil
		}

		v, ttl, err := compute(cctx)
		if err != nil {
			return nil, err
		}
		SetJSON(cctx, g, key, v, ttl)
		return computed[T]{value: v}, nil
	})

	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, false, res.Err
		}
		c := res.Val.(computed[T])
		return c.value, c.hit, nil
	}
}
