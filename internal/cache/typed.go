// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TypedCache stores JSON-encoded values of type T in a Cacher.
// Concurrent GetOrSet calls for the same key share one computation.
// Deleting a key detaches any computation in flight for it: later
// callers start a new one and the detached result is not stored.
type TypedCache[T any] struct {
	cache      Cacher
	defaultTTL time.Duration
	group      singleflight.Group

	mu       sync.Mutex
	seq      uint64
	inflight map[string]uint64
}

// NewTypedCache wraps cache.
func NewTypedCache[T any](cache Cacher, defaultTTL time.Duration) *TypedCache[T] {
	return &TypedCache[T]{cache: cache, defaultTTL: defaultTTL, inflight: make(map[string]uint64)}
}

// Get returns the value under key. Undecodable entries count as a miss.
func (c *TypedCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false
	}
	return &value, true
}

// Set stores value with the default TTL.
func (c *TypedCache[T]) Set(ctx context.Context, key string, value *T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.cache.Set(ctx, key, data, c.defaultTTL)
}

// Delete removes key.
func (c *TypedCache[T]) Delete(ctx context.Context, key string) error {
	c.detach(func(k string) bool { return k == key })
	return c.cache.Delete(ctx, key)
}

// DeleteByPrefix removes every key starting with prefix.
func (c *TypedCache[T]) DeleteByPrefix(ctx context.Context, prefix string) error {
	c.detach(func(k string) bool { return strings.HasPrefix(k, prefix) })
	return c.cache.DeleteByPrefix(ctx, prefix)
}

func (c *TypedCache[T]) detach(match func(string) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.inflight {
		if match(key) {
			delete(c.inflight, key)
			c.group.Forget(key)
		}
	}
}

func (c *TypedCache[T]) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	c.inflight[key] = c.seq
	return c.seq
}

// finish reports whether the computation started as token is still the
// current one for key.
func (c *TypedCache[T]) finish(key string, token uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inflight[key] != token {
		return false
	}
	delete(c.inflight, key)
	return true
}

// GetOrSet returns the cached value for key, or computes it with fn and
// stores it. Errors from fn are returned and nothing is cached. fn runs
// without the caller's cancellation since other callers may share it.
func (c *TypedCache[T]) GetOrSet(ctx context.Context, key string, fn func(ctx context.Context) (*T, error)) (*T, error) {
	if value, ok := c.Get(ctx, key); ok {
		return value, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		shared := context.WithoutCancel(ctx)
		token := c.begin(key)
		value, err := fn(shared)
		current := c.finish(key, token)
		if err != nil {
			return nil, err
		}
		if current {
			// A failed write only costs a refetch next time.
			_ = c.Set(shared, key, value)
		}
		return value, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}
