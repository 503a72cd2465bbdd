// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryCache is a process-local Cacher.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	maxSize    int
	clock      clockwork.Clock
	stopCh     chan struct{}
	closed     atomic.Bool

	hits   atomic.Int64
	misses atomic.Int64
	sets   atomic.Int64
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryCacheOptions configures the memory cache.
type MemoryCacheOptions struct {
	DefaultTTL      time.Duration
	MaxSize         int           // 0 = unlimited
	CleanupInterval time.Duration // 0 = no background cleanup
	Clock           clockwork.Clock
}

// NewMemoryCache creates a memory cache.
func NewMemoryCache(opts MemoryCacheOptions) *MemoryCache {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	c := &MemoryCache{
		entries:    make(map[string]memoryEntry),
		defaultTTL: opts.DefaultTTL,
		maxSize:    opts.MaxSize,
		clock:      opts.Clock,
		stopCh:     make(chan struct{}),
	}
	if opts.CleanupInterval > 0 {
		go c.cleanupLoop(opts.CleanupInterval)
	}
	return c
}

// Get retrieves a copy of the value stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, ErrCacheClosed
	}

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && !c.clock.Now().Before(entry.expiresAt) {
		delete(c.entries, key)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, ErrCacheMiss
	}
	c.hits.Add(1)
	return append([]byte(nil), entry.value...), nil
}

// Set stores a copy of value. When the cache is full, expired entries are
// dropped first and then the entry closest to expiry is evicted.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxSize > 0 && len(c.entries) >= c.maxSize {
		c.removeExpiredLocked()
		if len(c.entries) >= c.maxSize {
			c.evictOneLocked()
		}
	}
	c.entries[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: c.clock.Now().Add(ttl),
	}
	c.sets.Add(1)
	return nil
}

// Delete removes key.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// DeleteByPrefix removes all keys starting with prefix.
func (c *MemoryCache) DeleteByPrefix(_ context.Context, prefix string) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(_ context.Context) error {
	if c.closed.Load() {
		return ErrCacheClosed
	}
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
	return nil
}

// Has reports whether key exists and has not expired.
func (c *MemoryCache) Has(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, ErrCacheClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	return ok && c.clock.Now().Before(entry.expiresAt), nil
}

// Close stops the cleanup goroutine.
func (c *MemoryCache) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		close(c.stopCh)
	}
	return nil
}

// Stats returns current cache statistics.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	items := len(c.entries)
	var size int64
	for _, e := range c.entries {
		size += int64(len(e.value))
	}
	c.mu.Unlock()
	return newStats(c.hits.Load(), c.misses.Load(), c.sets.Load(), items, size)
}

// ResetStats resets the hit, miss and set counters.
func (c *MemoryCache) ResetStats() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.sets.Store(0)
}

func (c *MemoryCache) removeExpiredLocked() {
	now := c.clock.Now()
	for key, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *MemoryCache) evictOneLocked() {
	var victim string
	var earliest time.Time
	for key, e := range c.entries {
		if victim == "" || e.expiresAt.Before(earliest) {
			victim, earliest = key, e.expiresAt
		}
	}
	delete(c.entries, victim)
}

func (c *MemoryCache) cleanupLoop(interval time.Duration) {
	ticker := c.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			c.mu.Lock()
			c.removeExpiredLocked()
			c.mu.Unlock()
		case <-c.stopCh:
			return
		}
	}
}

var (
	_ Cacher        = (*MemoryCache)(nil)
	_ StatsProvider = (*MemoryCache)(nil)
)
