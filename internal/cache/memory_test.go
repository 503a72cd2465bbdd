package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestMemoryCache(clock clockwork.Clock, maxSize int) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL: time.Hour,
		MaxSize:    maxSize,
		Clock:      clock,
	})
}

func TestMemoryCache_BasicOperations(t *testing.T) {
	cache := newTestMemoryCache(clockwork.NewFakeClock(), 0)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	if err := cache.Set(ctx, "survey/1", []byte("content"), 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	val, err := cache.Get(ctx, "survey/1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(val) != "content" {
		t.Errorf("expected content, got %s", val)
	}

	has, err := cache.Has(ctx, "survey/1")
	if err != nil || !has {
		t.Errorf("Has = %v, %v; want true, nil", has, err)
	}

	if err := cache.Delete(ctx, "survey/1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "survey/1"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	cache := newTestMemoryCache(clockwork.NewFakeClock(), 0)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	value := []byte("abc")
	_ = cache.Set(ctx, "k", value, 0)
	value[0] = 'x'

	got, _ := cache.Get(ctx, "k")
	got[1] = 'y'

	again, _ := cache.Get(ctx, "k")
	if string(again) != "abc" {
		t.Errorf("stored value was mutated: %s", again)
	}
}

func TestMemoryCache_Expiration(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newTestMemoryCache(clock, 0)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	_ = cache.Set(ctx, "short", []byte("v"), time.Minute)
	_ = cache.Set(ctx, "long", []byte("v"), 0)

	clock.Advance(time.Minute)

	if _, err := cache.Get(ctx, "short"); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected expired entry to miss, got %v", err)
	}
	if has, _ := cache.Has(ctx, "long"); !has {
		t.Error("expected default TTL entry to survive")
	}
}

func TestMemoryCache_DeleteByPrefix(t *testing.T) {
	cache := newTestMemoryCache(clockwork.NewFakeClock(), 0)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	_ = cache.Set(ctx, "content:survey/1", []byte("a"), 0)
	_ = cache.Set(ctx, "content:survey/2", []byte("b"), 0)
	_ = cache.Set(ctx, "other", []byte("c"), 0)

	if err := cache.DeleteByPrefix(ctx, "content:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	if has, _ := cache.Has(ctx, "content:survey/1"); has {
		t.Error("expected content:survey/1 to be removed")
	}
	if has, _ := cache.Has(ctx, "other"); !has {
		t.Error("expected other to remain")
	}
}

func TestMemoryCache_EvictsWhenFull(t *testing.T) {
	clock := clockwork.NewFakeClock()
	cache := newTestMemoryCache(clock, 2)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	_ = cache.Set(ctx, "a", []byte("1"), time.Minute)
	_ = cache.Set(ctx, "b", []byte("2"), time.Hour)
	_ = cache.Set(ctx, "c", []byte("3"), time.Hour)

	if has, _ := cache.Has(ctx, "a"); has {
		t.Error("expected entry closest to expiry to be evicted")
	}
	if st := cache.Stats(); st.Items != 2 {
		t.Errorf("expected 2 items, got %d", st.Items)
	}

	// Overwriting an existing key never evicts.
	_ = cache.Set(ctx, "b", []byte("22"), time.Hour)
	if has, _ := cache.Has(ctx, "c"); !has {
		t.Error("expected c to remain after overwrite")
	}
}

func TestMemoryCache_Stats(t *testing.T) {
	cache := newTestMemoryCache(clockwork.NewFakeClock(), 0)
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	_ = cache.Set(ctx, "k", []byte("1234"), 0)
	_, _ = cache.Get(ctx, "k")
	_, _ = cache.Get(ctx, "missing")

	st := cache.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Sets != 1 {
		t.Errorf("unexpected stats: %+v", st)
	}
	if st.HitRate != 50 {
		t.Errorf("expected 50%% hit rate, got %v", st.HitRate)
	}
	if st.Size != 4 {
		t.Errorf("expected size 4, got %d", st.Size)
	}

	cache.ResetStats()
	if st := cache.Stats(); st.Hits != 0 || st.Items != 1 {
		t.Errorf("unexpected stats after reset: %+v", st)
	}
}

func TestMemoryCache_Closed(t *testing.T) {
	cache := newTestMemoryCache(clockwork.NewFakeClock(), 0)
	_ = cache.Close()
	_ = cache.Close()
	ctx := context.Background()

	if err := cache.Set(ctx, "k", nil, 0); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Set after close: %v", err)
	}
	if _, err := cache.Get(ctx, "k"); !errors.Is(err, ErrCacheClosed) {
		t.Errorf("Get after close: %v", err)
	}
}

func TestMemoryCache_Concurrent(t *testing.T) {
	cache := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour, MaxSize: 50})
	defer func() { _ = cache.Close() }()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("k%d", (n*100+j)%80)
				_ = cache.Set(ctx, key, []byte("v"), 0)
				_, _ = cache.Get(ctx, key)
			}
		}(i)
	}
	wg.Wait()

	if items := cache.Stats().Items; items > 50 {
		t.Errorf("cache grew past its limit: %d", items)
	}
}
