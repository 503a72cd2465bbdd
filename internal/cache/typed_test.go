// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type testContent struct {
	Title        string            `json:"title"`
	Translations map[string]string `json:"translations"`
}

func TestTypedCache_SetGet(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)
	ctx := context.Background()

	in := &testContent{Title: "แบบสอบถาม", Translations: map[string]string{"en": "Survey"}}
	if err := cache.Set(ctx, "survey/1", in); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, ok := cache.Get(ctx, "survey/1")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.Title != in.Title || got.Translations["en"] != "Survey" {
		t.Errorf("got %+v, want %+v", got, in)
	}

	if err := cache.Delete(ctx, "survey/1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok := cache.Get(ctx, "survey/1"); ok {
		t.Error("expected miss after delete")
	}
}

func TestTypedCache_InvalidJSONIsMiss(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)
	ctx := context.Background()

	_ = mem.Set(ctx, "bad", []byte("{not json"), 0)
	if _, ok := cache.Get(ctx, "bad"); ok {
		t.Error("expected undecodable entry to miss")
	}
}

func TestTypedCache_GetOrSet(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)
	ctx := context.Background()

	var calls atomic.Int32
	fn := func(context.Context) (*testContent, error) {
		calls.Add(1)
		return &testContent{Title: "computed"}, nil
	}

	for i := 0; i < 3; i++ {
		got, err := cache.GetOrSet(ctx, "k", fn)
		if err != nil {
			t.Fatalf("GetOrSet failed: %v", err)
		}
		if got.Title != "computed" {
			t.Errorf("unexpected value %+v", got)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Errorf("expected one computation, got %d", n)
	}
}

func TestTypedCache_GetOrSetError(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)
	ctx := context.Background()

	wantErr := errors.New("backend down")
	_, err := cache.GetOrSet(ctx, "k", func(context.Context) (*testContent, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected %v, got %v", wantErr, err)
	}
	if has, _ := mem.Has(ctx, "k"); has {
		t.Error("error result must not be cached")
	}
}

func TestTypedCache_GetOrSetSharesConcurrentCalls(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)
	ctx := context.Background()

	release := make(chan struct{})
	var calls atomic.Int32
	fn := func(context.Context) (*testContent, error) {
		calls.Add(1)
		<-release
		return &testContent{Title: "shared"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetOrSet(ctx, "k", fn); err != nil {
				t.Errorf("GetOrSet failed: %v", err)
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected concurrent callers to share one computation, got %d", n)
	}
}

func TestTypedCache_GetOrSetIgnoresCallerCancellation(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})
	fn := func(ctx context.Context) (*testContent, error) {
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &testContent{Title: "fetched"}, nil
	}

	done := make(chan error, 1)
	go func() {
		_, err := cache.GetOrSet(ctx, "k", fn)
		done <- err
	}()
	<-started
	cancel()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("GetOrSet failed after caller cancelled: %v", err)
	}
	if got, ok := cache.Get(context.Background(), "k"); !ok || got.Title != "fetched" {
		t.Errorf("expected fetched value to be cached, got %+v, %v", got, ok)
	}
}

func TestTypedCache_DeleteDetachesInFlightComputation(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	stale := func(context.Context) (*testContent, error) {
		close(started)
		<-release
		return &testContent{Title: "stale"}, nil
	}

	done := make(chan *testContent, 1)
	go func() {
		got, err := cache.GetOrSet(ctx, "k", stale)
		if err != nil {
			t.Errorf("GetOrSet failed: %v", err)
		}
		done <- got
	}()
	<-started

	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	fresh, err := cache.GetOrSet(ctx, "k", func(context.Context) (*testContent, error) {
		return &testContent{Title: "fresh"}, nil
	})
	if err != nil {
		t.Fatalf("GetOrSet failed: %v", err)
	}
	if fresh.Title != "fresh" {
		t.Errorf("caller after Delete joined the old computation: %+v", fresh)
	}

	close(release)
	if got := <-done; got == nil || got.Title != "stale" {
		t.Errorf("first caller got %+v", got)
	}
	if got, ok := cache.Get(ctx, "k"); !ok || got.Title != "fresh" {
		t.Errorf("detached result overwrote the cache: %+v, %v", got, ok)
	}
}

func TestTypedCache_DeleteByPrefixDropsInFlightResult(t *testing.T) {
	mem := NewMemoryCache(MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = mem.Close() }()
	cache := NewTypedCache[testContent](mem, time.Hour)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = cache.GetOrSet(ctx, "content:survey/1", func(context.Context) (*testContent, error) {
			close(started)
			<-release
			return &testContent{Title: "stale"}, nil
		})
	}()
	<-started

	if err := cache.DeleteByPrefix(ctx, "content:"); err != nil {
		t.Fatalf("DeleteByPrefix failed: %v", err)
	}
	close(release)
	<-done

	if _, ok := cache.Get(ctx, "content:survey/1"); ok {
		t.Error("result of a computation started before DeleteByPrefix was cached")
	}
}
