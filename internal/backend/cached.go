// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"context"
	"log/slog"
	"time"

	"github.com/olegiv/survey-i18n/internal/cache"
	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/translation"
)

const contentKeyPrefix = "content:"

var (
	_ translation.ContentClient      = (*CachedContentClient)(nil)
	_ translation.ContentInvalidator = (*CachedContentClient)(nil)
)

// CachedContentClient caches entity content in front of another
// ContentClient. Concurrent misses for one entity share a single fetch.
type CachedContentClient struct {
	inner  translation.ContentClient
	typed  *cache.TypedCache[model.MultilingualContent]
	logger *slog.Logger
}

// NewCachedContentClient wraps inner with store.
func NewCachedContentClient(inner translation.ContentClient, store cache.Cacher, ttl time.Duration, logger *slog.Logger) *CachedContentClient {
	return &CachedContentClient{
		inner:  inner,
		typed:  cache.NewTypedCache[model.MultilingualContent](store, ttl),
		logger: logger.With("component", "content_cache"),
	}
}

func contentKey(entity model.EntityRef) string {
	return contentKeyPrefix + entity.String()
}

// FetchEntity returns cached content or loads it from the wrapped client.
func (c *CachedContentClient) FetchEntity(ctx context.Context, entity model.EntityRef) (*model.MultilingualContent, error) {
	return c.typed.GetOrSet(ctx, contentKey(entity), func(ctx context.Context) (*model.MultilingualContent, error) {
		c.logger.Debug("content cache miss", "entity", entity.String())
		return c.inner.FetchEntity(ctx, entity)
	})
}

// Invalidate drops the cached content of entity.
func (c *CachedContentClient) Invalidate(ctx context.Context, entity model.EntityRef) error {
	return c.typed.Delete(ctx, contentKey(entity))
}

// InvalidateAll drops every cached entity.
func (c *CachedContentClient) InvalidateAll(ctx context.Context) error {
	return c.typed.DeleteByPrefix(ctx, contentKeyPrefix)
}
