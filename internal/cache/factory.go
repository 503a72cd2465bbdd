// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"
)

// Backend types.
const (
	TypeMemory = "memory"
	TypeRedis  = "redis"
)

// Config selects and configures a cache backend.
type Config struct {
	Type            string
	RedisURL        string
	Prefix          string
	DefaultTTL      time.Duration
	MaxSize         int
	CleanupInterval time.Duration
}

// DefaultConfig returns a memory cache configuration.
func DefaultConfig() Config {
	return Config{
		Type:            TypeMemory,
		Prefix:          DefaultRedisPrefix,
		DefaultTTL:      10 * time.Minute,
		MaxSize:         1000,
		CleanupInterval: time.Minute,
	}
}

// New creates the cache described by cfg. A Redis cache that cannot be
// reached falls back to memory with a warning, so a cache outage never
// blocks startup.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Cacher, error) {
	switch cfg.Type {
	case "", TypeMemory:
		return newMemory(cfg), nil
	case TypeRedis:
		opts := DefaultRedisCacheOptions()
		opts.URL = cfg.RedisURL
		if cfg.Prefix != "" {
			opts.Prefix = cfg.Prefix
		}
		if cfg.DefaultTTL > 0 {
			opts.DefaultTTL = cfg.DefaultTTL
		}
		rc, err := NewRedisCache(ctx, opts)
		if err != nil {
			logger.Warn("redis cache unavailable, falling back to memory",
				"url", SanitizeRedisURL(cfg.RedisURL),
				"error", err)
			return newMemory(cfg), nil
		}
		logger.Info("using redis cache", "url", SanitizeRedisURL(cfg.RedisURL))
		return rc, nil
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
}

func newMemory(cfg Config) *MemoryCache {
	return NewMemoryCache(MemoryCacheOptions{
		DefaultTTL:      cfg.DefaultTTL,
		MaxSize:         cfg.MaxSize,
		CleanupInterval: cfg.CleanupInterval,
	})
}

// SanitizeRedisURL masks the password in a Redis URL for logging.
func SanitizeRedisURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[invalid URL]"
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "***")
	}
	return u.String()
}
