// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/olegiv/survey-i18n/internal/backend"
	"github.com/olegiv/survey-i18n/internal/cache"
	"github.com/olegiv/survey-i18n/internal/i18n"
	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/translation"
	"github.com/olegiv/survey-i18n/internal/webhook"
)

// MinAPITokenLength is the minimum length of the API bearer token.
const MinAPITokenLength = 24

// Config holds the application configuration loaded from environment variables.
type Config struct {
	ServerHost string `env:"SURVEY_I18N_SERVER_HOST" envDefault:"localhost"`
	ServerPort int    `env:"SURVEY_I18N_SERVER_PORT" envDefault:"8081"`
	Env        string `env:"SURVEY_I18N_ENV" envDefault:"development"`
	LogLevel   string `env:"SURVEY_I18N_LOG_LEVEL" envDefault:"info"`
	APIToken   string `env:"SURVEY_I18N_API_TOKEN"` // Empty disables API auth (development only)

	// Backend configuration
	BackendURL       string        `env:"SURVEY_I18N_BACKEND_URL,required"`
	BackendToken     string        `env:"SURVEY_I18N_BACKEND_TOKEN"`
	BackendTimeout   time.Duration `env:"SURVEY_I18N_BACKEND_TIMEOUT" envDefault:"15s"`
	BackendRateLimit float64       `env:"SURVEY_I18N_BACKEND_RATE_LIMIT" envDefault:"10"` // Requests per second, 0 = unlimited
	BackendBurst     int           `env:"SURVEY_I18N_BACKEND_BURST" envDefault:"5"`
	Provider         string        `env:"SURVEY_I18N_PROVIDER" envDefault:"azure"`

	// Languages
	Languages             []string `env:"SURVEY_I18N_LANGUAGES" envDefault:"th,en,zh-CN,ja,ko,ru" envSeparator:","`
	DefaultSourceLanguage string   `env:"SURVEY_I18N_DEFAULT_SOURCE_LANGUAGE" envDefault:"th"`

	// Polling. Zero values keep the preset's setting.
	PollPolicy      string        `env:"SURVEY_I18N_POLL_POLICY" envDefault:"standard"`
	PollInterval    time.Duration `env:"SURVEY_I18N_POLL_INTERVAL"`
	PollMaxDuration time.Duration `env:"SURVEY_I18N_POLL_MAX_DURATION"`
	PollMaxRetries  int           `env:"SURVEY_I18N_POLL_MAX_RETRIES"`
	RefreshedTTL    time.Duration `env:"SURVEY_I18N_REFRESHED_TTL" envDefault:"5s"`

	// Reconcile sweep cron spec, empty disables the sweep
	ReconcileSchedule string `env:"SURVEY_I18N_RECONCILE_SCHEDULE" envDefault:"@every 1m"`

	// Cache configuration
	CacheType    string        `env:"SURVEY_I18N_CACHE_TYPE" envDefault:"memory"`
	RedisURL     string        `env:"SURVEY_I18N_REDIS_URL"`
	CachePrefix  string        `env:"SURVEY_I18N_CACHE_PREFIX" envDefault:"survey-i18n:"`
	CacheTTL     time.Duration `env:"SURVEY_I18N_CACHE_TTL" envDefault:"10m"`
	CacheMaxSize int           `env:"SURVEY_I18N_CACHE_MAX_SIZE" envDefault:"1000"`

	// Webhook configuration
	WebhookURLs         []string `env:"SURVEY_I18N_WEBHOOK_URLS" envSeparator:","`
	WebhookSecret       string   `env:"SURVEY_I18N_WEBHOOK_SECRET"`
	WebhookEvents       []string `env:"SURVEY_I18N_WEBHOOK_EVENTS" envSeparator:","` // Empty = all events
	WebhookAllowPrivate bool     `env:"SURVEY_I18N_WEBHOOK_ALLOW_PRIVATE" envDefault:"false"`

	// Telemetry
	OTLPEndpoint     string  `env:"SURVEY_I18N_OTEL_ENDPOINT"`
	TraceSampleRatio float64 `env:"SURVEY_I18N_OTEL_SAMPLE_RATIO" envDefault:"1"`

	EventLogSize int `env:"SURVEY_I18N_EVENT_LOG_SIZE" envDefault:"500"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.CacheType == cache.TypeRedis && c.RedisURL != ""
}

// WebhooksEnabled returns true if at least one webhook URL is configured.
func (c Config) WebhooksEnabled() bool {
	return len(c.WebhookURLs) > 0
}

// TracingEnabled returns true if an OTLP endpoint is configured.
func (c Config) TracingEnabled() bool {
	return c.OTLPEndpoint != ""
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Policy returns the named polling preset with any overrides applied.
func (c Config) Policy() (translation.Policy, error) {
	p, err := translation.PolicyByName(c.PollPolicy)
	if err != nil {
		return translation.Policy{}, err
	}
	if c.PollInterval > 0 {
		p.Interval = c.PollInterval
	}
	if c.PollMaxDuration > 0 {
		p.MaxDuration = c.PollMaxDuration
	}
	if c.PollMaxRetries > 0 {
		p.MaxRetries = c.PollMaxRetries
	}
	return p, p.Validate()
}

// Registry builds the supported language registry.
func (c Config) Registry() (*i18n.Registry, error) {
	return i18n.NewRegistry(c.Languages)
}

// BackendConfig returns the backend client configuration.
func (c Config) BackendConfig() backend.Config {
	return backend.Config{
		BaseURL:               c.BackendURL,
		Token:                 c.BackendToken,
		Timeout:               c.BackendTimeout,
		RateLimit:             c.BackendRateLimit,
		Burst:                 c.BackendBurst,
		DefaultSourceLanguage: model.LanguageCode(c.DefaultSourceLanguage),
		Provider:              c.Provider,
	}
}

// CacheConfig returns the content cache configuration.
func (c Config) CacheConfig() cache.Config {
	cfg := cache.DefaultConfig()
	cfg.Type = c.CacheType
	cfg.RedisURL = c.RedisURL
	cfg.Prefix = c.CachePrefix
	cfg.DefaultTTL = c.CacheTTL
	cfg.MaxSize = c.CacheMaxSize
	return cfg
}

// WebhookEndpoints returns one endpoint per configured URL.
func (c Config) WebhookEndpoints() []webhook.Endpoint {
	endpoints := make([]webhook.Endpoint, 0, len(c.WebhookURLs))
	for _, u := range c.WebhookURLs {
		endpoints = append(endpoints, webhook.Endpoint{
			URL:    u,
			Secret: c.WebhookSecret,
			Events: c.WebhookEvents,
		})
	}
	return endpoints
}

// Load parses environment variables and returns a Config struct.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("SURVEY_I18N_BACKEND_URL must be an absolute http(s) URL, got %q", c.BackendURL)
	}

	reg, err := c.Registry()
	if err != nil {
		return fmt.Errorf("SURVEY_I18N_LANGUAGES: %w", err)
	}
	src, ok := reg.Normalize(c.DefaultSourceLanguage)
	if !ok {
		return fmt.Errorf("SURVEY_I18N_DEFAULT_SOURCE_LANGUAGE %q is not a supported language", c.DefaultSourceLanguage)
	}
	c.DefaultSourceLanguage = src.String()

	if _, err := c.Policy(); err != nil {
		return fmt.Errorf("polling policy: %w", err)
	}

	switch c.CacheType {
	case cache.TypeMemory:
	case cache.TypeRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("SURVEY_I18N_REDIS_URL is required when SURVEY_I18N_CACHE_TYPE=redis")
		}
	default:
		return fmt.Errorf("SURVEY_I18N_CACHE_TYPE must be %q or %q, got %q", cache.TypeMemory, cache.TypeRedis, c.CacheType)
	}

	for _, u := range c.WebhookURLs {
		if err := webhook.ValidateEndpointURL(u, c.WebhookAllowPrivate); err != nil {
			return fmt.Errorf("SURVEY_I18N_WEBHOOK_URLS %q: %w", u, err)
		}
	}
	if c.WebhooksEnabled() && c.WebhookSecret == "" {
		slog.Warn("webhooks are configured without SURVEY_I18N_WEBHOOK_SECRET; payloads will be unsigned")
	}

	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("SURVEY_I18N_OTEL_SAMPLE_RATIO must be between 0 and 1, got %v", c.TraceSampleRatio)
	}

	if c.APIToken == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("SURVEY_I18N_API_TOKEN is required outside development")
		}
		return nil
	}
	if len(c.APIToken) < MinAPITokenLength {
		return fmt.Errorf("SURVEY_I18N_API_TOKEN must be at least %d bytes long, got %d bytes; "+
			"generate a secure token with: openssl rand -base64 32",
			MinAPITokenLength, len(c.APIToken))
	}
	if !hasMinimumEntropy(c.APIToken) {
		slog.Warn("SURVEY_I18N_API_TOKEN has low character diversity; " +
			"consider generating a random token with: openssl rand -base64 32")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
