// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package backend is the HTTP client for the hotel backend's translation,
// survey and coupon APIs.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/version"
)

const (
	tracerName      = "github.com/olegiv/survey-i18n/internal/backend"
	maxErrorBody    = 64 << 10
	defaultPageSize = 50
)

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// RateLimit caps outgoing requests per second; 0 disables the limit.
	RateLimit float64
	Burst     int

	// DefaultSourceLanguage is assumed when an entity does not report its
	// original language.
	DefaultSourceLanguage model.LanguageCode

	// Provider is sent with every translation request.
	Provider string

	PageSize int
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithTracerProvider sets the provider used for request spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// Client talks to the backend REST API.
type Client struct {
	baseURL       *url.URL
	token         string
	provider      string
	defaultSource model.LanguageCode
	pageSize      int

	http      *http.Client
	limiter   *rate.Limiter
	tracer    trace.Tracer
	logger    *slog.Logger
	sanitizer *bluemonday.Policy
}

// New creates a client for cfg.BaseURL.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("backend base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend base URL must be http or https, got %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	provider := cfg.Provider
	if provider == "" {
		provider = "azure"
	}

	c := &Client{
		baseURL:       base,
		token:         cfg.Token,
		provider:      provider,
		defaultSource: cfg.DefaultSourceLanguage,
		pageSize:      pageSize,
		http:          &http.Client{Timeout: timeout},
		limiter:       rate.NewLimiter(limit, burst),
		tracer:        otel.Tracer(tracerName),
		logger:        slog.Default(),
		sanitizer:     bluemonday.UGCPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "backend")
	return c, nil
}

// do performs one JSON request. route is the templated path used as the
// span name; path is the concrete one.
func (c *Client) do(ctx context.Context, method, route, path string, query url.Values, body, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, method+" "+route,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	u.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "survey-i18n/"+version.Get().Version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", route, err)
	}
	return nil
}

func newAPIError(resp *http.Response) *APIError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := ""
	if json.Unmarshal(data, &payload) == nil {
		msg = payload.Message
		if msg == "" {
			msg = payload.Error
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(data))
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}

// sanitize strips unsafe markup from machine-translated text. Plain text is
// returned untouched so entities are not introduced.
func (c *Client) sanitize(s string) string {
	if !strings.ContainsAny(s, "<>") {
		return s
	}
	return c.sanitizer.Sanitize(s)
}
