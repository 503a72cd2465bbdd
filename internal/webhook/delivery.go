// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net"
	"net/http"
	"time"

	"github.com/olegiv/survey-i18n/internal/version"
)

// Delivery defaults.
const (
	MaxAttempts    = 5
	InitialBackoff = 2 * time.Second
	MaxBackoff     = 5 * time.Minute
	RequestTimeout = 30 * time.Second
	MaxResponseLen = 10 * 1024
)

// DeliveryResult represents the result of a delivery attempt.
type DeliveryResult struct {
	Success      bool
	StatusCode   int
	ResponseBody string
	Error        error
	ShouldRetry  bool
}

// newHTTPClient builds the delivery client. With blockPrivate set,
// connections to private or reserved addresses fail at dial time.
func newHTTPClient(blockPrivate bool) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if blockPrivate {
		transport.DialContext = safeDialContext(&net.Dialer{Timeout: 10 * time.Second})
	}
	return &http.Client{
		Timeout:   RequestTimeout,
		Transport: transport,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// processDelivery attempts a delivery until it succeeds, fails
// permanently, runs out of attempts or the dispatcher stops.
func (d *Dispatcher) processDelivery(ctx context.Context, delivery *QueuedDelivery) {
	log := d.logger.With(
		"delivery_id", delivery.DeliveryID,
		"event_type", delivery.Event,
		"url", delivery.Endpoint.URL)

	for attempt := 1; ; attempt++ {
		result := d.attemptDelivery(ctx, delivery)
		if result.Success {
			d.delivered.Add(1)
			log.Debug("webhook delivered", "status", result.StatusCode, "attempt", attempt)
			return
		}

		if !result.ShouldRetry || attempt >= d.cfg.MaxAttempts {
			d.failed.Add(1)
			log.Warn("webhook delivery failed",
				"attempts", attempt,
				"status", result.StatusCode,
				"error", result.Error)
			return
		}

		backoff := calculateBackoff(attempt, d.cfg.InitialBackoff, d.cfg.MaxBackoff)
		log.Debug("webhook delivery will be retried",
			"attempt", attempt,
			"backoff", backoff,
			"error", result.Error)

		select {
		case <-d.clock.After(backoff):
		case <-d.done:
			d.failed.Add(1)
			return
		case <-ctx.Done():
			d.failed.Add(1)
			return
		}
	}
}

// attemptDelivery performs one signed HTTP POST.
func (d *Dispatcher) attemptDelivery(ctx context.Context, delivery *QueuedDelivery) DeliveryResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, delivery.Endpoint.URL, bytes.NewReader(delivery.Payload))
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("failed to create request: %w", err),
			ShouldRetry: false,
		}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "survey-i18n/"+version.Get().Version)
	if delivery.Endpoint.Secret != "" {
		req.Header.Set("X-Webhook-Signature", GenerateSignature(delivery.Payload, delivery.Endpoint.Secret))
	}
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery-ID", delivery.DeliveryID)
	for key, value := range delivery.Endpoint.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return DeliveryResult{
			Error:       fmt.Errorf("request failed: %w", err),
			ShouldRetry: true,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxResponseLen))
	result := DeliveryResult{
		StatusCode:   resp.StatusCode,
		ResponseBody: string(body),
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		result.Success = true
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		// Client errors are permanent except 408 and 429.
		result.ShouldRetry = resp.StatusCode == http.StatusRequestTimeout ||
			resp.StatusCode == http.StatusTooManyRequests
		result.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	default:
		result.ShouldRetry = true
		result.Error = fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	return result
}

// calculateBackoff doubles initial for each attempt, capped at max.
// Attempt 1 waits initial, attempt 2 waits 2x initial, and so on.
func calculateBackoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	backoff := time.Duration(float64(initial) * math.Pow(2, float64(attempt-1)))
	if backoff > max || backoff <= 0 {
		backoff = max
	}
	return backoff
}
