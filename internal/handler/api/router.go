// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"

	"github.com/olegiv/survey-i18n/internal/middleware"
)

// RouterConfig configures the HTTP surface.
type RouterConfig struct {
	APIToken       string
	IsDevelopment  bool
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second per client IP
	RateBurst      int
	TracerProvider trace.TracerProvider
}

// NewRouter mounts the API handlers with their middleware stack.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit, cfg.RateBurst = 20, 40
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Tracing(cfg.TracerProvider))
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig(cfg.IsDevelopment)))
	r.Use(middleware.Timeout(cfg.RequestTimeout))

	r.Get("/health", h.Health)
	r.Get("/api/docs", h.ServeDocs)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.NewGlobalRateLimiter(cfg.RateLimit, cfg.RateBurst).Middleware())
		r.Use(middleware.BearerAuth(cfg.APIToken))

		r.Get("/languages", h.Languages)
		r.Get("/log", h.Log)
		r.Get("/system", h.System)
		r.Get("/entities", h.ListOpen)
		r.Post("/reconcile", h.ReconcileAll)

		r.Route("/entities/{type}/{id}", func(r chi.Router) {
			r.Post("/translations", h.StartTranslation)
			r.Post("/reconcile", h.Reconcile)
			r.Get("/status", h.Status)
			r.Get("/content", h.Content)
			r.Get("/events", h.Events)
			r.Delete("/", h.Cancel)
		})
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteNotFound(w, "Route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed", nil)
	})

	return r
}
