// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package api provides REST API handlers for translation orchestration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/survey-i18n/internal/backend"
	"github.com/olegiv/survey-i18n/internal/i18n"
	"github.com/olegiv/survey-i18n/internal/logging"
	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/scheduler"
	"github.com/olegiv/survey-i18n/internal/translation"
	"github.com/olegiv/survey-i18n/internal/webhook"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Orchestration is the translation manager surface used by the handlers.
type Orchestration interface {
	StartTranslation(ctx context.Context, ref model.EntityRef, source model.LanguageCode, targets []model.LanguageCode) (model.TranslationJob, error)
	ReconcileOnLoad(ctx context.Context, ref model.EntityRef) error
	ReconcileAll(ctx context.Context) error
	StatusView(ref model.EntityRef) (translation.StatusView, error)
	DisplayContent(ctx context.Context, ref model.EntityRef, lang model.LanguageCode) (model.Fields, model.LanguageCode, error)
	CancelAll(ref model.EntityRef) int
	Open() []model.EntityRef
	Subscribe(h translation.EventHandler) (unsubscribe func())
}

// WebhookStats reports webhook delivery counters.
type WebhookStats interface {
	Stats() webhook.Stats
}

// JobLister reports scheduled background jobs.
type JobLister interface {
	List() []scheduler.JobInfo
}

// Handler holds shared dependencies for all API handlers.
type Handler struct {
	manager   Orchestration
	registry  *i18n.Registry
	eventLog  *logging.EventLog
	webhooks  WebhookStats
	scheduler JobLister
	logger    *slog.Logger

	streamsDone chan struct{}
	closeOnce   sync.Once
}

// Deps are the collaborators of a Handler. Webhooks and Scheduler are
// optional.
type Deps struct {
	Manager   Orchestration
	Registry  *i18n.Registry
	EventLog  *logging.EventLog
	Webhooks  WebhookStats
	Scheduler JobLister
	Logger    *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.EventLog == nil {
		d.EventLog = logging.NewEventLog(0)
	}
	return &Handler{
		manager:   d.Manager,
		registry:  d.Registry,
		eventLog:  d.EventLog,
		webhooks:  d.Webhooks,
		scheduler: d.Scheduler,
		logger:    d.Logger.With("component", "api"),

		streamsDone: make(chan struct{}),
	}
}

// CloseStreams ends all open event streams. It is meant for
// http.Server.RegisterOnShutdown, since Shutdown does not cancel
// long-lived requests.
func (h *Handler) CloseStreams() {
	h.closeOnce.Do(func() { close(h.streamsDone) })
}

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta contains list metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
}

// ErrorResponse is the standard API error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful JSON response.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteAccepted writes a 202 Accepted JSON response.
func WriteAccepted(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusAccepted, Response{Data: data})
}

// WriteError writes an error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, code, message string, details map[string]string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
			Details: details,
		},
	})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message, details)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message, nil)
}

// WriteValidationError writes a 400 response with field errors.
func WriteValidationError(w http.ResponseWriter, fieldErrors map[string]string) {
	WriteError(w, http.StatusBadRequest, "validation_error", "Validation failed", fieldErrors)
}

// writeServiceError maps orchestration errors onto HTTP responses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, action string) {
	var ve *translation.ValidationError
	switch {
	case errors.As(err, &ve):
		WriteValidationError(w, map[string]string{ve.Field: ve.Reason})
	case errors.Is(err, translation.ErrClosed):
		WriteError(w, http.StatusServiceUnavailable, "unavailable", "Service is shutting down", nil)
	case backend.IsNotFound(err):
		WriteNotFound(w, "Entity not found")
	case errors.Is(err, context.DeadlineExceeded):
		WriteError(w, http.StatusGatewayTimeout, "backend_timeout", "Backend did not respond in time", nil)
	default:
		h.logger.Error("backend request failed", "action", action, "error", err)
		WriteError(w, http.StatusBadGateway, "backend_error", "Failed to "+action, nil)
	}
}

// entityRef parses {type} and {id} from the route.
func entityRef(w http.ResponseWriter, r *http.Request) (model.EntityRef, bool) {
	ref := model.EntityRef{
		Type: chi.URLParam(r, "type"),
		ID:   chi.URLParam(r, "id"),
	}
	if err := ref.Validate(); err != nil {
		WriteValidationError(w, map[string]string{"entity": err.Error()})
		return model.EntityRef{}, false
	}
	return ref, true
}

// decodeJSON decodes a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteBadRequest(w, "Invalid JSON body", map[string]string{"body": err.Error()})
		return false
	}
	return true
}
