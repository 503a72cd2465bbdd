package api

import (
	"net/http"
	"strconv"

	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/scheduler"
	"github.com/olegiv/survey-i18n/internal/version"
	"github.com/olegiv/survey-i18n/internal/webhook"
)

// HealthResponse contains service status information.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version version.Info `json:"version"`
}

// Health handles GET /health.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	WriteSuccess(w, HealthResponse{Status: "ok", Version: version.Get()}, nil)
}

// Languages handles GET /api/v1/languages.
func (h *Handler) Languages(w http.ResponseWriter, _ *http.Request) {
	langs := h.registry.Languages()
	WriteSuccess(w, langs, &Meta{Total: len(langs)})
}

// Log handles GET /api/v1/log?level=&limit=.
func (h *Handler) Log(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	level := q.Get("level")
	switch level {
	case "", model.EventLevelWarning, model.EventLevelError:
	default:
		WriteValidationError(w, map[string]string{"level": "must be warning or error"})
		return
	}

	limit := 50
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			WriteValidationError(w, map[string]string{"limit": "must be between 1 and 500"})
			return
		}
		limit = n
	}

	entries := h.eventLog.List(level, limit)
	WriteSuccess(w, entries, &Meta{Total: len(entries)})
}

// SystemResponse reports background workers.
type SystemResponse struct {
	OpenEntities int                 `json:"open_entities"`
	Webhooks     *webhook.Stats      `json:"webhooks,omitempty"`
	Jobs         []scheduler.JobInfo `json:"jobs,omitempty"`
	Version      version.Info        `json:"version"`
}

// System handles GET /api/v1/system.
func (h *Handler) System(w http.ResponseWriter, _ *http.Request) {
	resp := SystemResponse{
		OpenEntities: len(h.manager.Open()),
		Version:      version.Get(),
	}
	if h.webhooks != nil {
		stats := h.webhooks.Stats()
		resp.Webhooks = &stats
	}
	if h.scheduler != nil {
		resp.Jobs = h.scheduler.List()
	}
	WriteSuccess(w, resp, nil)
}
