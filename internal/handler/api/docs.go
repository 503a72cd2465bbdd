package api

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/version"
)

//go:embed templates/docs.html
var docsFS embed.FS

var docsTemplate = template.Must(template.ParseFS(docsFS, "templates/docs.html"))

// RouteDoc describes one documented endpoint.
type RouteDoc struct {
	Method      string
	Path        string
	Description string
}

// Routes lists the public API surface.
var Routes = []RouteDoc{
	{http.MethodGet, "/health", "Service status and version"},
	{http.MethodGet, "/api/v1/languages", "Supported languages with display names"},
	{http.MethodGet, "/api/v1/log", "Recent warnings and errors (?level=warning|error&limit=N)"},
	{http.MethodGet, "/api/v1/system", "Open entities, webhook counters and scheduled jobs"},
	{http.MethodGet, "/api/v1/entities", "Entities with an open orchestrator"},
	{http.MethodPost, "/api/v1/reconcile", "Reconcile outstanding jobs of every open entity"},
	{http.MethodPost, "/api/v1/entities/{type}/{id}/translations", "Start a translation job {sourceLanguage, targetLanguages}"},
	{http.MethodPost, "/api/v1/entities/{type}/{id}/reconcile", "Resume tracking of outstanding backend jobs"},
	{http.MethodGet, "/api/v1/entities/{type}/{id}/status", "Per-language statuses, errors and tracked jobs"},
	{http.MethodGet, "/api/v1/entities/{type}/{id}/content", "Content merged for ?lang= or Accept-Language"},
	{http.MethodGet, "/api/v1/entities/{type}/{id}/events", "Server-Sent Events stream of translation events"},
	{http.MethodDelete, "/api/v1/entities/{type}/{id}", "Stop tracking the entity's jobs"},
}

type docsData struct {
	Version   string
	BaseURL   string
	Routes    []RouteDoc
	Languages []model.Language
}

// ServeDocs serves the API documentation page.
func (h *Handler) ServeDocs(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if fwdProto := r.Header.Get("X-Forwarded-Proto"); fwdProto != "" {
		scheme = fwdProto
	}

	data := docsData{
		Version:   version.Get().Version,
		BaseURL:   scheme + "://" + r.Host,
		Routes:    Routes,
		Languages: h.registry.Languages(),
	}

	// Render to buffer first
	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, data); err != nil {
		http.Error(w, "Failed to render template: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = buf.WriteTo(w)
}
