package api

import (
	"net/http"

	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/translation"
)

// StartRequest is the body of a translation request.
type StartRequest struct {
	SourceLanguage  string   `json:"sourceLanguage"`
	TargetLanguages []string `json:"targetLanguages"`
}

// StartResponse is returned when a translation job was accepted.
type StartResponse struct {
	Job    model.TranslationJob   `json:"job"`
	Status translation.StatusView `json:"status"`
}

// ContentResponse is an entity's content merged for one language.
type ContentResponse struct {
	Entity   model.EntityRef    `json:"entity"`
	Language model.LanguageCode `json:"language"`
	Fields   model.Fields       `json:"fields"`
}

// StartTranslation handles POST /api/v1/entities/{type}/{id}/translations.
func (h *Handler) StartTranslation(w http.ResponseWriter, r *http.Request) {
	ref, ok := entityRef(w, r)
	if !ok {
		return
	}

	var req StartRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	job, err := h.manager.StartTranslation(r.Context(), ref,
		model.LanguageCode(req.SourceLanguage),
		model.LanguageCodes(req.TargetLanguages...))
	if err != nil {
		h.writeServiceError(w, err, "start translation")
		return
	}

	view, err := h.manager.StatusView(ref)
	if err != nil {
		h.writeServiceError(w, err, "read status")
		return
	}
	WriteAccepted(w, StartResponse{Job: job, Status: view})
}

// Reconcile handles POST /api/v1/entities/{type}/{id}/reconcile.
func (h *Handler) Reconcile(w http.ResponseWriter, r *http.Request) {
	ref, ok := entityRef(w, r)
	if !ok {
		return
	}
	if err := h.manager.ReconcileOnLoad(r.Context(), ref); err != nil {
		h.writeServiceError(w, err, "reconcile translation jobs")
		return
	}
	h.writeStatus(w, ref)
}

// Status handles GET /api/v1/entities/{type}/{id}/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	ref, ok := entityRef(w, r)
	if !ok {
		return
	}
	h.writeStatus(w, ref)
}

func (h *Handler) writeStatus(w http.ResponseWriter, ref model.EntityRef) {
	view, err := h.manager.StatusView(ref)
	if err != nil {
		h.writeServiceError(w, err, "read status")
		return
	}
	WriteSuccess(w, view, nil)
}

// Content handles GET /api/v1/entities/{type}/{id}/content. The language
// comes from ?lang=, then Accept-Language, then the entity's original
// language.
func (h *Handler) Content(w http.ResponseWriter, r *http.Request) {
	ref, ok := entityRef(w, r)
	if !ok {
		return
	}

	var lang model.LanguageCode
	if q := r.URL.Query().Get("lang"); q != "" {
		normalized, ok := h.registry.Normalize(q)
		if !ok {
			WriteValidationError(w, map[string]string{"lang": "unsupported language " + q})
			return
		}
		lang = normalized
	} else if accept := r.Header.Get("Accept-Language"); accept != "" {
		lang = h.registry.Match(accept, "")
	}

	fields, shown, err := h.manager.DisplayContent(r.Context(), ref, lang)
	if err != nil {
		h.writeServiceError(w, err, "load content")
		return
	}
	WriteSuccess(w, ContentResponse{Entity: ref, Language: shown, Fields: fields}, nil)
}

// Cancel handles DELETE /api/v1/entities/{type}/{id}. Tracking stops;
// backend jobs keep running.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	ref, ok := entityRef(w, r)
	if !ok {
		return
	}
	n := h.manager.CancelAll(ref)
	h.logger.Info("stopped tracking entity", "entity", ref.String(), "jobs", n)
	w.WriteHeader(http.StatusNoContent)
}

// ListOpen handles GET /api/v1/entities.
func (h *Handler) ListOpen(w http.ResponseWriter, _ *http.Request) {
	refs := h.manager.Open()
	WriteSuccess(w, refs, &Meta{Total: len(refs)})
}

// ReconcileAll handles POST /api/v1/reconcile.
func (h *Handler) ReconcileAll(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.ReconcileAll(r.Context()); err != nil {
		h.writeServiceError(w, err, "reconcile translation jobs")
		return
	}
	WriteSuccess(w, map[string]int{"entities": len(h.manager.Open())}, nil)
}
