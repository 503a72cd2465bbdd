package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/olegiv/survey-i18n/internal/model"
)

// Event stream tuning.
const (
	sseBuffer    = 32
	sseHeartbeat = 15 * time.Second
)

// Events handles GET /api/v1/entities/{type}/{id}/events as a
// Server-Sent Events stream of that entity's translation events. Events
// are dropped for a client that falls more than sseBuffer events behind.
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	ref, ok := entityRef(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteInternalError(w, "Streaming unsupported")
		return
	}

	events := make(chan model.TranslationEvent, sseBuffer)
	unsubscribe := h.manager.Subscribe(func(ev model.TranslationEvent) {
		if ev.Entity != ref {
			return
		}
		select {
		case events <- ev:
		default:
			h.logger.Warn("event stream client too slow, event dropped",
				"entity", ref.String(),
				"event_type", ev.Type)
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	// Send the current view first so clients need no separate status call.
	if view, err := h.manager.StatusView(ref); err == nil {
		if err := writeSSE(w, "status", view); err != nil {
			return
		}
	}
	flusher.Flush()

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.streamsDone:
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev := <-events:
			if err := writeSSE(w, ev.Type, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
