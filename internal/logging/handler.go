// Package logging provides a custom slog handler that integrates with the Event Log system.
// It forwards logs at WARN level and above to an in-memory Event Log that the
// API exposes to operators.
package logging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/olegiv/survey-i18n/internal/model"
)

// EventLogHandler is a slog.Handler that wraps another handler and also writes
// WARN and ERROR level logs to the Event Log.
type EventLogHandler struct {
	inner slog.Handler
	log   *EventLog
	level slog.Level // Minimum level to forward to Event Log (default: WARN)
	attrs []slog.Attr
}

// NewEventLogHandler creates a new EventLogHandler that wraps the given handler.
// Logs at WARN level and above will be written to both the wrapped handler and the Event Log.
func NewEventLogHandler(inner slog.Handler, log *EventLog) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, log, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a new EventLogHandler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, log *EventLog, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner: inner,
		log:   log,
		level: level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}

	if r.Level >= h.level && h.log != nil {
		h.writeToEventLog(r)
	}
	return nil
}

// WithAttrs implements slog.Handler. Attributes bound to the logger take
// part in category and metadata extraction.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &EventLogHandler{
		inner: h.inner.WithAttrs(attrs),
		log:   h.log,
		level: h.level,
		attrs: merged,
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner: h.inner.WithGroup(name),
		log:   h.log,
		level: h.level,
		attrs: h.attrs,
	}
}

func (h *EventLogHandler) writeToEventLog(r slog.Record) {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})

	h.log.Add(model.LogEntry{
		Level:     slogLevelToEventLevel(r.Level),
		Category:  extractCategory(r.Message, attrs),
		Message:   r.Message,
		Metadata:  extractMetadata(attrs),
		CreatedAt: r.Time,
	})
}

// slogLevelToEventLevel converts a slog.Level to an Event Log level.
func slogLevelToEventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// extractCategory prefers an explicit "category" attribute, then the
// component that logged, then keywords in the message.
func extractCategory(msg string, attrs []slog.Attr) string {
	var component string
	for _, a := range attrs {
		switch a.Key {
		case "category":
			return a.Value.String()
		case "component":
			component = a.Value.String()
		}
	}

	switch component {
	case "translation", "poller", "orchestrator":
		return model.EventCategoryTranslation
	case "backend":
		return model.EventCategoryBackend
	case "webhook":
		return model.EventCategoryWebhook
	case "cache", "content_cache":
		return model.EventCategoryCache
	}

	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "translation") || strings.Contains(msg, "job"):
		return model.EventCategoryTranslation
	case strings.Contains(msg, "backend"):
		return model.EventCategoryBackend
	case strings.Contains(msg, "webhook"):
		return model.EventCategoryWebhook
	case strings.Contains(msg, "cache"):
		return model.EventCategoryCache
	default:
		return model.EventCategorySystem
	}
}

func extractMetadata(attrs []slog.Attr) map[string]string {
	var md map[string]string
	for _, a := range attrs {
		if a.Key == "category" {
			continue
		}
		if md == nil {
			md = make(map[string]string, len(attrs))
		}
		md[a.Key] = a.Value.String()
	}
	return md
}
