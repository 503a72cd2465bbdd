package model

import "time"

// Log entry levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Log entry categories
const (
	EventCategoryTranslation = "translation"
	EventCategoryBackend     = "backend"
	EventCategoryWebhook     = "webhook"
	EventCategoryCache       = "cache"
	EventCategorySystem      = "system"
)

// LogEntry is a warning or error record kept in the in-memory event log.
type LogEntry struct {
	ID        int64             `json:"id"`
	Level     string            `json:"level"`
	Category  string            `json:"category"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Translation event types published by the orchestrator.
const (
	EventTranslationStarted   = "translation.started"
	EventTranslationCompleted = "translation.completed"
	EventTranslationFailed    = "translation.failed"
	EventTranslationTimedOut  = "translation.timed_out"
	EventTranslationCancelled = "translation.cancelled"
	EventContentRefreshed     = "content.refreshed"
	EventContentLoaded        = "content.loaded"
)

// TranslationEvent notifies presentation collaborators of orchestration
// progress. The orchestrator never decides how users are notified.
type TranslationEvent struct {
	Type      string         `json:"type"`
	Entity    EntityRef      `json:"entity"`
	JobID     string         `json:"job_id,omitempty"`
	Languages []LanguageCode `json:"languages,omitempty"`
	Message   string         `json:"message,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
