// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package webhook delivers translation events to external HTTP endpoints.
package webhook

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/survey-i18n/internal/model"
)

// Event is the JSON body posted to webhook endpoints.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      model.TranslationEvent `json:"data"`
}

// NewEvent wraps a translation event for delivery.
func NewEvent(ev model.TranslationEvent) *Event {
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return &Event{
		ID:        uuid.NewString(),
		Type:      ev.Type,
		Timestamp: ts.UTC(),
		Data:      ev,
	}
}

// Endpoint is a configured webhook receiver.
type Endpoint struct {
	URL     string
	Secret  string
	Events  []string // empty = all events
	Headers map[string]string
}

// HasEvent reports whether the endpoint subscribes to eventType.
func (e Endpoint) HasEvent(eventType string) bool {
	return len(e.Events) == 0 || slices.Contains(e.Events, eventType)
}
