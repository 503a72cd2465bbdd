// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging

import (
	"sync"

	"github.com/olegiv/survey-i18n/internal/model"
)

// DefaultEventLogSize is the number of entries kept when no size is given.
const DefaultEventLogSize = 500

// EventLog is a bounded in-memory ring of recent warnings and errors.
type EventLog struct {
	mu      sync.RWMutex
	entries []model.LogEntry
	next    int
	full    bool
	seq     int64
}

// NewEventLog creates an event log holding at most size entries.
func NewEventLog(size int) *EventLog {
	if size <= 0 {
		size = DefaultEventLogSize
	}
	return &EventLog{entries: make([]model.LogEntry, size)}
}

// Add appends an entry, overwriting the oldest one when full, and returns
// the assigned ID.
func (l *EventLog) Add(e model.LogEntry) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	e.ID = l.seq
	l.entries[l.next] = e
	l.next = (l.next + 1) % len(l.entries)
	if l.next == 0 {
		l.full = true
	}
	return e.ID
}

// List returns up to limit entries, newest first. An empty level matches
// every entry. A limit of zero or less returns all matching entries.
func (l *EventLog) List(level string, limit int) []model.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := l.next
	if l.full {
		n = len(l.entries)
	}

	result := make([]model.LogEntry, 0, min(n, max(limit, 0)))
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + len(l.entries)) % len(l.entries)
		e := l.entries[idx]
		if level != "" && e.Level != level {
			continue
		}
		result = append(result, e)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result
}

// Len returns the number of stored entries.
func (l *EventLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.full {
		return len(l.entries)
	}
	return l.next
}
