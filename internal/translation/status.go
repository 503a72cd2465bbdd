// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"sync"

	"github.com/olegiv/survey-i18n/internal/model"
)

// StatusSnapshot is a point-in-time copy of per-language statuses.
type StatusSnapshot map[model.LanguageCode]model.TranslationStatus

// StatusStore holds the per-language translation status of one entity.
// The original language is fixed once set and its status is always
// StatusOriginal.
type StatusStore struct {
	mu       sync.RWMutex
	original model.LanguageCode
	statuses map[model.LanguageCode]model.TranslationStatus
}

// NewStatusStore creates an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{
		statuses: make(map[model.LanguageCode]model.TranslationStatus),
	}
}

// SetOriginal fixes the entity's source language. Only the first call has
// an effect; it reports whether lang is the original language afterwards.
func (s *StatusStore) SetOriginal(lang model.LanguageCode) bool {
	if lang.IsZero() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.original == "" {
		s.original = lang
		s.statuses[lang] = model.StatusOriginal
	}
	return s.original == lang
}

// Original returns the source language, or "" if not yet known.
func (s *StatusStore) Original() model.LanguageCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.original
}

// SetStatus sets the status of one language. Changes to the original
// language, and attempts to mark another language original, are ignored.
// It reports whether the status was applied.
func (s *StatusStore) SetStatus(lang model.LanguageCode, status model.TranslationStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setLocked(lang, status)
}

// BulkSetStatus sets status on every language and returns those applied.
func (s *StatusStore) BulkSetStatus(langs []model.LanguageCode, status model.TranslationStatus) []model.LanguageCode {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := make([]model.LanguageCode, 0, len(langs))
	for _, lang := range langs {
		if s.setLocked(lang, status) {
			applied = append(applied, lang)
		}
	}
	return applied
}

func (s *StatusStore) setLocked(lang model.LanguageCode, status model.TranslationStatus) bool {
	if lang.IsZero() || status == model.StatusOriginal {
		return false
	}
	if lang == s.original {
		return false
	}
	s.statuses[lang] = status
	return true
}

// InitStatus sets status for lang only if it has none yet.
func (s *StatusStore) InitStatus(lang model.LanguageCode, status model.TranslationStatus) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.statuses[lang]; ok {
		return false
	}
	return s.setLocked(lang, status)
}

// Status returns the status of lang.
func (s *StatusStore) Status(lang model.LanguageCode) (model.TranslationStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[lang]
	return st, ok
}

// Snapshot returns a copy of all statuses.
func (s *StatusStore) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(StatusSnapshot, len(s.statuses))
	for lang, st := range s.statuses {
		out[lang] = st
	}
	return out
}
