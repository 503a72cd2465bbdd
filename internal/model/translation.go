// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Entity types that can be translated.
const (
	EntityTypeSurvey = "survey"
	EntityTypeCoupon = "coupon"
)

// EntityRef identifies a translatable entity.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// String returns "type/id".
func (r EntityRef) String() string {
	return r.Type + "/" + r.ID
}

// Validate checks the entity type and id.
func (r EntityRef) Validate() error {
	switch r.Type {
	case EntityTypeSurvey, EntityTypeCoupon:
	default:
		return fmt.Errorf("unknown entity type %q", r.Type)
	}
	if r.ID == "" {
		return fmt.Errorf("entity id is required")
	}
	return nil
}

// TranslationStatus is the per-language status of an entity's content.
type TranslationStatus string

// Translation statuses
const (
	StatusOriginal   TranslationStatus = "original"
	StatusPending    TranslationStatus = "pending"
	StatusTranslated TranslationStatus = "translated"
	StatusError      TranslationStatus = "error"
)

// JobStatus is the backend status of a translation job.
type JobStatus string

// Job statuses
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether the job has finished.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// TranslationJob is a backend-tracked asynchronous translation unit.
type TranslationJob struct {
	ID              string         `json:"id"`
	EntityID        string         `json:"entity_id"`
	EntityType      string         `json:"entity_type"`
	SourceLanguage  LanguageCode   `json:"source_language"`
	TargetLanguages []LanguageCode `json:"target_languages"`
	Status          JobStatus      `json:"status"`
	Provider        string         `json:"provider,omitempty"`
	Error           string         `json:"error,omitempty"`
	CreatedAt       *time.Time     `json:"created_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
}

// Entity returns the reference of the entity the job translates.
func (j TranslationJob) Entity() EntityRef {
	return EntityRef{Type: j.EntityType, ID: j.EntityID}
}

// Fields holds the translatable fields of an entity.
// Questions are opaque JSON objects owned by the question renderers.
type Fields struct {
	Title              string            `json:"title"`
	Description        string            `json:"description"`
	Questions          []json.RawMessage `json:"questions"`
	TermsAndConditions string            `json:"terms_and_conditions,omitempty"`
}

// PartialFields is a translation that may define any subset of Fields.
// A nil field is undefined and falls back to the original value.
type PartialFields struct {
	Title              *string           `json:"title,omitempty"`
	Description        *string           `json:"description,omitempty"`
	Questions          []json.RawMessage `json:"questions"`
	TermsAndConditions *string           `json:"terms_and_conditions,omitempty"`
}

// MultilingualContent is an entity's original content plus its translations.
type MultilingualContent struct {
	OriginalLanguage   LanguageCode                   `json:"original_language"`
	AvailableLanguages []LanguageCode                 `json:"available_languages"`
	Fields             Fields                         `json:"fields"`
	Translations       map[LanguageCode]PartialFields `json:"translations"`
}

// TranslatedLanguages returns the languages that have a translation entry.
func (c *MultilingualContent) TranslatedLanguages() []LanguageCode {
	out := make([]LanguageCode, 0, len(c.Translations))
	for lang := range c.Translations {
		out = append(out, lang)
	}
	return out
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
