// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"context"

	"github.com/olegiv/survey-i18n/internal/model"
)

// CreateJobRequest asks the backend to translate an entity.
type CreateJobRequest struct {
	Entity          model.EntityRef
	SourceLanguage  model.LanguageCode
	TargetLanguages []model.LanguageCode
	Provider        string
}

// JobClient talks to the backend's translation job API.
type JobClient interface {
	Create(ctx context.Context, req CreateJobRequest) (model.TranslationJob, error)
	Status(ctx context.Context, jobID string) (model.TranslationJob, error)
	ListOutstanding(ctx context.Context, entity model.EntityRef) ([]model.TranslationJob, error)
}

// ContentClient loads an entity's original content and translations.
type ContentClient interface {
	FetchEntity(ctx context.Context, entity model.EntityRef) (*model.MultilingualContent, error)
}

// ContentInvalidator is implemented by caching content clients so a
// completed job can force the next fetch to hit the backend.
type ContentInvalidator interface {
	Invalidate(ctx context.Context, entity model.EntityRef) error
}
