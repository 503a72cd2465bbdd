// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import "github.com/olegiv/survey-i18n/internal/model"

// MergeForDisplay returns the content to show for selected.
//
// The original is returned unchanged when selected is the original language
// or has no translation yet. Otherwise every field independently takes the
// translated value when defined and falls back to the original value.
func MergeForDisplay(
	original model.Fields,
	translations map[model.LanguageCode]model.PartialFields,
	selected, originalLanguage model.LanguageCode,
) model.Fields {
	if selected == originalLanguage {
		return original
	}
	tr, ok := translations[selected]
	if !ok {
		return original
	}

	merged := original
	if tr.Title != nil {
		merged.Title = *tr.Title
	}
	if tr.Description != nil {
		merged.Description = *tr.Description
	}
	if tr.Questions != nil {
		merged.Questions = tr.Questions
	}
	if tr.TermsAndConditions != nil {
		merged.TermsAndConditions = *tr.TermsAndConditions
	}
	return merged
}
