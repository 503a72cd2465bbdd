// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventLevelConstants(t *testing.T) {
	tests := []struct {
		name     string
		constant string
		expected string
	}{
		{"info level", EventLevelInfo, "info"},
		{"warning level", EventLevelWarning, "warning"},
		{"error level", EventLevelError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.constant)
		})
	}
}

func TestEntityRef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     EntityRef
		wantErr bool
	}{
		{"survey", EntityRef{Type: EntityTypeSurvey, ID: "survey-1"}, false},
		{"coupon", EntityRef{Type: EntityTypeCoupon, ID: "c-9"}, false},
		{"unknown type", EntityRef{Type: "page", ID: "1"}, true},
		{"missing id", EntityRef{Type: EntityTypeSurvey}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	assert.False(t, JobQueued.IsTerminal())
	assert.False(t, JobProcessing.IsTerminal())
	assert.True(t, JobCompleted.IsTerminal())
	assert.True(t, JobFailed.IsTerminal())
}

func TestMultilingualContent_TranslatedLanguages(t *testing.T) {
	c := MultilingualContent{
		OriginalLanguage: "th",
		Translations: map[LanguageCode]PartialFields{
			"en": {Title: StringPtr("Hello")},
		},
	}
	assert.Equal(t, []LanguageCode{"en"}, c.TranslatedLanguages())
	assert.Equal(t, "survey/s1", EntityRef{Type: "survey", ID: "s1"}.String())
}
