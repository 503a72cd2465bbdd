// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package i18n

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/survey-i18n/internal/model"
)

func TestNewRegistry(t *testing.T) {
	r, err := NewRegistry([]string{"th", "EN", "zh-cn", "en"})
	require.NoError(t, err)

	assert.Equal(t, []model.LanguageCode{"th", "en", "zh-CN"}, r.Codes())
}

func TestNewRegistry_Errors(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.Error(t, err)

	_, err = NewRegistry([]string{"th", "not a language!"})
	assert.Error(t, err)
}

func TestRegistry_Normalize(t *testing.T) {
	r := MustRegistry("th", "en", "zh-CN")

	tests := []struct {
		input     string
		want      model.LanguageCode
		supported bool
	}{
		{"th", "th", true},
		{"EN", "en", true},
		{"zh-cn", "zh-CN", true},
		{" en ", "en", true},
		{"ja", "ja", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := r.Normalize(tt.input)
			assert.Equal(t, tt.supported, ok)
			if tt.supported {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestRegistry_Languages(t *testing.T) {
	r := MustRegistry("th", "en")
	langs := r.Languages()
	require.Len(t, langs, 2)

	assert.Equal(t, model.LanguageCode("th"), langs[0].Code)
	assert.Equal(t, "Thai", langs[0].Name)
	assert.NotEmpty(t, langs[0].NativeName)
	assert.Equal(t, "English", langs[1].Name)
}

func TestRegistry_Match(t *testing.T) {
	r := MustRegistry("th", "en", "zh-CN")

	assert.Equal(t, model.LanguageCode("en"), r.Match("en-US,en;q=0.9", "th"))
	assert.Equal(t, model.LanguageCode("th"), r.Match("", "th"))
	assert.Equal(t, model.LanguageCode("th"), r.Match("xx-invalid-@@", "th"))
}

func TestMustRegistry_Panics(t *testing.T) {
	assert.Panics(t, func() { MustRegistry() })
}
