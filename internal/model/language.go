// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "strings"

// LanguageCode is a BCP 47 language code in canonical form (th, en, zh-CN).
// The core treats it as opaque; membership is checked against the
// configured list of supported languages.
type LanguageCode string

// String returns the code as a plain string.
func (c LanguageCode) String() string {
	return string(c)
}

// IsZero reports whether the code is empty.
func (c LanguageCode) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

// LanguageCodes converts plain strings to language codes.
func LanguageCodes(codes ...string) []LanguageCode {
	out := make([]LanguageCode, 0, len(codes))
	for _, c := range codes {
		out = append(out, LanguageCode(c))
	}
	return out
}

// Language describes a supported content language.
type Language struct {
	Code       LanguageCode `json:"code"`
	Name       string       `json:"name"`        // English, Thai, Chinese (Simplified)
	NativeName string       `json:"native_name"` // English, ไทย, 简体中文
}

// DefaultLanguages is the language set used when none is configured.
var DefaultLanguages = []LanguageCode{"th", "en", "zh-CN", "ja", "ko", "ru"}
