// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package i18n holds the set of content languages translations may target.
package i18n

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/olegiv/survey-i18n/internal/model"
)

// Registry is an immutable set of supported content languages.
// Codes are stored in canonical BCP 47 form, so "zh-cn" and "zh-CN" match.
type Registry struct {
	codes   []model.LanguageCode
	index   map[model.LanguageCode]struct{}
	tags    []language.Tag
	matcher language.Matcher
}

// NewRegistry builds a registry from language codes.
// Every code must parse as a BCP 47 tag.
func NewRegistry(codes []string) (*Registry, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("at least one supported language is required")
	}

	r := &Registry{index: make(map[model.LanguageCode]struct{}, len(codes))}
	for _, code := range codes {
		tag, err := language.Parse(strings.TrimSpace(code))
		if err != nil {
			return nil, fmt.Errorf("invalid language code %q: %w", code, err)
		}
		canonical := model.LanguageCode(tag.String())
		if _, dup := r.index[canonical]; dup {
			continue
		}
		r.index[canonical] = struct{}{}
		r.codes = append(r.codes, canonical)
		r.tags = append(r.tags, tag)
	}
	r.matcher = language.NewMatcher(r.tags)
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error. Intended for tests
// and package-level defaults.
func MustRegistry(codes ...string) *Registry {
	r, err := NewRegistry(codes)
	if err != nil {
		panic(err)
	}
	return r
}

// Canonicalize returns the canonical form of code, or false if the code is
// not a valid language tag.
func Canonicalize(code string) (model.LanguageCode, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return "", false
	}
	return model.LanguageCode(tag.String()), true
}

// Normalize canonicalizes code and reports whether it is supported.
func (r *Registry) Normalize(code string) (model.LanguageCode, bool) {
	canonical, ok := Canonicalize(code)
	if !ok {
		return model.LanguageCode(code), false
	}
	return canonical, r.IsSupported(canonical)
}

// IsSupported reports whether code (already canonical) is supported.
func (r *Registry) IsSupported(code model.LanguageCode) bool {
	_, ok := r.index[code]
	return ok
}

// Codes returns the supported codes in configuration order.
func (r *Registry) Codes() []model.LanguageCode {
	out := make([]model.LanguageCode, len(r.codes))
	copy(out, r.codes)
	return out
}

// Languages returns the supported languages with English and native names.
func (r *Registry) Languages() []model.Language {
	out := make([]model.Language, 0, len(r.tags))
	for i, tag := range r.tags {
		out = append(out, model.Language{
			Code:       r.codes[i],
			Name:       display.English.Tags().Name(tag),
			NativeName: display.Self.Name(tag),
		})
	}
	return out
}

// Match picks the best supported language for an Accept-Language header
// value or a single code. It returns fallback when nothing matches.
func (r *Registry) Match(accept string, fallback model.LanguageCode) model.LanguageCode {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return fallback
	}
	_, idx, confidence := r.matcher.Match(tags...)
	if confidence == language.No || idx < 0 || idx >= len(r.codes) {
		return fallback
	}
	return r.codes[idx]
}
