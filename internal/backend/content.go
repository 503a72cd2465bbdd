// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/olegiv/survey-i18n/internal/i18n"
	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/translation"
)

var _ translation.ContentClient = (*Client)(nil)

// originalDTO covers the fields of a survey or coupon the translator uses.
// Coupons call their title "name".
type originalDTO struct {
	Title              string            `json:"title"`
	Name               string            `json:"name"`
	Description        *string           `json:"description"`
	Questions          []json.RawMessage `json:"questions"`
	TermsAndConditions *string           `json:"terms_and_conditions"`
	OriginalLanguage   *string           `json:"original_language"`
	AvailableLanguages json.RawMessage   `json:"available_languages"`
}

// couponEnvelope is the {"success":..,"data":..} wrapper coupon routes use.
type couponEnvelope struct {
	Data *originalDTO `json:"data"`
}

type translationDTO struct {
	Language           string          `json:"language"`
	Title              *string         `json:"title"`
	Description        *string         `json:"description"`
	Questions          json.RawMessage `json:"questions"`
	TermsAndConditions *string         `json:"terms_and_conditions"`
}

type translationsDTO struct {
	ID           string           `json:"id"`
	Title        string           `json:"title"`
	Description  *string          `json:"description"`
	Translations []translationDTO `json:"translations"`
}

// FetchEntity loads an entity's original content and all its translations.
func (c *Client) FetchEntity(ctx context.Context, entity model.EntityRef) (*model.MultilingualContent, error) {
	if err := validateEntity(entity); err != nil {
		return nil, err
	}

	var (
		original *originalDTO
		trs      translationsDTO
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		original, err = c.fetchOriginal(gctx, entity)
		return err
	})
	g.Go(func() error {
		path := "/api/translation/" + entity.Type + "/" + url.PathEscape(entity.ID) + "/translations"
		return c.do(gctx, http.MethodGet, "/api/translation/{type}/{id}/translations", path, nil, nil, &trs)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetching %s: %w", entity, err)
	}

	return c.buildContent(original, trs)
}

func (c *Client) fetchOriginal(ctx context.Context, entity model.EntityRef) (*originalDTO, error) {
	id := url.PathEscape(entity.ID)
	switch entity.Type {
	case model.EntityTypeCoupon:
		var env couponEnvelope
		if err := c.do(ctx, http.MethodGet, "/api/coupons/{id}", "/api/coupons/"+id, nil, nil, &env); err != nil {
			return nil, err
		}
		if env.Data == nil {
			return nil, fmt.Errorf("coupon %s: empty response", entity.ID)
		}
		return env.Data, nil
	default:
		var dto originalDTO
		if err := c.do(ctx, http.MethodGet, "/api/surveys/{id}", "/api/surveys/"+id, nil, nil, &dto); err != nil {
			return nil, err
		}
		return &dto, nil
	}
}

func (c *Client) buildContent(orig *originalDTO, trs translationsDTO) (*model.MultilingualContent, error) {
	content := &model.MultilingualContent{
		OriginalLanguage: c.defaultSource,
		Fields: model.Fields{
			Title:     orig.Title,
			Questions: orig.Questions,
		},
		Translations: make(map[model.LanguageCode]model.PartialFields, len(trs.Translations)),
	}
	if content.Fields.Title == "" {
		content.Fields.Title = orig.Name
	}
	if content.Fields.Title == "" {
		content.Fields.Title = trs.Title
	}
	if orig.Description != nil {
		content.Fields.Description = *orig.Description
	} else if trs.Description != nil {
		content.Fields.Description = *trs.Description
	}
	if orig.TermsAndConditions != nil {
		content.Fields.TermsAndConditions = *orig.TermsAndConditions
	}
	if orig.OriginalLanguage != nil {
		if code, ok := i18n.Canonicalize(*orig.OriginalLanguage); ok {
			content.OriginalLanguage = code
		}
	}
	if langs, err := parseTargetLanguages(orig.AvailableLanguages); err == nil {
		content.AvailableLanguages = langs
	}

	for _, tr := range trs.Translations {
		code, ok := i18n.Canonicalize(tr.Language)
		if !ok {
			c.logger.Warn("skipping translation with invalid language", "language", tr.Language)
			continue
		}
		pf := model.PartialFields{
			Title:              c.sanitizePtr(tr.Title),
			Description:        c.sanitizePtr(tr.Description),
			TermsAndConditions: c.sanitizePtr(tr.TermsAndConditions),
		}
		if len(tr.Questions) > 0 && string(tr.Questions) != "null" {
			if err := json.Unmarshal(tr.Questions, &pf.Questions); err != nil {
				return nil, fmt.Errorf("translation %s questions: %w", code, err)
			}
		}
		content.Translations[code] = pf
	}
	return content, nil
}

func (c *Client) sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := c.sanitize(*s)
	return &clean
}
