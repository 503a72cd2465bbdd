// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/survey-i18n/internal/cache"
	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/translation"
)

const (
	surveyID = "6f1c2b4e-8a51-4c7e-9d2a-0b3e5f7a9c11"
	couponID = "0d7e4a9b-2c3f-4e1a-8b5d-6f9a1c2e3b44"
	jobID    = "b2a8c1d4-5e6f-4a7b-8c9d-0e1f2a3b4c5d"
)

var discardLogger = slog.New(slog.DiscardHandler)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:               srv.URL,
		Token:                 "secret-token",
		DefaultSourceLanguage: "th",
		PageSize:              2,
	}, WithLogger(discardLogger))
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "https://api.example.com/"})
	assert.NoError(t, err)
}

func TestClient_Create(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/translation/survey/{id}/translate", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, surveyID, r.PathValue("id"))
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "th", body["sourceLanguage"])
		assert.Equal(t, []any{"en", "zh-CN"}, body["targetLanguages"])
		assert.Equal(t, "azure", body["provider"])

		writeJSON(w, http.StatusOK, map[string]any{
			"id":               jobID,
			"entity_type":      "survey",
			"entity_id":        surveyID,
			"source_language":  "th",
			"target_languages": []string{"en", "zh-CN"},
			"status":           "pending",
			"provider":         "azure",
			"created_at":       "2026-01-02T03:04:05Z",
		})
	})
	c := newTestClient(t, mux)

	job, err := c.Create(context.Background(), translation.CreateJobRequest{
		Entity:          model.EntityRef{Type: model.EntityTypeSurvey, ID: surveyID},
		SourceLanguage:  "th",
		TargetLanguages: []model.LanguageCode{"en", "zh-CN"},
	})
	require.NoError(t, err)
	assert.Equal(t, jobID, job.ID)
	assert.Equal(t, model.JobQueued, job.Status)
	assert.Equal(t, []model.LanguageCode{"en", "zh-CN"}, job.TargetLanguages)
	assert.Equal(t, "azure", job.Provider)
	require.NotNil(t, job.CreatedAt)
	assert.Equal(t, 2026, job.CreatedAt.Year())
}

func TestClient_CreateRejectsInvalidEntity(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) { hits.Add(1) }))

	_, err := c.Create(context.Background(), translation.CreateJobRequest{
		Entity: model.EntityRef{Type: model.EntityTypeSurvey, ID: "survey-1"},
	})
	assert.Error(t, err)
	_, err = c.Create(context.Background(), translation.CreateJobRequest{
		Entity: model.EntityRef{Type: "page", ID: surveyID},
	})
	assert.Error(t, err)
	assert.Zero(t, hits.Load())
}

func TestClient_Status(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/translation/job/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":               r.PathValue("id"),
			"entity_type":      "survey",
			"entity_id":        surveyID,
			"source_language":  "th",
			"target_languages": `["ja"]`,
			"status":           "failed",
			"error_message":    "rate limited",
		})
	})
	c := newTestClient(t, mux)

	job, err := c.Status(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, model.JobFailed, job.Status)
	assert.Equal(t, "rate limited", job.Error)
	assert.Equal(t, []model.LanguageCode{"ja"}, job.TargetLanguages)

	_, err = c.Status(context.Background(), "not-a-uuid")
	assert.Error(t, err)
}

func TestClient_APIErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		message   string
		retryable bool
	}{
		{"not found with json message", http.StatusNotFound, `{"error":"Translation job not found"}`, "Translation job not found", false},
		{"unavailable plain body", http.StatusServiceUnavailable, "upstream down", "upstream down", true},
		{"too many requests empty body", http.StatusTooManyRequests, "", "Too Many Requests", true},
		{"bad request", http.StatusBadRequest, `{"message":"Target languages are required"}`, "Target languages are required", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))

			_, err := c.Status(context.Background(), jobID)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.retryable, apiErr.Retryable())
			assert.Equal(t, tt.status == http.StatusNotFound, IsNotFound(err))
			assert.Equal(t, tt.status, StatusCode(err))
		})
	}
}

func TestClient_ListOutstanding(t *testing.T) {
	otherSurvey := "11111111-2222-4333-8444-555555555555"
	job := func(id, entityID, status string, created time.Time) map[string]any {
		return map[string]any{
			"id": id, "entity_type": "survey", "entity_id": entityID,
			"source_language": "th", "target_languages": []string{"en"},
			"status": status, "created_at": created.Format(time.RFC3339),
		}
	}
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	pages := map[string][][]map[string]any{
		"pending": {
			{job("j-3", surveyID, "pending", t0.Add(3*time.Minute)), job("j-x", otherSurvey, "pending", t0)},
			{job("j-1", surveyID, "pending", t0.Add(time.Minute))},
		},
		"processing": {
			{job("j-2", surveyID, "processing", t0.Add(2*time.Minute))},
		},
	}

	var requests atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/translation/jobs", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		assert.Equal(t, "survey", q.Get("entity_type"))
		assert.Equal(t, "2", q.Get("limit"))
		page, _ := strconv.Atoi(q.Get("page"))
		all := pages[q.Get("status")]
		var data []map[string]any
		if page >= 1 && page <= len(all) {
			data = all[page-1]
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": data, "total": 3, "page": page, "limit": 2, "totalPages": len(all),
		})
	})
	c := newTestClient(t, mux)

	jobs, err := c.ListOutstanding(context.Background(), model.EntityRef{Type: model.EntityTypeSurvey, ID: surveyID})
	require.NoError(t, err)

	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	assert.Equal(t, []string{"j-1", "j-2", "j-3"}, ids)
	assert.Equal(t, model.JobProcessing, jobs[1].Status)
	assert.Equal(t, int32(3), requests.Load())
}

func TestClient_ListOutstandingError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	_, err := c.ListOutstanding(context.Background(), model.EntityRef{Type: model.EntityTypeSurvey, ID: surveyID})
	assert.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, StatusCode(err))
}

func TestClient_FetchSurvey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/surveys/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":          surveyID,
			"title":       "ความพึงพอใจ",
			"description": "แบบสอบถาม",
			"questions":   []map[string]any{{"id": "q1", "question_type": "text", "text": "ชื่อ"}},
		})
	})
	mux.HandleFunc("GET /api/translation/survey/{id}/translations", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id":    surveyID,
			"title": "ความพึงพอใจ",
			"translations": []map[string]any{
				{"language": "en", "title": "Satisfaction", "description": "Survey <script>alert(1)</script><b>now</b>",
					"questions": []map[string]any{{"id": "q1", "question_type": "text", "text": "Name"}}},
				{"language": "zh-cn", "title": "满意度", "description": nil, "questions": nil},
				{"language": "!!", "title": "bad"},
			},
		})
	})
	c := newTestClient(t, mux)

	content, err := c.FetchEntity(context.Background(), model.EntityRef{Type: model.EntityTypeSurvey, ID: surveyID})
	require.NoError(t, err)

	assert.Equal(t, model.LanguageCode("th"), content.OriginalLanguage)
	assert.Equal(t, "ความพึงพอใจ", content.Fields.Title)
	assert.Equal(t, "แบบสอบถาม", content.Fields.Description)
	require.Len(t, content.Fields.Questions, 1)
	require.Len(t, content.Translations, 2)

	en := content.Translations["en"]
	require.NotNil(t, en.Title)
	assert.Equal(t, "Satisfaction", *en.Title)
	require.NotNil(t, en.Description)
	assert.Equal(t, "Survey <b>now</b>", *en.Description)
	require.Len(t, en.Questions, 1)
	assert.JSONEq(t, `{"id":"q1","question_type":"text","text":"Name"}`, string(en.Questions[0]))

	zh := content.Translations["zh-CN"]
	assert.Nil(t, zh.Description)
	assert.Nil(t, zh.Questions)
}

func TestClient_FetchCoupon(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/coupons/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"id": couponID, "name": "ส่วนลด 10%", "terms_and_conditions": "ใช้ได้ครั้งเดียว",
				"original_language": "th", "available_languages": []string{"th", "en"},
			},
		})
	})
	mux.HandleFunc("GET /api/translation/coupon/{id}/translations", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"id": couponID, "title": "ส่วนลด 10%",
			"translations": []map[string]any{
				{"language": "en", "title": "10% off", "terms_and_conditions": "Single use & non-transferable"},
			},
		})
	})
	c := newTestClient(t, mux)

	content, err := c.FetchEntity(context.Background(), model.EntityRef{Type: model.EntityTypeCoupon, ID: couponID})
	require.NoError(t, err)
	assert.Equal(t, "ส่วนลด 10%", content.Fields.Title)
	assert.Equal(t, "ใช้ได้ครั้งเดียว", content.Fields.TermsAndConditions)
	assert.Equal(t, []model.LanguageCode{"th", "en"}, content.AvailableLanguages)
	require.NotNil(t, content.Translations["en"].TermsAndConditions)
	assert.Equal(t, "Single use & non-transferable", *content.Translations["en"].TermsAndConditions)
}

func TestClient_FetchEntityPropagatesErrors(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/surveys/{id}", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Survey not found"})
	})
	mux.HandleFunc("GET /api/translation/survey/{id}/translations", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"translations": []any{}})
	})
	c := newTestClient(t, mux)

	_, err := c.FetchEntity(context.Background(), model.EntityRef{Type: model.EntityTypeSurvey, ID: surveyID})
	assert.True(t, IsNotFound(err))
}

func TestParseJobStatus(t *testing.T) {
	tests := map[string]model.JobStatus{
		"pending":     model.JobQueued,
		"queued":      model.JobQueued,
		"processing":  model.JobProcessing,
		"in_progress": model.JobProcessing,
		"RUNNING":     model.JobProcessing,
		"completed":   model.JobCompleted,
		"done":        model.JobCompleted,
		"failed":      model.JobFailed,
		"error":       model.JobFailed,
	}
	for in, want := range tests {
		got, err := ParseJobStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseJobStatus("paused")
	assert.Error(t, err)
}

func TestCachedContentClient(t *testing.T) {
	var fetches atomic.Int32
	inner := contentFunc(func(_ context.Context, ref model.EntityRef) (*model.MultilingualContent, error) {
		n := fetches.Add(1)
		return &model.MultilingualContent{
			OriginalLanguage: "th",
			Fields:           model.Fields{Title: fmt.Sprintf("v%d", n)},
			Translations: map[model.LanguageCode]model.PartialFields{
				"en": {Description: model.StringPtr("")},
			},
		}, nil
	})
	store := cache.NewMemoryCache(cache.MemoryCacheOptions{DefaultTTL: time.Hour})
	defer func() { _ = store.Close() }()
	c := NewCachedContentClient(inner, store, time.Hour, discardLogger)

	ref := model.EntityRef{Type: model.EntityTypeSurvey, ID: surveyID}
	ctx := context.Background()

	first, err := c.FetchEntity(ctx, ref)
	require.NoError(t, err)
	second, err := c.FetchEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v1", second.Fields.Title)
	assert.Equal(t, int32(1), fetches.Load())

	// A defined empty string survives the cache round trip.
	require.NotNil(t, second.Translations["en"].Description)
	assert.Equal(t, "", *second.Translations["en"].Description)
	assert.Equal(t, first.Fields, second.Fields)

	require.NoError(t, c.Invalidate(ctx, ref))
	third, err := c.FetchEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v2", third.Fields.Title)

	require.NoError(t, c.InvalidateAll(ctx))
	fourth, err := c.FetchEntity(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "v3", fourth.Fields.Title)
}

type contentFunc func(context.Context, model.EntityRef) (*model.MultilingualContent, error)

func (f contentFunc) FetchEntity(ctx context.Context, ref model.EntityRef) (*model.MultilingualContent, error) {
	return f(ctx, ref)
}
