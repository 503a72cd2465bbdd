// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/olegiv/survey-i18n/internal/model"
	"github.com/olegiv/survey-i18n/internal/translation"
)

var _ translation.JobClient = (*Client)(nil)

// jobDTO is a translation_jobs row as serialized by the backend.
type jobDTO struct {
	ID              string          `json:"id"`
	EntityType      string          `json:"entity_type"`
	EntityID        string          `json:"entity_id"`
	SourceLanguage  string          `json:"source_language"`
	TargetLanguages json.RawMessage `json:"target_languages"`
	Status          string          `json:"status"`
	Provider        *string         `json:"provider"`
	CreatedAt       *time.Time      `json:"created_at"`
	CompletedAt     *time.Time      `json:"completed_at"`
	ErrorMessage    *string         `json:"error_message"`
}

type jobsPage struct {
	Data       []jobDTO `json:"data"`
	Total      int64    `json:"total"`
	Page       int      `json:"page"`
	Limit      int      `json:"limit"`
	TotalPages int      `json:"totalPages"`
}

type translateRequest struct {
	SourceLanguage  string   `json:"sourceLanguage"`
	TargetLanguages []string `json:"targetLanguages"`
	Provider        string   `json:"provider"`
}

// ParseJobStatus maps the backend's job status vocabulary onto JobStatus.
func ParseJobStatus(s string) (model.JobStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending", "queued":
		return model.JobQueued, nil
	case "processing", "in_progress", "running":
		return model.JobProcessing, nil
	case "completed", "done":
		return model.JobCompleted, nil
	case "failed", "error":
		return model.JobFailed, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

func (d jobDTO) toModel() (model.TranslationJob, error) {
	status, err := ParseJobStatus(d.Status)
	if err != nil {
		return model.TranslationJob{}, fmt.Errorf("job %s: %w", d.ID, err)
	}
	targets, err := parseTargetLanguages(d.TargetLanguages)
	if err != nil {
		return model.TranslationJob{}, fmt.Errorf("job %s: %w", d.ID, err)
	}

	job := model.TranslationJob{
		ID:              d.ID,
		EntityID:        d.EntityID,
		EntityType:      d.EntityType,
		SourceLanguage:  model.LanguageCode(d.SourceLanguage),
		TargetLanguages: targets,
		Status:          status,
		CreatedAt:       d.CreatedAt,
		CompletedAt:     d.CompletedAt,
	}
	if d.Provider != nil {
		job.Provider = *d.Provider
	}
	if d.ErrorMessage != nil {
		job.Error = *d.ErrorMessage
	}
	return job, nil
}

// parseTargetLanguages accepts a JSON array of codes or a string holding
// one, since the column is free-form JSON.
func parseTargetLanguages(raw json.RawMessage) ([]model.LanguageCode, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var codes []string
	if err := json.Unmarshal(raw, &codes); err != nil {
		var encoded string
		if json.Unmarshal(raw, &encoded) != nil {
			return nil, fmt.Errorf("target_languages: %w", err)
		}
		if err := json.Unmarshal([]byte(encoded), &codes); err != nil {
			return nil, fmt.Errorf("target_languages: %w", err)
		}
	}
	return model.LanguageCodes(codes...), nil
}

func validateEntity(ref model.EntityRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if _, err := uuid.Parse(ref.ID); err != nil {
		return fmt.Errorf("invalid %s id %q: %w", ref.Type, ref.ID, err)
	}
	return nil
}

// Create starts a backend translation job.
func (c *Client) Create(ctx context.Context, req translation.CreateJobRequest) (model.TranslationJob, error) {
	if err := validateEntity(req.Entity); err != nil {
		return model.TranslationJob{}, err
	}
	provider := req.Provider
	if provider == "" {
		provider = c.provider
	}
	targets := make([]string, len(req.TargetLanguages))
	for i, lang := range req.TargetLanguages {
		targets[i] = string(lang)
	}

	var dto jobDTO
	path := "/api/translation/" + req.Entity.Type + "/" + url.PathEscape(req.Entity.ID) + "/translate"
	err := c.do(ctx, http.MethodPost, "/api/translation/{type}/{id}/translate", path, nil,
		translateRequest{
			SourceLanguage:  string(req.SourceLanguage),
			TargetLanguages: targets,
			Provider:        provider,
		}, &dto)
	if err != nil {
		return model.TranslationJob{}, err
	}
	return dto.toModel()
}

// Status fetches the current state of a job.
func (c *Client) Status(ctx context.Context, jobID string) (model.TranslationJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return model.TranslationJob{}, fmt.Errorf("invalid job id %q: %w", jobID, err)
	}
	var dto jobDTO
	if err := c.do(ctx, http.MethodGet, "/api/translation/job/{id}", "/api/translation/job/"+jobID, nil, nil, &dto); err != nil {
		return model.TranslationJob{}, err
	}
	return dto.toModel()
}

// ListOutstanding returns the entity's pending and processing jobs, oldest
// first. The backend only filters by user and entity type, so the entity id
// is matched here.
func (c *Client) ListOutstanding(ctx context.Context, entity model.EntityRef) ([]model.TranslationJob, error) {
	if err := validateEntity(entity); err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		jobs []model.TranslationJob
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, status := range []string{"pending", "processing"} {
		g.Go(func() error {
			found, err := c.listJobs(gctx, status, entity)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, job := range found {
				if _, dup := seen[job.ID]; dup {
					continue
				}
				seen[job.ID] = struct{}{}
				jobs = append(jobs, job)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slices.SortStableFunc(jobs, func(a, b model.TranslationJob) int {
		return createdAt(a).Compare(createdAt(b))
	})
	return jobs, nil
}

func createdAt(j model.TranslationJob) time.Time {
	if j.CreatedAt == nil {
		return time.Time{}
	}
	return *j.CreatedAt
}

func (c *Client) listJobs(ctx context.Context, status string, entity model.EntityRef) ([]model.TranslationJob, error) {
	var out []model.TranslationJob
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("status", status)
		q.Set("entity_type", entity.Type)
		q.Set("page", strconv.Itoa(page))
		q.Set("limit", strconv.Itoa(c.pageSize))

		var resp jobsPage
		if err := c.do(ctx, http.MethodGet, "/api/translation/jobs", "/api/translation/jobs", q, nil, &resp); err != nil {
			return nil, fmt.Errorf("listing %s jobs: %w", status, err)
		}
		for _, dto := range resp.Data {
			if !strings.EqualFold(dto.EntityID, entity.ID) {
				continue
			}
			job, err := dto.toModel()
			if err != nil {
				c.logger.Warn("skipping malformed translation job", "error", err)
				continue
			}
			out = append(out, job)
		}
		if page >= resp.TotalPages || len(resp.Data) == 0 {
			return out, nil
		}
	}
}
