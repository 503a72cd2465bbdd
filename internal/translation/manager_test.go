// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/survey-i18n/internal/model"
)

func newTestManager(t *testing.T, jobs *fakeJobs, content *fakeContent) (*Manager, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	m, err := NewManager(jobs, content, Options{
		Policy: Policy{Interval: time.Second, MaxDuration: time.Minute, MaxRetries: 1},
		Clock:  clock,
		Logger: discardLogger,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m, clock
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(nil, newFakeContent(), Options{})
	assert.Error(t, err)

	_, err = NewManager(newFakeJobs(alwaysProcessing), newFakeContent(), Options{
		Policy: Policy{Interval: time.Minute, MaxDuration: time.Second},
	})
	assert.Error(t, err)
}

func TestManager_RoutesByEntity(t *testing.T) {
	m, _ := newTestManager(t, newFakeJobs(alwaysProcessing), newFakeContent())

	a, err := m.Orchestrator(survey1)
	require.NoError(t, err)
	b, err := m.Orchestrator(survey1)
	require.NoError(t, err)
	assert.Same(t, a, b)

	coupon := model.EntityRef{Type: model.EntityTypeCoupon, ID: "c-9"}
	c, err := m.Orchestrator(coupon)
	require.NoError(t, err)
	assert.NotSame(t, a, c)

	assert.Equal(t, []model.EntityRef{coupon, survey1}, m.Open())

	_, err = m.Orchestrator(model.EntityRef{Type: "page", ID: "1"})
	assert.True(t, IsValidation(err))
}

func TestManager_StartTranslationLoadsContent(t *testing.T) {
	content := newFakeContent()
	jobs := newFakeJobs(completesOn(1))
	m, clock := newTestManager(t, jobs, content)

	events := make(chan model.TranslationEvent, 16)
	unsubscribe := m.Subscribe(func(ev model.TranslationEvent) { events <- ev })
	defer unsubscribe()

	_, err := m.StartTranslation(context.Background(), survey1, "en", []model.LanguageCode{"ja"})
	require.True(t, IsValidation(err), "source must match the loaded original language")

	_, err = m.StartTranslation(context.Background(), survey1, "th", []model.LanguageCode{"ja"})
	require.NoError(t, err)

	view, err := m.StatusView(survey1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, view.Statuses["ja"])

	content.setTranslations(map[model.LanguageCode]model.PartialFields{"ja": {Title: model.StringPtr("満足度")}})

	var got []string
	deadline := time.After(2 * time.Second)
	for len(got) == 0 || got[len(got)-1] != model.EventContentRefreshed {
		select {
		case ev := <-events:
			got = append(got, ev.Type)
		case <-deadline:
			t.Fatalf("events so far: %v", got)
		default:
			clock.Advance(time.Second)
			time.Sleep(2 * time.Millisecond)
		}
	}
	assert.Equal(t, []string{
		model.EventContentLoaded,
		model.EventTranslationStarted,
		model.EventTranslationCompleted,
		model.EventContentRefreshed,
	}, got)

	fields, lang, err := m.DisplayContent(context.Background(), survey1, "ja")
	require.NoError(t, err)
	assert.Equal(t, "満足度", fields.Title)
	assert.Equal(t, model.LanguageCode("ja"), lang)
}

func TestManager_DisplayContentLoadError(t *testing.T) {
	content := newFakeContent()
	content.err = errors.New("not found")
	m, _ := newTestManager(t, newFakeJobs(alwaysProcessing), content)

	_, _, err := m.DisplayContent(context.Background(), survey1, "en")
	assert.ErrorContains(t, err, "not found")
}

func TestManager_CancelAllForgetsEntity(t *testing.T) {
	jobs := newFakeJobs(alwaysProcessing)
	m, _ := newTestManager(t, jobs, newFakeContent())

	_, err := m.StartTranslation(context.Background(), survey1, "th", []model.LanguageCode{"en"})
	require.NoError(t, err)

	assert.Equal(t, 1, m.CancelAll(survey1))
	_, ok := m.Lookup(survey1)
	assert.False(t, ok)
	assert.Zero(t, m.CancelAll(survey1))

	// Reopening starts from a clean orchestrator.
	o, err := m.Orchestrator(survey1)
	require.NoError(t, err)
	assert.Empty(t, o.ActiveJobs())
}

func TestManager_ReconcileAll(t *testing.T) {
	jobs := newFakeJobs(alwaysProcessing)
	jobs.outstanding = []model.TranslationJob{
		{ID: "job-x", EntityID: "survey-1", EntityType: "survey", SourceLanguage: "th",
			TargetLanguages: []model.LanguageCode{"ko"}, Status: model.JobQueued},
	}
	m, _ := newTestManager(t, jobs, newFakeContent())

	_, err := m.Orchestrator(survey1)
	require.NoError(t, err)
	require.NoError(t, m.ReconcileAll(context.Background()))

	o, ok := m.Lookup(survey1)
	require.True(t, ok)
	assert.Equal(t, []string{"job-x"}, o.ActiveJobs())

	jobs.mu.Lock()
	jobs.listErr = errors.New("backend down")
	jobs.mu.Unlock()
	err = m.ReconcileAll(context.Background())
	assert.ErrorContains(t, err, "survey/survey-1")
	assert.ErrorContains(t, err, "backend down")
}

func TestManager_Close(t *testing.T) {
	m, _ := newTestManager(t, newFakeJobs(alwaysProcessing), newFakeContent())

	_, err := m.StartTranslation(context.Background(), survey1, "th", []model.LanguageCode{"en"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))

	_, err = m.Orchestrator(survey1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, m.Open())
}

func TestManager_ReadsDoNotOpenEntities(t *testing.T) {
	content := newFakeContent()
	content.setTranslations(map[model.LanguageCode]model.PartialFields{"en": {Title: model.StringPtr("Title")}})
	m, _ := newTestManager(t, newFakeJobs(alwaysProcessing), content)

	view, err := m.StatusView(survey1)
	require.NoError(t, err)
	assert.Equal(t, survey1, view.Entity)
	assert.Empty(t, view.Statuses)
	assert.Empty(t, view.Jobs)

	fields, lang, err := m.DisplayContent(context.Background(), survey1, "")
	require.NoError(t, err)
	assert.Equal(t, model.LanguageCode("th"), lang)
	assert.Equal(t, "A", fields.Title)

	fields, lang, err = m.DisplayContent(context.Background(), survey1, "en")
	require.NoError(t, err)
	assert.Equal(t, model.LanguageCode("en"), lang)
	assert.Equal(t, "Title", fields.Title)

	assert.Empty(t, m.Open())

	_, err = m.StatusView(model.EntityRef{Type: "page", ID: "1"})
	assert.True(t, IsValidation(err))

	// Once opened, the status comes from the live orchestrator.
	require.NoError(t, m.ReconcileOnLoad(context.Background(), survey1))
	view, err = m.StatusView(survey1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusTranslated, view.Statuses["en"])
	assert.Equal(t, []model.EntityRef{survey1}, m.Open())
}
