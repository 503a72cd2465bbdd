// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/olegiv/survey-i18n/internal/i18n"
	"github.com/olegiv/survey-i18n/internal/model"
)

// Defaults applied by Options.
const (
	DefaultProvider     = "azure"
	DefaultRefreshedTTL = 5 * time.Second
	refreshTimeout      = 30 * time.Second
)

// Options configures an Orchestrator.
type Options struct {
	Registry     *i18n.Registry
	Policy       Policy
	Provider     string
	RefreshedTTL time.Duration
	Clock        clockwork.Clock
	Logger       *slog.Logger
	Bus          *EventBus
}

func (o Options) withDefaults() Options {
	if o.Registry == nil {
		o.Registry = i18n.MustRegistry(codeStrings(model.DefaultLanguages)...)
	}
	if o.Policy == (Policy{}) {
		o.Policy = StandardPolicy
	}
	if o.Provider == "" {
		o.Provider = DefaultProvider
	}
	if o.RefreshedTTL <= 0 {
		o.RefreshedTTL = DefaultRefreshedTTL
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// StatusView is what the admin UI renders for one entity.
type StatusView struct {
	Entity           model.EntityRef               `json:"entity"`
	OriginalLanguage model.LanguageCode            `json:"original_language,omitempty"`
	Statuses         StatusSnapshot                `json:"statuses"`
	Errors           map[model.LanguageCode]string `json:"errors,omitempty"`
	LastError        string                        `json:"last_error,omitempty"`
	Jobs             []PollerState                 `json:"jobs,omitempty"`
	RefreshedAt      *time.Time                    `json:"refreshed_at,omitempty"`
	Refreshed        bool                          `json:"refreshed"`
}

type trackedJob struct {
	poller    *Poller
	languages map[model.LanguageCode]struct{}
}

func (t *trackedJob) sortedLanguages() []model.LanguageCode {
	out := make([]model.LanguageCode, 0, len(t.languages))
	for lang := range t.languages {
		out = append(out, lang)
	}
	slices.Sort(out)
	return out
}

// Orchestrator drives the translation workflow of a single entity: it
// creates backend jobs, polls them, and keeps the per-language status and
// merged content up to date. Each language is owned by at most one job;
// a newer job takes over the languages it shares with an older one.
type Orchestrator struct {
	entity  model.EntityRef
	jobs    JobClient
	content ContentClient
	opts    Options
	logger  *slog.Logger
	store   *StatusStore

	mu          sync.Mutex
	tracked     map[string]*trackedJob
	owners      map[model.LanguageCode]string
	started     []*Poller
	errs        map[model.LanguageCode]string
	lastError   string
	loaded      *model.MultilingualContent
	refreshedAt time.Time
	closed      bool
}

// NewOrchestrator creates an orchestrator for entity.
func NewOrchestrator(entity model.EntityRef, jobs JobClient, content ContentClient, opts Options) *Orchestrator {
	opts = opts.withDefaults()
	return &Orchestrator{
		entity:  entity,
		jobs:    jobs,
		content: content,
		opts:    opts,
		logger:  opts.Logger.With("entity", entity.String()),
		store:   NewStatusStore(),
		tracked: make(map[string]*trackedJob),
		owners:  make(map[model.LanguageCode]string),
		errs:    make(map[model.LanguageCode]string),
	}
}

// Entity returns the entity this orchestrator manages.
func (o *Orchestrator) Entity() model.EntityRef {
	return o.entity
}

// Statuses returns the underlying status store.
func (o *Orchestrator) Statuses() *StatusStore {
	return o.store
}

// Load fetches the entity's content and seeds the status store from it.
// Languages that already have a translation are marked translated unless
// a job has claimed them.
func (o *Orchestrator) Load(ctx context.Context) error {
	content, err := o.content.FetchEntity(ctx, o.entity)
	if err != nil {
		return fmt.Errorf("loading %s content: %w", o.entity, err)
	}
	o.seed(content)
	return nil
}

func (o *Orchestrator) seed(content *model.MultilingualContent) {
	o.setContent(content)

	if orig := o.normalize(content.OriginalLanguage); orig != "" {
		o.store.SetOriginal(orig)
	}
	var translated []model.LanguageCode
	for _, lang := range content.TranslatedLanguages() {
		if code := o.normalize(lang); code != "" && o.store.InitStatus(code, model.StatusTranslated) {
			translated = append(translated, code)
		}
	}
	o.publish(model.EventContentLoaded, "", translated, "")
}

// Loaded reports whether content has been fetched.
func (o *Orchestrator) Loaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded != nil
}

// StartTranslation requests translation of the entity from source into
// targets and starts tracking the resulting job.
func (o *Orchestrator) StartTranslation(ctx context.Context, source model.LanguageCode, targets []model.LanguageCode) (model.TranslationJob, error) {
	if o.isClosed() {
		return model.TranslationJob{}, ErrClosed
	}

	src, langs, err := o.validate(source, targets)
	if err != nil {
		return model.TranslationJob{}, err
	}

	o.store.SetOriginal(src)
	o.markPending(langs)

	job, err := o.jobs.Create(ctx, CreateJobRequest{
		Entity:          o.entity,
		SourceLanguage:  src,
		TargetLanguages: langs,
		Provider:        o.opts.Provider,
	})
	if err == nil && job.ID == "" {
		err = errors.New("backend returned a job without an id")
	}
	if err != nil {
		msg := err.Error()
		o.markError(langs, msg)
		o.logger.Warn("failed to create translation job",
			"languages", langs,
			"error", err)
		o.publish(model.EventTranslationFailed, "", langs, msg)
		return model.TranslationJob{}, fmt.Errorf("creating translation job: %w", err)
	}

	claimed := o.track(job.ID, langs, true)
	o.logger.Info("translation job started",
		"job_id", job.ID,
		"source", src,
		"languages", claimed)
	o.publish(model.EventTranslationStarted, job.ID, claimed, "")
	return job, nil
}

// ReconcileOnLoad refetches the entity's content, then discovers backend
// jobs still running for it and resumes tracking them. Jobs that are
// already tracked are left alone, and languages owned by another tracked
// job are not taken over. Untracked languages whose translation has since
// appeared are marked translated.
func (o *Orchestrator) ReconcileOnLoad(ctx context.Context) error {
	if o.isClosed() {
		return ErrClosed
	}

	// Jobs may have finished while nothing tracked them.
	content, err := o.refetch(ctx)
	switch {
	case err == nil:
		o.seed(content)
	case !o.Loaded():
		return fmt.Errorf("loading %s content: %w", o.entity, err)
	default:
		o.logger.Warn("content could not be refreshed during reconcile", "error", err)
	}

	jobs, err := o.jobs.ListOutstanding(ctx, o.entity)
	if err != nil {
		return fmt.Errorf("listing outstanding translation jobs: %w", err)
	}

	for _, job := range jobs {
		if job.Status.IsTerminal() || job.ID == "" {
			continue
		}
		if job.EntityID != o.entity.ID || (job.EntityType != "" && job.EntityType != o.entity.Type) {
			continue
		}

		src := o.normalize(job.SourceLanguage)
		if src != "" {
			o.store.SetOriginal(src)
		}
		original := o.store.Original()

		langs := make([]model.LanguageCode, 0, len(job.TargetLanguages))
		for _, lang := range job.TargetLanguages {
			code := o.normalize(lang)
			if code == "" || code == original || slices.Contains(langs, code) {
				continue
			}
			langs = append(langs, code)
		}

		claimed := o.track(job.ID, langs, false)
		if len(claimed) == 0 {
			continue
		}
		o.logger.Info("resumed tracking of in-flight translation job",
			"job_id", job.ID,
			"backend_status", job.Status,
			"languages", claimed)
		o.publish(model.EventTranslationStarted, job.ID, claimed, "resumed")
	}

	if promoted := o.promoteTranslated(); len(promoted) > 0 {
		o.logger.Info("translations found for untracked languages", "languages", promoted)
		o.publish(model.EventContentRefreshed, "", promoted, "reconciled")
	}
	return nil
}

// track registers a poller for jobID over langs and returns the languages it
// now owns. With preempt set, languages owned by other jobs are taken over
// and a job left with no languages is cancelled. Without it, owned
// languages are skipped and an already tracked job is not touched.
func (o *Orchestrator) track(jobID string, langs []model.LanguageCode, preempt bool) []model.LanguageCode {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}

	tj, exists := o.tracked[jobID]
	if exists && !preempt {
		o.mu.Unlock()
		return nil
	}
	if !exists {
		tj = &trackedJob{languages: make(map[model.LanguageCode]struct{})}
	}

	var superseded []*Poller
	claimed := make([]model.LanguageCode, 0, len(langs))
	for _, lang := range langs {
		if owner, ok := o.owners[lang]; ok && owner != jobID {
			if !preempt {
				continue
			}
			if prev := o.tracked[owner]; prev != nil {
				delete(prev.languages, lang)
				if len(prev.languages) == 0 {
					delete(o.tracked, owner)
					superseded = append(superseded, prev.poller)
				}
			}
		}
		o.owners[lang] = jobID
		tj.languages[lang] = struct{}{}
		claimed = append(claimed, lang)
	}

	if len(tj.languages) == 0 {
		o.mu.Unlock()
		return nil
	}
	if !exists {
		tj.poller = NewPoller(jobID, o.jobs.Status, o.opts.Policy,
			WithClock(o.opts.Clock),
			WithLogger(o.logger))
		o.tracked[jobID] = tj
		o.started = append(o.started, tj.poller)
	}
	for _, lang := range claimed {
		delete(o.errs, lang)
	}
	o.mu.Unlock()

	o.store.BulkSetStatus(claimed, model.StatusPending)

	for _, p := range superseded {
		if p.Cancel() {
			o.logger.Info("translation job superseded by a newer job",
				"job_id", p.JobID(),
				"superseded_by", jobID)
			o.publish(model.EventTranslationCancelled, p.JobID(), nil, "superseded by "+jobID)
		}
	}

	if !exists {
		tj.poller.Start(func(out Outcome) { o.onTerminal(tj, out) })
	}
	return claimed
}

func (o *Orchestrator) onTerminal(tj *trackedJob, out Outcome) {
	o.mu.Lock()
	if cur, ok := o.tracked[out.JobID]; !ok || cur != tj || o.closed {
		o.mu.Unlock()
		return
	}
	delete(o.tracked, out.JobID)
	langs := tj.sortedLanguages()
	o.mu.Unlock()

	if out.Status == PollerCompleted {
		o.complete(out.JobID, langs)
		return
	}

	msg := out.Message()
	langs = o.settle(out.JobID, langs, model.StatusError, msg)
	if len(langs) == 0 {
		o.logger.Debug("finished job no longer owns any language", "job_id", out.JobID)
		return
	}

	evType := model.EventTranslationFailed
	if out.TimedOut() {
		evType = model.EventTranslationTimedOut
	}
	o.logger.Warn("translation job did not complete",
		"job_id", out.JobID,
		"status", out.Status,
		"languages", langs,
		"error", out.Err)
	o.publish(evType, out.JobID, langs, msg)
}

func (o *Orchestrator) complete(jobID string, langs []model.LanguageCode) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	content, err := o.refetch(ctx)
	if err != nil {
		o.logger.Warn("translated content could not be refreshed",
			"job_id", jobID,
			"error", err)
	} else {
		o.setContent(content)
	}

	langs = o.settle(jobID, langs, model.StatusTranslated, "")
	if len(langs) == 0 {
		o.logger.Debug("finished job no longer owns any language", "job_id", jobID)
		return
	}
	if err == nil {
		o.mu.Lock()
		o.refreshedAt = o.opts.Clock.Now()
		o.mu.Unlock()
	}

	o.logger.Info("translation job completed",
		"job_id", jobID,
		"languages", langs)
	o.publish(model.EventTranslationCompleted, jobID, langs, "")
	if err == nil {
		o.publish(model.EventContentRefreshed, jobID, langs, "")
	}
}

// settle writes the terminal status of a finished job and releases its
// languages. Languages a newer job claimed meanwhile are left untouched.
// It returns the languages written.
func (o *Orchestrator) settle(jobID string, langs []model.LanguageCode, status model.TranslationStatus, msg string) []model.LanguageCode {
	o.mu.Lock()
	defer o.mu.Unlock()

	owned := make([]model.LanguageCode, 0, len(langs))
	for _, lang := range langs {
		if o.owners[lang] != jobID {
			continue
		}
		delete(o.owners, lang)
		owned = append(owned, lang)
		if status == model.StatusError {
			o.errs[lang] = msg
		} else {
			delete(o.errs, lang)
		}
	}
	if len(owned) > 0 && status == model.StatusError {
		o.lastError = msg
	}
	o.store.BulkSetStatus(owned, status)
	return owned
}

// refetch drops any cached copy of the entity and fetches it again.
func (o *Orchestrator) refetch(ctx context.Context) (*model.MultilingualContent, error) {
	if inv, ok := o.content.(ContentInvalidator); ok {
		if err := inv.Invalidate(ctx, o.entity); err != nil {
			o.logger.Warn("failed to invalidate cached content", "error", err)
		}
	}
	return o.content.FetchEntity(ctx, o.entity)
}

// promoteTranslated marks languages that have a translation in the loaded
// content and no job driving them as translated. Only unset and error
// statuses are promoted; error messages are kept for display.
func (o *Orchestrator) promoteTranslated() []model.LanguageCode {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loaded == nil {
		return nil
	}

	original := o.store.Original()
	var promoted []model.LanguageCode
	for _, lang := range o.loaded.TranslatedLanguages() {
		code := o.normalize(lang)
		if code == "" || code == original {
			continue
		}
		if _, owned := o.owners[code]; owned {
			continue
		}
		if st, ok := o.store.Status(code); ok && st != model.StatusError {
			continue
		}
		if o.store.SetStatus(code, model.StatusTranslated) {
			promoted = append(promoted, code)
		}
	}
	slices.Sort(promoted)
	return promoted
}

// StatusView returns the current status of every language, the error
// messages of failed languages and the refreshed signal.
func (o *Orchestrator) StatusView() StatusView {
	view := StatusView{
		Entity:           o.entity,
		OriginalLanguage: o.store.Original(),
		Statuses:         o.store.Snapshot(),
	}

	o.mu.Lock()
	if len(o.errs) > 0 {
		view.Errors = make(map[model.LanguageCode]string, len(o.errs))
		for lang, msg := range o.errs {
			view.Errors[lang] = msg
		}
	}
	view.LastError = o.lastError
	for _, tj := range o.tracked {
		view.Jobs = append(view.Jobs, tj.poller.State())
	}
	refreshedAt := o.refreshedAt
	o.mu.Unlock()

	slices.SortFunc(view.Jobs, func(a, b PollerState) int {
		return a.StartedAt.Compare(b.StartedAt)
	})
	if !refreshedAt.IsZero() {
		view.RefreshedAt = &refreshedAt
		view.Refreshed = o.opts.Clock.Since(refreshedAt) < o.opts.RefreshedTTL
	}
	return view
}

// RecentlyRefreshed reports whether content was refreshed within the
// refreshed TTL before now.
func (o *Orchestrator) RecentlyRefreshed(now time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.refreshedAt.IsZero() {
		return false
	}
	return now.Sub(o.refreshedAt) < o.opts.RefreshedTTL
}

// Error returns the last error message recorded for lang.
func (o *Orchestrator) Error(lang model.LanguageCode) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.errs[lang]
}

// DisplayContent returns the merged content for lang. It reports false
// when no content has been loaded.
func (o *Orchestrator) DisplayContent(lang model.LanguageCode) (model.Fields, bool) {
	fields, _, ok := o.display(lang)
	return fields, ok
}

// display merges the loaded content for lang and returns the language it
// was merged for, which is the original language when lang is empty.
func (o *Orchestrator) display(lang model.LanguageCode) (model.Fields, model.LanguageCode, bool) {
	o.mu.Lock()
	content := o.loaded
	o.mu.Unlock()
	if content == nil {
		return model.Fields{}, "", false
	}

	original := o.normalize(content.OriginalLanguage)
	if original == "" {
		original = o.store.Original()
	}
	selected := o.normalize(lang)
	if selected == "" {
		selected = original
	}

	translations := content.Translations
	if original != content.OriginalLanguage || hasNonCanonicalKeys(translations) {
		translations = o.canonicalTranslations(translations)
	}
	return MergeForDisplay(content.Fields, translations, selected, original), selected, true
}

// ActiveJobs returns the ids of jobs currently being polled.
func (o *Orchestrator) ActiveJobs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, 0, len(o.tracked))
	for id := range o.tracked {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// CancelAll stops every poller and rejects further work. Languages left
// pending stay pending; the backend jobs themselves keep running and can
// be picked up again by a new orchestrator's ReconcileOnLoad.
func (o *Orchestrator) CancelAll() int {
	o.mu.Lock()
	o.closed = true
	pollers := make([]*Poller, 0, len(o.tracked))
	for _, tj := range o.tracked {
		pollers = append(pollers, tj.poller)
	}
	clear(o.tracked)
	clear(o.owners)
	o.mu.Unlock()

	n := 0
	for _, p := range pollers {
		if p.Cancel() {
			n++
			o.publish(model.EventTranslationCancelled, p.JobID(), nil, "")
		}
	}
	if n > 0 {
		o.logger.Info("translation polling cancelled", "jobs", n)
	}
	return n
}

// Wait blocks until every poller this orchestrator started has exited.
func (o *Orchestrator) Wait(ctx context.Context) error {
	o.mu.Lock()
	pollers := slices.Clone(o.started)
	o.mu.Unlock()

	for _, p := range pollers {
		if p.State().Status == PollerIdle {
			continue
		}
		if err := p.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) validate(source model.LanguageCode, targets []model.LanguageCode) (model.LanguageCode, []model.LanguageCode, error) {
	if source.IsZero() {
		return "", nil, &ValidationError{Field: "sourceLanguage", Reason: "is required"}
	}
	src, ok := o.opts.Registry.Normalize(string(source))
	if !ok {
		return "", nil, &ValidationError{Field: "sourceLanguage", Reason: fmt.Sprintf("%q is not supported", source)}
	}
	if orig := o.store.Original(); orig != "" && orig != src {
		return "", nil, &ValidationError{
			Field:  "sourceLanguage",
			Reason: fmt.Sprintf("%s does not match the original language %s", src, orig),
		}
	}
	if len(targets) == 0 {
		return "", nil, &ValidationError{Field: "targetLanguages", Reason: "must not be empty"}
	}

	langs := make([]model.LanguageCode, 0, len(targets))
	for _, t := range targets {
		code, ok := o.opts.Registry.Normalize(string(t))
		if !ok {
			return "", nil, &ValidationError{Field: "targetLanguages", Reason: fmt.Sprintf("%q is not supported", t)}
		}
		if code == src {
			return "", nil, &ValidationError{Field: "targetLanguages", Reason: fmt.Sprintf("%s is the source language", code)}
		}
		if !slices.Contains(langs, code) {
			langs = append(langs, code)
		}
	}
	return src, langs, nil
}

// normalize canonicalizes a backend-supplied code. Unknown codes are kept
// as canonical BCP 47 when parseable, since the backend may know more
// languages than are configured here.
func (o *Orchestrator) normalize(code model.LanguageCode) model.LanguageCode {
	if code.IsZero() {
		return ""
	}
	if c, ok := o.opts.Registry.Normalize(string(code)); ok {
		return c
	}
	if c, ok := i18n.Canonicalize(string(code)); ok {
		return c
	}
	return code
}

func (o *Orchestrator) canonicalTranslations(in map[model.LanguageCode]model.PartialFields) map[model.LanguageCode]model.PartialFields {
	out := make(map[model.LanguageCode]model.PartialFields, len(in))
	for lang, tr := range in {
		out[o.normalize(lang)] = tr
	}
	return out
}

func hasNonCanonicalKeys(m map[model.LanguageCode]model.PartialFields) bool {
	for lang := range m {
		if c, ok := i18n.Canonicalize(string(lang)); !ok || c != lang {
			return true
		}
	}
	return false
}

func (o *Orchestrator) setContent(content *model.MultilingualContent) {
	o.mu.Lock()
	o.loaded = content
	o.mu.Unlock()
}

func (o *Orchestrator) markPending(langs []model.LanguageCode) {
	o.mu.Lock()
	for _, lang := range langs {
		delete(o.errs, lang)
	}
	o.mu.Unlock()
	o.store.BulkSetStatus(langs, model.StatusPending)
}

func (o *Orchestrator) markError(langs []model.LanguageCode, msg string) {
	o.store.BulkSetStatus(langs, model.StatusError)
	o.mu.Lock()
	for _, lang := range langs {
		o.errs[lang] = msg
	}
	o.lastError = msg
	o.mu.Unlock()
}

func (o *Orchestrator) isClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

func (o *Orchestrator) publish(typ string, jobID string, langs []model.LanguageCode, msg string) {
	if o.opts.Bus == nil {
		return
	}
	o.opts.Bus.Publish(model.TranslationEvent{
		Type:      typ,
		Entity:    o.entity,
		JobID:     jobID,
		Languages: langs,
		Message:   msg,
		Timestamp: o.opts.Clock.Now(),
	})
}

func codeStrings(codes []model.LanguageCode) []string {
	out := make([]string, len(codes))
	for i, c := range codes {
		out[i] = string(c)
	}
	return out
}
