// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/olegiv/survey-i18n/internal/model"
)

// Manager keeps one Orchestrator per open entity and routes requests to it.
type Manager struct {
	jobs    JobClient
	content ContentClient
	opts    Options
	bus     *EventBus
	logger  *slog.Logger

	mu     sync.Mutex
	open   map[model.EntityRef]*Orchestrator
	closed bool
}

// NewManager creates a manager. Every orchestrator it opens shares the
// manager's event bus.
func NewManager(jobs JobClient, content ContentClient, opts Options) (*Manager, error) {
	if jobs == nil || content == nil {
		return nil, errors.New("translation manager requires job and content clients")
	}
	opts = opts.withDefaults()
	if err := opts.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid polling policy: %w", err)
	}
	if opts.Bus == nil {
		opts.Bus = NewEventBus()
	}
	return &Manager{
		jobs:    jobs,
		content: content,
		opts:    opts,
		bus:     opts.Bus,
		logger:  opts.Logger.With("component", "translation"),
		open:    make(map[model.EntityRef]*Orchestrator),
	}, nil
}

// Bus returns the event bus all orchestrators publish to.
func (m *Manager) Bus() *EventBus {
	return m.bus
}

// Subscribe registers h on the manager's event bus.
func (m *Manager) Subscribe(h EventHandler) (unsubscribe func()) {
	return m.bus.Subscribe(h)
}

// Orchestrator returns the orchestrator for ref, creating it if needed.
func (m *Manager) Orchestrator(ref model.EntityRef) (*Orchestrator, error) {
	if err := ref.Validate(); err != nil {
		return nil, &ValidationError{Field: "entity", Reason: err.Error()}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	if o, ok := m.open[ref]; ok {
		return o, nil
	}

	opts := m.opts
	opts.Logger = m.logger
	o := NewOrchestrator(ref, m.jobs, m.content, opts)
	m.open[ref] = o
	return o, nil
}

// Lookup returns the orchestrator for ref if it is open.
func (m *Manager) Lookup(ref model.EntityRef) (*Orchestrator, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.open[ref]
	return o, ok
}

// Open returns the entities that currently have an orchestrator.
func (m *Manager) Open() []model.EntityRef {
	m.mu.Lock()
	refs := make([]model.EntityRef, 0, len(m.open))
	for ref := range m.open {
		refs = append(refs, ref)
	}
	m.mu.Unlock()

	slices.SortFunc(refs, func(a, b model.EntityRef) int {
		return strings.Compare(a.String(), b.String())
	})
	return refs
}

// StartTranslation starts translating ref from source into targets.
func (m *Manager) StartTranslation(ctx context.Context, ref model.EntityRef, source model.LanguageCode, targets []model.LanguageCode) (model.TranslationJob, error) {
	o, err := m.Orchestrator(ref)
	if err != nil {
		return model.TranslationJob{}, err
	}
	if !o.Loaded() {
		// Without content the original language is unknown and the
		// source cannot be checked against it.
		if err := o.Load(ctx); err != nil {
			m.logger.Warn("starting translation without loaded content",
				"entity", ref.String(),
				"error", err)
		}
	}
	return o.StartTranslation(ctx, source, targets)
}

// ReconcileOnLoad resumes tracking of ref's in-flight backend jobs.
func (m *Manager) ReconcileOnLoad(ctx context.Context, ref model.EntityRef) error {
	o, err := m.Orchestrator(ref)
	if err != nil {
		return err
	}
	return o.ReconcileOnLoad(ctx)
}

// ReconcileAll reconciles every open entity and joins the errors.
func (m *Manager) ReconcileAll(ctx context.Context) error {
	var errs []error
	for _, ref := range m.Open() {
		if err := ctx.Err(); err != nil {
			return err
		}
		o, ok := m.Lookup(ref)
		if !ok {
			continue
		}
		if err := o.ReconcileOnLoad(ctx); err != nil && !errors.Is(err, ErrClosed) {
			errs = append(errs, fmt.Errorf("%s: %w", ref, err))
		}
	}
	return errors.Join(errs...)
}

// StatusView returns the status view of ref. An entity that is not open
// gets an empty view; reading status never opens an orchestrator.
func (m *Manager) StatusView(ref model.EntityRef) (StatusView, error) {
	if err := ref.Validate(); err != nil {
		return StatusView{}, &ValidationError{Field: "entity", Reason: err.Error()}
	}
	o, ok := m.Lookup(ref)
	if !ok {
		if m.isClosed() {
			return StatusView{}, ErrClosed
		}
		return StatusView{Entity: ref, Statuses: StatusSnapshot{}}, nil
	}
	return o.StatusView(), nil
}

// DisplayContent returns ref's merged content for lang and the language it
// was merged for. An empty lang selects the original language. Content of
// an entity that is not open is fetched without opening an orchestrator.
func (m *Manager) DisplayContent(ctx context.Context, ref model.EntityRef, lang model.LanguageCode) (model.Fields, model.LanguageCode, error) {
	if err := ref.Validate(); err != nil {
		return model.Fields{}, "", &ValidationError{Field: "entity", Reason: err.Error()}
	}
	o, ok := m.Lookup(ref)
	if !ok {
		if m.isClosed() {
			return model.Fields{}, "", ErrClosed
		}
		opts := m.opts
		opts.Logger = m.logger
		opts.Bus = nil
		o = NewOrchestrator(ref, m.jobs, m.content, opts)
	}
	if !o.Loaded() {
		if err := o.Load(ctx); err != nil {
			return model.Fields{}, "", err
		}
	}
	fields, selected, _ := o.display(lang)
	return fields, selected, nil
}

// CancelAll stops all polling for ref and forgets its orchestrator.
func (m *Manager) CancelAll(ref model.EntityRef) int {
	m.mu.Lock()
	o, ok := m.open[ref]
	delete(m.open, ref)
	m.mu.Unlock()
	if !ok {
		return 0
	}
	return o.CancelAll()
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close cancels every orchestrator and waits for their pollers to exit.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	orchestrators := make([]*Orchestrator, 0, len(m.open))
	for _, o := range m.open {
		orchestrators = append(orchestrators, o)
	}
	clear(m.open)
	m.mu.Unlock()

	for _, o := range orchestrators {
		o.CancelAll()
	}
	for _, o := range orchestrators {
		if err := o.Wait(ctx); err != nil {
			return fmt.Errorf("waiting for pollers of %s: %w", o.Entity(), err)
		}
	}
	return nil
}
