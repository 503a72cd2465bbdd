// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs periodic background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultJobTimeout bounds a single job run.
const DefaultJobTimeout = 2 * time.Minute

// JobFunc is the body of a scheduled job.
type JobFunc func(ctx context.Context) error

type registeredJob struct {
	name            string
	description     string
	defaultSchedule string
	schedule        string
	entryID         cron.EntryID
	fn              JobFunc
	runs            int
	lastErr         error
}

// JobInfo is the public view of a registered job.
type JobInfo struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	DefaultSchedule string    `json:"default_schedule"`
	Schedule        string    `json:"schedule"`
	IsOverridden    bool      `json:"is_overridden"`
	Runs            int       `json:"runs"`
	LastError       string    `json:"last_error,omitempty"`
	LastRun         time.Time `json:"last_run"`
	NextRun         time.Time `json:"next_run"`
}

// Scheduler owns a cron instance and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	jobs    map[string]*registeredJob
	started bool
}

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// New creates a new scheduler. A job still running when its next tick
// arrives skips that tick.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger.With("component", "scheduler"),
		timeout: DefaultJobTimeout,
		jobs:    make(map[string]*registeredJob),
	}
}

// SetTimeout changes the per-run timeout.
func (s *Scheduler) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

// Register adds a job under name with a cron schedule.
func (s *Scheduler) Register(name, description, schedule string, fn JobFunc) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job already registered: %s", name)
	}

	job := &registeredJob{
		name:            name,
		description:     description,
		defaultSchedule: schedule,
		schedule:        schedule,
		fn:              fn,
	}
	id, err := s.cron.AddFunc(schedule, func() { _ = s.run(job) })
	if err != nil {
		return fmt.Errorf("adding job %s: %w", name, err)
	}
	job.entryID = id
	s.jobs[name] = job

	s.logger.Debug("registered scheduled job", "name", name, "schedule", schedule)
	return nil
}

// Start begins running registered jobs.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.jobs))
}

// Stop stops the cron loop and waits for running jobs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) run(job *registeredJob) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	err := job.fn(ctx)

	s.mu.Lock()
	job.runs++
	job.lastErr = err
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("scheduled job failed", "name", job.name, "duration", time.Since(start), "error", err)
		return err
	}
	s.logger.Debug("scheduled job finished", "name", job.name, "duration", time.Since(start))
	return nil
}

// List returns all registered jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]JobInfo, 0, len(s.jobs))
	for _, job := range s.jobs {
		entry := s.cron.Entry(job.entryID)
		info := JobInfo{
			Name:            job.name,
			Description:     job.description,
			DefaultSchedule: job.defaultSchedule,
			Schedule:        job.schedule,
			IsOverridden:    job.schedule != job.defaultSchedule,
			Runs:            job.runs,
			LastRun:         entry.Prev,
			NextRun:         entry.Next,
		}
		if job.lastErr != nil {
			info.LastError = job.lastErr.Error()
		}
		result = append(result, info)
	}

	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// TriggerNow runs a job immediately on the calling goroutine.
func (s *Scheduler) TriggerNow(name string) error {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}

	s.logger.Info("manually triggering job", "name", name)
	return s.run(job)
}

// UpdateSchedule replaces the schedule of a job.
func (s *Scheduler) UpdateSchedule(name, schedule string) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[name]
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}

	s.cron.Remove(job.entryID)
	id, err := s.cron.AddFunc(schedule, func() { _ = s.run(job) })
	if err != nil {
		fallbackID, fallbackErr := s.cron.AddFunc(job.schedule, func() { _ = s.run(job) })
		if fallbackErr != nil {
			return fmt.Errorf("critical: failed to restore schedule after update failure: %w (original: %w)", fallbackErr, err)
		}
		job.entryID = fallbackID
		return fmt.Errorf("failed to apply new schedule: %w", err)
	}
	job.entryID = id
	job.schedule = schedule

	s.logger.Info("updated job schedule", "name", name, "schedule", schedule)
	return nil
}
