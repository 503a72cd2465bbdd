// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/olegiv/survey-i18n/internal/model"
)

// PollerStatus is the state of a JobPoller.
type PollerStatus string

// Poller states. Polling is the only non-terminal state after Start.
const (
	PollerIdle      PollerStatus = "idle"
	PollerPolling   PollerStatus = "polling"
	PollerCompleted PollerStatus = "completed"
	PollerFailed    PollerStatus = "failed"
	PollerTimedOut  PollerStatus = "timed_out"
	PollerCancelled PollerStatus = "cancelled"
)

// IsTerminal reports whether the poller has stopped for good.
func (s PollerStatus) IsTerminal() bool {
	switch s {
	case PollerCompleted, PollerFailed, PollerTimedOut, PollerCancelled:
		return true
	}
	return false
}

// PollerState is a snapshot of a poller.
type PollerState struct {
	JobID               string       `json:"job_id"`
	Status              PollerStatus `json:"status"`
	StartedAt           time.Time    `json:"started_at"`
	LastPolledAt        time.Time    `json:"last_polled_at"`
	FinishedAt          time.Time    `json:"finished_at"`
	Attempts            int          `json:"attempts"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
}

// FetchFunc returns the current backend snapshot of a job.
type FetchFunc func(ctx context.Context, jobID string) (model.TranslationJob, error)

// Outcome is delivered to the terminal callback.
type Outcome struct {
	JobID  string
	Status PollerStatus
	Job    model.TranslationJob // last snapshot received, zero if none
	Err    error                // nil when Completed
}

// TimedOut reports whether the poller gave up on the wall-clock limit.
func (o Outcome) TimedOut() bool {
	return o.Status == PollerTimedOut
}

// Message returns the user-facing error text for a failed outcome.
func (o Outcome) Message() string {
	if o.Err == nil {
		return ""
	}
	if errors.Is(o.Err, ErrCommunicationFailure) {
		return ErrCommunicationFailure.Error()
	}
	return o.Err.Error()
}

// PollerOption configures a Poller.
type PollerOption func(*Poller)

// WithClock sets the clock driving intervals and the deadline.
func WithClock(c clockwork.Clock) PollerOption {
	return func(p *Poller) { p.clock = c }
}

// WithLogger sets the poller's logger.
func WithLogger(l *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = l }
}

// Poller repeatedly fetches one job's status until it completes, fails,
// times out or is cancelled. At most one fetch is outstanding at a time;
// ticks that arrive while a fetch is running are dropped.
type Poller struct {
	jobID  string
	fetch  FetchFunc
	policy Policy
	clock  clockwork.Clock
	logger *slog.Logger

	mu     sync.Mutex
	state  PollerState
	last   model.TranslationJob
	cancel context.CancelFunc
	done   chan struct{}
}

type fetchResult struct {
	job     model.TranslationJob
	err     error
	attempt int
}

// NewPoller creates an idle poller for jobID.
func NewPoller(jobID string, fetch FetchFunc, policy Policy, opts ...PollerOption) *Poller {
	p := &Poller{
		jobID:  jobID,
		fetch:  fetch,
		policy: policy,
		clock:  clockwork.NewRealClock(),
		logger: slog.Default(),
		state:  PollerState{JobID: jobID, Status: PollerIdle},
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("job_id", jobID)
	return p
}

// JobID returns the job this poller tracks.
func (p *Poller) JobID() string {
	return p.jobID
}

// Start begins polling. onTerminal is called exactly once when the poller
// reaches Completed, Failed or TimedOut, and never after Cancel.
// Start on a poller that is not idle does nothing and returns false.
func (p *Poller) Start(onTerminal func(Outcome)) bool {
	p.mu.Lock()
	if p.state.Status != PollerIdle {
		p.mu.Unlock()
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.state.Status = PollerPolling
	p.state.StartedAt = p.clock.Now()
	ticker := p.clock.NewTicker(p.policy.Interval)
	deadline := p.clock.NewTimer(p.policy.MaxDuration)
	p.mu.Unlock()

	p.logger.Debug("poller started",
		"interval", p.policy.Interval,
		"max_duration", p.policy.MaxDuration)

	go p.run(ctx, ticker, deadline, onTerminal)
	return true
}

// Cancel stops the poller. A fetch already in flight is discarded when it
// resolves. It reports whether this call cancelled the poller.
func (p *Poller) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state.Status {
	case PollerIdle:
		p.state.Status = PollerCancelled
		p.state.FinishedAt = p.clock.Now()
		close(p.done)
		return true
	case PollerPolling:
		p.state.Status = PollerCancelled
		p.state.FinishedAt = p.clock.Now()
		p.cancel()
		p.logger.Debug("poller cancelled")
		return true
	default:
		return false
	}
}

// State returns a snapshot of the poller.
func (p *Poller) State() PollerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Done is closed once the poller goroutine has exited, after any terminal
// callback has returned.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the poller has exited or ctx is done.
func (p *Poller) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Poller) run(ctx context.Context, ticker clockwork.Ticker, deadline clockwork.Timer, onTerminal func(Outcome)) {
	defer close(p.done)
	defer ticker.Stop()
	defer deadline.Stop()

	// Buffered so an abandoned fetch can always deliver and exit.
	results := make(chan fetchResult, 1)
	inFlight := false

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadline.Chan():
			p.finish(Outcome{
				Status: PollerTimedOut,
				Job:    p.lastSnapshot(),
				Err:    &TimeoutError{JobID: p.jobID, After: p.policy.MaxDuration},
			}, onTerminal)
			return

		case <-ticker.Chan():
			if inFlight {
				p.logger.Debug("poll tick skipped, previous fetch outstanding")
				continue
			}
			attempt, ok := p.markPolled()
			if !ok {
				return
			}
			inFlight = true
			go func() {
				job, err := p.fetch(ctx, p.jobID)
				results <- fetchResult{job: job, err: err, attempt: attempt}
			}()

		case res := <-results:
			inFlight = false
			if p.handle(res, onTerminal) {
				return
			}
		}
	}
}

func (p *Poller) lastSnapshot() model.TranslationJob {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// markPolled records a fetch attempt. It returns false once the poller is
// no longer polling.
func (p *Poller) markPolled() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Status != PollerPolling {
		return 0, false
	}
	p.state.Attempts++
	p.state.LastPolledAt = p.clock.Now()
	return p.state.Attempts, true
}

// handle processes one fetch result and reports whether polling is over.
func (p *Poller) handle(res fetchResult, onTerminal func(Outcome)) bool {
	p.mu.Lock()
	if p.state.Status != PollerPolling {
		p.mu.Unlock()
		return true
	}

	if res.err != nil {
		p.state.ConsecutiveFailures++
		failures := p.state.ConsecutiveFailures
		last := p.last
		p.mu.Unlock()

		ferr := &TransientFetchError{JobID: p.jobID, Attempt: res.attempt, Err: res.err}
		if failures > p.policy.MaxRetries {
			p.logger.Warn("giving up on translation job after repeated poll failures",
				"failures", failures,
				"error", res.err)
			p.finish(Outcome{
				Status: PollerFailed,
				Job:    last,
				Err:    fmt.Errorf("%w: %w", ErrCommunicationFailure, ferr),
			}, onTerminal)
			return true
		}
		p.logger.Debug("status poll failed, retrying on next tick",
			"failures", failures,
			"error", res.err)
		return false
	}

	p.state.ConsecutiveFailures = 0
	p.last = res.job
	p.mu.Unlock()

	switch res.job.Status {
	case model.JobCompleted:
		p.finish(Outcome{Status: PollerCompleted, Job: res.job}, onTerminal)
		return true
	case model.JobFailed:
		msg := res.job.Error
		if msg == "" {
			msg = "translation failed"
		}
		p.finish(Outcome{
			Status: PollerFailed,
			Job:    res.job,
			Err:    &JobFailure{JobID: p.jobID, Message: msg},
		}, onTerminal)
		return true
	default:
		return false
	}
}

// finish moves the poller to a terminal state and invokes the callback,
// unless another transition (such as Cancel) got there first.
func (p *Poller) finish(out Outcome, onTerminal func(Outcome)) {
	p.mu.Lock()
	if p.state.Status != PollerPolling {
		p.mu.Unlock()
		return
	}
	p.state.Status = out.Status
	p.state.FinishedAt = p.clock.Now()
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	out.JobID = p.jobID

	p.logger.Debug("poller finished", "status", out.Status)
	if onTerminal != nil {
		onTerminal(out)
	}
}
