// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"errors"
	"fmt"
	"time"
)

// ErrCommunicationFailure is reported when a poller gives up after too many
// consecutive failed status fetches.
var ErrCommunicationFailure = errors.New("communication failure")

// ErrClosed is returned by operations on an orchestrator that was torn down.
var ErrClosed = errors.New("translation orchestrator closed")

// ValidationError rejects a malformed translation request before any
// network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransientFetchError wraps a single failed status poll.
type TransientFetchError struct {
	JobID   string
	Attempt int
	Err     error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("polling job %s (attempt %d): %v", e.JobID, e.Attempt, e.Err)
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// JobFailure is the backend explicitly reporting a failed job.
type JobFailure struct {
	JobID   string
	Message string
}

func (e *JobFailure) Error() string {
	return e.Message
}

// TimeoutError means tracking stopped before the backend job finished.
// The backend job itself keeps running.
type TimeoutError struct {
	JobID string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return "translation timed out"
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
