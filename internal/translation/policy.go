// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translation

import (
	"fmt"
	"time"
)

// Policy configures how a job is polled.
type Policy struct {
	Interval    time.Duration // time between status fetches
	MaxDuration time.Duration // wall-clock limit measured from Start
	MaxRetries  int           // consecutive failed fetches tolerated
}

// Named polling policies. Both were in production use by the admin UI;
// neither is canonical, so the choice is configuration.
const (
	PolicyStandard = "standard"
	PolicyExtended = "extended"
)

// Default retry bound for failed status fetches.
const DefaultMaxRetries = 3

// StandardPolicy polls every 3 seconds for up to 2 minutes.
var StandardPolicy = Policy{
	Interval:    3 * time.Second,
	MaxDuration: 2 * time.Minute,
	MaxRetries:  DefaultMaxRetries,
}

// ExtendedPolicy polls every 2 seconds for up to 5 minutes.
var ExtendedPolicy = Policy{
	Interval:    2 * time.Second,
	MaxDuration: 5 * time.Minute,
	MaxRetries:  DefaultMaxRetries,
}

// PolicyByName returns a named policy.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case PolicyStandard, "":
		return StandardPolicy, nil
	case PolicyExtended:
		return ExtendedPolicy, nil
	default:
		return Policy{}, fmt.Errorf("unknown polling policy %q", name)
	}
}

// Validate checks that the policy can drive a poller.
func (p Policy) Validate() error {
	if p.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.Interval)
	}
	if p.MaxDuration < p.Interval {
		return fmt.Errorf("max poll duration %s is shorter than interval %s", p.MaxDuration, p.Interval)
	}
	if p.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", p.MaxRetries)
	}
	return nil
}
