// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package version provides build-time version information.
package version

import "fmt"

// Set via -ldflags "-X github.com/olegiv/survey-i18n/internal/version.version=v1.2.3 ...".
var (
	version   = "dev"
	gitCommit = "unknown"
	buildTime = ""
)

// Info contains build-time version information injected via ldflags.
type Info struct {
	Version   string `json:"version"`    // Semantic version from git tags (e.g., "v1.2.3")
	GitCommit string `json:"git_commit"` // Short git commit hash (e.g., "abc1234")
	BuildTime string `json:"build_time,omitempty"`
}

// Get returns the version of the running binary.
func Get() Info {
	return Info{Version: version, GitCommit: gitCommit, BuildTime: buildTime}
}

// String formats the info for --version output.
func (i Info) String() string {
	if i.BuildTime == "" {
		return fmt.Sprintf("%s (%s)", i.Version, i.GitCommit)
	}
	return fmt.Sprintf("%s (%s, built %s)", i.Version, i.GitCommit, i.BuildTime)
}
