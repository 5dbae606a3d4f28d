// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"runtime"
)

// Build metadata, overridden with -ldflags "-X" by release builds:
//
//	-X github.com/rad-android/rad/lib/version.GitCommit=$(git rev-parse --short HEAD)
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"
)

// revision is the commit with a -dirty suffix for builds from a
// modified tree.
func revision() string {
	if GitDirty == "true" {
		return GitCommit + "-dirty"
	}
	return GitCommit
}

// Info is the one-line form: "0.1.0-dev (abc1234, 2026-03-01T12:00:00Z)".
func Info() string {
	return fmt.Sprintf("%s (%s, %s)", Version, revision(), BuildTime)
}

// Full adds the toolchain and the host platform. The platform decides
// which app ABIs a sandbox on this host can run, so `rad version` shows
// it for bug reports about incompatible APKs.
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
