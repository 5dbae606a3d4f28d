// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for the rad
// binary. Values are injected at build time via -ldflags:
//
//	go build -ldflags "-X github.com/rad-android/rad/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/rad
package version
