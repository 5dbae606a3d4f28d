// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for rad packages.
//
// [ToolBox] stands in for the external programs rad drives (fuse2fs,
// fusermount3, fusermount, nsenter). Each fake is a small /bin/sh
// script that records its argv to a shared call log before running a
// test-supplied body, so tests can assert both the exact commands and
// their order without FUSE or namespaces on the host.
//
// [SparseFile] creates image fixtures of a given apparent size without
// consuming disk space.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no rad-internal dependencies.
package testutil
