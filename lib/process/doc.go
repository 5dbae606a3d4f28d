// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. These functions
// centralize the raw I/O that happens before the structured logger
// exists or after main has given up:
//
//   - Fatal error reporting to stderr.
//   - Exit-code propagation for errors that carry one, so `rad exec`
//     exits with the status of the command it ran inside the sandbox.
package process
