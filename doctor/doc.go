// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package doctor checks whether the host can run a rootless Android
// sandbox: unprivileged user namespaces, binder, FUSE, overlayfs, and
// the external tools rad drives. Each check yields an [Issue] with a
// suggested fix when it fails. The checks only observe; nothing is
// repaired.
package doctor
