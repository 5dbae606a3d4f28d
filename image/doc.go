// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package image locates and validates the Android system and vendor
// filesystem images a container boots from.
//
// Both images are ext4 filesystems mounted read-only in userspace. The
// system image must be at least [MinSystemSize]; anything smaller is a
// truncated download or a placeholder, and fails before any mount
// point is touched. Validation is pure: it never creates, moves, or
// modifies files.
//
// Images may be distributed compressed. [Paths.ExpandCompressed]
// decompresses system.img.zst / system.img.lz4 (and the vendor
// equivalents) next to themselves when the plain image is missing.
package image
