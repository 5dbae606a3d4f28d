// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package fuseimg mounts ext4 filesystem images in userspace with
// fuse2fs and unmounts them with the fusermount helpers.
//
// No privilege is needed: fuse2fs runs as the invoking user and the
// fakeroot option presents files owned by root inside the image as
// owned by the caller, so the later user-namespace mapping of the
// caller to uid 0 makes them root-owned again inside the container.
//
// Unmount tries each configured helper in order (fusermount3, then
// fusermount) and finally a lazy detach, so a mount held busy by a
// lingering process still disappears from the namespace. Unmounting a
// path that is not a FUSE mount is a no-op.
//
// [Mounter.MountImages] enforces the ordering the overlay depends on:
// system first, vendor only after system succeeded, and on vendor
// failure the system mount is released before the error returns.
package fuseimg
