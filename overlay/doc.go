// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package overlay assembles the container root filesystem: the system
// image as the read-only lower layer, a sandbox-local upper layer for
// every write, merged at rootfs.
//
// Two things must be in the upper layer before the merge happens:
//
//   - Empty directories for every APEX module. Android binaries are
//     symlinks into /apex/<module>/..., but the image ships the module
//     contents under /system/apex and leaves /apex empty. Inside the
//     user namespace the image's /apex is owned by an unmapped user,
//     so the mount points cannot be created after the merge. Creating
//     them in the upper layer, which the caller owns, makes them
//     appear in the merged view. [PrepareApexDirs] does this on the
//     host; [BindApexModules] bind-mounts the modules onto them from
//     inside the namespace.
//   - A linker namespace configuration at /linkerconfig/ld.config.txt
//     ([WriteLinkerConfig]), without which the Android dynamic linker
//     warns on every binary it loads.
//
// The overlay mount itself ([Mount]) only works inside the container's
// mount namespace and is called by the namespace setup stage.
package overlay
