// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package binderfs provisions a private binder IPC device set for one
// container.
//
// Android services talk over three binder contexts: binder (framework),
// hwbinder (HALs), and vndbinder (vendor). On the host these are
// either absent or shared with every other user. A binderfs instance
// mounted inside the container's mount namespace starts with only a
// binder-control node; each device is allocated by a BINDER_CTL_ADD
// ioctl on that node, and exists only in this instance.
//
// [SetupInSandbox] mounts the instance at rootfs/dev/binderfs,
// allocates the three devices, and links rootfs/dev/<name> to
// binderfs/<name> so code opening the traditional /dev paths finds
// them. Everything here must run inside the container's user and
// mount namespaces.
package binderfs
