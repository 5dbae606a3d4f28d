// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package nsinit is the stage of container launch that runs inside the
// new namespaces, between clone and Android init.
//
// The supervisor re-executes its own binary ([Start]) with the
// environment variable _RAD_NSINIT=1, cloned into new namespaces with
// the caller mapped to root. The child's main calls [Main] before
// anything else, reads a CBOR [Plan] from file descriptor 3, and
// assembles the container:
//
//  1. verify the uid/gid mapping is in place
//  2. make the mount tree private
//  3. overlay mount (system lower, sandbox upper) at rootfs
//  4. bind-mount vendor at rootfs/vendor
//  5. bind-mount each APEX module onto its prepared mount point
//  6. mount proc, a tmpfs /dev, and a tmpfs /tmp
//  7. create null, zero, random, urandom
//  8. provision binderfs (when enabled)
//  9. set the hostname, chroot into rootfs, and exec init
//
// The process that execs init keeps its pid, so the pid the supervisor
// tracks is init's. Mounts made here belong to the container's mount
// namespace and disappear with it; nothing needs unmounting from the
// host except the FUSE images.
package nsinit
