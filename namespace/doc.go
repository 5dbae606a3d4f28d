// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package namespace creates and joins the Linux namespaces a container
// runs in, without privilege.
//
// The invoking user becomes uid 0 and gid 0 inside a new user
// namespace through a single-entry mapping ("0 <outer id> 1"). The
// kernel creates the user namespace first at clone time and the mount,
// PID, UTS and IPC namespaces owned by it, so the rest of setup runs
// with full capabilities over those namespaces and none over the host.
//
// A Go process always has several threads, and unshare(CLONE_NEWUSER)
// fails in a multithreaded process. [Spawn] therefore never unshares
// the caller: it clones a fresh child directly into the new
// namespaces. The mapping files are written from the parent while the
// child is still held before exec, in the order the kernel requires
// for an unprivileged writer: uid_map, then setgroups=deny, then
// gid_map. The child execs only after the mapping exists, so it starts
// as uid 0 with a full capability set and performs every mount after
// the mapping is in place.
//
// Joining a running container goes through the external nsenter tool
// ([JoinCommand]) for the same reason: setns into a user namespace is
// refused to multithreaded callers.
package namespace
