// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package container supervises one Android sandbox: it mounts the
// images, assembles the overlay, launches init inside new namespaces,
// and runs commands in the running system.
//
// A [Container] moves through NotStarted, Mounting, Assembling,
// Launching, Running, Stopping and Stopped. Stopped is terminal: a new
// session needs a new Container. Every failure in Start rolls back the
// steps that completed, so a failed Start leaves no process and no
// FUSE mount behind. Owners defer [Container.Close], which stops
// anything still running or mounted; [With] scopes a container to a
// function.
//
// A running container is recorded in <root>/state.cbor. A later
// invocation reattaches with [Attach] to exec into, inspect, or stop
// it. Start takes an exclusive flock on <root>/.lock and refuses to
// start over a live recorded init, so two supervisors never share a
// sandbox root.
//
// Commands run inside the container through nsenter. Go programs are
// multi-threaded and setns(CLONE_NEWUSER) requires a single-threaded
// caller, so joining is left to the external tool.
//
// A Container is not safe for concurrent use.
package container
