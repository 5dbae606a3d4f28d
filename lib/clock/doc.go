// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// The supervisor waits in a handful of fixed places: the launch probe
// after spawning init, the grace period between SIGTERM and SIGKILL,
// and the boot-property poll interval. Code that waits accepts a Clock
// instead of calling time.Sleep or time.After directly. In production,
// Real() provides the standard library behavior. In tests, Fake()
// provides a clock that advances by exactly the requested duration
// whenever something waits on it, so a two-second grace period costs
// nothing and the elapsed fake time is still observable:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	supervisor := container.New(container.Config{Clock: c, ...})
//	supervisor.Stop()
//	c.Elapsed() // 2s: one grace period
package clock
