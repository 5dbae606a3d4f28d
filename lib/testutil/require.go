// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"time"
)

// fataler is the part of testing.TB the channel helpers need.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value sent on ch. The test fails if
// nothing arrives within timeout or ch is closed first. what describes
// the awaited event and may be a format string with arguments:
//
//	err := testutil.RequireReceive(t, done, 5*time.Second, "follower for %s", path)
func RequireReceive[T any](t fataler, ch <-chan T, timeout time.Duration, what ...any) T {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case value, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed before a value arrived", describe(what))
		}
		return value
	case <-timer.C:
		t.Fatalf("%s: nothing received within %v", describe(what), timeout)
	}
	var zero T
	return zero
}

// RequireClosed fails the test unless ch is closed (or delivers a
// value) within timeout. Reaper channels are the usual target:
//
//	testutil.RequireClosed(t, exited, 10*time.Second, "init reaped")
func RequireClosed(t fataler, ch <-chan struct{}, timeout time.Duration, what ...any) {
	t.Helper()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: still open after %v", describe(what), timeout)
	}
}

func describe(what []any) string {
	switch {
	case len(what) == 0:
		return "channel"
	case len(what) == 1:
		return fmt.Sprint(what[0])
	}
	if format, ok := what[0].(string); ok {
		return fmt.Sprintf(format, what[1:]...)
	}
	return fmt.Sprint(what...)
}
