// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"time"
)

// Fake returns a FakeClock initialized to the given time.
//
// FakeClock is safe for concurrent use by multiple goroutines.
func Fake(initial time.Time) *FakeClock {
	return &FakeClock{
		start:   initial,
		current: initial,
	}
}

// FakeClock is a deterministic Clock for testing. Sleep and After
// never block: they move the clock forward by the requested duration
// and return at once. Advance moves the clock without a waiter, which
// simulates time spent outside the code under test.
type FakeClock struct {
	mu      sync.Mutex
	start   time.Time
	current time.Time
	waits   []time.Duration
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After advances the clock by d and returns a channel that already
// holds the new time.
func (c *FakeClock) After(d time.Duration) <-chan time.Time {
	channel := make(chan time.Time, 1)
	channel <- c.wait(d)
	return channel
}

// Sleep advances the clock by d.
func (c *FakeClock) Sleep(d time.Duration) {
	c.wait(d)
}

// Advance moves the clock forward by d without recording a wait.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Elapsed returns the total fake time that has passed since Fake was
// called, including Advance calls.
func (c *FakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(c.start)
}

// Waits returns the durations passed to Sleep and After, in call
// order. Non-positive durations are recorded as zero.
func (c *FakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	waits := make([]time.Duration, len(c.waits))
	copy(waits, c.waits)
	return waits
}

func (c *FakeClock) wait(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d < 0 {
		d = 0
	}
	c.waits = append(c.waits, d)
	c.current = c.current.Add(d)
	return c.current
}
