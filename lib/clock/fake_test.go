// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockNow(t *testing.T) {
	clock := Fake(epoch)
	if got := clock.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	clock.Advance(5 * time.Second)
	want := epoch.Add(5 * time.Second)
	if got := clock.Now(); !got.Equal(want) {
		t.Fatalf("Now() after Advance = %v, want %v", got, want)
	}
	if waits := clock.Waits(); len(waits) != 0 {
		t.Errorf("Advance should not record waits, got %v", waits)
	}
}

func TestFakeClockSleepAdvances(t *testing.T) {
	clock := Fake(epoch)
	clock.Sleep(500 * time.Millisecond)
	clock.Sleep(2 * time.Second)

	if got := clock.Elapsed(); got != 2500*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 2.5s", got)
	}
	waits := clock.Waits()
	if len(waits) != 2 || waits[0] != 500*time.Millisecond || waits[1] != 2*time.Second {
		t.Errorf("Waits() = %v, want [500ms 2s]", waits)
	}
}

func TestFakeClockAfterFiresImmediately(t *testing.T) {
	clock := Fake(epoch)
	channel := clock.After(3 * time.Second)

	select {
	case fired := <-channel:
		want := epoch.Add(3 * time.Second)
		if !fired.Equal(want) {
			t.Errorf("After delivered %v, want %v", fired, want)
		}
	default:
		t.Fatal("After channel should already hold a value")
	}
}

func TestFakeClockNegativeDuration(t *testing.T) {
	clock := Fake(epoch)
	clock.Sleep(-time.Second)
	<-clock.After(-time.Second)

	if got := clock.Elapsed(); got != 0 {
		t.Errorf("Elapsed() = %v, want 0", got)
	}
	waits := clock.Waits()
	if len(waits) != 2 || waits[0] != 0 || waits[1] != 0 {
		t.Errorf("Waits() = %v, want [0 0]", waits)
	}
}

func TestFakeClockConcurrentSleep(t *testing.T) {
	clock := Fake(epoch)

	var group sync.WaitGroup
	for range 10 {
		group.Add(1)
		go func() {
			defer group.Done()
			clock.Sleep(time.Second)
		}()
	}
	group.Wait()

	if got := clock.Elapsed(); got != 10*time.Second {
		t.Errorf("Elapsed() = %v, want 10s", got)
	}
}

func TestSince(t *testing.T) {
	clock := Fake(epoch)
	start := clock.Now()
	clock.Advance(90 * time.Second)
	if got := Since(clock, start); got != 90*time.Second {
		t.Errorf("Since() = %v, want 90s", got)
	}
}
