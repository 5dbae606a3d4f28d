// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rad-android/rad/image"
	"github.com/rad-android/rad/layout"
	"github.com/rad-android/rad/lib/atomicfile"
	"github.com/rad-android/rad/lib/codec"
	"github.com/rad-android/rad/namespace"
)

// State is a lifecycle state.
type State int

const (
	NotStarted State = iota
	Mounting
	Assembling
	Launching
	Running
	Stopping
	Stopped
)

var stateNames = [...]string{
	NotStarted: "not-started",
	Mounting:   "mounting",
	Assembling: "assembling",
	Launching:  "launching",
	Running:    "running",
	Stopping:   "stopping",
	Stopped:    "stopped",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// Record is what a running container persists in state.cbor so later
// invocations can find it.
type Record struct {
	PID        int                `cbor:"pid"`
	StartedAt  time.Time          `cbor:"started_at"`
	Namespaces namespace.Flags    `cbor:"namespaces"`
	Hostname   string             `cbor:"hostname,omitempty"`
	Init       string             `cbor:"init"`
	Owner      namespace.Identity `cbor:"owner"`
	Images     image.Paths        `cbor:"images"`
	Mounts     layout.MountPoints `cbor:"mounts"`
}

// ReadRecord loads the state file of the sandbox at l. A missing file
// returns an error satisfying errors.Is(err, os.ErrNotExist).
func ReadRecord(l layout.Layout) (Record, error) {
	var record Record
	if err := codec.ReadFile(l.StateFile(), &record); err != nil {
		return Record{}, err
	}
	return record, nil
}

func writeRecord(l layout.Layout, record Record) error {
	if err := codec.WriteFile(l.StateFile(), record, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	return nil
}

func writePIDFile(path string, pid int) error {
	if err := atomicfile.WriteBytes(path, []byte(strconv.Itoa(pid)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing pid file: %w", err)
	}
	return nil
}

// removeIfExists deletes path, treating absence as success.
func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// processAlive probes pid with signal 0. EPERM still means a process
// holds the pid.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// rootLock is an exclusive flock on <root>/.lock.
type rootLock struct {
	file *os.File
}

func acquireLock(path string) (*rootLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		file.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &rootLock{file: file}, nil
}

func (l *rootLock) release() {
	if l == nil || l.file == nil {
		return
	}
	unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	l.file.Close()
	l.file = nil
}
