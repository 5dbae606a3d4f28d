// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotRunning means the operation needs a live init process.
	ErrNotRunning = errors.New("container is not running")

	// ErrInitExited means init died while the caller was waiting on it.
	ErrInitExited = errors.New("init process exited")

	// ErrLocked means another supervisor holds the sandbox root.
	ErrLocked = errors.New("sandbox root is locked by another rad process")

	// ErrInvalidState means the operation is not legal in the current
	// lifecycle state.
	ErrInvalidState = errors.New("invalid container state")
)

// AlreadyRunningError means the sandbox root's state file names a live
// init process.
type AlreadyRunningError struct {
	Root string
	PID  int
}

func (e *AlreadyRunningError) Error() string {
	return fmt.Sprintf("sandbox %s is already running (init pid %d)", e.Root, e.PID)
}

// LaunchError means init could not be started or died during the
// launch probe. Log holds the tail of the container log, which is
// where the setup stage and init report why.
type LaunchError struct {
	Reason   string
	ExitCode int // -1 when the process did not exit normally or never ran
	Log      string
	Err      error
}

func (e *LaunchError) Error() string {
	var builder strings.Builder
	builder.WriteString("launch failed: ")
	builder.WriteString(e.Reason)
	if e.Err != nil {
		fmt.Fprintf(&builder, ": %v", e.Err)
	}
	if e.Log != "" {
		fmt.Fprintf(&builder, "\nContainer log:\n%s", e.Log)
	}
	return builder.String()
}

func (e *LaunchError) Unwrap() error { return e.Err }

// BootTimeoutError means sys.boot_completed never became "1".
type BootTimeoutError struct {
	Elapsed time.Duration
	Timeout time.Duration
}

func (e *BootTimeoutError) Error() string {
	return fmt.Sprintf("boot did not complete after %s (timeout %s)", e.Elapsed.Round(time.Millisecond), e.Timeout)
}

// ExecError means a command run inside the container could not be run
// or reported failure.
type ExecError struct {
	Command []string
	Result  ExecResult
	Err     error
}

func (e *ExecError) Error() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "%s: %v", strings.Join(e.Command, " "), e.Err)
	if output := strings.TrimSpace(e.Result.Output()); output != "" {
		fmt.Fprintf(&builder, "\nOutput: %s", output)
	}
	return builder.String()
}

func (e *ExecError) Unwrap() error { return e.Err }
