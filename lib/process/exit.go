// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"errors"
	"fmt"
	"os"
)

// ExitCoder is implemented by errors that determine the process exit
// status.
type ExitCoder interface {
	ExitCode() int
}

// Fatal writes "error: err" to stderr and exits with code 1. Use it in
// main() for errors from run() where the structured logger may not be
// initialized.
func Fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

// Exit terminates the process according to err. A nil error exits 0.
// An error wrapping an ExitCoder exits with its code silently, since
// the failing command has already reported its own output. Anything
// else goes through Fatal.
func Exit(err error) {
	if err == nil {
		os.Exit(0)
	}
	if code, ok := ExitCode(err); ok {
		os.Exit(code)
	}
	Fatal(err)
}

// ExitCode extracts the exit status carried by err, if any.
func ExitCode(err error) (int, bool) {
	var coder ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode(), true
	}
	return 0, false
}
