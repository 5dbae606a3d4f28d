// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rad-android/rad/apk"
	"github.com/rad-android/rad/layout"
	"github.com/rad-android/rad/lib/atomicfile"
	"github.com/rad-android/rad/lib/clock"
	"github.com/rad-android/rad/namespace"
)

// bootCompletedProperty is "1" once Android has finished booting.
const bootCompletedProperty = "sys.boot_completed"

// ExecResult is the outcome of a command run inside the container.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Success reports a zero exit status.
func (r ExecResult) Success() bool { return r.ExitCode == 0 }

// Output is stdout followed by stderr.
func (r ExecResult) Output() string { return r.Stdout + r.Stderr }

// Exec runs name with args inside the container's namespaces and root.
// A non-zero exit is reported in the result, not as an error; the
// error is for a command that could not run at all.
func (c *Container) Exec(ctx context.Context, name string, args ...string) (ExecResult, error) {
	if !c.IsRunning() {
		return ExecResult{}, ErrNotRunning
	}

	c.logger.Debug("exec in container", "command", name, "args", args)
	cmd := namespace.JoinCommand(ctx, c.nsenter, c.pid, c.flags, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()

	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, &ExecError{Command: commandLine(name, args), Result: result, Err: ctxErr}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, &ExecError{Command: commandLine(name, args), Result: result, Err: err}
	}
	return result, nil
}

// run is Exec with a non-zero exit turned into an ExecError.
func (c *Container) run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	result, err := c.Exec(ctx, name, args...)
	if err != nil {
		return result, err
	}
	if !result.Success() {
		return result, &ExecError{
			Command: commandLine(name, args),
			Result:  result,
			Err:     fmt.Errorf("exit status %d", result.ExitCode),
		}
	}
	return result, nil
}

func commandLine(name string, args []string) []string {
	return append([]string{name}, args...)
}

// WaitForBoot polls sys.boot_completed until it reads "1". It fails
// with ErrInitExited as soon as init is gone and with a
// *BootTimeoutError once timeout has elapsed. Poll failures other than
// those are treated as "not booted yet".
func (c *Container) WaitForBoot(ctx context.Context, timeout time.Duration) error {
	start := c.clock.Now()
	logger := c.logger.With("timeout", timeout)
	logger.Info("waiting for boot")

	for {
		if !c.IsRunning() {
			return fmt.Errorf("waiting for boot: %w", ErrInitExited)
		}

		result, err := c.Exec(ctx, "getprop", bootCompletedProperty)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err == nil && result.Success() && strings.TrimSpace(result.Stdout) == "1" {
			logger.Info("boot completed", "elapsed", clock.Since(c.clock, start))
			return nil
		}
		if err != nil {
			logger.Debug("boot poll failed", "error", err)
		}

		elapsed := clock.Since(c.clock, start)
		if elapsed >= timeout {
			return &BootTimeoutError{Elapsed: elapsed, Timeout: timeout}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.bootPoll):
		}
	}
}

// InstallAPK copies the archive at path into the writable layer, where
// the guest sees it as /data/local/tmp/install.apk, and installs it
// with the package manager.
func (c *Container) InstallAPK(ctx context.Context, path string) error {
	if !c.IsRunning() {
		return ErrNotRunning
	}
	source, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening package: %w", err)
	}
	defer source.Close()

	staged := c.layout.StagedAPK()
	if err := os.MkdirAll(filepath.Dir(staged), 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	err = atomicfile.Write(staged, 0o644, func(w io.Writer) error {
		_, err := io.Copy(w, source)
		return err
	})
	if err != nil {
		return fmt.Errorf("staging package: %w", err)
	}

	c.logger.Info("installing package", "path", path)
	if _, err := c.run(ctx, "pm", "install", "-r", layout.GuestStagedAPK); err != nil {
		return err
	}
	c.logger.Info("package installed", "path", path)
	return nil
}

// LaunchApp starts the activity package/activity.
func (c *Container) LaunchApp(ctx context.Context, pkg, activity string) error {
	if pkg == "" || activity == "" {
		return errors.New("package and activity are both required")
	}
	component := pkg + "/" + activity
	c.logger.Info("launching activity", "component", component)
	_, err := c.run(ctx, "am", "start", "-n", component)
	return err
}

// LaunchManifest starts the main activity named by manifest.
func (c *Container) LaunchManifest(ctx context.Context, manifest apk.Manifest) error {
	if manifest.MainActivity == "" {
		return fmt.Errorf("%s: %w", manifest.PackageName, apk.ErrNoMainActivity)
	}
	return c.LaunchApp(ctx, manifest.PackageName, manifest.MainActivity)
}

// tailLines is how much of the container log a LaunchError carries.
const tailLines = 20

// tailLog returns the last tailLines lines of the log at path.
func tailLog(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return tail(string(data), tailLines)
}

// TailLog returns the last n lines of the container log.
func (c *Container) TailLog(n int) (string, error) {
	data, err := os.ReadFile(c.layout.LogFile())
	if err != nil {
		return "", err
	}
	return tail(string(data), n), nil
}

func tail(text string, n int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
