// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package fuseimg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rad-android/rad/image"
	"github.com/rad-android/rad/layout"
	"github.com/rad-android/rad/lib/clock"
)

// errNotReady means fuse2fs exited successfully but the mount never
// appeared.
var errNotReady = errors.New("mount did not become ready")

// MountError describes a failed mount or unmount. Stderr holds what
// the external tool printed, which usually names the real cause (bad
// superblock, missing /dev/fuse, device busy).
type MountError struct {
	Op     string // "mount" or "unmount"
	Source string // image path; empty for unmount
	Target string
	Stderr string
	Err    error
}

func (e *MountError) Error() string {
	var builder strings.Builder
	if e.Source != "" {
		fmt.Fprintf(&builder, "%s %s on %s: %v", e.Op, e.Source, e.Target, e.Err)
	} else {
		fmt.Fprintf(&builder, "%s %s: %v", e.Op, e.Target, e.Err)
	}
	if e.Stderr != "" {
		fmt.Fprintf(&builder, "\nOutput: %s", e.Stderr)
	}
	return builder.String()
}

func (e *MountError) Unwrap() error { return e.Err }

// Config configures a Mounter. Zero fields take defaults.
type Config struct {
	// Fuse2fs is the mount program. Default "fuse2fs".
	Fuse2fs string

	// Fusermount lists the unmount helpers in the order they are
	// tried. The last entry also performs the lazy unmount. Default
	// fusermount3, fusermount.
	Fusermount []string

	// IsMounted reports whether path currently has a FUSE filesystem
	// mounted on it. Default: statfs reports FUSE_SUPER_MAGIC.
	IsMounted func(path string) bool

	// ReadyTimeout bounds the wait for a mount to appear after fuse2fs
	// returns. Default 5s.
	ReadyTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// Mounter runs the FUSE mount and unmount tools.
type Mounter struct {
	fuse2fs      string
	fusermount   []string
	isMounted    func(string) bool
	readyTimeout time.Duration
	clock        clock.Clock
	logger       *slog.Logger
}

// New creates a Mounter. Tool names are resolved through PATH each
// time they run, so a Mounter can be created before the tools are
// installed; the doctor checks report missing tools up front.
func New(config Config) *Mounter {
	m := &Mounter{
		fuse2fs:      config.Fuse2fs,
		fusermount:   config.Fusermount,
		isMounted:    config.IsMounted,
		readyTimeout: config.ReadyTimeout,
		clock:        config.Clock,
		logger:       config.Logger,
	}
	if m.fuse2fs == "" {
		m.fuse2fs = "fuse2fs"
	}
	if len(m.fusermount) == 0 {
		m.fusermount = []string{"fusermount3", "fusermount"}
	}
	if m.isMounted == nil {
		m.isMounted = IsFuseMount
	}
	if m.readyTimeout <= 0 {
		m.readyTimeout = 5 * time.Second
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// mountOptions returns the fuse2fs -o argument.
func mountOptions(readOnly bool) string {
	if readOnly {
		return "ro,fakeroot"
	}
	return "fakeroot"
}

// Mount mounts imagePath on mountpoint and waits for the mount to
// appear.
func (m *Mounter) Mount(ctx context.Context, imagePath, mountpoint string, readOnly bool) error {
	args := []string{imagePath, mountpoint, "-o", mountOptions(readOnly)}
	m.logger.Debug("mounting image", "image", imagePath, "mountpoint", mountpoint, "read_only", readOnly)

	if stderr, err := m.run(ctx, m.fuse2fs, args...); err != nil {
		return &MountError{Op: "mount", Source: imagePath, Target: mountpoint, Stderr: stderr, Err: err}
	}

	if err := m.waitForMount(mountpoint); err != nil {
		if unmountErr := m.Unmount(ctx, mountpoint); unmountErr != nil {
			m.logger.Warn("cleanup after unready mount failed", "mountpoint", mountpoint, "error", unmountErr)
		}
		return &MountError{Op: "mount", Source: imagePath, Target: mountpoint, Err: err}
	}

	m.logger.Info("mounted image", "image", imagePath, "mountpoint", mountpoint)
	return nil
}

// Unmount detaches the FUSE filesystem at mountpoint. It is a no-op
// when nothing is mounted there, so calling it twice is safe.
func (m *Mounter) Unmount(ctx context.Context, mountpoint string) error {
	if !m.isMounted(mountpoint) {
		m.logger.Debug("not mounted, skipping unmount", "mountpoint", mountpoint)
		return nil
	}

	var outputs []string
	var lastErr error
	for _, tool := range m.fusermount {
		stderr, err := m.run(ctx, tool, "-u", mountpoint)
		if err == nil {
			m.logger.Debug("unmounted", "mountpoint", mountpoint, "tool", tool)
			return nil
		}
		lastErr = err
		outputs = append(outputs, fmt.Sprintf("%s -u: %v %s", tool, err, stderr))
	}

	lazyTool := m.fusermount[len(m.fusermount)-1]
	stderr, err := m.run(ctx, lazyTool, "-uz", mountpoint)
	if err == nil {
		m.logger.Warn("mount was busy, detached lazily", "mountpoint", mountpoint)
		return nil
	}
	outputs = append(outputs, fmt.Sprintf("%s -uz: %v %s", lazyTool, err, stderr))
	if lastErr == nil {
		lastErr = err
	}

	return &MountError{Op: "unmount", Target: mountpoint, Stderr: strings.Join(outputs, "\n"), Err: lastErr}
}

// MountImages mounts the system image and then the vendor image,
// read-only. If the vendor mount fails the system mount is released
// before returning, so on error nothing is left mounted.
func (m *Mounter) MountImages(ctx context.Context, paths image.Paths, mounts layout.MountPoints) error {
	if err := m.Mount(ctx, paths.System, mounts.SystemMount, true); err != nil {
		return fmt.Errorf("mounting system image: %w", err)
	}
	if err := m.Mount(ctx, paths.Vendor, mounts.VendorMount, true); err != nil {
		if unmountErr := m.Unmount(ctx, mounts.SystemMount); unmountErr != nil {
			m.logger.Warn("rollback of system mount failed", "mountpoint", mounts.SystemMount, "error", unmountErr)
		}
		return fmt.Errorf("mounting vendor image: %w", err)
	}
	return nil
}

// UnmountImages releases vendor and then system. Failures are logged
// and joined; both unmounts are always attempted.
func (m *Mounter) UnmountImages(ctx context.Context, mounts layout.MountPoints) error {
	var errs []error
	for _, mountpoint := range []string{mounts.VendorMount, mounts.SystemMount} {
		if err := m.Unmount(ctx, mountpoint); err != nil {
			m.logger.Warn("unmount failed", "mountpoint", mountpoint, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// run executes a tool and returns its trimmed stderr.
func (m *Mounter) run(ctx context.Context, tool string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, tool, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	err := cmd.Run()
	return strings.TrimSpace(stderr.String()), err
}

// waitForMount polls until mountpoint is a FUSE mount. fuse2fs
// daemonizes, and on some libfuse versions the parent exits before the
// kernel has registered the mount.
func (m *Mounter) waitForMount(mountpoint string) error {
	const interval = 20 * time.Millisecond
	start := m.clock.Now()
	for {
		if m.isMounted(mountpoint) {
			return nil
		}
		if clock.Since(m.clock, start) >= m.readyTimeout {
			return fmt.Errorf("%w after %v", errNotReady, m.readyTimeout)
		}
		m.clock.Sleep(interval)
	}
}

// IsFuseMount reports whether path is the root of a FUSE filesystem.
func IsFuseMount(path string) bool {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return false
	}
	return stat.Type == unix.FUSE_SUPER_MAGIC
}
