// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/rad-android/rad/fuseimg"
	"github.com/rad-android/rad/image"
	"github.com/rad-android/rad/layout"
	"github.com/rad-android/rad/lib/clock"
	"github.com/rad-android/rad/namespace"
	"github.com/rad-android/rad/nsinit"
	"github.com/rad-android/rad/overlay"
)

const (
	// exitPoll is how often an attached (non-child) init is probed
	// while waiting for it to exit.
	exitPoll = 100 * time.Millisecond

	// killWait bounds the wait for an attached init after SIGKILL.
	killWait = 5 * time.Second

	// unmountTimeout bounds image unmounting during teardown.
	unmountTimeout = 30 * time.Second
)

// ImageMounter mounts and unmounts the system and vendor images.
// MountImages must leave nothing mounted when it fails.
type ImageMounter interface {
	MountImages(ctx context.Context, paths image.Paths, mounts layout.MountPoints) error
	UnmountImages(ctx context.Context, mounts layout.MountPoints) error
}

// Launcher starts init inside new namespaces. The returned command is
// running and the caller owns Wait.
type Launcher interface {
	Launch(plan nsinit.Plan, flags namespace.Flags, output io.Writer) (*exec.Cmd, error)
}

// NamespaceLauncher launches through the nsinit setup stage.
type NamespaceLauncher struct{}

func (NamespaceLauncher) Launch(plan nsinit.Plan, flags namespace.Flags, output io.Writer) (*exec.Cmd, error) {
	return nsinit.Start(plan, flags, output)
}

// Config configures a Container. Root is required; other zero fields
// take defaults.
type Config struct {
	// Root is the sandbox root directory.
	Root string

	Images image.Paths

	// Mounter defaults to a fuseimg.Mounter using tools from PATH.
	Mounter ImageMounter

	// Launcher defaults to NamespaceLauncher.
	Launcher Launcher

	// Nsenter is the namespace-join program. Default "nsenter".
	Nsenter string

	// Namespaces selects namespaces beyond user and mount.
	Namespaces namespace.Flags

	// Hostname is set when Namespaces includes UTS. Empty derives
	// android-<sandbox id>.
	Hostname string

	// Binderfs defaults to nsinit.BinderfsOff.
	Binderfs nsinit.BinderfsMode

	// Identity is mapped to root. Default: the caller's uid and gid.
	Identity *namespace.Identity

	LaunchProbe time.Duration // default 500ms
	StopGrace   time.Duration // default 2s
	BootPoll    time.Duration // default 2s

	// PIDFile writes <root>/container.pid while running.
	PIDFile bool

	Clock  clock.Clock
	Logger *slog.Logger
}

// Container supervises one sandbox.
type Container struct {
	images   image.Paths
	layout   layout.Layout
	mounter  ImageMounter
	launcher Launcher
	nsenter  string
	flags    namespace.Flags
	hostname string
	binderfs nsinit.BinderfsMode
	identity namespace.Identity

	launchProbe time.Duration
	stopGrace   time.Duration
	bootPoll    time.Duration
	pidFile     bool

	clock  clock.Clock
	logger *slog.Logger

	state State

	// pid is non-zero exactly while a launched init has not been
	// reaped (or, when attached, has not been seen dead).
	pid     int
	cmd     *exec.Cmd
	exited  chan struct{}
	waitErr error

	systemMounted  bool
	vendorMounted  bool
	overlayMounted bool

	// recorded is set once this instance owns the pid and state files.
	recorded bool
	record   Record

	lock    *rootLock
	logFile *os.File
}

// New creates a Container in NotStarted. It touches nothing on disk.
func New(config Config) (*Container, error) {
	if config.Root == "" {
		return nil, errors.New("container root is required")
	}
	root, err := filepath.Abs(config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving container root: %w", err)
	}

	c := &Container{
		images:      config.Images,
		layout:      layout.New(root),
		mounter:     config.Mounter,
		launcher:    config.Launcher,
		nsenter:     config.Nsenter,
		flags:       config.Namespaces | namespace.Required,
		hostname:    config.Hostname,
		binderfs:    config.Binderfs,
		launchProbe: config.LaunchProbe,
		stopGrace:   config.StopGrace,
		bootPoll:    config.BootPoll,
		pidFile:     config.PIDFile,
		clock:       config.Clock,
		logger:      config.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("sandbox", c.layout.ID())
	if c.clock == nil {
		c.clock = clock.Real()
	}
	if c.mounter == nil {
		c.mounter = fuseimg.New(fuseimg.Config{Clock: c.clock, Logger: c.logger})
	}
	if c.launcher == nil {
		c.launcher = NamespaceLauncher{}
	}
	if c.nsenter == "" {
		c.nsenter = "nsenter"
	}
	if c.binderfs == "" {
		c.binderfs = nsinit.BinderfsOff
	}
	if config.Identity != nil {
		c.identity = *config.Identity
	} else {
		c.identity = namespace.Current()
	}
	if !c.flags.Has(namespace.UTS) {
		c.hostname = ""
	} else if c.hostname == "" {
		c.hostname = c.layout.Hostname()
	}
	if c.launchProbe <= 0 {
		c.launchProbe = 500 * time.Millisecond
	}
	if c.stopGrace <= 0 {
		c.stopGrace = 2 * time.Second
	}
	if c.bootPoll <= 0 {
		c.bootPoll = 2 * time.Second
	}
	return c, nil
}

// Attach opens the container recorded under config.Root by an earlier
// Start. The returned Container is Running and owns the recorded mounts
// and files; if the recorded init has died, IsRunning reports false and
// Stop still cleans up. Without a state file Attach returns
// ErrNotRunning.
func Attach(config Config) (*Container, error) {
	c, err := New(config)
	if err != nil {
		return nil, err
	}
	record, err := ReadRecord(c.layout)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotRunning
	}
	if err != nil {
		return nil, fmt.Errorf("reading state of %s: %w", c.layout.Root, err)
	}

	c.images = record.Images
	c.layout.Mounts = record.Mounts
	c.flags = record.Namespaces | namespace.Required
	c.hostname = record.Hostname
	c.identity = record.Owner
	c.record = record
	c.recorded = true
	c.systemMounted, c.vendorMounted = true, true
	if processAlive(record.PID) {
		c.pid = record.PID
		c.overlayMounted = true
	} else {
		c.logger.Warn("recorded init is gone", "pid", record.PID)
	}
	c.state = Running
	return c, nil
}

// With starts a container, runs fn, and tears the container down
// however fn returns.
func With(ctx context.Context, config Config, fn func(*Container) error) error {
	c, err := New(config)
	if err != nil {
		return err
	}
	defer c.Close()
	if err := c.Start(ctx); err != nil {
		return err
	}
	return fn(c)
}

// Start mounts the images, assembles the sandbox, and launches init.
// Image validation precedes any change on disk. On failure every
// completed step is undone and the Container is Stopped.
//
// ctx bounds the external mount tools; once init is spawned Start
// runs to completion.
func (c *Container) Start(ctx context.Context) (err error) {
	if c.state != NotStarted {
		return fmt.Errorf("%w: start while %s", ErrInvalidState, c.state)
	}
	defer func() {
		if err != nil {
			c.logger.Warn("start failed, rolling back", "state", c.state, "error", err)
			c.teardown()
		}
	}()

	if _, err := c.images.ExpandCompressed(c.logger); err != nil {
		return err
	}
	if err := c.images.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(c.layout.Root, 0o755); err != nil {
		return fmt.Errorf("creating sandbox root: %w", err)
	}
	lock, err := acquireLock(c.layout.LockFile())
	if err != nil {
		return err
	}
	c.lock = lock
	if err := c.clearStale(ctx); err != nil {
		return err
	}

	c.state = Mounting
	if err := c.layout.EnsureDirs(); err != nil {
		return err
	}
	if err := c.mounter.MountImages(ctx, c.images, c.layout.Mounts); err != nil {
		return err
	}
	c.systemMounted, c.vendorMounted = true, true

	c.state = Assembling
	modules, err := overlay.PrepareApexDirs(c.layout.Mounts.SystemMount, c.layout.Mounts.OverlayUpper, c.logger)
	if err != nil {
		return err
	}
	if err := overlay.WriteLinkerConfig(c.layout.Mounts.OverlayUpper); err != nil {
		return err
	}
	initPath, err := nsinit.FindInit(c.layout.Mounts.SystemMount)
	if err != nil {
		return &LaunchError{Reason: "locating init", ExitCode: -1, Err: err}
	}
	c.logger.Info("sandbox assembled", "apex_modules", len(modules), "init", initPath)

	c.state = Launching
	if err := c.launch(initPath); err != nil {
		return err
	}

	c.record = Record{
		PID:        c.pid,
		StartedAt:  c.clock.Now(),
		Namespaces: c.flags,
		Hostname:   c.hostname,
		Init:       initPath,
		Owner:      c.identity,
		Images:     c.images,
		Mounts:     c.layout.Mounts,
	}
	c.recorded = true
	if c.pidFile {
		if err := writePIDFile(c.layout.PIDFile(), c.pid); err != nil {
			return err
		}
	}
	if err := writeRecord(c.layout, c.record); err != nil {
		return err
	}

	c.state = Running
	c.logger.Info("container running", "pid", c.pid, "namespaces", c.flags.String())
	return nil
}

// clearStale refuses to start over a live recorded init and cleans up
// after a dead one.
func (c *Container) clearStale(ctx context.Context) error {
	record, err := ReadRecord(c.layout)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		c.logger.Warn("discarding unreadable state file", "error", err)
		return removeIfExists(c.layout.StateFile())
	}
	if processAlive(record.PID) {
		return &AlreadyRunningError{Root: c.layout.Root, PID: record.PID}
	}

	c.logger.Info("cleaning up after dead container", "pid", record.PID)
	if err := c.mounter.UnmountImages(ctx, record.Mounts); err != nil {
		return fmt.Errorf("unmounting stale images: %w", err)
	}
	if err := removeIfExists(c.layout.PIDFile()); err != nil {
		return err
	}
	return removeIfExists(c.layout.StateFile())
}

// launch spawns the namespaced init and checks it survives the launch
// probe.
func (c *Container) launch(initPath string) error {
	logFile, err := os.OpenFile(c.layout.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("opening container log: %w", err)
	}
	c.logFile = logFile

	plan := nsinit.Plan{
		Mounts:   c.layout.Mounts,
		Init:     initPath,
		Hostname: c.hostname,
		Env:      nsinit.DefaultEnv(),
		Identity: c.identity,
		Binderfs: c.binderfs,
	}
	cmd, err := c.launcher.Launch(plan, c.flags, logFile)
	if err != nil {
		return &LaunchError{Reason: "spawning init", ExitCode: -1, Log: tailLog(c.layout.LogFile()), Err: err}
	}
	c.cmd = cmd
	c.pid = cmd.Process.Pid
	c.exited = make(chan struct{})
	go func() {
		c.waitErr = cmd.Wait()
		close(c.exited)
	}()

	select {
	case <-c.exited:
		c.pid = 0
		return &LaunchError{
			Reason:   "init exited during startup",
			ExitCode: cmd.ProcessState.ExitCode(),
			Log:      tailLog(c.layout.LogFile()),
			Err:      c.waitErr,
		}
	case <-c.clock.After(c.launchProbe):
	}
	c.overlayMounted = true
	return nil
}

// Stop terminates init (SIGTERM, then SIGKILL after the grace period),
// unmounts both images, and removes the pid and state files. Teardown
// failures are logged and do not stop later steps. Stop on a container
// that never started, or is already stopped, does nothing.
func (c *Container) Stop() error {
	switch c.state {
	case Stopped:
		return nil
	case NotStarted:
		c.state = Stopped
		return nil
	case Running:
	default:
		return fmt.Errorf("%w: stop while %s", ErrInvalidState, c.state)
	}
	c.state = Stopping
	c.teardown()
	c.logger.Info("container stopped")
	return nil
}

// Close releases everything the Container still holds. It is safe to
// defer on every path and to call after Stop.
func (c *Container) Close() error {
	if c.state == Stopped {
		return nil
	}
	if c.pid != 0 || c.systemMounted || c.vendorMounted {
		c.logger.Info("tearing down container on close")
	}
	c.teardown()
	return nil
}

// Detach hands a running container over to its state file so it
// outlives this process. Afterwards the Container is Stopped and Close
// does nothing; Attach picks the sandbox up again.
func (c *Container) Detach() (Record, error) {
	if c.state != Running {
		return Record{}, fmt.Errorf("%w: detach while %s", ErrInvalidState, c.state)
	}
	record := c.record
	c.pid = 0
	c.systemMounted, c.vendorMounted, c.overlayMounted = false, false, false
	c.recorded = false
	c.teardown()
	return record, nil
}

// teardown undoes whatever this instance still owns and leaves it
// Stopped.
func (c *Container) teardown() {
	c.stopProcess()

	if c.systemMounted || c.vendorMounted {
		ctx, cancel := context.WithTimeout(context.Background(), unmountTimeout)
		if err := c.mounter.UnmountImages(ctx, c.layout.Mounts); err != nil {
			c.logger.Warn("unmounting images", "error", err)
		}
		cancel()
		c.systemMounted, c.vendorMounted = false, false
	}

	if c.recorded {
		for _, path := range []string{c.layout.PIDFile(), c.layout.StateFile()} {
			if err := removeIfExists(path); err != nil {
				c.logger.Warn("removing state", "path", path, "error", err)
			}
		}
		c.recorded = false
	}

	if c.logFile != nil {
		c.logFile.Close()
		c.logFile = nil
	}
	c.lock.release()
	c.lock = nil
	c.state = Stopped
}

func (c *Container) stopProcess() {
	if c.pid == 0 {
		return
	}
	pid := c.pid
	logger := c.logger.With("pid", pid)
	defer func() {
		c.pid = 0
		c.overlayMounted = false
	}()

	if c.reaped() {
		return
	}

	logger.Info("stopping init")
	c.signal(pid, unix.SIGTERM)
	if c.waitExit(pid, c.stopGrace) {
		return
	}

	logger.Warn("init still running after grace period, killing", "grace", c.stopGrace)
	c.signal(pid, unix.SIGKILL)
	if c.exited != nil {
		<-c.exited
		return
	}
	if !c.waitExit(pid, killWait) {
		logger.Warn("init still present after SIGKILL")
	}
}

// signal delivers sig to init. Without a PID namespace, init's
// descendants survive it, so the process group (init is a session
// leader) gets the signal too.
func (c *Container) signal(pid int, sig unix.Signal) {
	if err := unix.Kill(pid, sig); err != nil && !errors.Is(err, unix.ESRCH) {
		c.logger.Warn("signalling init", "pid", pid, "signal", sig.String(), "error", err)
	}
	if !c.flags.Has(namespace.PID) {
		unix.Kill(-pid, sig)
	}
}

// waitExit waits up to d for pid to exit and reports whether it did.
func (c *Container) waitExit(pid int, d time.Duration) bool {
	if c.exited != nil {
		select {
		case <-c.exited:
			return true
		case <-c.clock.After(d):
		}
		select {
		case <-c.exited:
			return true
		default:
			return false
		}
	}

	start := c.clock.Now()
	for processAlive(pid) {
		if clock.Since(c.clock, start) >= d {
			return false
		}
		c.clock.Sleep(exitPoll)
	}
	return true
}

// IsRunning reports whether init is alive. For an init this process
// launched, it turns false once the child is reaped; an exited but
// unreaped init still counts as running.
func (c *Container) IsRunning() bool {
	if c.pid == 0 || c.reaped() {
		return false
	}
	return processAlive(c.pid)
}

// reaped reports whether the reaper has collected a child this
// instance launched.
func (c *Container) reaped() bool {
	if c.exited == nil {
		return false
	}
	select {
	case <-c.exited:
		return true
	default:
		return false
	}
}

// PID returns init's host pid, or 0 when none is tracked or the
// launched init has been reaped.
func (c *Container) PID() int {
	if c.reaped() {
		return 0
	}
	return c.pid
}

// State returns the lifecycle state.
func (c *Container) State() State { return c.state }

// Layout returns the sandbox paths.
func (c *Container) Layout() layout.Layout { return c.layout }

// Status is a point-in-time summary for display.
type Status struct {
	State          State
	Running        bool
	PID            int
	Root           string
	SandboxID      string
	Hostname       string
	Namespaces     namespace.Flags
	StartedAt      time.Time
	SystemMounted  bool
	VendorMounted  bool
	OverlayMounted bool
}

// Status reports the current state.
func (c *Container) Status() Status {
	return Status{
		State:          c.state,
		Running:        c.IsRunning(),
		PID:            c.PID(),
		Root:           c.layout.Root,
		SandboxID:      c.layout.ID(),
		Hostname:       c.hostname,
		Namespaces:     c.flags,
		StartedAt:      c.record.StartedAt,
		SystemMounted:  c.systemMounted,
		VendorMounted:  c.vendorMounted,
		OverlayMounted: c.overlayMounted,
	}
}
