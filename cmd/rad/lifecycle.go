// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/rad-android/rad/apk"
	"github.com/rad-android/rad/container"
	"github.com/rad-android/rad/lib/clock"
	"github.com/rad-android/rad/lib/config"
)

// runPoll is how often `rad run` and `rad logs --follow` check for
// changes.
const runPoll = 500 * time.Millisecond

func newFlagSet(name, usage string) *pflag.FlagSet {
	flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flagSet.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: rad %s %s\n\nFlags:\n", name, usage)
		flagSet.PrintDefaults()
	}
	return flagSet
}

func noArgs(flagSet *pflag.FlagSet) error {
	if flagSet.NArg() > 0 {
		return fmt.Errorf("rad %s: unexpected arguments %q", flagSet.Name(), flagSet.Args())
	}
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// bootTimeout prefers an explicit flag value over the configured one.
func bootTimeout(flagValue time.Duration, settings *config.Config) time.Duration {
	if flagValue > 0 {
		return flagValue
	}
	return settings.Container.BootTimeout.Std()
}

// attach opens the sandbox recorded under the configured prefix.
func attach(options *commonOptions) (*container.Container, *config.Config, error) {
	containerConfig, settings, _, err := options.containerConfig()
	if err != nil {
		return nil, nil, err
	}
	c, err := container.Attach(containerConfig)
	if errors.Is(err, container.ErrNotRunning) {
		return nil, nil, fmt.Errorf("no sandbox under %s: %w", containerConfig.Root, err)
	}
	if err != nil {
		return nil, nil, err
	}
	return c, settings, nil
}

func startCmd(args []string) error {
	var (
		options  commonOptions
		waitBoot bool
		timeout  time.Duration
	)
	flagSet := newFlagSet("start", "[flags]")
	options.addFlags(flagSet)
	flagSet.BoolVar(&waitBoot, "wait-boot", false, "wait for Android to finish booting")
	flagSet.DurationVar(&timeout, "timeout", 0, "boot timeout with --wait-boot (default from config)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := noArgs(flagSet); err != nil {
		return err
	}

	containerConfig, settings, logger, err := options.containerConfig()
	if err != nil {
		return err
	}
	if err := settings.EnsurePaths(); err != nil {
		return err
	}
	c, err := container.New(containerConfig)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := signalContext()
	defer cancel()
	if err := c.Start(ctx); err != nil {
		return err
	}

	// A sandbox that fails to boot stays up so it can be inspected with
	// exec and logs.
	var bootErr error
	if waitBoot {
		bootErr = c.WaitForBoot(ctx, bootTimeout(timeout, settings))
	}

	record, err := c.Detach()
	if err != nil {
		return err
	}
	fmt.Printf("sandbox %s running, init pid %d\n", c.Layout().ID(), record.PID)
	if bootErr != nil {
		logger.Error("sandbox did not finish booting", "error", bootErr)
		return bootErr
	}
	return nil
}

func stopCmd(args []string) error {
	var options commonOptions
	flagSet := newFlagSet("stop", "[flags]")
	options.addFlags(flagSet)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := noArgs(flagSet); err != nil {
		return err
	}

	c, _, err := attach(&options)
	if errors.Is(err, container.ErrNotRunning) {
		fmt.Println("no sandbox running")
		return nil
	}
	if err != nil {
		return err
	}
	return c.Stop()
}

// statusJSON is the machine-readable form of `rad status --json`.
type statusJSON struct {
	State      string    `json:"state"`
	Running    bool      `json:"running"`
	PID        int       `json:"pid,omitempty"`
	Root       string    `json:"root"`
	SandboxID  string    `json:"sandbox_id"`
	Hostname   string    `json:"hostname,omitempty"`
	Namespaces string    `json:"namespaces"`
	StartedAt  time.Time `json:"started_at,omitzero"`
}

func statusCmd(args []string) error {
	var (
		options    commonOptions
		jsonOutput bool
		noColor    bool
	)
	flagSet := newFlagSet("status", "[flags]")
	options.addFlags(flagSet)
	flagSet.BoolVar(&jsonOutput, "json", false, "print JSON")
	flagSet.BoolVar(&noColor, "no-color", false, "disable colored output")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := noArgs(flagSet); err != nil {
		return err
	}

	containerConfig, _, _, err := options.containerConfig()
	if err != nil {
		return err
	}
	var status container.Status
	c, err := container.Attach(containerConfig)
	switch {
	case errors.Is(err, container.ErrNotRunning):
		c, err = container.New(containerConfig)
		if err != nil {
			return err
		}
		status = c.Status()
		status.State = container.Stopped
	case err != nil:
		return err
	default:
		status = c.Status()
	}

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(statusJSON{
			State:      status.State.String(),
			Running:    status.Running,
			PID:        status.PID,
			Root:       status.Root,
			SandboxID:  status.SandboxID,
			Hostname:   status.Hostname,
			Namespaces: status.Namespaces.String(),
			StartedAt:  status.StartedAt,
		})
	}
	return renderStatus(os.Stdout, newRenderer(os.Stdout, noColor), status, time.Now())
}

func logsCmd(args []string) error {
	var (
		options commonOptions
		lines   int
		follow  bool
	)
	flagSet := newFlagSet("logs", "[flags]")
	options.addFlags(flagSet)
	flagSet.IntVarP(&lines, "lines", "n", 50, "number of lines to show (0 for all)")
	flagSet.BoolVarP(&follow, "follow", "f", false, "keep printing as the log grows")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := noArgs(flagSet); err != nil {
		return err
	}

	containerConfig, _, _, err := options.containerConfig()
	if err != nil {
		return err
	}
	c, err := container.New(containerConfig)
	if err != nil {
		return err
	}
	text, err := c.TailLog(lines)
	if err != nil {
		return fmt.Errorf("reading container log: %w", err)
	}
	if text != "" {
		fmt.Println(text)
	}
	if !follow {
		return nil
	}

	ctx, cancel := signalContext()
	defer cancel()
	return followLog(ctx, clock.Real(), c.Layout().LogFile(), os.Stdout)
}

// followLog copies whatever is appended to path until ctx is done. A
// truncated log (a new start) is followed from its beginning.
func followLog(ctx context.Context, clk clock.Clock, path string, w io.Writer) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()
	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-clk.After(runPoll):
		}
		info, err := file.Stat()
		if err != nil {
			return err
		}
		if info.Size() < offset {
			offset = 0
		}
		if info.Size() == offset {
			continue
		}
		copied, err := io.Copy(w, io.NewSectionReader(file, offset, info.Size()-offset))
		offset += copied
		if err != nil {
			return err
		}
	}
}

func runCmd(args []string) error {
	var (
		options      commonOptions
		manifestPath string
		timeout      time.Duration
	)
	flagSet := newFlagSet("run", "[flags] <apk> [package/activity]")
	options.addFlags(flagSet)
	flagSet.StringVar(&manifestPath, "manifest", "", "app manifest naming the package, activity and ABIs")
	flagSet.DurationVar(&timeout, "timeout", 0, "boot timeout (default from config)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() < 1 || flagSet.NArg() > 2 {
		flagSet.Usage()
		return exitStatus(2)
	}
	apkPath := flagSet.Arg(0)

	var manifest apk.Manifest
	switch {
	case manifestPath != "":
		var err error
		if manifest, err = loadCompatibleManifest(manifestPath); err != nil {
			return err
		}
	case flagSet.NArg() == 2:
		var err error
		if manifest.PackageName, manifest.MainActivity, err = splitComponent(flagSet.Arg(1)); err != nil {
			return err
		}
	}

	containerConfig, settings, logger, err := options.containerConfig()
	if err != nil {
		return err
	}
	if err := settings.EnsurePaths(); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	return container.With(ctx, containerConfig, func(c *container.Container) error {
		appErr := startApp(ctx, c, bootTimeout(timeout, settings), apkPath, manifest)
		if appErr != nil {
			// Keep the sandbox up for exec and logs until interrupted.
			logger.Error("app did not start; sandbox stays up until interrupted", "error", appErr)
		} else {
			logger.Info("app running; interrupt to stop the sandbox")
		}

		clk := clock.Real()
		for {
			select {
			case <-ctx.Done():
				return appErr
			case <-clk.After(runPoll):
			}
			if !c.IsRunning() {
				return errors.Join(appErr, container.ErrInitExited)
			}
		}
	})
}

// startApp boots, installs and, when a component is known, launches.
func startApp(ctx context.Context, c *container.Container, timeout time.Duration, apkPath string, manifest apk.Manifest) error {
	if err := c.WaitForBoot(ctx, timeout); err != nil {
		return err
	}
	if err := c.InstallAPK(ctx, apkPath); err != nil {
		return err
	}
	if manifest.MainActivity == "" {
		return nil
	}
	return c.LaunchManifest(ctx, manifest)
}
