// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/rad-android/rad/apk"
)

func execCmd(args []string) error {
	var (
		options commonOptions
		timeout time.Duration
	)
	flagSet := newFlagSet("exec", "[flags] -- <command> [args...]")
	options.addFlags(flagSet)
	flagSet.DurationVar(&timeout, "timeout", 0, "kill the command after this long (0 for no limit)")
	flagSet.SetInterspersed(false)
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() == 0 {
		flagSet.Usage()
		return exitStatus(2)
	}

	c, _, err := attach(&options)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()
	if timeout > 0 {
		var timeoutCancel context.CancelFunc
		ctx, timeoutCancel = context.WithTimeout(ctx, timeout)
		defer timeoutCancel()
	}

	result, err := c.Exec(ctx, flagSet.Arg(0), flagSet.Args()[1:]...)
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, result.Stdout)
	fmt.Fprint(os.Stderr, result.Stderr)
	if !result.Success() {
		return exitStatus(result.ExitCode)
	}
	return nil
}

func installCmd(args []string) error {
	var (
		options      commonOptions
		manifestPath string
	)
	flagSet := newFlagSet("install", "[flags] <apk>")
	options.addFlags(flagSet)
	flagSet.StringVar(&manifestPath, "manifest", "", "check the app's ABIs against this host first")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		flagSet.Usage()
		return exitStatus(2)
	}

	if manifestPath != "" {
		if _, err := loadCompatibleManifest(manifestPath); err != nil {
			return err
		}
	}

	c, _, err := attach(&options)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := c.InstallAPK(ctx, flagSet.Arg(0)); err != nil {
		return err
	}
	fmt.Printf("installed %s\n", flagSet.Arg(0))
	return nil
}

func launchCmd(args []string) error {
	var (
		options      commonOptions
		manifestPath string
	)
	flagSet := newFlagSet("launch", "[flags] <package> <activity> | --manifest <file>")
	options.addFlags(flagSet)
	flagSet.StringVar(&manifestPath, "manifest", "", "app manifest naming the package and main activity")
	if err := flagSet.Parse(args); err != nil {
		return err
	}

	var manifest apk.Manifest
	switch {
	case manifestPath != "" && flagSet.NArg() == 0:
		var err error
		if manifest, err = apk.LoadManifest(manifestPath); err != nil {
			return err
		}
	case manifestPath == "" && flagSet.NArg() == 2:
		manifest.PackageName, manifest.MainActivity = flagSet.Arg(0), flagSet.Arg(1)
	case manifestPath == "" && flagSet.NArg() == 1:
		var err error
		if manifest.PackageName, manifest.MainActivity, err = splitComponent(flagSet.Arg(0)); err != nil {
			return err
		}
	default:
		flagSet.Usage()
		return exitStatus(2)
	}

	c, _, err := attach(&options)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	return c.LaunchManifest(ctx, manifest)
}

func waitBootCmd(args []string) error {
	var (
		options commonOptions
		timeout time.Duration
	)
	flagSet := newFlagSet("wait-boot", "[flags]")
	options.addFlags(flagSet)
	flagSet.DurationVar(&timeout, "timeout", 0, "give up after this long (default from config)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := noArgs(flagSet); err != nil {
		return err
	}

	c, settings, err := attach(&options)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext()
	defer cancel()
	if err := c.WaitForBoot(ctx, bootTimeout(timeout, settings)); err != nil {
		return err
	}
	fmt.Println("boot completed")
	return nil
}

// loadCompatibleManifest loads a manifest and checks its ABIs against
// the host architecture.
func loadCompatibleManifest(path string) (apk.Manifest, error) {
	manifest, err := apk.LoadManifest(path)
	if err != nil {
		return apk.Manifest{}, err
	}
	if err := manifest.Info().CheckCompatible(apk.HostABIs(runtime.GOARCH)); err != nil {
		return apk.Manifest{}, err
	}
	return manifest, nil
}

// splitComponent splits "package/activity".
func splitComponent(component string) (string, string, error) {
	pkg, activity, ok := strings.Cut(component, "/")
	if !ok || pkg == "" || activity == "" {
		return "", "", fmt.Errorf("component %q is not package/activity", component)
	}
	return pkg, activity, nil
}
