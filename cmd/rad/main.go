// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// rad runs Android apps in a rootless container built from a system
// and vendor image.
//
// Usage:
//
//	rad start [flags]
//	rad run [flags] <apk> [activity]
//	rad exec [flags] -- <command> [args...]
//	rad install [flags] <apk>
//	rad launch [flags] <package> <activity>
//	rad wait-boot [flags]
//	rad status [flags]
//	rad logs [flags]
//	rad stop [flags]
//	rad doctor [flags]
//	rad version
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/rad-android/rad/lib/process"
	"github.com/rad-android/rad/lib/version"
	"github.com/rad-android/rad/nsinit"
)

func main() {
	// The launcher re-executes this binary inside the new namespaces;
	// that child assembles the sandbox and becomes init.
	if nsinit.IsStage() {
		nsinit.Main()
	}

	if err := run(os.Args[1:]); err != nil {
		process.Exit(err)
	}
}

// commands maps subcommand names to their implementations.
var commands = map[string]func(args []string) error{
	"start":     startCmd,
	"stop":      stopCmd,
	"status":    statusCmd,
	"exec":      execCmd,
	"install":   installCmd,
	"launch":    launchCmd,
	"wait-boot": waitBootCmd,
	"logs":      logsCmd,
	"run":       runCmd,
	"doctor":    doctorCmd,
}

func run(args []string) error {
	if len(args) == 0 {
		printUsage(os.Stderr)
		return exitStatus(2)
	}

	name := args[0]
	switch name {
	case "version", "--version", "-v":
		fmt.Printf("rad %s\n", version.Full())
		return nil
	case "help", "--help", "-h":
		printUsage(os.Stdout)
		return nil
	}

	command, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", name)
		printUsage(os.Stderr)
		return exitStatus(2)
	}
	err := command(args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	return err
}

// exitStatus is an error that sets the process exit code without
// printing anything further.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func (e exitStatus) ExitCode() int { return int(e) }

func printUsage(w *os.File) {
	fmt.Fprint(w, `rad - rootless Android containers

USAGE
    rad <command> [flags] [args]

COMMANDS
    start       Start the sandbox and leave it running
    run         Start, install and launch an app, stop on Ctrl-C
    exec        Run a command inside the running sandbox
    install     Install an APK into the running sandbox
    launch      Start an activity in the running sandbox
    wait-boot   Wait until Android reports boot completed
    status      Show the sandbox state
    logs        Show the container log
    stop        Stop the sandbox and unmount its images
    doctor      Check that this host can run sandboxes
    version     Show version

COMMON FLAGS
    --config PATH    Configuration file (YAML, or JSON with comments)
    --prefix DIR     Sandbox root (default from config)
    --images DIR     Directory holding system.img and vendor.img
    --debug          Debug logging

EXAMPLES
    # Check the host, then boot a sandbox in the background
    rad doctor
    rad start --wait-boot

    # Install and open an app, then look around
    rad install notes.apk
    rad launch org.example.notes .MainActivity
    rad exec -- getprop ro.build.version.release

    # One-shot session torn down on Ctrl-C
    rad run --manifest notes.yaml notes.apk

ENVIRONMENT
    RAD_CONFIG   Configuration file used when --config is not given
    RAD_DEBUG    Enable debug logging
    NO_COLOR     Disable colored output
`)
}
