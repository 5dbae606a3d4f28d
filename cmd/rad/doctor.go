// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"os"

	"github.com/rad-android/rad/doctor"
)

func doctorCmd(args []string) error {
	var (
		options    commonOptions
		jsonOutput bool
		noColor    bool
	)
	flagSet := newFlagSet("doctor", "[flags]")
	options.addFlags(flagSet)
	flagSet.BoolVar(&jsonOutput, "json", false, "print JSON")
	flagSet.BoolVar(&noColor, "no-color", false, "disable colored output")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := noArgs(flagSet); err != nil {
		return err
	}

	settings, err := options.settings()
	if err != nil {
		return err
	}
	issues := doctor.FromConfig(settings).Run()

	if jsonOutput {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(issues); err != nil {
			return err
		}
	} else if err := doctor.Render(os.Stdout, newRenderer(os.Stdout, noColor), issues); err != nil {
		return err
	}

	if doctor.HasFailures(issues) {
		return exitStatus(1)
	}
	return nil
}
