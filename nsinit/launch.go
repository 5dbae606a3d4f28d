// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package nsinit

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/rad-android/rad/lib/codec"
	"github.com/rad-android/rad/namespace"
)

// EnvStage marks a process as the setup stage.
const EnvStage = "_RAD_NSINIT"

// PlanFD is the descriptor the plan arrives on: the first ExtraFiles
// entry.
const PlanFD = 3

// IsStage reports whether this process was started by Start.
func IsStage() bool {
	return os.Getenv(EnvStage) == "1"
}

// Start re-executes the running binary as the setup stage inside new
// namespaces and sends it plan. Output of the stage and of init goes
// to output. The returned command is running; the caller owns Wait.
func Start(plan Plan, flags namespace.Flags, output io.Writer) (*exec.Cmd, error) {
	reader, writer, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating plan pipe: %w", err)
	}
	defer writer.Close()

	cmd := exec.Command("/proc/self/exe")
	cmd.Args = []string{"rad-nsinit"}
	cmd.Env = []string{EnvStage + "=1"}
	cmd.ExtraFiles = []*os.File{reader}
	cmd.Stdout = output
	cmd.Stderr = output

	err = namespace.Spawn(cmd, flags, plan.Identity)
	reader.Close()
	if err != nil {
		return nil, err
	}

	if err := codec.NewEncoder(writer).Encode(plan); err != nil {
		cmd.Process.Kill()
		cmd.Wait()
		return nil, fmt.Errorf("sending launch plan: %w", err)
	}
	return cmd, nil
}

// Main runs the setup stage and never returns. Call it first thing in
// main when IsStage reports true.
func Main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil)).With("stage", "nsinit")

	planFile := os.NewFile(PlanFD, "launch-plan")
	var plan Plan
	err := codec.NewDecoder(planFile).Decode(&plan)
	planFile.Close()
	if err != nil {
		logger.Error("reading launch plan", "error", err)
		os.Exit(1)
	}

	stage := Stage{System: Kernel{}, ProcRoot: "/proc", Logger: logger}
	err = stage.Run(plan)
	logger.Error("container setup failed", "error", err)
	os.Exit(1)
}
