// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/rad-android/rad/container"
)

// newRenderer returns a renderer for file that emits colors only on a
// terminal, and never when noColor or NO_COLOR is set.
func newRenderer(file *os.File, noColor bool) *lipgloss.Renderer {
	profile := termenv.ANSI256
	if noColor || os.Getenv("NO_COLOR") != "" || !term.IsTerminal(int(file.Fd())) {
		profile = termenv.Ascii
	}
	// The renderer re-detects the profile from the environment unless
	// it is set explicitly.
	renderer := lipgloss.NewRenderer(file, termenv.WithProfile(profile))
	renderer.SetColorProfile(profile)
	return renderer
}

// renderStatus writes status as aligned key/value lines.
func renderStatus(w io.Writer, renderer *lipgloss.Renderer, status container.Status, now time.Time) error {
	keyStyle := renderer.NewStyle().Bold(true)
	stateStyle := renderer.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)
	state := status.State.String()
	if !status.Running {
		stateStyle = renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
		if status.State == container.Running {
			state = "dead (init exited, run rad stop to clean up)"
		}
	}

	rows := [][2]string{
		{"state", stateStyle.Render(state)},
		{"sandbox", status.SandboxID},
		{"root", status.Root},
	}
	if status.PID != 0 {
		rows = append(rows, [2]string{"init pid", strconv.Itoa(status.PID)})
	}
	if status.Hostname != "" {
		rows = append(rows, [2]string{"hostname", status.Hostname})
	}
	rows = append(rows, [2]string{"namespaces", status.Namespaces.String()})
	if !status.StartedAt.IsZero() {
		uptime := now.Sub(status.StartedAt).Truncate(time.Second)
		rows = append(rows, [2]string{"started", fmt.Sprintf("%s (%s ago)", status.StartedAt.Format(time.RFC3339), uptime)})
	}
	rows = append(rows, [2]string{"mounts", mountSummary(status)})

	width := 0
	for _, row := range rows {
		width = max(width, len(row[0]))
	}
	for _, row := range rows {
		key := fmt.Sprintf("%-*s", width, row[0])
		if _, err := fmt.Fprintf(w, "%s  %s\n", keyStyle.Render(key), row[1]); err != nil {
			return err
		}
	}
	return nil
}

func mountSummary(status container.Status) string {
	mark := func(name string, mounted bool) string {
		if mounted {
			return name
		}
		return name + "(-)"
	}
	return mark("system", status.SystemMounted) + " " + mark("vendor", status.VendorMounted) + " " + mark("overlay", status.OverlayMounted)
}
