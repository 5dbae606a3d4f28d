// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Render writes issues as a checklist, one line per check with the fix
// indented beneath, followed by a summary line. Colors come from
// renderer's profile; an Ascii profile prints plain text.
func Render(w io.Writer, renderer *lipgloss.Renderer, issues []Issue) error {
	statusStyles := map[Status]lipgloss.Style{
		StatusPass: renderer.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		StatusWarn: renderer.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		StatusFail: renderer.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
	fixStyle := renderer.NewStyle().Faint(true)

	nameWidth := 0
	for _, issue := range issues {
		nameWidth = max(nameWidth, lipgloss.Width(issue.Name))
	}

	var builder strings.Builder
	failed, warned := 0, 0
	for _, issue := range issues {
		label := fmt.Sprintf("[%-4s]", strings.ToUpper(string(issue.Status)))
		fmt.Fprintf(&builder, "%s  %-*s  %s\n", statusStyles[issue.Status].Render(label), nameWidth, issue.Name, issue.Description)
		if issue.Fix != "" && issue.Status != StatusPass {
			fmt.Fprintf(&builder, "%s  %s\n", strings.Repeat(" ", len(label)+nameWidth), fixStyle.Render("fix: "+issue.Fix))
		}
		switch issue.Status {
		case StatusFail:
			failed++
		case StatusWarn:
			warned++
		}
	}

	builder.WriteString("\n")
	switch {
	case failed > 0:
		fmt.Fprintf(&builder, "%d check(s) failed; rad cannot start a sandbox on this host.\n", failed)
	case warned > 0:
		fmt.Fprintf(&builder, "All required checks passed (%d warning(s)).\n", warned)
	default:
		builder.WriteString("All checks passed.\n")
	}

	_, err := io.WriteString(w, builder.String())
	return err
}
