// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/rad-android/rad/container"
	"github.com/rad-android/rad/lib/config"
	"github.com/rad-android/rad/lib/process"
	"github.com/rad-android/rad/lib/testutil"
	"github.com/rad-android/rad/namespace"
)

func TestExitStatusCarriesCode(t *testing.T) {
	err := error(exitStatus(7))
	code, ok := process.ExitCode(err)
	if !ok || code != 7 {
		t.Fatalf("ExitCode(%v) = %d, %v; want 7, true", err, code, ok)
	}
	if err.Error() != "exit status 7" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := run([]string{"frobnicate"})
	code, ok := process.ExitCode(err)
	if !ok || code != 2 {
		t.Fatalf("run(frobnicate) = %v, want exit status 2", err)
	}
}

func TestRunHelpFlag(t *testing.T) {
	if err := run([]string{"status", "--help"}); err != nil {
		t.Fatalf("run(status --help) = %v, want nil", err)
	}
}

func TestRunRejectsExtraArguments(t *testing.T) {
	t.Setenv("RAD_CONFIG", "")
	err := run([]string{"stop", "unexpected"})
	if err == nil || !strings.Contains(err.Error(), "unexpected arguments") {
		t.Fatalf("run(stop unexpected) = %v", err)
	}
}

func TestSplitComponent(t *testing.T) {
	pkg, activity, err := splitComponent("org.example.notes/.MainActivity")
	if err != nil {
		t.Fatal(err)
	}
	if pkg != "org.example.notes" || activity != ".MainActivity" {
		t.Errorf("got %q %q", pkg, activity)
	}

	for _, bad := range []string{"org.example.notes", "/.Main", "org.example/", ""} {
		if _, _, err := splitComponent(bad); err == nil {
			t.Errorf("splitComponent(%q) succeeded", bad)
		}
	}
}

func TestBootTimeoutPrefersFlag(t *testing.T) {
	settings := config.Default()
	if got := bootTimeout(0, settings); got != 120*time.Second {
		t.Errorf("bootTimeout(0) = %s, want config default", got)
	}
	if got := bootTimeout(5*time.Second, settings); got != 5*time.Second {
		t.Errorf("bootTimeout(5s) = %s", got)
	}
}

func TestSettingsOverrides(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "rad.yaml")
	data := "paths:\n  images: /srv/images\n  prefix: /srv/prefix\n"
	if err := os.WriteFile(configPath, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	options := commonOptions{configPath: configPath}
	settings, err := options.settings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.Paths.Images != "/srv/images" || settings.Paths.Prefix != "/srv/prefix" {
		t.Errorf("paths from file = %+v", settings.Paths)
	}

	options.prefix = filepath.Join(dir, "override")
	options.images = filepath.Join(dir, "images")
	settings, err = options.settings()
	if err != nil {
		t.Fatal(err)
	}
	if settings.Paths.Prefix != options.prefix || settings.Paths.Images != options.images {
		t.Errorf("paths with flags = %+v", settings.Paths)
	}
}

func TestRenderStatus(t *testing.T) {
	var out bytes.Buffer
	renderer := lipgloss.NewRenderer(&out, termenv.WithProfile(termenv.Ascii))
	renderer.SetColorProfile(termenv.Ascii)
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	status := container.Status{
		State:         container.Running,
		Running:       true,
		PID:           4242,
		Root:          "/srv/prefix",
		SandboxID:     "abc123",
		Hostname:      "android-abc123",
		Namespaces:    namespace.User | namespace.Mount,
		StartedAt:     started,
		SystemMounted: true,
		VendorMounted: true,
	}
	if err := renderStatus(&out, renderer, status, started.Add(90*time.Second)); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	for _, want := range []string{
		"state       running\n",
		"init pid    4242\n",
		"hostname    android-abc123\n",
		"(1m30s ago)",
		"mounts      system vendor overlay(-)\n",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("status output missing %q:\n%s", want, text)
		}
	}
}

func TestRenderStatusDeadInit(t *testing.T) {
	var out bytes.Buffer
	renderer := lipgloss.NewRenderer(&out, termenv.WithProfile(termenv.Ascii))
	renderer.SetColorProfile(termenv.Ascii)
	status := container.Status{State: container.Running, Root: "/srv/prefix"}
	if err := renderStatus(&out, renderer, status, time.Now()); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "dead") {
		t.Errorf("status of a dead init does not say so:\n%s", out.String())
	}
	if strings.Contains(out.String(), "init pid") {
		t.Errorf("status of a dead init shows a pid:\n%s", out.String())
	}
}

// tickClock fires After only when the test sends a tick.
type tickClock struct {
	ticks chan time.Time
}

func (c tickClock) Now() time.Time                       { return time.Time{} }
func (c tickClock) After(time.Duration) <-chan time.Time { return c.ticks }
func (c tickClock) Sleep(time.Duration)                  {}

// lockedBuffer is a bytes.Buffer safe for one writer and one reader.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "container.log")
	if err := os.WriteFile(path, []byte("old line\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	clk := tickClock{ticks: make(chan time.Time)}
	var out lockedBuffer
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- followLog(ctx, clk, path, &out) }()

	appendLog := func(text string) {
		t.Helper()
		file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
		if err != nil {
			t.Fatal(err)
		}
		defer file.Close()
		if _, err := file.WriteString(text); err != nil {
			t.Fatal(err)
		}
	}

	// Once a tick is accepted the starting offset is fixed.
	clk.ticks <- time.Time{}
	appendLog("new line\n")
	clk.ticks <- time.Time{}
	// The second tick is accepted only after the first copy finished.
	clk.ticks <- time.Time{}
	if got := out.String(); got != "new line\n" {
		t.Errorf("followed %q, want only the appended line", got)
	}

	// A truncated log is read again from the start.
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	clk.ticks <- time.Time{}
	clk.ticks <- time.Time{}
	if got := out.String(); got != "new line\nx\n" {
		t.Errorf("after truncation followed %q", got)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "followLog returns after cancel"); err != nil {
		t.Errorf("followLog = %v", err)
	}
}

func TestFollowLogMissingFile(t *testing.T) {
	err := followLog(context.Background(), tickClock{}, filepath.Join(t.TempDir(), "none.log"), &bytes.Buffer{})
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("followLog(missing) = %v, want ErrNotExist", err)
	}
}
