// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/rad-android/rad/lib/config"
)

// hostFixture lays out a fake /proc and /dev.
type hostFixture struct {
	proc string
	dev  string
}

func newHostFixture(t *testing.T) hostFixture {
	t.Helper()
	root := t.TempDir()
	fixture := hostFixture{proc: filepath.Join(root, "proc"), dev: filepath.Join(root, "dev")}
	fixture.write(t, "filesystems", "nodev\tproc\nnodev\ttmpfs\nnodev\toverlay\nnodev\tbinder\n\text4\n")
	if err := os.MkdirAll(fixture.dev, 0o755); err != nil {
		t.Fatal(err)
	}
	return fixture
}

func (f hostFixture) write(t *testing.T, name, content string) {
	t.Helper()
	path := filepath.Join(f.proc, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (f hostFixture) checker(found ...string) Checker {
	return Checker{
		ProcRoot: f.proc,
		DevRoot:  f.dev,
		LookPath: func(file string) (string, error) {
			for _, name := range found {
				if name == file {
					return "/usr/bin/" + file, nil
				}
			}
			return "", exec.ErrNotFound
		},
		ProbeUserNamespace: func() error { return nil },
	}
}

func byName(issues []Issue) map[string]Issue {
	result := make(map[string]Issue, len(issues))
	for _, issue := range issues {
		result[issue.Name] = issue
	}
	return result
}

func TestRunOrderAndTools(t *testing.T) {
	t.Parallel()

	fixture := newHostFixture(t)
	issues := fixture.checker("fuse2fs", "fusermount", "nsenter").Run()

	var names []string
	for _, issue := range issues {
		names = append(names, issue.Name)
	}
	want := "user namespaces,binder,fuse device,overlayfs,fuse2fs,fusermount,nsenter"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("check order = %s, want %s", got, want)
	}

	checks := byName(issues)
	for _, tool := range []string{"fuse2fs", "nsenter"} {
		if checks[tool].Status != StatusPass {
			t.Errorf("%s = %+v, want pass", tool, checks[tool])
		}
	}
	// fusermount3 is missing but the fallback name resolves.
	if checks["fusermount"].Status != StatusPass || checks["fusermount"].Description != "/usr/bin/fusermount" {
		t.Errorf("fusermount = %+v", checks["fusermount"])
	}
	if checks["binder"].Status != StatusPass {
		t.Errorf("binder = %+v, want pass from /proc/filesystems", checks["binder"])
	}
	if checks["overlayfs"].Status != StatusPass {
		t.Errorf("overlayfs = %+v", checks["overlayfs"])
	}
	// The fixture /dev has no fuse node.
	if checks["fuse device"].Status != StatusFail || checks["fuse device"].Fix == "" {
		t.Errorf("fuse device = %+v, want fail with fix", checks["fuse device"])
	}
	if !HasFailures(issues) {
		t.Error("HasFailures() = false with a failing check")
	}
}

func TestMissingTool(t *testing.T) {
	t.Parallel()

	checks := byName(newHostFixture(t).checker().Run())
	issue := checks["nsenter"]
	if issue.Status != StatusFail || !strings.Contains(issue.Fix, "util-linux") {
		t.Errorf("nsenter = %+v", issue)
	}
	if !strings.Contains(checks["fusermount"].Description, "fusermount3 or fusermount") {
		t.Errorf("fusermount description = %q", checks["fusermount"].Description)
	}
}

func TestUserNamespaceChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		files   map[string]string
		probe   error
		status  Status
		fixPart string
	}{
		{"probe works", nil, nil, StatusPass, ""},
		{"debian sysctl off", map[string]string{"sys/kernel/unprivileged_userns_clone": "0\n"}, nil, StatusFail, "unprivileged_userns_clone=1"},
		{"max namespaces zero", map[string]string{"sys/user/max_user_namespaces": "0\n"}, nil, StatusFail, "max_user_namespaces"},
		{"probe refused", nil, errors.New("operation not permitted"), StatusFail, "apparmor"},
		{"sysctl on", map[string]string{"sys/kernel/unprivileged_userns_clone": "1\n"}, nil, StatusPass, ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			fixture := newHostFixture(t)
			for name, content := range test.files {
				fixture.write(t, name, content)
			}
			checker := fixture.checker()
			checker.ProbeUserNamespace = func() error { return test.probe }

			issue := byName(checker.Run())["user namespaces"]
			if issue.Status != test.status {
				t.Errorf("status = %s, want %s (%s)", issue.Status, test.status, issue.Description)
			}
			if test.fixPart != "" && !strings.Contains(issue.Fix, test.fixPart) {
				t.Errorf("fix = %q, want mention of %q", issue.Fix, test.fixPart)
			}
		})
	}
}

func TestBinderFromDevice(t *testing.T) {
	t.Parallel()

	fixture := newHostFixture(t)
	fixture.write(t, "filesystems", "nodev\tproc\n")
	if err := os.MkdirAll(filepath.Join(fixture.dev, "binderfs"), 0o755); err != nil {
		t.Fatal(err)
	}
	checks := byName(fixture.checker().Run())
	if checks["binder"].Status != StatusPass {
		t.Errorf("binder = %+v, want pass from /dev/binderfs", checks["binder"])
	}
	if checks["overlayfs"].Status != StatusWarn {
		t.Errorf("overlayfs = %+v, want warn when unlisted", checks["overlayfs"])
	}
}

func TestBinderMissing(t *testing.T) {
	t.Parallel()

	fixture := newHostFixture(t)
	fixture.write(t, "filesystems", "nodev\toverlay\n")
	issue := byName(fixture.checker().Run())["binder"]
	if issue.Status != StatusFail || !strings.Contains(issue.Fix, "binder_linux") {
		t.Errorf("binder = %+v", issue)
	}
}

func TestFromConfigUsesConfiguredTools(t *testing.T) {
	t.Parallel()

	settings := config.Default()
	settings.Tools.Nsenter = "/opt/util-linux/bin/nsenter"
	checker := FromConfig(settings)
	checker.ProcRoot = newHostFixture(t).proc
	checker.ProbeUserNamespace = func() error { return nil }
	var looked []string
	checker.LookPath = func(file string) (string, error) {
		looked = append(looked, file)
		return file, nil
	}
	checker.Run()
	if !strings.Contains(strings.Join(looked, " "), "/opt/util-linux/bin/nsenter") {
		t.Errorf("looked up %q, want the configured nsenter", looked)
	}
}

func TestRenderPlain(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderer := lipgloss.NewRenderer(&out, termenv.WithProfile(termenv.Ascii))
	renderer.SetColorProfile(termenv.Ascii)
	issues := []Issue{
		pass("nsenter", "/usr/bin/nsenter"),
		warn("overlayfs", "overlay not listed in /proc/filesystems", "modprobe overlay"),
		fail("fuse device", "/dev/fuse missing", "modprobe fuse"),
	}
	if err := Render(&out, renderer, issues); err != nil {
		t.Fatal(err)
	}

	text := out.String()
	for _, want := range []string{
		"[PASS]  nsenter      /usr/bin/nsenter",
		"[WARN]  overlayfs    overlay not listed",
		"[FAIL]  fuse device  /dev/fuse missing",
		"fix: modprobe fuse",
		"1 check(s) failed",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "\x1b[") {
		t.Errorf("Ascii profile produced escape codes:\n%q", text)
	}
}

func TestRenderAllPassed(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	renderer := lipgloss.NewRenderer(&out, termenv.WithProfile(termenv.Ascii))
	renderer.SetColorProfile(termenv.Ascii)
	if err := Render(&out, renderer, []Issue{pass("nsenter", "/usr/bin/nsenter")}); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out.String(), "All checks passed.\n") {
		t.Errorf("output = %q", out.String())
	}
}

func TestUserNamespacesAlone(t *testing.T) {
	t.Parallel()

	fixture := newHostFixture(t)
	checker := fixture.checker()
	if issue := checker.UserNamespaces(); issue.Status != StatusPass {
		t.Errorf("UserNamespaces() = %+v, want pass", issue)
	}

	checker.ProbeUserNamespace = func() error { return errors.New("operation not permitted") }
	issue := checker.UserNamespaces()
	if issue.Status != StatusFail || !strings.Contains(issue.Description, "operation not permitted") {
		t.Errorf("UserNamespaces() with failing probe = %+v", issue)
	}
}
