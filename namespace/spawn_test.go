// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package namespace_test

import (
	"bytes"
	"os/exec"
	"strings"
	"testing"

	"github.com/rad-android/rad/doctor"
	"github.com/rad-android/rad/namespace"
)

func requireUserNamespaces(t *testing.T) {
	t.Helper()
	if issue := (doctor.Checker{}).UserNamespaces(); !issue.OK() {
		t.Skipf("user namespaces unavailable: %s", issue.Description)
	}
}

func TestSpawnMapsCallerToRoot(t *testing.T) {
	requireUserNamespaces(t)
	catPath, err := exec.LookPath("cat")
	if err != nil {
		t.Skip("cat not found")
	}

	identity := namespace.Current()
	var stdout, stderr bytes.Buffer
	cmd := exec.Command(catPath, "/proc/self/uid_map", "/proc/self/setgroups", "/proc/self/gid_map")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := namespace.Spawn(cmd, namespace.User, identity); err != nil {
		t.Fatalf("Spawn() error: %v", err)
	}
	if err := cmd.Wait(); err != nil {
		t.Fatalf("cat in namespace: %v\n%s", err, stderr.String())
	}

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want uid_map, setgroups, gid_map:\n%s", len(lines), stdout.String())
	}
	if got, want := strings.Join(strings.Fields(lines[0]), " "), namespace.MappingLine(identity.UID); got != want {
		t.Errorf("uid_map = %q, want %q", got, want)
	}
	if got := strings.TrimSpace(lines[1]); got != "deny" {
		t.Errorf("setgroups = %q, want deny", got)
	}
	if got, want := strings.Join(strings.Fields(lines[2]), " "), namespace.MappingLine(identity.GID); got != want {
		t.Errorf("gid_map = %q, want %q", got, want)
	}
}
