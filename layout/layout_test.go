// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"os"
	"path/filepath"
	"testing"
)

func TestForPrefix(t *testing.T) {
	t.Parallel()

	mounts := ForPrefix("/srv/sandbox")
	want := MountPoints{
		SystemMount:  "/srv/sandbox/.mounts/system",
		VendorMount:  "/srv/sandbox/.mounts/vendor",
		Rootfs:       "/srv/sandbox/rootfs",
		OverlayUpper: "/srv/sandbox/.overlay/upper",
		OverlayWork:  "/srv/sandbox/.overlay/work",
	}
	if mounts != want {
		t.Errorf("ForPrefix = %+v, want %+v", mounts, want)
	}
}

func TestForPrefixDistinctRoots(t *testing.T) {
	t.Parallel()

	first := ForPrefix("/srv/a").All()
	second := ForPrefix("/srv/b").All()
	seen := make(map[string]bool)
	for _, path := range first {
		seen[path] = true
	}
	for _, path := range second {
		if seen[path] {
			t.Errorf("mount point %s shared between roots", path)
		}
	}
}

func TestEnsureDirsIdempotent(t *testing.T) {
	t.Parallel()

	l := New(filepath.Join(t.TempDir(), "prefix"))
	for i := 0; i < 2; i++ {
		if err := l.EnsureDirs(); err != nil {
			t.Fatalf("EnsureDirs (pass %d): %v", i, err)
		}
	}
	for _, dir := range append(l.Mounts.All(), l.DataDirs()...) {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("missing %s: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
}

func TestSandboxFiles(t *testing.T) {
	t.Parallel()

	l := New("/srv/sandbox/")
	tests := map[string]string{
		"log":    l.LogFile(),
		"pid":    l.PIDFile(),
		"state":  l.StateFile(),
		"lock":   l.LockFile(),
		"staged": l.StagedAPK(),
	}
	want := map[string]string{
		"log":    "/srv/sandbox/container.log",
		"pid":    "/srv/sandbox/container.pid",
		"state":  "/srv/sandbox/state.cbor",
		"lock":   "/srv/sandbox/.lock",
		"staged": "/srv/sandbox/.overlay/upper/data/local/tmp/install.apk",
	}
	for name, got := range tests {
		if got != want[name] {
			t.Errorf("%s = %s, want %s", name, got, want[name])
		}
	}
}

func TestSandboxIDStable(t *testing.T) {
	t.Parallel()

	first := SandboxID("/srv/sandbox")
	if len(first) != 12 {
		t.Fatalf("ID %q has length %d, want 12", first, len(first))
	}
	if again := SandboxID("/srv/sandbox/"); again != first {
		t.Errorf("trailing slash changed ID: %s vs %s", again, first)
	}
	if other := SandboxID("/srv/other"); other == first {
		t.Errorf("distinct roots share ID %s", first)
	}
	if hostname := New("/srv/sandbox").Hostname(); hostname != "android-"+first {
		t.Errorf("Hostname = %s", hostname)
	}
}
