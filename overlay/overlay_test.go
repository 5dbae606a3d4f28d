// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/rad-android/rad/layout"
)

type mountCall struct {
	source, target, fstype string
	flags                  uintptr
	data                   string
}

type recordingMounter struct {
	calls  []mountCall
	failOn string
}

func (r *recordingMounter) Mount(source, target, fstype string, flags uintptr, data string) error {
	r.calls = append(r.calls, mountCall{source, target, fstype, flags, data})
	if r.failOn != "" && strings.HasSuffix(target, r.failOn) {
		return unix.EPERM
	}
	return nil
}

func mkdirs(t *testing.T, paths ...string) {
	t.Helper()
	for _, path := range paths {
		if err := os.MkdirAll(path, 0o755); err != nil {
			t.Fatal(err)
		}
	}
}

func TestPrepareApexDirs(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	systemMount := filepath.Join(root, "system")
	upper := filepath.Join(root, "upper")
	mkdirs(t,
		filepath.Join(systemMount, "system", "apex", "com.android.art"),
		filepath.Join(systemMount, "system", "apex", "com.android.runtime"),
	)
	if err := os.WriteFile(filepath.Join(systemMount, "system", "apex", "com.android.tzdata.apex"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	modules, err := PrepareApexDirs(systemMount, upper, nil)
	if err != nil {
		t.Fatalf("PrepareApexDirs: %v", err)
	}
	if strings.Join(modules, ",") != "com.android.art,com.android.runtime" {
		t.Errorf("modules = %v", modules)
	}

	entries, err := os.ReadDir(filepath.Join(upper, "apex"))
	if err != nil {
		t.Fatal(err)
	}
	var created []string
	for _, entry := range entries {
		if !entry.IsDir() {
			t.Errorf("%s is not a directory", entry.Name())
		}
		created = append(created, entry.Name())
	}
	if strings.Join(created, ",") != "com.android.art,com.android.runtime" {
		t.Errorf("upper/apex contains %v, want exactly the two module dirs", created)
	}
}

func TestPrepareApexDirsWithoutApex(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	upper := filepath.Join(root, "upper")

	modules, err := PrepareApexDirs(filepath.Join(root, "system"), upper, nil)
	if err != nil {
		t.Fatalf("PrepareApexDirs: %v", err)
	}
	if len(modules) != 0 {
		t.Errorf("modules = %v, want none", modules)
	}
	if _, err := os.Stat(filepath.Join(upper, "apex")); !os.IsNotExist(err) {
		t.Errorf("upper/apex should not be created, stat err = %v", err)
	}
}

func TestWriteLinkerConfigIdempotent(t *testing.T) {
	t.Parallel()

	upper := t.TempDir()
	path := filepath.Join(upper, "linkerconfig", "ld.config.txt")

	var contents []string
	for i := 0; i < 2; i++ {
		if err := WriteLinkerConfig(upper); err != nil {
			t.Fatalf("WriteLinkerConfig: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		contents = append(contents, string(data))
	}
	if contents[0] != contents[1] || contents[0] != LinkerConfig {
		t.Error("linker config differs between runs")
	}
	if !strings.Contains(contents[0], "[vendor]") || !strings.Contains(contents[0], "/apex/com.android.art/lib64") {
		t.Errorf("unexpected linker config:\n%s", contents[0])
	}
}

func TestOptions(t *testing.T) {
	t.Parallel()

	options, err := Options("/p/.mounts/system", "/p/.overlay/upper", "/p/.overlay/work")
	if err != nil {
		t.Fatalf("Options: %v", err)
	}
	if options != "lowerdir=/p/.mounts/system,upperdir=/p/.overlay/upper,workdir=/p/.overlay/work" {
		t.Errorf("Options = %q", options)
	}

	for _, bad := range []string{"/tmp,upperdir=/etc", "/tmp/a\nb", "/tmp/\x00"} {
		if _, err := Options(bad, "/u", "/w"); err == nil {
			t.Errorf("Options accepted lower %q", bad)
		}
	}
}

func TestMount(t *testing.T) {
	t.Parallel()

	mounts := layout.ForPrefix("/p")
	recorder := &recordingMounter{}
	if err := Mount(recorder, mounts); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	if len(recorder.calls) != 1 {
		t.Fatalf("calls = %+v", recorder.calls)
	}
	call := recorder.calls[0]
	if call.source != "overlay" || call.fstype != "overlay" || call.target != "/p/rootfs" {
		t.Errorf("unexpected call %+v", call)
	}
	if !strings.HasPrefix(call.data, "lowerdir=/p/.mounts/system,") {
		t.Errorf("data = %q", call.data)
	}
}

func TestBindApexModules(t *testing.T) {
	t.Parallel()

	rootfs := t.TempDir()
	mkdirs(t,
		filepath.Join(rootfs, "system", "apex", "com.android.art"),
		filepath.Join(rootfs, "system", "apex", "com.android.i18n"),
		filepath.Join(rootfs, "system", "apex", "com.android.runtime"),
		filepath.Join(rootfs, "apex", "com.android.art"),
		filepath.Join(rootfs, "apex", "com.android.runtime"),
	)

	recorder := &recordingMounter{}
	bound, err := BindApexModules(recorder, rootfs)
	if err != nil {
		t.Fatalf("BindApexModules: %v", err)
	}
	if strings.Join(bound, ",") != "com.android.art,com.android.runtime" {
		t.Errorf("bound = %v", bound)
	}
	for _, call := range recorder.calls {
		if call.flags != unix.MS_BIND {
			t.Errorf("flags = %#x, want MS_BIND", call.flags)
		}
		if filepath.Base(call.source) != filepath.Base(call.target) {
			t.Errorf("source %s bound onto %s", call.source, call.target)
		}
	}
}

func TestBindApexModulesFailure(t *testing.T) {
	t.Parallel()

	rootfs := t.TempDir()
	mkdirs(t,
		filepath.Join(rootfs, "system", "apex", "com.android.art"),
		filepath.Join(rootfs, "apex", "com.android.art"),
	)

	recorder := &recordingMounter{failOn: "com.android.art"}
	_, err := BindApexModules(recorder, rootfs)
	if !errors.Is(err, unix.EPERM) {
		t.Fatalf("expected EPERM, got %v", err)
	}
}
