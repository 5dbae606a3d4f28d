// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package overlay

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/rad-android/rad/layout"
)

// LinkerConfig is the linker namespace policy written into every
// container. It is the same on every run.
const LinkerConfig = `dir.system = /system/bin/
dir.system = /system/xbin/
dir.vendor = /vendor/bin/

[system]
namespace.default.search.paths = /system/lib64:/system/lib:/apex/com.android.art/lib64:/apex/com.android.runtime/lib64
namespace.default.permitted.paths = /system:/apex:/vendor:/data

[vendor]
namespace.default.search.paths = /vendor/lib64:/vendor/lib:/system/lib64:/system/lib
namespace.default.permitted.paths = /system:/apex:/vendor:/data
`

// Mounter performs mount(2). The setup stage passes the real syscall;
// tests pass a recorder.
type Mounter interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
}

// PrepareApexDirs creates upper/apex/<module> for every directory
// under systemMount/system/apex and returns the module names in
// directory order. Regular files there (compressed .apex archives) are
// skipped. A system image without /system/apex is not an error.
func PrepareApexDirs(systemMount, upper string, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	systemApex := filepath.Join(systemMount, "system", "apex")
	entries, err := os.ReadDir(systemApex)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("system image has no /system/apex, skipping APEX preparation")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", systemApex, err)
	}

	upperApex := filepath.Join(upper, "apex")
	if err := os.MkdirAll(upperApex, 0o755); err != nil {
		return nil, fmt.Errorf("creating %s: %w", upperApex, err)
	}

	var modules []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := os.MkdirAll(filepath.Join(upperApex, entry.Name()), 0o755); err != nil {
			return modules, fmt.Errorf("creating APEX mount point %s: %w", entry.Name(), err)
		}
		modules = append(modules, entry.Name())
	}

	logger.Info("prepared APEX mount points", "count", len(modules))
	return modules, nil
}

// WriteLinkerConfig writes LinkerConfig to upper/linkerconfig/ld.config.txt.
func WriteLinkerConfig(upper string) error {
	dir := filepath.Join(upper, "linkerconfig")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	path := filepath.Join(dir, "ld.config.txt")
	if err := os.WriteFile(path, []byte(LinkerConfig), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// validatePath rejects paths that would corrupt the comma-separated
// overlay option string. A lowerdir of "/a,upperdir=/etc" would
// otherwise redirect writes.
func validatePath(path, fieldName string) error {
	if strings.Contains(path, ",") {
		return fmt.Errorf("%s path %q contains a comma, which overlay options cannot escape", fieldName, path)
	}
	if strings.ContainsAny(path, "\x00\n\r") {
		return fmt.Errorf("%s path %q contains invalid characters (null or newline)", fieldName, path)
	}
	return nil
}

// Options returns the overlay mount data for the given layers.
func Options(lower, upper, work string) (string, error) {
	for _, field := range []struct{ name, path string }{
		{"lower", lower}, {"upper", upper}, {"work", work},
	} {
		if err := validatePath(field.path, field.name); err != nil {
			return "", err
		}
	}
	return fmt.Sprintf("lowerdir=%s,upperdir=%s,workdir=%s", lower, upper, work), nil
}

// Mount merges the system mount and the upper layer at rootfs.
func Mount(m Mounter, mounts layout.MountPoints) error {
	options, err := Options(mounts.SystemMount, mounts.OverlayUpper, mounts.OverlayWork)
	if err != nil {
		return err
	}
	if err := m.Mount("overlay", mounts.Rootfs, "overlay", 0, options); err != nil {
		return fmt.Errorf("mounting overlay on %s: %w", mounts.Rootfs, err)
	}
	return nil
}

// BindApexModules bind-mounts rootfs/system/apex/<m> onto
// rootfs/apex/<m> for every module that has a prepared mount point.
// Returns the modules bound.
func BindApexModules(m Mounter, rootfs string) ([]string, error) {
	systemApex := filepath.Join(rootfs, "system", "apex")
	entries, err := os.ReadDir(systemApex)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", systemApex, err)
	}

	var bound []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		target := filepath.Join(rootfs, "apex", entry.Name())
		if info, err := os.Stat(target); err != nil || !info.IsDir() {
			continue
		}
		source := filepath.Join(systemApex, entry.Name())
		if err := m.Mount(source, target, "", unix.MS_BIND, ""); err != nil {
			return bound, fmt.Errorf("binding APEX module %s: %w", entry.Name(), err)
		}
		bound = append(bound, entry.Name())
	}
	return bound, nil
}
