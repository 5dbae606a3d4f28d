// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package layout

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"
)

// GuestStagedAPK is where InstallAPK stages an archive, as seen from
// inside the container.
const GuestStagedAPK = "/data/local/tmp/install.apk"

// MountPoints are the directories a container mounts onto.
type MountPoints struct {
	SystemMount  string `cbor:"system_mount"`
	VendorMount  string `cbor:"vendor_mount"`
	Rootfs       string `cbor:"rootfs"`
	OverlayUpper string `cbor:"overlay_upper"`
	OverlayWork  string `cbor:"overlay_work"`
}

// ForPrefix derives the mount points for root. It touches nothing on
// disk.
func ForPrefix(root string) MountPoints {
	return MountPoints{
		SystemMount:  filepath.Join(root, ".mounts", "system"),
		VendorMount:  filepath.Join(root, ".mounts", "vendor"),
		Rootfs:       filepath.Join(root, "rootfs"),
		OverlayUpper: filepath.Join(root, ".overlay", "upper"),
		OverlayWork:  filepath.Join(root, ".overlay", "work"),
	}
}

// All returns every mount point in creation order.
func (m MountPoints) All() []string {
	return []string{m.SystemMount, m.VendorMount, m.Rootfs, m.OverlayUpper, m.OverlayWork}
}

// EnsureDirs creates every mount point with parents. Existing
// directories are left as they are.
func (m MountPoints) EnsureDirs() error {
	for _, dir := range m.All() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// Layout is the full set of paths for one sandbox root.
type Layout struct {
	Root   string
	Mounts MountPoints
}

// New returns the layout for root.
func New(root string) Layout {
	root = filepath.Clean(root)
	return Layout{Root: root, Mounts: ForPrefix(root)}
}

// DataDir is the writable /data tree in the upper layer.
func (l Layout) DataDir() string {
	return filepath.Join(l.Mounts.OverlayUpper, "data")
}

// DataDirs are the /data subdirectories package installation expects
// to exist before init runs.
func (l Layout) DataDirs() []string {
	data := l.DataDir()
	return []string{
		filepath.Join(data, "app"),
		filepath.Join(data, "data"),
		filepath.Join(data, "local", "tmp"),
	}
}

// StagedAPK is the host path of GuestStagedAPK.
func (l Layout) StagedAPK() string {
	return filepath.Join(l.Mounts.OverlayUpper, GuestStagedAPK)
}

func (l Layout) LogFile() string   { return filepath.Join(l.Root, "container.log") }
func (l Layout) PIDFile() string   { return filepath.Join(l.Root, "container.pid") }
func (l Layout) StateFile() string { return filepath.Join(l.Root, "state.cbor") }
func (l Layout) LockFile() string  { return filepath.Join(l.Root, ".lock") }

// EnsureDirs creates the mount points and the data subtree.
func (l Layout) EnsureDirs() error {
	if err := l.Mounts.EnsureDirs(); err != nil {
		return err
	}
	for _, dir := range l.DataDirs() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// ID returns the sandbox identifier for this root.
func (l Layout) ID() string { return SandboxID(l.Root) }

// Hostname returns the default UTS hostname, android-<id>.
func (l Layout) Hostname() string { return "android-" + l.ID() }

// sandboxIDKey is the BLAKE3 key for sandbox identifiers. Changing it
// renames every existing sandbox.
var sandboxIDKey = func() [32]byte {
	var key [32]byte
	copy(key[:], "rad.sandbox-id.v1")
	return key
}()

// SandboxID returns a short stable identifier for a sandbox root: the
// first 12 hex digits of a keyed BLAKE3 hash of the cleaned absolute
// path. The same root always yields the same ID across invocations.
func SandboxID(root string) string {
	if absolute, err := filepath.Abs(root); err == nil {
		root = absolute
	}
	hasher, err := blake3.NewKeyed(sandboxIDKey[:])
	if err != nil {
		panic("layout: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(filepath.Clean(root)))
	sum := hasher.Sum(nil)
	return hex.EncodeToString(sum[:6])
}
