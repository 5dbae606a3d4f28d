// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package binderfs

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MaxNameLen is BINDERFS_MAX_NAME.
const MaxNameLen = 255

// Device mirrors the kernel's struct binderfs_device. The layout is
// ABI: a NUL-terminated name in 256 bytes followed by the major and
// minor numbers the kernel fills in.
type Device struct {
	Name  [MaxNameLen + 1]byte
	Major uint32
	Minor uint32
}

// CtlAdd is BINDER_CTL_ADD, _IOWR('b', 1, struct binderfs_device).
const CtlAdd = 0xc1086201

// DeviceNames are the devices every container gets, in creation order.
var DeviceNames = []string{"binder", "hwbinder", "vndbinder"}

// NewDevice returns a Device request for name.
func NewDevice(name string) (Device, error) {
	var device Device
	if name == "" || len(name) > MaxNameLen {
		return device, fmt.Errorf("binder device name %q must be 1-%d bytes", name, MaxNameLen)
	}
	if bytes.IndexByte([]byte(name), 0) >= 0 || bytes.IndexByte([]byte(name), '/') >= 0 {
		return device, fmt.Errorf("binder device name %q contains NUL or slash", name)
	}
	copy(device.Name[:], name)
	return device, nil
}

// DeviceName returns the name stored in d.
func (d *Device) DeviceName() string {
	if end := bytes.IndexByte(d.Name[:], 0); end >= 0 {
		return string(d.Name[:end])
	}
	return string(d.Name[:])
}

// Error is a binderfs failure. Err carries the errno when the kernel
// refused the operation.
type Error struct {
	Op     string // "mount", "open control", "add device", "unmount", "link"
	Path   string
	Device string
	Err    error
}

func (e *Error) Error() string {
	if e.Device != "" {
		return fmt.Sprintf("binderfs %s %s at %s: %v", e.Op, e.Device, e.Path, e.Err)
	}
	return fmt.Sprintf("binderfs %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Control is an open binder-control node.
type Control interface {
	AddDevice(device *Device) error
	Close() error
}

// System is the set of kernel operations binderfs needs.
type System interface {
	Mount(source, target, fstype string, flags uintptr, data string) error
	Unmount(target string, flags int) error
	OpenControl(path string) (Control, error)
}

// Kernel is the System backed by real syscalls.
type Kernel struct{}

func (Kernel) Mount(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

func (Kernel) Unmount(target string, flags int) error {
	return unix.Unmount(target, flags)
}

func (Kernel) OpenControl(path string) (Control, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return controlFD(fd), nil
}

type controlFD int

func (fd controlFD) AddDevice(device *Device) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), CtlAdd, uintptr(unsafe.Pointer(device)))
	if errno != 0 {
		return errno
	}
	return nil
}

func (fd controlFD) Close() error { return unix.Close(int(fd)) }

// Options configures New and SetupInSandbox.
type Options struct {
	// System defaults to Kernel.
	System System
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.System == nil {
		o.System = Kernel{}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Instance is a mounted binderfs. It is unmounted at most once.
type Instance struct {
	mountPoint string
	mounted    bool
	system     System
	logger     *slog.Logger
}

// New creates mountPoint, mounts binderfs on it, and allocates
// DeviceNames in order. The first allocation failure aborts the rest;
// the instance is unmounted and the error names the device.
func New(mountPoint string, options Options) (*Instance, error) {
	options = options.withDefaults()
	instance := &Instance{
		mountPoint: mountPoint,
		system:     options.System,
		logger:     options.Logger.With("binderfs", mountPoint),
	}

	if err := os.MkdirAll(mountPoint, 0o755); err != nil {
		return nil, &Error{Op: "mount", Path: mountPoint, Err: err}
	}

	flags := uintptr(unix.MS_NODEV | unix.MS_NOEXEC | unix.MS_NOSUID)
	if err := instance.system.Mount("binder", mountPoint, "binder", flags, ""); err != nil {
		return nil, &Error{Op: "mount", Path: mountPoint, Err: err}
	}
	instance.mounted = true

	if err := instance.createDevices(); err != nil {
		if unmountErr := instance.Unmount(); unmountErr != nil {
			instance.logger.Warn("unmount after failed provisioning", "error", unmountErr)
		}
		return nil, err
	}
	return instance, nil
}

func (i *Instance) createDevices() error {
	controlPath := filepath.Join(i.mountPoint, "binder-control")
	control, err := i.system.OpenControl(controlPath)
	if err != nil {
		return &Error{Op: "open control", Path: controlPath, Err: err}
	}
	defer control.Close()

	for _, name := range DeviceNames {
		device, err := NewDevice(name)
		if err != nil {
			return &Error{Op: "add device", Path: controlPath, Device: name, Err: err}
		}
		if err := control.AddDevice(&device); err != nil {
			return &Error{Op: "add device", Path: controlPath, Device: name, Err: err}
		}
		i.logger.Info("created binder device", "device", name, "major", device.Major, "minor", device.Minor)
	}
	return nil
}

// MountPoint returns where the instance is mounted.
func (i *Instance) MountPoint() string { return i.mountPoint }

// Mounted reports whether Unmount has not yet run.
func (i *Instance) Mounted() bool { return i.mounted }

// DevicePath returns the path of a device inside the instance.
func (i *Instance) DevicePath(name string) string {
	return filepath.Join(i.mountPoint, name)
}

// DeviceExists reports whether name exists in the instance.
func (i *Instance) DeviceExists(name string) bool {
	_, err := os.Lstat(i.DevicePath(name))
	return err == nil
}

// Unmount unmounts the instance. Later calls do nothing.
func (i *Instance) Unmount() error {
	if !i.mounted {
		return nil
	}
	if err := i.system.Unmount(i.mountPoint, 0); err != nil {
		return &Error{Op: "unmount", Path: i.mountPoint, Err: err}
	}
	i.mounted = false
	return nil
}

// Close releases the instance; it is Unmount under the io.Closer name.
func (i *Instance) Close() error { return i.Unmount() }

// SetupInSandbox provisions binderfs at rootfs/dev/binderfs and links
// rootfs/dev/{binder,hwbinder,vndbinder} to it with relative symlinks,
// replacing anything already at those paths.
func SetupInSandbox(rootfs string, options Options) (*Instance, error) {
	devDir := filepath.Join(rootfs, "dev")
	instance, err := New(filepath.Join(devDir, "binderfs"), options)
	if err != nil {
		return nil, err
	}

	for _, name := range DeviceNames {
		link := filepath.Join(devDir, name)
		target := filepath.Join("binderfs", name)
		if err := os.Remove(link); err != nil && !errors.Is(err, os.ErrNotExist) {
			instance.Close()
			return nil, &Error{Op: "link", Path: link, Device: name, Err: err}
		}
		if err := os.Symlink(target, link); err != nil {
			instance.Close()
			return nil, &Error{Op: "link", Path: link, Device: name, Err: err}
		}
	}
	return instance, nil
}
