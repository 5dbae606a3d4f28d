// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package nsinit

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/rad-android/rad/binderfs"
	"github.com/rad-android/rad/namespace"
	"github.com/rad-android/rad/overlay"
)

// deviceNode is a character device every container gets.
type deviceNode struct {
	name         string
	major, minor uint32
}

var deviceNodes = []deviceNode{
	{"null", 1, 3},
	{"zero", 1, 5},
	{"random", 1, 8},
	{"urandom", 1, 9},
}

// rootfsDirs are created in the merged tree before the pseudo
// filesystems are mounted.
var rootfsDirs = []string{
	"data/app", "data/data", "data/local/tmp", "data/system", "data/misc", "data/dalvik-cache",
	"proc", "sys", "dev", "tmp",
}

// Stage runs the in-namespace setup.
type Stage struct {
	System System

	// ProcRoot is where the mapping is verified. Empty skips the check.
	ProcRoot string

	// HostDev is where host device nodes are found for the bind-mount
	// fallback. Default /dev.
	HostDev string

	Logger *slog.Logger
}

// Run assembles the container described by plan and execs init. It
// returns only on failure.
func (s Stage) Run(plan Plan) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	hostDev := s.HostDev
	if hostDev == "" {
		hostDev = "/dev"
	}
	sys := s.System
	rootfs := plan.Mounts.Rootfs

	if s.ProcRoot != "" {
		if err := namespace.VerifyMapped(s.ProcRoot, plan.Identity); err != nil {
			return err
		}
	}

	if err := sys.Mount("", "/", "", unix.MS_REC|unix.MS_PRIVATE, ""); err != nil {
		return fmt.Errorf("making mount tree private: %w", err)
	}

	if err := overlay.Mount(sys, plan.Mounts); err != nil {
		return err
	}

	vendorTarget := filepath.Join(rootfs, "vendor")
	if err := os.MkdirAll(vendorTarget, 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", vendorTarget, err)
	}
	if err := sys.Mount(plan.Mounts.VendorMount, vendorTarget, "", unix.MS_BIND|unix.MS_REC, ""); err != nil {
		return fmt.Errorf("binding vendor: %w", err)
	}

	modules, err := overlay.BindApexModules(sys, rootfs)
	if err != nil {
		return err
	}
	logger.Info("bound APEX modules", "count", len(modules))

	for _, dir := range rootfsDirs {
		if err := os.MkdirAll(filepath.Join(rootfs, dir), 0o755); err != nil {
			return fmt.Errorf("creating /%s: %w", dir, err)
		}
	}

	pseudo := []struct {
		fstype string
		target string
		flags  uintptr
		data   string
	}{
		{"proc", "proc", unix.MS_NOSUID | unix.MS_NODEV | unix.MS_NOEXEC, ""},
		{"tmpfs", "dev", unix.MS_NOSUID, "mode=755"},
		{"tmpfs", "tmp", unix.MS_NOSUID | unix.MS_NODEV, "mode=1777"},
	}
	for _, fs := range pseudo {
		target := filepath.Join(rootfs, fs.target)
		if err := sys.Mount(fs.fstype, target, fs.fstype, fs.flags, fs.data); err != nil {
			logger.Warn("pseudo filesystem mount failed", "fstype", fs.fstype, "target", "/"+fs.target, "error", err)
		}
	}

	for _, node := range deviceNodes {
		if err := s.createDevice(rootfs, hostDev, node); err != nil {
			logger.Warn("device node unavailable", "device", node.name, "error", err)
		}
	}

	if plan.Binderfs != BinderfsOff && plan.Binderfs != "" {
		if _, err := binderfs.SetupInSandbox(rootfs, binderfs.Options{System: sys, Logger: logger}); err != nil {
			if plan.Binderfs == BinderfsRequired {
				return err
			}
			logger.Warn("continuing without binderfs", "error", err)
		}
	}

	if plan.Hostname != "" {
		if err := sys.Sethostname(plan.Hostname); err != nil {
			return fmt.Errorf("setting hostname: %w", err)
		}
	}

	if err := sys.Chdir(rootfs); err != nil {
		return fmt.Errorf("entering %s: %w", rootfs, err)
	}
	if err := sys.Chroot(rootfs); err != nil {
		return fmt.Errorf("chroot %s: %w", rootfs, err)
	}
	if err := sys.Chdir("/"); err != nil {
		return fmt.Errorf("entering new root: %w", err)
	}

	logger.Info("executing init", "init", plan.Init)
	if err := sys.Exec(plan.Init, []string{plan.Init}, plan.Env); err != nil {
		return fmt.Errorf("exec %s: %w", plan.Init, err)
	}
	return errors.New("exec returned without error")
}

// createDevice makes a character device node in rootfs/dev. Inside a
// user namespace the kernel refuses mknod for devices, so on EPERM the
// host node is bind-mounted onto an empty file instead.
func (s Stage) createDevice(rootfs, hostDev string, node deviceNode) error {
	path := filepath.Join(rootfs, "dev", node.name)
	err := s.System.Mknod(path, unix.S_IFCHR|0o666, int(unix.Mkdev(node.major, node.minor)))
	if err == nil {
		return os.Chmod(path, 0o666)
	}
	if !errors.Is(err, unix.EPERM) {
		return err
	}

	placeholder, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o666)
	if err != nil {
		return err
	}
	placeholder.Close()
	return s.System.Mount(filepath.Join(hostDev, node.name), path, "", unix.MS_BIND, "")
}
