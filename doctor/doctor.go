// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package doctor

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rad-android/rad/lib/config"
	"github.com/rad-android/rad/namespace"
)

// Status is the outcome of one check.
type Status string

const (
	StatusPass Status = "pass"
	StatusWarn Status = "warn"
	StatusFail Status = "fail"
)

// Issue is the result of one check. Fix is set for failures and
// warnings that have a remedy.
type Issue struct {
	Name        string `json:"name"`
	Status      Status `json:"status"`
	Description string `json:"description"`
	Fix         string `json:"fix,omitempty"`
}

// OK reports whether the check did not fail. Warnings are OK.
func (i Issue) OK() bool { return i.Status != StatusFail }

func pass(name, description string) Issue {
	return Issue{Name: name, Status: StatusPass, Description: description}
}

func warn(name, description, fix string) Issue {
	return Issue{Name: name, Status: StatusWarn, Description: description, Fix: fix}
}

func fail(name, description, fix string) Issue {
	return Issue{Name: name, Status: StatusFail, Description: description, Fix: fix}
}

// HasFailures reports whether any issue failed.
func HasFailures(issues []Issue) bool {
	for _, issue := range issues {
		if !issue.OK() {
			return true
		}
	}
	return false
}

// Checker runs the host checks. Zero fields take the real host's
// values, so tests can point the checks at a fake /proc and /dev.
type Checker struct {
	// ProcRoot defaults to /proc.
	ProcRoot string

	// DevRoot defaults to /dev.
	DevRoot string

	// LookPath defaults to exec.LookPath.
	LookPath func(file string) (string, error)

	// ProbeUserNamespace tries to create a user namespace. Default
	// spawns /bin/true in one with the caller mapped to root.
	ProbeUserNamespace func() error

	Tools config.ToolsConfig
}

// FromConfig returns a Checker for the tools named in settings.
func FromConfig(settings *config.Config) Checker {
	return Checker{Tools: settings.Tools}
}

func (c Checker) withDefaults() Checker {
	if c.ProcRoot == "" {
		c.ProcRoot = "/proc"
	}
	if c.DevRoot == "" {
		c.DevRoot = "/dev"
	}
	if c.LookPath == nil {
		c.LookPath = exec.LookPath
	}
	if c.ProbeUserNamespace == nil {
		c.ProbeUserNamespace = probeUserNamespace
	}
	if c.Tools.Fuse2fs == "" {
		c.Tools.Fuse2fs = "fuse2fs"
	}
	if len(c.Tools.Fusermount) == 0 {
		c.Tools.Fusermount = []string{"fusermount3", "fusermount"}
	}
	if c.Tools.Nsenter == "" {
		c.Tools.Nsenter = "nsenter"
	}
	return c
}

// UserNamespaces runs only the user namespace check. Tests that need
// real namespaces use it to decide whether to skip.
func (c Checker) UserNamespaces() Issue {
	return c.withDefaults().checkUserNamespaces()
}

// Run performs every check in a fixed order.
func (c Checker) Run() []Issue {
	c = c.withDefaults()
	filesystems, filesystemsErr := c.filesystems()
	return []Issue{
		c.checkUserNamespaces(),
		c.checkBinder(filesystems, filesystemsErr),
		c.checkFuseDevice(),
		c.checkOverlay(filesystems, filesystemsErr),
		c.checkTool("fuse2fs", []string{c.Tools.Fuse2fs},
			"install e2fsprogs (fuse2fs ships with it on most distributions)"),
		c.checkTool("fusermount", c.Tools.Fusermount,
			"install fuse3 (or fuse) for fusermount3"),
		c.checkTool("nsenter", []string{c.Tools.Nsenter},
			"install util-linux"),
	}
}

func (c Checker) checkUserNamespaces() Issue {
	const name = "user namespaces"

	data, err := os.ReadFile(filepath.Join(c.ProcRoot, "sys/kernel/unprivileged_userns_clone"))
	if err == nil && strings.TrimSpace(string(data)) == "0" {
		return fail(name, "unprivileged user namespaces are disabled",
			"sysctl -w kernel.unprivileged_userns_clone=1")
	}
	data, err = os.ReadFile(filepath.Join(c.ProcRoot, "sys/user/max_user_namespaces"))
	if err == nil && strings.TrimSpace(string(data)) == "0" {
		return fail(name, "user.max_user_namespaces is 0",
			"sysctl -w user.max_user_namespaces=15000")
	}

	if err := c.ProbeUserNamespace(); err != nil {
		return fail(name, fmt.Sprintf("cannot create a user namespace: %v", err),
			"enable CONFIG_USER_NS and check AppArmor's unprivileged userns restriction "+
				"(kernel.apparmor_restrict_unprivileged_userns)")
	}
	return pass(name, "unprivileged user namespaces work")
}

func (c Checker) checkBinder(filesystems map[string]bool, filesystemsErr error) Issue {
	const name = "binder"
	for _, path := range []string{"binderfs", "binder"} {
		if _, err := os.Stat(filepath.Join(c.DevRoot, path)); err == nil {
			return pass(name, fmt.Sprintf("%s present", filepath.Join(c.DevRoot, path)))
		}
	}
	if filesystemsErr == nil && filesystems["binder"] {
		return pass(name, "binderfs supported by the kernel")
	}
	return fail(name, "no binder device and no binderfs support; Android apps need binder for IPC",
		"load the binder module (modprobe binder_linux devices=binder,hwbinder,vndbinder) "+
			"or use a kernel with CONFIG_ANDROID_BINDERFS")
}

func (c Checker) checkFuseDevice() Issue {
	const name = "fuse device"
	path := filepath.Join(c.DevRoot, "fuse")
	info, err := os.Stat(path)
	if err != nil {
		return fail(name, fmt.Sprintf("%s missing", path), "modprobe fuse")
	}
	if info.Mode()&os.ModeCharDevice == 0 {
		return fail(name, fmt.Sprintf("%s is not a character device", path), "modprobe fuse")
	}
	return pass(name, fmt.Sprintf("%s present", path))
}

func (c Checker) checkOverlay(filesystems map[string]bool, filesystemsErr error) Issue {
	const name = "overlayfs"
	if filesystemsErr != nil {
		return warn(name, fmt.Sprintf("cannot read filesystem list: %v", filesystemsErr), "")
	}
	if !filesystems["overlay"] {
		// The module may still autoload on first mount.
		return warn(name, "overlay not listed in /proc/filesystems", "modprobe overlay")
	}
	return pass(name, "overlay filesystem available")
}

// checkTool passes when any of candidates resolves.
func (c Checker) checkTool(name string, candidates []string, fix string) Issue {
	for _, candidate := range candidates {
		if path, err := c.LookPath(candidate); err == nil {
			return pass(name, path)
		}
	}
	return fail(name, fmt.Sprintf("%s not found in PATH", strings.Join(candidates, " or ")), fix)
}

// filesystems parses /proc/filesystems into a set of type names.
func (c Checker) filesystems() (map[string]bool, error) {
	data, err := os.ReadFile(filepath.Join(c.ProcRoot, "filesystems"))
	if err != nil {
		return nil, err
	}
	types := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		types[fields[len(fields)-1]] = true
	}
	return types, scanner.Err()
}

// probeUserNamespace runs /bin/true in a fresh user namespace.
func probeUserNamespace() error {
	truePath, err := exec.LookPath("true")
	if err != nil {
		return errors.New("no true(1) to probe with")
	}
	cmd := exec.Command(truePath)
	if err := namespace.Spawn(cmd, namespace.User, namespace.Current()); err != nil {
		return err
	}
	return cmd.Wait()
}
