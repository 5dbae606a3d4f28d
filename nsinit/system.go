// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package nsinit

import (
	"golang.org/x/sys/unix"

	"github.com/rad-android/rad/binderfs"
)

// System is the set of kernel operations the setup stage performs.
// Kernel is the real implementation; tests record calls instead.
type System interface {
	binderfs.System
	Mknod(path string, mode uint32, dev int) error
	Sethostname(name string) error
	Chdir(path string) error
	Chroot(path string) error
	Exec(path string, argv, env []string) error
}

// Kernel is the System backed by real syscalls.
type Kernel struct {
	binderfs.Kernel
}

func (Kernel) Mknod(path string, mode uint32, dev int) error {
	return unix.Mknod(path, mode, dev)
}

func (Kernel) Sethostname(name string) error {
	return unix.Sethostname([]byte(name))
}

func (Kernel) Chdir(path string) error { return unix.Chdir(path) }

func (Kernel) Chroot(path string) error { return unix.Chroot(path) }

func (Kernel) Exec(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}
