// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package namespace

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

// Flags selects the namespaces a container gets.
type Flags uint64

const (
	User  Flags = unix.CLONE_NEWUSER
	Mount Flags = unix.CLONE_NEWNS
	PID   Flags = unix.CLONE_NEWPID
	UTS   Flags = unix.CLONE_NEWUTS
	IPC   Flags = unix.CLONE_NEWIPC

	// Required is always added: without a user namespace nothing
	// else is permitted, and without a mount namespace the overlay
	// would leak onto the host.
	Required = User | Mount

	// All is the full set a container normally runs with.
	All = User | Mount | PID | UTS | IPC
)

var flagNames = []struct {
	flag Flags
	name string
}{
	{User, "user"},
	{Mount, "mount"},
	{UTS, "uts"},
	{IPC, "ipc"},
	{PID, "pid"},
}

// Has reports whether every namespace in other is selected.
func (f Flags) Has(other Flags) bool { return f&other == other }

func (f Flags) String() string {
	var names []string
	for _, entry := range flagNames {
		if f.Has(entry.flag) {
			names = append(names, entry.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// Error is a namespace setup failure. These are policy or kernel
// configuration problems (user namespaces disabled, mapping refused)
// and are never retried.
type Error struct {
	Step string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("namespace %s: %v", e.Step, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Identity is a host uid/gid pair.
type Identity struct {
	UID int `cbor:"uid"`
	GID int `cbor:"gid"`
}

// Current returns the real uid and gid of this process.
func Current() Identity {
	return Identity{UID: os.Getuid(), GID: os.Getgid()}
}

// MappingLine is the uid_map/gid_map content mapping id to 0 inside
// the namespace.
func MappingLine(id int) string {
	return fmt.Sprintf("0 %d 1", id)
}

// SysProcAttr returns process attributes that clone a child into the
// namespaces in flags (plus Required) with identity mapped to root.
// The child gets its own session so terminal signals aimed at the
// supervisor do not reach init.
func SysProcAttr(flags Flags, identity Identity) *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		Cloneflags: uintptr(flags | Required),
		UidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: identity.UID, Size: 1},
		},
		GidMappings: []syscall.SysProcIDMap{
			{ContainerID: 0, HostID: identity.GID, Size: 1},
		},
		// Unprivileged gid_map writes require setgroups=deny first.
		GidMappingsEnableSetgroups: false,
		Setsid:                     true,
	}
}

// Spawn starts cmd inside new namespaces with identity mapped to root.
// Any SysProcAttr already set on cmd is replaced. On success the child
// is running; the caller owns waiting for it.
func Spawn(cmd *exec.Cmd, flags Flags, identity Identity) error {
	cmd.SysProcAttr = SysProcAttr(flags, identity)
	if err := cmd.Start(); err != nil {
		if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
			return &Error{Step: "clone", Err: fmt.Errorf("%w (unprivileged user namespaces may be disabled)", err)}
		}
		return &Error{Step: "clone", Err: err}
	}
	return nil
}

// Mapping is one line of a uid_map or gid_map file.
type Mapping struct {
	Inside  int
	Outside int
	Count   int
}

// ParseMappings parses uid_map/gid_map content.
func ParseMappings(data []byte) ([]Mapping, error) {
	var mappings []Mapping
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("mapping line %q: want 3 fields, got %d", scanner.Text(), len(fields))
		}
		var values [3]int
		for i, field := range fields {
			value, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("mapping line %q: %w", scanner.Text(), err)
			}
			values[i] = value
		}
		mappings = append(mappings, Mapping{Inside: values[0], Outside: values[1], Count: values[2]})
	}
	return mappings, scanner.Err()
}

// VerifyMapped checks, from inside the namespace, that the calling
// process sees identity mapped to root. procRoot is normally "/proc".
func VerifyMapped(procRoot string, identity Identity) error {
	checks := []struct {
		file    string
		outside int
	}{
		{"uid_map", identity.UID},
		{"gid_map", identity.GID},
	}
	for _, check := range checks {
		path := filepath.Join(procRoot, "self", check.file)
		data, err := os.ReadFile(path)
		if err != nil {
			return &Error{Step: "verify " + check.file, Err: err}
		}
		mappings, err := ParseMappings(data)
		if err != nil {
			return &Error{Step: "verify " + check.file, Err: err}
		}
		want := Mapping{Inside: 0, Outside: check.outside, Count: 1}
		if len(mappings) != 1 || mappings[0] != want {
			return &Error{Step: "verify " + check.file, Err: fmt.Errorf("got %v, want [%s]", mappings, MappingLine(check.outside))}
		}
	}

	data, err := os.ReadFile(filepath.Join(procRoot, "self", "setgroups"))
	if err != nil {
		return &Error{Step: "verify setgroups", Err: err}
	}
	if strings.TrimSpace(string(data)) != "deny" {
		return &Error{Step: "verify setgroups", Err: fmt.Errorf("setgroups is %q, want deny", strings.TrimSpace(string(data)))}
	}
	return nil
}

// JoinArgs builds the nsenter arguments that run name inside the
// namespaces of pid. The root and working directory are taken from
// pid too, since the container's init has chrooted into its rootfs.
func JoinArgs(pid int, flags Flags, name string, args ...string) []string {
	flags |= Required
	joined := []string{"-t", strconv.Itoa(pid)}
	for _, entry := range flagNames {
		if flags.Has(entry.flag) {
			joined = append(joined, "--"+entry.name)
		}
	}
	joined = append(joined, "--root", "--wd", "--", name)
	return append(joined, args...)
}

// JoinCommand returns a command running name inside the namespaces of
// pid via the nsenter tool.
func JoinCommand(ctx context.Context, nsenter string, pid int, flags Flags, name string, args ...string) *exec.Cmd {
	return exec.CommandContext(ctx, nsenter, JoinArgs(pid, flags, name, args...)...)
}
