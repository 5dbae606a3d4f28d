// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package nsinit

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rad-android/rad/layout"
	"github.com/rad-android/rad/namespace"
)

// BinderfsMode controls binderfs provisioning.
type BinderfsMode string

const (
	BinderfsOff      BinderfsMode = "off"
	BinderfsOptional BinderfsMode = "optional"
	BinderfsRequired BinderfsMode = "required"
)

// Plan is everything the setup stage needs, sent from the supervisor
// over the plan pipe.
type Plan struct {
	Mounts   layout.MountPoints `cbor:"mounts"`
	Init     string             `cbor:"init"`
	Hostname string             `cbor:"hostname,omitempty"`
	Env      []string           `cbor:"env"`
	Identity namespace.Identity `cbor:"identity"`
	Binderfs BinderfsMode       `cbor:"binderfs"`
}

// DefaultEnv is the environment Android init starts with.
func DefaultEnv() []string {
	return []string{
		"ANDROID_ROOT=/system",
		"ANDROID_DATA=/data",
		"PATH=/system/bin:/system/xbin:/vendor/bin:/bin:/usr/bin",
	}
}

// InitCandidates are the guest paths searched for init, in order.
var InitCandidates = []string{"/init", "/system/bin/init", "/bin/init"}

// ErrNoInit means the system image contains none of InitCandidates.
var ErrNoInit = errors.New("no init binary in system image")

// FindInit returns the first InitCandidates entry that exists under
// systemMount, as a guest path.
func FindInit(systemMount string) (string, error) {
	var checked []string
	for _, candidate := range InitCandidates {
		hostPath := filepath.Join(systemMount, candidate)
		if info, err := os.Stat(hostPath); err == nil && !info.IsDir() {
			return candidate, nil
		}
		checked = append(checked, hostPath)
	}
	return "", fmt.Errorf("%w (checked %s)", ErrNoInit, strings.Join(checked, ", "))
}
