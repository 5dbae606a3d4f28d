// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package apk

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// ABI is an Android native ABI name as used under lib/ in an archive.
type ABI string

const (
	ABIArm64 ABI = "arm64-v8a"
	ABIArmV7 ABI = "armeabi-v7a"
	ABIX8664 ABI = "x86_64"
	ABIX86   ABI = "x86"
)

// KnownABIs lists every ABI ParseABI accepts.
var KnownABIs = []ABI{ABIArm64, ABIArmV7, ABIX8664, ABIX86}

// ParseABI validates an ABI name.
func ParseABI(name string) (ABI, error) {
	abi := ABI(name)
	if !slices.Contains(KnownABIs, abi) {
		return "", fmt.Errorf("unknown ABI %q", name)
	}
	return abi, nil
}

// HostABIs returns the ABIs a host of the given GOARCH runs natively,
// preferred first. Unknown architectures run none.
func HostABIs(goarch string) []ABI {
	switch goarch {
	case "amd64":
		return []ABI{ABIX8664, ABIX86}
	case "386":
		return []ABI{ABIX86}
	case "arm64":
		return []ABI{ABIArm64, ABIArmV7}
	case "arm":
		return []ABI{ABIArmV7}
	}
	return nil
}

var (
	// ErrIncompatibleABI means none of the package's native ABIs runs
	// on the host.
	ErrIncompatibleABI = errors.New("package has no native code for this host")

	// ErrNoMainActivity means the manifest names no launchable
	// activity.
	ErrNoMainActivity = errors.New("manifest has no main activity")
)

// Info is the package-info record.
type Info struct {
	PackageName string `yaml:"package"`

	// SupportedABIs is empty for packages without native code.
	SupportedABIs []ABI `yaml:"abis"`
}

// CheckCompatible returns ErrIncompatibleABI when the package carries
// native code and none of it matches host. Packages without native
// code run anywhere.
func (i Info) CheckCompatible(host []ABI) error {
	if len(i.SupportedABIs) == 0 {
		return nil
	}
	for _, abi := range i.SupportedABIs {
		if slices.Contains(host, abi) {
			return nil
		}
	}
	return fmt.Errorf("%s (%s; host runs %s): %w",
		i.PackageName, joinABIs(i.SupportedABIs), joinABIs(host), ErrIncompatibleABI)
}

func joinABIs(abis []ABI) string {
	if len(abis) == 0 {
		return "none"
	}
	names := make([]string, len(abis))
	for i, abi := range abis {
		names[i] = string(abi)
	}
	return strings.Join(names, ", ")
}

// Manifest is the manifest record.
type Manifest struct {
	PackageName  string `yaml:"package"`
	VersionCode  int64  `yaml:"version_code"`
	VersionName  string `yaml:"version_name"`
	MainActivity string `yaml:"main_activity,omitempty"`
	ABIs         []ABI  `yaml:"abis,omitempty"`
}

// Info returns the package-info part of the manifest.
func (m Manifest) Info() Info {
	return Info{PackageName: m.PackageName, SupportedABIs: m.ABIs}
}

// Component returns the "package/activity" name am start takes.
func (m Manifest) Component() (string, error) {
	if m.MainActivity == "" {
		return "", fmt.Errorf("%s: %w", m.PackageName, ErrNoMainActivity)
	}
	return m.PackageName + "/" + m.MainActivity, nil
}

// Validate checks the package name and every ABI.
func (m Manifest) Validate() error {
	var errs []error
	if m.PackageName == "" {
		errs = append(errs, errors.New("package is required"))
	} else if strings.ContainsAny(m.PackageName, "/ \t\n") {
		errs = append(errs, fmt.Errorf("package %q contains '/' or whitespace", m.PackageName))
	}
	if strings.ContainsAny(m.MainActivity, "/ \t\n") {
		errs = append(errs, fmt.Errorf("main_activity %q contains '/' or whitespace", m.MainActivity))
	}
	for _, abi := range m.ABIs {
		if _, err := ParseABI(string(abi)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LoadManifest reads and validates a YAML manifest record.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest: %w", err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a YAML manifest record. Unknown
// fields are rejected.
func ParseManifest(data []byte) (Manifest, error) {
	var manifest Manifest
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return Manifest{}, fmt.Errorf("invalid manifest: %w", err)
	}
	return manifest, nil
}
