// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package apk

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestHostABIs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goarch string
		want   []ABI
	}{
		{"amd64", []ABI{ABIX8664, ABIX86}},
		{"arm64", []ABI{ABIArm64, ABIArmV7}},
		{"arm", []ABI{ABIArmV7}},
		{"386", []ABI{ABIX86}},
		{"riscv64", nil},
	}
	for _, test := range tests {
		if got := HostABIs(test.goarch); !slices.Equal(got, test.want) {
			t.Errorf("HostABIs(%q) = %v, want %v", test.goarch, got, test.want)
		}
	}
}

func TestCheckCompatible(t *testing.T) {
	t.Parallel()

	host := HostABIs("amd64")
	tests := []struct {
		name string
		abis []ABI
		ok   bool
	}{
		{"no native code", nil, true},
		{"exact match", []ABI{ABIX8664}, true},
		{"one of several", []ABI{ABIArm64, ABIX86}, true},
		{"arm only", []ABI{ABIArm64, ABIArmV7}, false},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := Info{PackageName: "org.example", SupportedABIs: test.abis}.CheckCompatible(host)
			if test.ok && err != nil {
				t.Errorf("CheckCompatible() = %v, want nil", err)
			}
			if !test.ok && !errors.Is(err, ErrIncompatibleABI) {
				t.Errorf("CheckCompatible() = %v, want ErrIncompatibleABI", err)
			}
		})
	}
}

func TestParseManifest(t *testing.T) {
	t.Parallel()

	manifest, err := ParseManifest([]byte(`
package: org.example.notes
version_code: 42
version_name: "1.4.2"
main_activity: .MainActivity
abis: [arm64-v8a, x86_64]
`))
	if err != nil {
		t.Fatalf("ParseManifest() error: %v", err)
	}
	if manifest.PackageName != "org.example.notes" || manifest.VersionCode != 42 || manifest.VersionName != "1.4.2" {
		t.Errorf("manifest = %+v", manifest)
	}
	component, err := manifest.Component()
	if err != nil || component != "org.example.notes/.MainActivity" {
		t.Errorf("Component() = %q, %v", component, err)
	}
	if info := manifest.Info(); !slices.Equal(info.SupportedABIs, []ABI{ABIArm64, ABIX8664}) {
		t.Errorf("Info().SupportedABIs = %v", info.SupportedABIs)
	}
}

func TestParseManifestRejects(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"missing package": "version_code: 1\n",
		"unknown field":   "package: org.example\nactivity: .Main\n",
		"unknown abi":     "package: org.example\nabis: [mips]\n",
		"slash in name":   "package: org/example\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseManifest([]byte(input)); err == nil {
				t.Error("ParseManifest() succeeded, want error")
			}
		})
	}
}

func TestComponentWithoutActivity(t *testing.T) {
	t.Parallel()

	_, err := Manifest{PackageName: "org.example"}.Component()
	if !errors.Is(err, ErrNoMainActivity) {
		t.Errorf("Component() error = %v, want ErrNoMainActivity", err)
	}
}

func TestLoadManifest(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte("package: org.example\nmain_activity: .Main\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	manifest, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest() error: %v", err)
	}
	if manifest.MainActivity != ".Main" {
		t.Errorf("MainActivity = %q", manifest.MainActivity)
	}

	if _, err := LoadManifest(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v, want ErrNotExist", err)
	}
}
