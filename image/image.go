// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package image

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// MinSystemSize is the smallest plausible Android system image.
const MinSystemSize int64 = 500 << 20

const (
	systemName = "system.img"
	vendorName = "vendor.img"
)

var (
	// ErrNotFound means an image file does not exist.
	ErrNotFound = errors.New("image not found")

	// ErrTooSmall means the system image is below MinSystemSize.
	ErrTooSmall = errors.New("image too small")
)

// Error describes an image that failed validation. Err is ErrNotFound
// or ErrTooSmall, optionally wrapping the underlying stat error.
type Error struct {
	Path string
	Size int64
	Err  error
}

func (e *Error) Error() string {
	if errors.Is(e.Err, ErrTooSmall) {
		return fmt.Sprintf("%s: %v: %d bytes, need at least %d", e.Path, ErrTooSmall, e.Size, MinSystemSize)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Paths names the two images a container needs.
type Paths struct {
	System string `cbor:"system"`
	Vendor string `cbor:"vendor"`
}

// FromDir returns the standard image names inside dir.
func FromDir(dir string) Paths {
	return Paths{
		System: filepath.Join(dir, systemName),
		Vendor: filepath.Join(dir, vendorName),
	}
}

// DefaultDir returns ~/.local/share/rad/cache.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", "rad", "cache"), nil
}

// DefaultLocation returns FromDir(DefaultDir()).
func DefaultLocation() (Paths, error) {
	dir, err := DefaultDir()
	if err != nil {
		return Paths{}, err
	}
	return FromDir(dir), nil
}

// Validate checks that both images exist and that the system image
// is large enough. The system image is checked first.
func (p Paths) Validate() error {
	systemInfo, err := stat(p.System)
	if err != nil {
		return err
	}
	if systemInfo.Size() < MinSystemSize {
		return &Error{Path: p.System, Size: systemInfo.Size(), Err: ErrTooSmall}
	}
	if _, err := stat(p.Vendor); err != nil {
		return err
	}
	return nil
}

func stat(path string) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, &Error{Path: path, Err: ErrNotFound}
	}
	if err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("%w: %w", ErrNotFound, err)}
	}
	if info.IsDir() {
		return nil, &Error{Path: path, Err: fmt.Errorf("%w: is a directory", ErrNotFound)}
	}
	return info, nil
}
