// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package atomicfile replaces files via write-to-temp and rename, so a
// reader either sees the previous content or the complete new content.
// Atomicity only holds when the temporary file and the target share a
// filesystem, which is why the temporary file is created next to the
// target.
package atomicfile

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Write streams content produced by fill into path. The file appears
// at path only after fill returns nil and the data has been synced.
func Write(path string, perm os.FileMode, fill func(io.Writer) error) error {
	directory := filepath.Dir(path)
	temporary, err := os.CreateTemp(directory, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temporary file for %s: %w", path, err)
	}
	temporaryName := temporary.Name()
	defer os.Remove(temporaryName)

	if err := temporary.Chmod(perm); err != nil {
		temporary.Close()
		return fmt.Errorf("setting mode on %s: %w", temporaryName, err)
	}
	if err := fill(temporary); err != nil {
		temporary.Close()
		return err
	}
	if err := temporary.Sync(); err != nil {
		temporary.Close()
		return fmt.Errorf("syncing %s: %w", temporaryName, err)
	}
	if err := temporary.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", temporaryName, err)
	}
	if err := os.Rename(temporaryName, path); err != nil {
		return fmt.Errorf("renaming %s to %s: %w", temporaryName, path, err)
	}

	// fsync the directory so the rename survives power loss.
	directoryFile, err := os.Open(directory)
	if err != nil {
		return fmt.Errorf("opening %s: %w", directory, err)
	}
	defer directoryFile.Close()
	return directoryFile.Sync()
}

// WriteBytes writes data to path atomically.
func WriteBytes(path string, data []byte, perm os.FileMode) error {
	return Write(path, perm, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}
