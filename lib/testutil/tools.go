// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ToolBox is a temporary directory of fake external programs sharing
// one call log.
type ToolBox struct {
	t       testing.TB
	dir     string
	logPath string
}

// NewToolBox creates an empty ToolBox removed when the test completes.
func NewToolBox(t testing.TB) *ToolBox {
	t.Helper()
	dir := t.TempDir()
	return &ToolBox{
		t:       t,
		dir:     dir,
		logPath: filepath.Join(dir, "calls.log"),
	}
}

// Dir returns the directory holding the fake programs.
func (b *ToolBox) Dir() string { return b.dir }

// Path returns the absolute path a fake named name is (or would be)
// installed at.
func (b *ToolBox) Path(name string) string { return filepath.Join(b.dir, name) }

// Install writes an executable fake named name and returns its path.
// Every invocation appends one line to the call log, "name arg1 arg2",
// and then runs body with the original arguments in "$@". An empty
// body exits 0.
//
//	box.Install("fuse2fs", `echo "bad superblock" >&2; exit 1`)
func (b *ToolBox) Install(name, body string) string {
	b.t.Helper()
	path := b.Path(name)
	script := fmt.Sprintf(`#!/bin/sh
{
  printf '%%s' %s
  for arg in "$@"; do printf ' %%s' "$arg"; done
  printf '\n'
} >> %s
%s
`, shellQuote(name), shellQuote(b.logPath), body)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		b.t.Fatalf("installing fake %s: %v", name, err)
	}
	return path
}

// Calls returns the recorded invocations in order.
func (b *ToolBox) Calls() []string {
	b.t.Helper()
	data, err := os.ReadFile(b.logPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		b.t.Fatalf("reading call log: %v", err)
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// CallsTo returns the recorded invocations of name.
func (b *ToolBox) CallsTo(name string) []string {
	b.t.Helper()
	var matching []string
	for _, call := range b.Calls() {
		if call == name || strings.HasPrefix(call, name+" ") {
			matching = append(matching, call)
		}
	}
	return matching
}

// shellQuote wraps s in single quotes for /bin/sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// SparseFile creates (or truncates) path to the given apparent size.
// The file occupies no data blocks, so multi-hundred-megabyte image
// fixtures are free.
func SparseFile(t testing.TB, path string, size int64) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("creating parent of %s: %v", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		t.Fatalf("creating %s: %v", path, err)
	}
	defer file.Close()
	if err := file.Truncate(size); err != nil {
		t.Fatalf("truncating %s to %d: %v", path, size, err)
	}
}
