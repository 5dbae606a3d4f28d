// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for the rad runtime.
//
// Configuration is loaded from a single file named by the RAD_CONFIG
// environment variable (via [Load]) or a --config flag (via
// [LoadFile]). There is no file search. Without either, [Load] returns
// [Default] so that rad works out of the box against the standard
// image cache.
//
// Files ending in .json or .jsonc are parsed as JSON with comments and
// trailing commas; everything else is YAML. Both formats share the
// same field names.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${RAD_ROOT}, and ${VAR:-default} patterns are expanded.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Tools, Container, Binderfs
//   - [Default] -- returns a Config with the standard layout
//   - [Load] and [LoadFile] -- the two entry points for loading
//   - [Duration] -- a time.Duration that reads "2s" style strings
//
// This package depends on no other rad packages.
package config
