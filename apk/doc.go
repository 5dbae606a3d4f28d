// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package apk holds the application records rad consumes: the package
// info (name and native ABIs) and the manifest (name, version, main
// activity). rad does not read archives itself; the records come from
// a YAML file produced by whatever inspected the archive.
//
//	package: org.example.notes
//	version_code: 42
//	version_name: "1.4.2"
//	main_activity: .MainActivity
//	abis: [arm64-v8a, x86_64]
package apk
