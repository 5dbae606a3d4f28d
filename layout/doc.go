// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package layout maps a sandbox root directory to the fixed set of
// paths a container uses under it:
//
//	<root>/.mounts/system      system image (FUSE, read-only)
//	<root>/.mounts/vendor      vendor image (FUSE, read-only)
//	<root>/rootfs              merged overlay, the container's /
//	<root>/.overlay/upper      writable layer (holds /data)
//	<root>/.overlay/work       overlay work directory
//	<root>/container.log       init stdout and stderr
//	<root>/container.pid       init pid, host namespace
//	<root>/state.cbor          supervisor state for later invocations
//	<root>/.lock               held while a supervisor owns the root
//
// [ForPrefix] is a pure function of the root path, so two distinct
// roots never share a mount point.
package layout
