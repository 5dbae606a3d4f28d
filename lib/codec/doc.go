// Copyright 2026 The RAD Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the standard CBOR encoding configuration.
//
// CBOR is used for everything that only RAD itself reads: the launch
// plan the supervisor pipes to the namespace setup stage, and the
// on-disk sandbox state file that lets a later invocation find a
// detached container. Human-edited files (configuration, app manifest
// records) stay YAML or JSON.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For files:
//
//	err := codec.WriteFile(path, state, 0o600)
//	err = codec.ReadFile(path, &state)
//
// For streams (the launch-plan pipe):
//
//	err := codec.NewEncoder(writer).Encode(plan)
//	err = codec.NewDecoder(reader).Decode(&plan)
//
// Types that only ever travel as CBOR use `cbor` struct tags.
package codec
