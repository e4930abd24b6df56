// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Babble's standard CBOR encoding. All socket
// protocol messages and opaque signal payloads go through this
// package so that the encoder options (deterministic encoding,
// string-keyed map defaults) are configured in exactly one place.
package codec
