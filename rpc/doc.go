// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package rpc implements the service socket protocol: CBOR request
// and response values over a Unix socket, one request per connection.
// Requests route on their "action" field; responses carry a
// structured error code alongside the message so *schema.Error
// round-trips to remote callers intact.
package rpc
