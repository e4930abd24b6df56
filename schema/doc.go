// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the domain types shared by the Babble
// realtime coordination subsystem: typing status, babble room
// membership, relayed WebRTC signals, messages, reactions, thread
// aggregates, push notifications, and the error taxonomy surfaced to
// callers.
package schema
