// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence implements the ephemeral-state policy over the
// store: typing indicators that expire by read-time filtering, and
// babble room membership where every user is in at most one room.
//
// No timers fire per row. A typing indicator "expires" the moment
// reads stop returning it; the periodic sweep exists only to reclaim
// the dead rows afterwards.
package presence
