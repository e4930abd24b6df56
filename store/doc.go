// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists the coordination subsystem's rows in SQLite:
// typing status, babble participants, the signal mailbox, teams,
// channels, mutes, messages, and reactions. Each exported operation
// is one transaction; invariants that span a check and a write (the
// signal co-presence precondition, join-implicitly-leaves) run inside
// a single IMMEDIATE transaction.
//
// Timestamps are stored as integer Unix milliseconds. TTL windows are
// evaluated at read time against an injected clock, so expiry needs
// no per-row timers.
package store
