// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens SQLite connection pools with Babble's
// standard pragmas (WAL, busy timeout, in-memory temp store). The
// chat store borrows connections with Take and returns them with Put.
package sqlitepool
