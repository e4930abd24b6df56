// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package fanout turns created messages into per-recipient push
// notifications. Enqueueing never blocks the message path: jobs go
// into a bounded queue and a worker resolves recipients and pushes in
// the background. A failed push to one recipient never affects the
// others.
package fanout
