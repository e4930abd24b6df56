// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time so that TTL windows (typing indicators,
// signal mailbox retention, participant liveness) can be tested
// deterministically. Production code injects Real(); tests inject
// Fake() and drive it with Advance.
package clock
