// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil holds small helpers shared across package tests:
// channel receive/close assertions with timeout safety valves and a
// process-unique ID generator.
package testutil
