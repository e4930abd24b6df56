// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package optimistic maintains the client's predicted view of chat
// state. The confirmed snapshot only ever changes when the server
// acknowledges an operation; predictions live in an ordered pending
// list applied on top of it at read time. Rejecting a prediction
// removes it from the list, so rollback is exact by construction —
// there is no inverse-patch bookkeeping to get wrong.
package optimistic
