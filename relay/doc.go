// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package relay implements the store-and-forward mailbox for WebRTC
// signaling. Each babble participant polls a per-recipient mailbox;
// senders append to it. Payloads are opaque here — only the
// recipient's peer manager interprets them.
//
// Reads are non-destructive. The recipient explicitly deletes each
// signal after acting on it, so a consumer that crashes between poll
// and apply sees the signal again on the next poll. Abandoned rows
// age out of reads at the retention window and are reclaimed by the
// sweep.
package relay
