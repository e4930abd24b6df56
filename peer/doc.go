// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

// Package peer manages the WebRTC audio mesh for a babble room: one
// PeerConnection per remote participant, signaled through the relay
// mailbox with trickle ICE. Candidates flow as they are gathered
// rather than being batched into the SDP, so connections come up as
// soon as a working pair is found.
//
// The manager never talks to the relay directly; it sends through the
// Signaler interface and receives via HandleSignal, which the client's
// poll loop feeds with mailbox signals. Tests wire managers together
// with an in-process signaler.
package peer
