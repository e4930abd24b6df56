// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/babble-foundation/babble/schema"
)

// Signaler carries signaling payloads to a remote participant. The
// production implementation sends through the relay mailbox over the
// service socket; tests deliver in-process.
type Signaler interface {
	// SendSignal delivers one signaling payload to recipient. The
	// relay's co-presence check applies: sending to someone outside
	// the room fails with precondition_failed.
	SendSignal(ctx context.Context, recipient schema.UserID, kind schema.SignalKind, body schema.SignalBody) error
}

// AudioSource provides the local microphone track. Opening it is
// where OS permission prompts happen; a refusal surfaces as
// media_access_denied and is fatal to the babble-join flow.
type AudioSource interface {
	OpenTrack(ctx context.Context) (webrtc.TrackLocal, error)
}

// AudioSink receives remote audio tracks for playback. DropTracks is
// called when a peer disconnects; SetDeafened gates playback without
// touching the connections.
type AudioSink interface {
	AddTrack(user schema.UserID, track *webrtc.TrackRemote)
	DropTracks(user schema.UserID)
	SetDeafened(deafened bool)
}

// ICEConfig holds the ICE server list for new PeerConnections. The
// client refreshes TURN credentials periodically; existing
// connections keep their config.
type ICEConfig struct {
	Servers []webrtc.ICEServer
}
