// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/babble-foundation/babble/lib/codec"
	"github.com/babble-foundation/babble/schema"
)

// ConnectionState describes one remote participant's slot in the
// mesh. A user the manager has never signaled with is Absent.
type ConnectionState string

const (
	StateAbsent     ConnectionState = "absent"
	StateConnecting ConnectionState = "connecting"
	StateConnected  ConnectionState = "connected"
	StateClosed     ConnectionState = "closed"
)

// Manager owns the PeerConnections of one local participant. All
// peer bookkeeping is guarded by a single mutex; signaling and ICE
// run outside it.
type Manager struct {
	signaler Signaler
	source   AudioSource
	sink     AudioSink
	local    schema.UserID
	logger   *slog.Logger

	// configMu guards iceConfig separately so a TURN credential
	// refresh never contends with peer bookkeeping.
	configMu  sync.RWMutex
	iceConfig ICEConfig

	mu         sync.Mutex
	peers      map[schema.UserID]*peerState
	localTrack webrtc.TrackLocal
	muted      bool
	deafened   bool

	// orphanCandidates buffers ICE candidates that arrived before the
	// offer that goes with them. The mailbox preserves insertion
	// order per sender, but two senders' signals interleave freely.
	orphanCandidates map[schema.UserID][]webrtc.ICECandidateInit

	closed    chan struct{}
	closeOnce sync.Once
}

// peerState tracks the PeerConnection to one remote participant.
// Protected by Manager.mu.
type peerState struct {
	connection  *webrtc.PeerConnection
	remote      schema.UserID
	established chan struct{} // closed when ICE reaches Connected/Completed

	// sender carries the local audio track; mute swaps its track out.
	sender *webrtc.RTPSender

	// remoteSet flips when SetRemoteDescription succeeds; candidates
	// arriving earlier buffer in pending.
	remoteSet bool
	pending   []webrtc.ICECandidateInit
}

// NewManager creates a peer manager for the given local participant.
func NewManager(local schema.UserID, signaler Signaler, source AudioSource, sink AudioSink, iceConfig ICEConfig, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		signaler:         signaler,
		source:           source,
		sink:             sink,
		local:            local,
		logger:           logger,
		iceConfig:        iceConfig,
		peers:            make(map[schema.UserID]*peerState),
		orphanCandidates: make(map[schema.UserID][]webrtc.ICECandidateInit),
		closed:           make(chan struct{}),
	}
}

// InitLocalAudio opens the microphone track. Must succeed before any
// connection carries outbound audio; a permission refusal surfaces as
// media_access_denied and the join flow aborts rather than producing
// a listen-only participant by accident.
func (m *Manager) InitLocalAudio(ctx context.Context) error {
	m.mu.Lock()
	if m.localTrack != nil {
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	track, err := m.source.OpenTrack(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.localTrack = track
	m.mu.Unlock()
	return nil
}

// UpdateICEConfig replaces the ICE server list for new
// PeerConnections. Existing connections are unaffected.
func (m *Manager) UpdateICEConfig(config ICEConfig) {
	m.configMu.Lock()
	defer m.configMu.Unlock()
	m.iceConfig = config
}

// Connect establishes (or re-establishes) the mesh link to remote as
// the offering side. Idempotent: if a live connection or attempt
// already exists, Connect returns without signaling. Joining clients
// call this once per existing participant.
func (m *Manager) Connect(ctx context.Context, remote schema.UserID) error {
	select {
	case <-m.closed:
		return net.ErrClosed
	default:
	}
	if err := m.InitLocalAudio(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if existing, ok := m.peers[remote]; ok {
		state := existing.connection.ICEConnectionState()
		if state != webrtc.ICEConnectionStateFailed &&
			state != webrtc.ICEConnectionStateClosed {
			m.mu.Unlock()
			return nil
		}
		existing.connection.Close()
		delete(m.peers, remote)
	}

	peer, err := m.newPeerLocked(remote)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.peers[remote] = peer
	m.mu.Unlock()

	// Signaling runs outside the lock. On failure the slot is freed
	// so the next Connect retries.
	if err := m.sendOffer(ctx, peer); err != nil {
		m.teardownPeer(peer)
		return fmt.Errorf("offering to %s: %w", remote, err)
	}
	return nil
}

// sendOffer creates the local offer and publishes it. Candidates
// trickle separately via the OnICECandidate handler registered at
// PeerConnection creation.
func (m *Manager) sendOffer(ctx context.Context, peer *peerState) error {
	pc := peer.connection

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return fmt.Errorf("creating offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return fmt.Errorf("setting local description: %w", err)
	}

	err = m.signaler.SendSignal(ctx, peer.remote, schema.SignalOffer, schema.SignalBody{
		SDP: pc.LocalDescription().SDP,
	})
	if err != nil {
		return fmt.Errorf("publishing offer: %w", err)
	}

	m.logger.Info("offer sent", "peer", peer.remote)
	return nil
}

// HandleSignal applies one mailbox signal. The caller's poll loop
// feeds signals here in mailbox order and deletes each one only after
// HandleSignal returns, so a crash replays rather than loses them.
func (m *Manager) HandleSignal(ctx context.Context, signal schema.Signal) error {
	select {
	case <-m.closed:
		return net.ErrClosed
	default:
	}

	var body schema.SignalBody
	if err := codec.Unmarshal(signal.Payload, &body); err != nil {
		return fmt.Errorf("decoding signal %s: %w", signal.ID, err)
	}

	switch signal.Kind {
	case schema.SignalOffer:
		return m.handleOffer(ctx, signal.Sender, body.SDP)
	case schema.SignalAnswer:
		return m.handleAnswer(signal.Sender, body.SDP)
	case schema.SignalICECandidate:
		return m.handleCandidate(signal.Sender, body.Candidate)
	}
	return fmt.Errorf("signal %s has unknown kind %q", signal.ID, signal.Kind)
}

// handleOffer answers an inbound offer, creating the PeerConnection
// implicitly: receiving an offer IS the connect for the answering
// side. Glare (both sides offering at once) breaks on user ID — the
// lexicographically smaller ID is the canonical offerer.
func (m *Manager) handleOffer(ctx context.Context, remote schema.UserID, sdp string) error {
	if err := m.InitLocalAudio(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	if existing, ok := m.peers[remote]; ok {
		state := existing.connection.ICEConnectionState()
		live := state != webrtc.ICEConnectionStateFailed &&
			state != webrtc.ICEConnectionStateClosed
		if live && remote > m.local {
			// Our outbound attempt wins the glare; drop their offer.
			m.mu.Unlock()
			m.logger.Debug("ignoring offer, local side is canonical offerer", "peer", remote)
			return nil
		}
		existing.connection.Close()
		delete(m.peers, remote)
	}

	peer, err := m.newPeerLocked(remote)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.peers[remote] = peer
	m.mu.Unlock()

	pc := peer.connection
	err = pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer,
		SDP:  sdp,
	})
	if err != nil {
		m.teardownPeer(peer)
		return fmt.Errorf("setting remote offer from %s: %w", remote, err)
	}
	m.flushCandidates(peer)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		m.teardownPeer(peer)
		return fmt.Errorf("creating answer for %s: %w", remote, err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		m.teardownPeer(peer)
		return fmt.Errorf("setting local answer: %w", err)
	}

	err = m.signaler.SendSignal(ctx, remote, schema.SignalAnswer, schema.SignalBody{
		SDP: pc.LocalDescription().SDP,
	})
	if err != nil {
		m.teardownPeer(peer)
		return fmt.Errorf("publishing answer to %s: %w", remote, err)
	}

	m.logger.Info("offer answered", "peer", remote)
	return nil
}

// handleAnswer completes an outbound attempt. An answer with no
// matching connecting peer is stale — a leftover from a torn-down
// attempt or a glare loser — and is ignored, not an error.
func (m *Manager) handleAnswer(remote schema.UserID, sdp string) error {
	m.mu.Lock()
	peer, ok := m.peers[remote]
	if !ok || peer.remoteSet ||
		peer.connection.SignalingState() != webrtc.SignalingStateHaveLocalOffer {
		m.mu.Unlock()
		m.logger.Debug("ignoring stale answer", "peer", remote)
		return nil
	}
	m.mu.Unlock()

	err := peer.connection.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sdp,
	})
	if err != nil {
		return fmt.Errorf("setting remote answer from %s: %w", remote, err)
	}

	m.flushCandidates(peer)
	return nil
}

// handleCandidate adds a trickled ICE candidate. Candidates arriving
// before the matching description buffer: per-peer when the
// connection exists, per-sender otherwise (the offer is still in
// flight).
func (m *Manager) handleCandidate(remote schema.UserID, candidateJSON string) error {
	var candidate webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(candidateJSON), &candidate); err != nil {
		return fmt.Errorf("decoding candidate from %s: %w", remote, err)
	}

	m.mu.Lock()
	peer, ok := m.peers[remote]
	if !ok {
		m.orphanCandidates[remote] = append(m.orphanCandidates[remote], candidate)
		m.mu.Unlock()
		return nil
	}
	if !peer.remoteSet {
		peer.pending = append(peer.pending, candidate)
		m.mu.Unlock()
		return nil
	}
	m.mu.Unlock()

	if err := peer.connection.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("adding candidate from %s: %w", remote, err)
	}
	return nil
}

// flushCandidates marks the remote description set and applies every
// buffered candidate for the peer.
func (m *Manager) flushCandidates(peer *peerState) {
	m.mu.Lock()
	peer.remoteSet = true
	buffered := peer.pending
	peer.pending = nil
	buffered = append(buffered, m.orphanCandidates[peer.remote]...)
	delete(m.orphanCandidates, peer.remote)
	m.mu.Unlock()

	for _, candidate := range buffered {
		if err := peer.connection.AddICECandidate(candidate); err != nil {
			m.logger.Warn("buffered candidate rejected",
				"peer", peer.remote,
				"error", err,
			)
		}
	}
}

// Disconnect tears down the link to one remote participant and drops
// their audio. A no-op for absent peers.
func (m *Manager) Disconnect(remote schema.UserID) {
	m.mu.Lock()
	peer, ok := m.peers[remote]
	if ok {
		delete(m.peers, remote)
	}
	delete(m.orphanCandidates, remote)
	m.mu.Unlock()

	if ok {
		peer.connection.Close()
		m.sink.DropTracks(remote)
		m.logger.Info("peer disconnected", "peer", remote)
	}
}

// DisconnectAll tears down every link and releases the shared local
// track. Called when leaving the room; the next Connect reopens the
// audio source.
func (m *Manager) DisconnectAll() {
	m.mu.Lock()
	peers := m.peers
	m.peers = make(map[schema.UserID]*peerState)
	m.orphanCandidates = make(map[schema.UserID][]webrtc.ICECandidateInit)
	m.localTrack = nil
	m.mu.Unlock()

	for remote, peer := range peers {
		peer.connection.Close()
		m.sink.DropTracks(remote)
	}
}

// Close shuts the manager down. Subsequent Connect and HandleSignal
// calls fail with net.ErrClosed.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.closed)
	})
	m.DisconnectAll()
	return nil
}

// ToggleMute flips the outbound mute state and returns the new value.
// Muting swaps the audio track off every sender rather than pausing
// capture, so unmute is instant.
func (m *Manager) ToggleMute() bool {
	m.mu.Lock()
	m.muted = !m.muted
	muted := m.muted
	track := m.localTrack
	var senders []*webrtc.RTPSender
	for _, peer := range m.peers {
		if peer.sender != nil {
			senders = append(senders, peer.sender)
		}
	}
	m.mu.Unlock()

	for _, sender := range senders {
		var err error
		if muted {
			err = sender.ReplaceTrack(nil)
		} else {
			err = sender.ReplaceTrack(track)
		}
		if err != nil {
			m.logger.Warn("mute toggle failed on sender", "error", err)
		}
	}
	return muted
}

// ToggleDeafen flips inbound playback and returns the new value.
// Purely a sink-side gate; remote peers keep sending.
func (m *Manager) ToggleDeafen() bool {
	m.mu.Lock()
	m.deafened = !m.deafened
	deafened := m.deafened
	m.mu.Unlock()

	m.sink.SetDeafened(deafened)
	return deafened
}

// Muted reports the current outbound mute state.
func (m *Manager) Muted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.muted
}

// State reports the connection state for one remote participant.
func (m *Manager) State(remote schema.UserID) ConnectionState {
	m.mu.Lock()
	peer, ok := m.peers[remote]
	m.mu.Unlock()

	if !ok {
		return StateAbsent
	}
	switch peer.connection.ICEConnectionState() {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		return StateConnected
	case webrtc.ICEConnectionStateClosed:
		return StateClosed
	default:
		return StateConnecting
	}
}

// Peers returns the remote participants with live or in-flight
// connections.
func (m *Manager) Peers() []schema.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()

	users := make([]schema.UserID, 0, len(m.peers))
	for remote := range m.peers {
		users = append(users, remote)
	}
	return users
}

// Established returns a channel closed once the link to remote
// reaches Connected. Returns nil for absent peers.
func (m *Manager) Established(remote schema.UserID) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	if peer, ok := m.peers[remote]; ok {
		return peer.established
	}
	return nil
}

// newPeerLocked creates the PeerConnection and its handlers. Caller
// holds m.mu and must insert the returned peerState into m.peers.
func (m *Manager) newPeerLocked(remote schema.UserID) (*peerState, error) {
	m.configMu.RLock()
	config := webrtc.Configuration{ICEServers: m.iceConfig.Servers}
	m.configMu.RUnlock()

	// Loopback candidates keep same-machine meshes and tests working
	// where loopback is the only interface.
	settingEngine := webrtc.SettingEngine{}
	settingEngine.SetIncludeLoopbackCandidate(true)

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	pc, err := api.NewPeerConnection(config)
	if err != nil {
		return nil, fmt.Errorf("creating PeerConnection: %w", err)
	}

	peer := &peerState{
		connection:  pc,
		remote:      remote,
		established: make(chan struct{}),
	}

	if m.localTrack != nil {
		sender, err := pc.AddTrack(m.localTrack)
		if err != nil {
			pc.Close()
			return nil, fmt.Errorf("adding local track: %w", err)
		}
		peer.sender = sender
		if m.muted {
			if err := sender.ReplaceTrack(nil); err != nil {
				m.logger.Warn("applying mute to new sender failed", "error", err)
			}
		}
	}

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		m.logger.Debug("remote track received", "peer", remote, "codec", track.Codec().MimeType)
		m.sink.AddTrack(remote, track)
	})

	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return // end-of-candidates marker
		}
		m.trickleCandidate(remote, candidate)
	})

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		m.handleICEStateChange(peer, state)
	})

	return peer, nil
}

// trickleCandidate publishes one gathered candidate. Failures are
// logged, not fatal: losing a candidate degrades path selection, and
// the relay rejecting it means the peer already left the room.
func (m *Manager) trickleCandidate(remote schema.UserID, candidate *webrtc.ICECandidate) {
	payload, err := json.Marshal(candidate.ToJSON())
	if err != nil {
		m.logger.Error("encoding candidate failed", "peer", remote, "error", err)
		return
	}

	err = m.signaler.SendSignal(context.Background(), remote, schema.SignalICECandidate, schema.SignalBody{
		Candidate: string(payload),
	})
	if err != nil {
		m.logger.Warn("trickling candidate failed", "peer", remote, "error", err)
	}
}

// handleICEStateChange closes the established signal on connect and
// tears the peer down when the transport reports disconnection,
// failure, or closure. Teardown is per peer; the rest of the mesh is
// untouched.
func (m *Manager) handleICEStateChange(peer *peerState, state webrtc.ICEConnectionState) {
	m.logger.Info("ICE state change", "peer", peer.remote, "state", state.String())

	switch state {
	case webrtc.ICEConnectionStateConnected, webrtc.ICEConnectionStateCompleted:
		select {
		case <-peer.established:
		default:
			close(peer.established)
		}

	case webrtc.ICEConnectionStateDisconnected,
		webrtc.ICEConnectionStateFailed,
		webrtc.ICEConnectionStateClosed:
		m.teardownPeer(peer)
	}
}

// teardownPeer releases one peer's transport and playback resources.
// Identity-guarded: a late callback from a replaced connection never
// tears down its successor. Idempotent.
func (m *Manager) teardownPeer(peer *peerState) {
	m.mu.Lock()
	current, ok := m.peers[peer.remote]
	owned := ok && current == peer
	if owned {
		delete(m.peers, peer.remote)
		delete(m.orphanCandidates, peer.remote)
	}
	m.mu.Unlock()

	peer.connection.Close()
	if owned {
		m.sink.DropTracks(peer.remote)
		m.logger.Info("peer torn down", "peer", peer.remote)
	}
}
