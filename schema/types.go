// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"fmt"
	"time"

	"github.com/babble-foundation/babble/lib/codec"
)

// UserID identifies a user within the workspace, e.g. "user/ada".
type UserID string

// TeamID identifies a team. Each team has at most one babble room,
// so TeamID doubles as the babble room identifier.
type TeamID string

// ChannelID identifies a text channel within a team.
type ChannelID string

// MessageID identifies a message. Generated by the store from the
// message content.
type MessageID string

// Validate rejects empty identifiers. Structural validation beyond
// non-emptiness belongs to the identity provider, which is outside
// this subsystem.
func (u UserID) Validate() error {
	if u == "" {
		return fmt.Errorf("empty user id")
	}
	return nil
}

func (t TeamID) Validate() error {
	if t == "" {
		return fmt.Errorf("empty team id")
	}
	return nil
}

func (c ChannelID) Validate() error {
	if c == "" {
		return fmt.Errorf("empty channel id")
	}
	return nil
}

// TypingStatus records that a user is typing in a channel. At most
// one row exists per (user, channel) pair; each keystroke-driven
// refresh overwrites UpdatedAt.
type TypingStatus struct {
	User      UserID    `cbor:"user"`
	Channel   ChannelID `cbor:"channel"`
	UpdatedAt time.Time `cbor:"updated_at"`
}

// Participant records a user's membership in a team's babble room.
// At most one row exists per user: joining a room implicitly leaves
// any prior one.
type Participant struct {
	User     UserID    `cbor:"user"`
	Team     TeamID    `cbor:"team"`
	JoinedAt time.Time `cbor:"joined_at"`

	// SeenAt is the last time the user touched the relay (sent or
	// polled signals). The sweep removes participants idle past the
	// liveness window.
	SeenAt time.Time `cbor:"seen_at"`
}

// SignalKind discriminates relayed WebRTC signaling payloads.
type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
)

// Validate rejects unknown signal kinds.
func (k SignalKind) Validate() error {
	switch k {
	case SignalOffer, SignalAnswer, SignalICECandidate:
		return nil
	}
	return fmt.Errorf("unknown signal kind %q", string(k))
}

// Signal is one mailbox row: a signaling message addressed from one
// babble participant to another. The payload is opaque to the relay;
// only the recipient's peer manager interprets it.
type Signal struct {
	ID        string           `cbor:"id"`
	Sender    UserID           `cbor:"sender"`
	Recipient UserID           `cbor:"recipient"`
	Kind      SignalKind       `cbor:"kind"`
	Payload   codec.RawMessage `cbor:"payload"`
	CreatedAt time.Time        `cbor:"created_at"`
}

// SignalBody is the payload structure the peer manager encodes into
// Signal.Payload. Exactly one of SDP or Candidate is set, matching
// the Kind.
type SignalBody struct {
	// SDP is the session description for offer and answer signals.
	SDP string `cbor:"sdp,omitempty"`

	// Candidate is the JSON-serialized ICE candidate for
	// ice-candidate signals.
	Candidate string `cbor:"candidate,omitempty"`
}

// Message is a persisted chat message. ParentID is set for thread
// replies and empty for top-level messages; thread membership is
// computed by indexed lookup on ParentID, never by a stored
// back-pointer.
type Message struct {
	ID              MessageID `cbor:"id"`
	Channel         ChannelID `cbor:"channel"`
	Author          UserID    `cbor:"author"`
	Content         string    `cbor:"content"`
	ParentID        MessageID `cbor:"parent_id,omitempty"`
	AttachmentCount int       `cbor:"attachment_count,omitempty"`
	CreatedAt       time.Time `cbor:"created_at"`
	EditedAt        time.Time `cbor:"edited_at,omitempty"`

	// Pending marks a client-side optimistic prediction that the
	// server has not yet confirmed. Never set on stored rows.
	Pending bool `cbor:"pending,omitempty"`
}

// Reaction is an emoji reaction on a message. At most one row per
// (message, user, emoji) triple.
type Reaction struct {
	MessageID MessageID `cbor:"message_id"`
	User      UserID    `cbor:"user"`
	Emoji     string    `cbor:"emoji"`
}

// ThreadInfo is the derived aggregate for one parent message. It is
// recomputed from the reply set on every read, so it is always
// consistent with the underlying messages at the cost of a scan
// proportional to the reply count.
type ThreadInfo struct {
	ReplyCount   int       `cbor:"reply_count"`
	LastReplyAt  time.Time `cbor:"last_reply_at,omitempty"`
	Participants []UserID  `cbor:"participants,omitempty"`
}

// PushNotification is the payload handed to the push delivery
// collaborator for one recipient. Team, Channel, and ThreadParent
// give the client enough addressing to deep-link on tap.
type PushNotification struct {
	Recipient    UserID    `cbor:"recipient"`
	SenderName   string    `cbor:"sender_name"`
	Summary      string    `cbor:"summary"`
	Team         TeamID    `cbor:"team"`
	Channel      ChannelID `cbor:"channel"`
	ThreadParent MessageID `cbor:"thread_parent,omitempty"`
}
