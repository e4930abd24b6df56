// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package presence

import (
	"context"
	"log/slog"
	"time"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

// DefaultTypingWindow is how long a typing indicator stays visible
// after its last refresh. Clients refresh on keystrokes more often
// than this, so an active typist never flickers.
const DefaultTypingWindow = 3 * time.Second

// DefaultLivenessWindow is how long a babble participant may go
// without touching the relay before the sweep treats the row as
// abandoned by a crashed client.
const DefaultLivenessWindow = 10 * time.Minute

// Config holds the presence service parameters. Zero windows take
// the defaults.
type Config struct {
	Store          *store.Store
	Clock          clock.Clock
	Logger         *slog.Logger
	TypingWindow   time.Duration
	LivenessWindow time.Duration
}

// Service answers typing and room-membership operations.
type Service struct {
	store          *store.Store
	clock          clock.Clock
	logger         *slog.Logger
	typingWindow   time.Duration
	livenessWindow time.Duration
}

// NewService creates a presence service over the given store.
func NewService(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	typingWindow := cfg.TypingWindow
	if typingWindow <= 0 {
		typingWindow = DefaultTypingWindow
	}
	livenessWindow := cfg.LivenessWindow
	if livenessWindow <= 0 {
		livenessWindow = DefaultLivenessWindow
	}
	return &Service{
		store:          cfg.Store,
		clock:          cfg.Clock,
		logger:         logger,
		typingWindow:   typingWindow,
		livenessWindow: livenessWindow,
	}
}

// StartTyping records (or refreshes) user's typing indicator in
// channel. Clients call this on a keystroke-driven debounce.
func (s *Service) StartTyping(ctx context.Context, user schema.UserID, channel schema.ChannelID) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if err := channel.Validate(); err != nil {
		return err
	}
	return s.store.UpsertTyping(ctx, user, channel)
}

// StopTyping clears user's indicator immediately, ahead of its
// natural expiry. Called when a message is sent or the input box is
// emptied.
func (s *Service) StopTyping(ctx context.Context, user schema.UserID, channel schema.ChannelID) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if err := channel.Validate(); err != nil {
		return err
	}
	return s.store.DeleteTyping(ctx, user, channel)
}

// ListTyping returns who is typing in channel right now, excluding
// the calling user. An indicator refreshed within the typing window
// is visible; one refreshed exactly at or beyond the window is not.
func (s *Service) ListTyping(ctx context.Context, channel schema.ChannelID, exclude schema.UserID) ([]schema.TypingStatus, error) {
	if err := channel.Validate(); err != nil {
		return nil, err
	}
	cutoff := s.clock.Now().Add(-s.typingWindow)
	return s.store.ListTypingSince(ctx, channel, cutoff, exclude)
}

// Join places user in team's babble room. If the user is already in
// another room, the previous membership is replaced atomically; there
// is no moment where the user is in two rooms or in none between
// rooms.
func (s *Service) Join(ctx context.Context, user schema.UserID, team schema.TeamID) error {
	if err := user.Validate(); err != nil {
		return err
	}
	if err := team.Validate(); err != nil {
		return err
	}
	return s.store.UpsertParticipant(ctx, user, team)
}

// Leave removes user from their babble room. Leaving while not in a
// room is a no-op.
func (s *Service) Leave(ctx context.Context, user schema.UserID) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return s.store.DeleteParticipant(ctx, user)
}

// Participants returns the members of team's babble room in join
// order.
func (s *Service) Participants(ctx context.Context, team schema.TeamID) ([]schema.Participant, error) {
	if err := team.Validate(); err != nil {
		return nil, err
	}
	return s.store.ListParticipants(ctx, team)
}

// Whereabouts returns user's current room membership, or nil if the
// user is not in any babble room.
func (s *Service) Whereabouts(ctx context.Context, user schema.UserID) (*schema.Participant, error) {
	if err := user.Validate(); err != nil {
		return nil, err
	}
	return s.store.GetParticipant(ctx, user)
}

// SweepExpired reclaims rows that reads no longer return: typing
// indicators idle past twice the window (the margin keeps the purge
// from racing a just-expired read) and participants idle past the
// liveness window.
func (s *Service) SweepExpired(ctx context.Context) error {
	now := s.clock.Now()

	typing, err := s.store.PurgeTypingBefore(ctx, now.Add(-2*s.typingWindow))
	if err != nil {
		return err
	}
	idle, err := s.store.PurgeParticipantsIdleBefore(ctx, now.Add(-s.livenessWindow))
	if err != nil {
		return err
	}

	if typing > 0 || idle > 0 {
		s.logger.Info("presence sweep",
			"typing_purged", typing,
			"participants_purged", idle,
		)
	}
	return nil
}
