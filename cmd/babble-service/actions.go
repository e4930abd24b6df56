// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/babble-foundation/babble/fanout"
	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/lib/codec"
	"github.com/babble-foundation/babble/presence"
	"github.com/babble-foundation/babble/relay"
	"github.com/babble-foundation/babble/rpc"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

// BabbleService wires the domain services behind the socket actions.
type BabbleService struct {
	store     *store.Store
	presence  *presence.Service
	relay     *relay.Relay
	notifier  *fanout.Notifier
	clock     clock.Clock
	logger    *slog.Logger
	startedAt time.Time
}

// loggingPusher is the default Pusher when no push gateway is
// configured: notifications land in the log instead of on devices.
type loggingPusher struct {
	logger *slog.Logger
}

func (p *loggingPusher) Push(_ context.Context, notification schema.PushNotification) error {
	p.logger.Info("push notification",
		"recipient", notification.Recipient,
		"sender", notification.SenderName,
		"channel", notification.Channel,
	)
	return nil
}

// registerActions registers every socket action on the server.
func (s *BabbleService) registerActions(server *rpc.Server) {
	// Unauthenticated liveness endpoint.
	server.Handle("status", s.handleStatus)

	server.Handle("typing.start", s.handleTypingStart)
	server.Handle("typing.stop", s.handleTypingStop)
	server.Handle("typing.list", s.handleTypingList)

	server.Handle("babble.join", s.handleBabbleJoin)
	server.Handle("babble.leave", s.handleBabbleLeave)
	server.Handle("babble.participants", s.handleBabbleParticipants)

	server.Handle("signal.send", s.handleSignalSend)
	server.Handle("signal.poll", s.handleSignalPoll)
	server.Handle("signal.delete", s.handleSignalDelete)

	server.Handle("message.send", s.handleMessageSend)
	server.Handle("message.edit", s.handleMessageEdit)
	server.Handle("message.delete", s.handleMessageDelete)
	server.Handle("message.list", s.handleMessageList)

	server.Handle("reaction.add", s.handleReactionAdd)
	server.Handle("reaction.remove", s.handleReactionRemove)

	server.Handle("thread.info", s.handleThreadInfo)

	// Roster and channel administration, used by the workspace sync
	// job and the operator CLI.
	server.Handle("team.member.put", s.handleTeamMemberPut)
	server.Handle("channel.put", s.handleChannelPut)
	server.Handle("channel.list", s.handleChannelList)
	server.Handle("channel.mute", s.handleChannelMute)
}

// callerID decodes and validates the "user" field every authenticated
// action carries.
func callerID(raw []byte) (schema.UserID, error) {
	var request struct {
		User schema.UserID `cbor:"user"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return "", err
	}
	if request.User == "" {
		return "", schema.Unauthenticated("request carries no user identity")
	}
	return request.User, nil
}

type statusResponse struct {
	UptimeSeconds float64 `cbor:"uptime_seconds"`
}

func (s *BabbleService) handleStatus(context.Context, []byte) (any, error) {
	return statusResponse{
		UptimeSeconds: s.clock.Now().Sub(s.startedAt).Seconds(),
	}, nil
}

func (s *BabbleService) handleTypingStart(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		Channel schema.ChannelID `cbor:"channel"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.presence.StartTyping(ctx, user, request.Channel)
}

func (s *BabbleService) handleTypingStop(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		Channel schema.ChannelID `cbor:"channel"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.presence.StopTyping(ctx, user, request.Channel)
}

func (s *BabbleService) handleTypingList(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		Channel schema.ChannelID `cbor:"channel"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	typing, err := s.presence.ListTyping(ctx, request.Channel, user)
	if err != nil {
		return nil, err
	}
	return map[string]any{"typing": typing}, nil
}

func (s *BabbleService) handleBabbleJoin(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		Team schema.TeamID `cbor:"team"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	if err := s.presence.Join(ctx, user, request.Team); err != nil {
		return nil, err
	}
	// The joiner connects to everyone already present; hand the
	// roster back so the client can start offering.
	participants, err := s.presence.Participants(ctx, request.Team)
	if err != nil {
		return nil, err
	}
	return map[string]any{"participants": participants}, nil
}

func (s *BabbleService) handleBabbleLeave(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	return nil, s.presence.Leave(ctx, user)
}

func (s *BabbleService) handleBabbleParticipants(ctx context.Context, raw []byte) (any, error) {
	if _, err := callerID(raw); err != nil {
		return nil, err
	}
	var request struct {
		Team schema.TeamID `cbor:"team"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	participants, err := s.presence.Participants(ctx, request.Team)
	if err != nil {
		return nil, err
	}
	return map[string]any{"participants": participants}, nil
}

func (s *BabbleService) handleSignalSend(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		Recipient schema.UserID     `cbor:"recipient"`
		Kind      schema.SignalKind `cbor:"kind"`
		Payload   codec.RawMessage  `cbor:"payload"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	signal, err := s.relay.Send(ctx, user, request.Recipient, request.Kind, request.Payload)
	if err != nil {
		return nil, err
	}
	return map[string]any{"id": signal.ID}, nil
}

func (s *BabbleService) handleSignalPoll(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	signals, err := s.relay.Poll(ctx, user)
	if err != nil {
		return nil, err
	}
	return map[string]any{"signals": signals}, nil
}

func (s *BabbleService) handleSignalDelete(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		ID string `cbor:"id"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.relay.Delete(ctx, user, request.ID)
}

func (s *BabbleService) handleMessageSend(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		Channel         schema.ChannelID `cbor:"channel"`
		Content         string           `cbor:"content"`
		ParentID        schema.MessageID `cbor:"parent_id"`
		AttachmentCount int              `cbor:"attachment_count"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	if err := request.Channel.Validate(); err != nil {
		return nil, err
	}

	stored, err := s.store.InsertMessage(ctx, schema.Message{
		Channel:         request.Channel,
		Author:          user,
		Content:         request.Content,
		ParentID:        request.ParentID,
		AttachmentCount: request.AttachmentCount,
	})
	if err != nil {
		return nil, err
	}

	// Sending a message clears the author's typing indicator and
	// kicks off the push fan-out; neither blocks the response.
	if err := s.presence.StopTyping(ctx, user, request.Channel); err != nil {
		s.logger.Warn("clearing typing after send failed", "user", user, "error", err)
	}
	s.notifier.MessageCreated(*stored)

	return map[string]any{"message": stored}, nil
}

func (s *BabbleService) handleMessageEdit(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		ID      schema.MessageID `cbor:"id"`
		Content string           `cbor:"content"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, schema.PreconditionFailed("message %s does not exist", request.ID)
	}
	if msg.Author != user {
		return nil, schema.Forbidden("message %s belongs to %s", request.ID, msg.Author)
	}
	return nil, s.store.EditMessage(ctx, request.ID, request.Content)
}

func (s *BabbleService) handleMessageDelete(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		ID schema.MessageID `cbor:"id"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}

	msg, err := s.store.GetMessage(ctx, request.ID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		// Already gone; deleting twice is not an error.
		return nil, nil
	}
	if msg.Author != user {
		return nil, schema.Forbidden("message %s belongs to %s", request.ID, msg.Author)
	}
	return nil, s.store.DeleteMessage(ctx, request.ID)
}

func (s *BabbleService) handleMessageList(ctx context.Context, raw []byte) (any, error) {
	if _, err := callerID(raw); err != nil {
		return nil, err
	}
	var request struct {
		Channel schema.ChannelID `cbor:"channel"`
		Limit   int              `cbor:"limit"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	messages, err := s.store.ListMessages(ctx, request.Channel, request.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"messages": messages}, nil
}

func (s *BabbleService) handleReactionAdd(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		MessageID schema.MessageID `cbor:"message_id"`
		Emoji     string           `cbor:"emoji"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.store.AddReaction(ctx, schema.Reaction{
		MessageID: request.MessageID,
		User:      user,
		Emoji:     request.Emoji,
	})
}

func (s *BabbleService) handleReactionRemove(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		MessageID schema.MessageID `cbor:"message_id"`
		Emoji     string           `cbor:"emoji"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.store.RemoveReaction(ctx, schema.Reaction{
		MessageID: request.MessageID,
		User:      user,
		Emoji:     request.Emoji,
	})
}

func (s *BabbleService) handleThreadInfo(ctx context.Context, raw []byte) (any, error) {
	if _, err := callerID(raw); err != nil {
		return nil, err
	}
	var request struct {
		Parent schema.MessageID `cbor:"parent"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	info, err := s.store.ThreadInfo(ctx, request.Parent)
	if err != nil {
		return nil, err
	}
	return map[string]any{"thread": info}, nil
}

func (s *BabbleService) handleTeamMemberPut(ctx context.Context, raw []byte) (any, error) {
	if _, err := callerID(raw); err != nil {
		return nil, err
	}
	var request struct {
		Member store.TeamMember `cbor:"member"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.store.PutTeamMember(ctx, request.Member)
}

func (s *BabbleService) handleChannelPut(ctx context.Context, raw []byte) (any, error) {
	if _, err := callerID(raw); err != nil {
		return nil, err
	}
	var request struct {
		Channel store.Channel `cbor:"channel"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.store.PutChannel(ctx, request.Channel)
}

func (s *BabbleService) handleChannelList(ctx context.Context, raw []byte) (any, error) {
	if _, err := callerID(raw); err != nil {
		return nil, err
	}
	var request struct {
		Team schema.TeamID `cbor:"team"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	channels, err := s.store.ListChannels(ctx, request.Team)
	if err != nil {
		return nil, err
	}
	return map[string]any{"channels": channels}, nil
}

func (s *BabbleService) handleChannelMute(ctx context.Context, raw []byte) (any, error) {
	user, err := callerID(raw)
	if err != nil {
		return nil, err
	}
	var request struct {
		Channel schema.ChannelID `cbor:"channel"`
		Muted   bool             `cbor:"muted"`
	}
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, err
	}
	return nil, s.store.SetChannelMuted(ctx, user, request.Channel, request.Muted)
}
