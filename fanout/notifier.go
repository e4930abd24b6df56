// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

// summaryLimit caps notification body length in runes. Lock screens
// truncate anyway; shipping whole messages to a push gateway just
// leaks content.
const summaryLimit = 120

// defaultQueueSize bounds the job queue. At capacity, new messages
// drop their notification rather than slowing message creation.
const defaultQueueSize = 256

// Pusher delivers one notification to one recipient's devices. The
// production implementation talks to a push gateway; tests record.
type Pusher interface {
	Push(ctx context.Context, notification schema.PushNotification) error
}

// Config holds the notifier parameters. A zero QueueSize takes the
// default.
type Config struct {
	Store     *store.Store
	Pusher    Pusher
	Logger    *slog.Logger
	QueueSize int
}

// Notifier fans message-created events out to push recipients.
type Notifier struct {
	store  *store.Store
	pusher Pusher
	logger *slog.Logger
	jobs   chan schema.Message
}

// New creates a notifier. Call Run to start the worker.
func New(cfg Config) *Notifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Notifier{
		store:  cfg.Store,
		pusher: cfg.Pusher,
		logger: logger,
		jobs:   make(chan schema.Message, queueSize),
	}
}

// MessageCreated enqueues a notification job for a stored message.
// Never blocks: a full queue drops the job with a log line, trading
// a lost notification for an unblocked send path.
func (n *Notifier) MessageCreated(msg schema.Message) {
	select {
	case n.jobs <- msg:
	default:
		n.logger.Warn("notification queue full, dropping",
			"message_id", msg.ID,
			"channel", msg.Channel,
		)
	}
}

// Run processes jobs until ctx is cancelled. Blocks; run it on its
// own goroutine.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.jobs:
			n.deliver(ctx, msg)
		}
	}
}

// deliver resolves the recipient set for one message and pushes to
// each. Errors are per-recipient: logged, never propagated, never
// aborting the rest of the fan-out.
func (n *Notifier) deliver(ctx context.Context, msg schema.Message) {
	// System rows with no visible content notify nobody.
	if msg.Content == "" && msg.AttachmentCount == 0 {
		return
	}

	channel, err := n.store.GetChannel(ctx, msg.Channel)
	if err != nil || channel == nil {
		n.logger.Error("resolving channel for notification failed",
			"message_id", msg.ID,
			"channel", msg.Channel,
			"error", err,
		)
		return
	}

	members, err := n.store.ListTeamMembers(ctx, channel.Team)
	if err != nil {
		n.logger.Error("listing team members failed",
			"team", channel.Team,
			"error", err,
		)
		return
	}

	muters, err := n.store.ListChannelMuters(ctx, msg.Channel)
	if err != nil {
		n.logger.Error("listing channel muters failed",
			"channel", msg.Channel,
			"error", err,
		)
		return
	}
	muted := make(map[schema.UserID]bool, len(muters))
	for _, user := range muters {
		muted[user] = true
	}

	senderName := string(msg.Author)
	if author, err := n.store.GetTeamMember(ctx, channel.Team, msg.Author); err == nil && author != nil && author.DisplayName != "" {
		senderName = author.DisplayName
	}

	summary := summarize(msg)
	pushed := 0
	for _, member := range members {
		if member.User == msg.Author || muted[member.User] {
			continue
		}
		err := n.pusher.Push(ctx, schema.PushNotification{
			Recipient:    member.User,
			SenderName:   senderName,
			Summary:      summary,
			Team:         channel.Team,
			Channel:      msg.Channel,
			ThreadParent: msg.ParentID,
		})
		if err != nil {
			n.logger.Warn("push failed",
				"recipient", member.User,
				"message_id", msg.ID,
				"error", err,
			)
			continue
		}
		pushed++
	}

	n.logger.Debug("notification fan-out complete",
		"message_id", msg.ID,
		"pushed", pushed,
	)
}

// summarize produces the notification body: truncated content, or an
// attachment-count placeholder for attachment-only messages.
func summarize(msg schema.Message) string {
	if msg.Content == "" {
		if msg.AttachmentCount > 1 {
			return fmt.Sprintf("sent %d attachments", msg.AttachmentCount)
		}
		return "sent an attachment"
	}
	if utf8.RuneCountInString(msg.Content) <= summaryLimit {
		return msg.Content
	}
	runes := []rune(msg.Content)
	return string(runes[:summaryLimit-1]) + "…"
}
