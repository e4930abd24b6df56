// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package optimistic

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

// opCounter feeds monotonically unique op and temp-message IDs.
var opCounter atomic.Uint64

func nextID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, opCounter.Add(1))
}

// Snapshot is one materialized view of chat state. Collections are
// ordered so deterministic encoding of two equal snapshots yields
// identical bytes.
type Snapshot struct {
	// Channels in sidebar order.
	Channels []store.Channel `cbor:"channels"`

	// Messages per channel, oldest first.
	Messages map[schema.ChannelID][]schema.Message `cbor:"messages"`

	// Reactions per message, in arrival order.
	Reactions map[schema.MessageID][]schema.Reaction `cbor:"reactions"`

	// Muted channels for the local user.
	Muted map[schema.ChannelID]bool `cbor:"muted"`
}

// clone deep-copies the snapshot so pending ops never mutate the
// confirmed state through shared slices.
func (s *Snapshot) clone() *Snapshot {
	copied := &Snapshot{
		Channels:  append([]store.Channel(nil), s.Channels...),
		Messages:  make(map[schema.ChannelID][]schema.Message, len(s.Messages)),
		Reactions: make(map[schema.MessageID][]schema.Reaction, len(s.Reactions)),
		Muted:     make(map[schema.ChannelID]bool, len(s.Muted)),
	}
	for channel, messages := range s.Messages {
		copied.Messages[channel] = append([]schema.Message(nil), messages...)
	}
	for message, reactions := range s.Reactions {
		copied.Reactions[message] = append([]schema.Reaction(nil), reactions...)
	}
	for channel, muted := range s.Muted {
		copied.Muted[channel] = muted
	}
	return copied
}

// pendingOp is one unconfirmed prediction: an ID for the
// confirm/reject round-trip and the mutation it predicts.
type pendingOp struct {
	id    string
	apply func(*Snapshot)
}

// Patcher applies operations optimistically. Safe for concurrent use.
type Patcher struct {
	clock clock.Clock

	mu        sync.Mutex
	confirmed *Snapshot
	pending   []pendingOp
}

// NewPatcher creates a patcher over a confirmed baseline snapshot.
// The patcher takes ownership of the snapshot.
func NewPatcher(baseline *Snapshot, clk clock.Clock) *Patcher {
	if baseline.Messages == nil {
		baseline.Messages = make(map[schema.ChannelID][]schema.Message)
	}
	if baseline.Reactions == nil {
		baseline.Reactions = make(map[schema.MessageID][]schema.Reaction)
	}
	if baseline.Muted == nil {
		baseline.Muted = make(map[schema.ChannelID]bool)
	}
	return &Patcher{clock: clk, confirmed: baseline}
}

// View materializes the current predicted state: the confirmed
// snapshot with every pending op applied in submission order.
func (p *Patcher) View() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	view := p.confirmed.clone()
	for _, op := range p.pending {
		op.apply(view)
	}
	return view
}

// PendingCount returns the number of unconfirmed operations.
func (p *Patcher) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// SendMessage predicts a new message. The returned op ID drives the
// later Confirm or Reject; the returned message carries a temporary
// ID and the Pending flag so the UI can render it greyed.
func (p *Patcher) SendMessage(channel schema.ChannelID, author schema.UserID, content string, parent schema.MessageID) (string, schema.Message) {
	opID := nextID("op")
	predicted := schema.Message{
		ID:        schema.MessageID(nextID("pending")),
		Channel:   channel,
		Author:    author,
		Content:   content,
		ParentID:  parent,
		CreatedAt: p.clock.Now().UTC(),
		Pending:   true,
	}

	p.push(opID, func(s *Snapshot) {
		s.Messages[channel] = append(s.Messages[channel], predicted)
	})
	return opID, predicted
}

// EditMessage predicts a content change on an existing message.
func (p *Patcher) EditMessage(id schema.MessageID, content string) string {
	opID := nextID("op")
	editedAt := p.clock.Now().UTC()

	p.push(opID, func(s *Snapshot) {
		for channel, messages := range s.Messages {
			for i := range messages {
				if messages[i].ID == id {
					messages[i].Content = content
					messages[i].EditedAt = editedAt
					s.Messages[channel] = messages
					return
				}
			}
		}
	})
	return opID
}

// DeleteMessage predicts removal of a message and its reactions.
func (p *Patcher) DeleteMessage(id schema.MessageID) string {
	opID := nextID("op")

	p.push(opID, func(s *Snapshot) {
		for channel, messages := range s.Messages {
			filtered := messages[:0:0]
			for _, msg := range messages {
				if msg.ID != id {
					filtered = append(filtered, msg)
				}
			}
			s.Messages[channel] = filtered
		}
		delete(s.Reactions, id)
	})
	return opID
}

// AddReaction predicts an emoji reaction. Duplicate predictions
// collapse the way the server would collapse them.
func (p *Patcher) AddReaction(reaction schema.Reaction) string {
	opID := nextID("op")

	p.push(opID, func(s *Snapshot) {
		for _, existing := range s.Reactions[reaction.MessageID] {
			if existing == reaction {
				return
			}
		}
		s.Reactions[reaction.MessageID] = append(s.Reactions[reaction.MessageID], reaction)
	})
	return opID
}

// RemoveReaction predicts removal of an emoji reaction.
func (p *Patcher) RemoveReaction(reaction schema.Reaction) string {
	opID := nextID("op")

	p.push(opID, func(s *Snapshot) {
		reactions := s.Reactions[reaction.MessageID]
		filtered := reactions[:0:0]
		for _, existing := range reactions {
			if existing != reaction {
				filtered = append(filtered, existing)
			}
		}
		if len(filtered) == 0 {
			delete(s.Reactions, reaction.MessageID)
		} else {
			s.Reactions[reaction.MessageID] = filtered
		}
	})
	return opID
}

// ReorderChannels predicts a new sidebar order. Channels absent from
// the order keep their relative position after the ordered ones.
func (p *Patcher) ReorderChannels(order []schema.ChannelID) string {
	opID := nextID("op")
	ordered := append([]schema.ChannelID(nil), order...)

	p.push(opID, func(s *Snapshot) {
		index := make(map[schema.ChannelID]*store.Channel, len(s.Channels))
		for i := range s.Channels {
			index[s.Channels[i].ID] = &s.Channels[i]
		}

		var reordered []store.Channel
		placed := make(map[schema.ChannelID]bool, len(ordered))
		for _, id := range ordered {
			if channel, ok := index[id]; ok && !placed[id] {
				placed[id] = true
				reordered = append(reordered, *channel)
			}
		}
		for _, channel := range s.Channels {
			if !placed[channel.ID] {
				reordered = append(reordered, channel)
			}
		}
		for i := range reordered {
			reordered[i].Position = i
		}
		s.Channels = reordered
	})
	return opID
}

// ToggleChannelMute predicts flipping the local mute on a channel.
func (p *Patcher) ToggleChannelMute(channel schema.ChannelID) string {
	opID := nextID("op")

	p.push(opID, func(s *Snapshot) {
		if s.Muted[channel] {
			delete(s.Muted, channel)
		} else {
			s.Muted[channel] = true
		}
	})
	return opID
}

// Confirm applies a server acknowledgment. The op's mutation moves
// from the pending list into the confirmed snapshot; for message
// sends the server's stored message (real ID, real timestamp)
// replaces the prediction. Confirmations may arrive in any order
// relative to submission.
func (p *Patcher) Confirm(opID string, confirmed *schema.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	op, ok := p.takeLocked(opID)
	if !ok {
		return fmt.Errorf("optimistic: unknown op %s", opID)
	}

	if confirmed != nil {
		stored := *confirmed
		stored.Pending = false
		p.confirmed.Messages[stored.Channel] = append(p.confirmed.Messages[stored.Channel], stored)
		return nil
	}
	op.apply(p.confirmed)
	return nil
}

// Reject drops a prediction. The confirmed snapshot was never
// touched, so the next View is exactly the state without the failed
// op — regardless of how many later predictions are still pending.
func (p *Patcher) Reject(opID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.takeLocked(opID); !ok {
		return fmt.Errorf("optimistic: unknown op %s", opID)
	}
	return nil
}

// ResetBaseline replaces the confirmed snapshot wholesale (a server
// refetch) and drops all pending predictions.
func (p *Patcher) ResetBaseline(baseline *Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = baseline.clone()
	p.pending = nil
}

func (p *Patcher) push(opID string, apply func(*Snapshot)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, pendingOp{id: opID, apply: apply})
}

// takeLocked removes and returns the pending op with the given ID.
// Caller holds p.mu.
func (p *Patcher) takeLocked(opID string) (pendingOp, bool) {
	for i, op := range p.pending {
		if op.id == opID {
			p.pending = append(p.pending[:i], p.pending[i+1:]...)
			return op, true
		}
	}
	return pendingOp{}, false
}
