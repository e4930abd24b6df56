// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package optimistic

import (
	"bytes"
	"testing"
	"time"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/lib/codec"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

func newTestPatcher(t *testing.T) (*Patcher, *clock.FakeClock) {
	t.Helper()

	fake := clock.Fake(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	baseline := &Snapshot{
		Channels: []store.Channel{
			{ID: "chan-general", Team: "team-red", Name: "general", Position: 0},
			{ID: "chan-random", Team: "team-red", Name: "random", Position: 1},
			{ID: "chan-dev", Team: "team-red", Name: "dev", Position: 2},
		},
		Messages: map[schema.ChannelID][]schema.Message{
			"chan-general": {
				{ID: "msg-a", Channel: "chan-general", Author: "user/ada", Content: "hi", CreatedAt: fake.Now()},
			},
		},
	}
	return NewPatcher(baseline, fake), fake
}

// encode produces the deterministic byte form of a snapshot for
// equality checks.
func encode(t *testing.T, snapshot *Snapshot) []byte {
	t.Helper()
	data, err := codec.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}

func TestSendMessagePredictsPendingRow(t *testing.T) {
	patcher, _ := newTestPatcher(t)

	opID, predicted := patcher.SendMessage("chan-general", "user/bob", "hello", "")
	if opID == "" || predicted.ID == "" {
		t.Fatal("SendMessage returned empty IDs")
	}
	if !predicted.Pending {
		t.Error("predicted message not flagged Pending")
	}

	view := patcher.View()
	messages := view.Messages["chan-general"]
	if len(messages) != 2 || messages[1].ID != predicted.ID {
		t.Fatalf("view messages = %v, want prediction appended", messages)
	}
}

// Rejecting a prediction must restore the previous view exactly,
// byte for byte, even with other predictions still pending.
func TestRejectRollsBackExactly(t *testing.T) {
	patcher, _ := newTestPatcher(t)

	patcher.AddReaction(schema.Reaction{MessageID: "msg-a", User: "user/bob", Emoji: "👍"})
	before := encode(t, patcher.View())

	failedOp, _ := patcher.SendMessage("chan-general", "user/bob", "doomed", "")
	editOp := patcher.EditMessage("msg-a", "mutated")

	if err := patcher.Reject(failedOp); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if err := patcher.Reject(editOp); err != nil {
		t.Fatalf("Reject failed: %v", err)
	}

	after := encode(t, patcher.View())
	if !bytes.Equal(before, after) {
		t.Error("view after rollback differs from the pre-op view")
	}
	if patcher.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want the surviving reaction op", patcher.PendingCount())
	}
}

// Confirmations arriving out of submission order must converge to
// the same confirmed state.
func TestConfirmOutOfOrder(t *testing.T) {
	patcher, fake := newTestPatcher(t)

	muteOp := patcher.ToggleChannelMute("chan-random")
	sendOp, predicted := patcher.SendMessage("chan-general", "user/bob", "hello", "")

	// The send confirms first even though it was submitted second.
	stored := schema.Message{
		ID:        "msg-real",
		Channel:   "chan-general",
		Author:    "user/bob",
		Content:   "hello",
		CreatedAt: fake.Now().UTC(),
	}
	if err := patcher.Confirm(sendOp, &stored); err != nil {
		t.Fatalf("Confirm send failed: %v", err)
	}
	if err := patcher.Confirm(muteOp, nil); err != nil {
		t.Fatalf("Confirm mute failed: %v", err)
	}

	view := patcher.View()
	if patcher.PendingCount() != 0 {
		t.Errorf("PendingCount = %d, want 0", patcher.PendingCount())
	}
	if !view.Muted["chan-random"] {
		t.Error("confirmed mute missing from view")
	}

	messages := view.Messages["chan-general"]
	if len(messages) != 2 {
		t.Fatalf("messages = %v, want baseline plus confirmed send", messages)
	}
	if messages[1].ID != "msg-real" || messages[1].Pending {
		t.Errorf("confirmed message = %+v, want real ID and Pending cleared", messages[1])
	}
	for _, msg := range messages {
		if msg.ID == predicted.ID {
			t.Error("temporary prediction survived its confirmation")
		}
	}
}

func TestConfirmUnknownOp(t *testing.T) {
	patcher, _ := newTestPatcher(t)

	if err := patcher.Confirm("op-unknown", nil); err == nil {
		t.Error("Confirm accepted an unknown op")
	}
	if err := patcher.Reject("op-unknown"); err == nil {
		t.Error("Reject accepted an unknown op")
	}
}

func TestReorderChannels(t *testing.T) {
	patcher, _ := newTestPatcher(t)

	patcher.ReorderChannels([]schema.ChannelID{"chan-dev", "chan-general"})

	view := patcher.View()
	var ids []schema.ChannelID
	for _, channel := range view.Channels {
		ids = append(ids, channel.ID)
	}
	want := []schema.ChannelID{"chan-dev", "chan-general", "chan-random"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
	for i, channel := range view.Channels {
		if channel.Position != i {
			t.Errorf("channel %s position = %d, want %d", channel.ID, channel.Position, i)
		}
	}
}

func TestReactionAddRemove(t *testing.T) {
	patcher, _ := newTestPatcher(t)

	reaction := schema.Reaction{MessageID: "msg-a", User: "user/bob", Emoji: "🎉"}
	patcher.AddReaction(reaction)
	patcher.AddReaction(reaction) // duplicate collapses

	view := patcher.View()
	if got := len(view.Reactions["msg-a"]); got != 1 {
		t.Fatalf("reactions = %d, want deduplicated 1", got)
	}

	patcher.RemoveReaction(reaction)
	view = patcher.View()
	if _, ok := view.Reactions["msg-a"]; ok {
		t.Error("reaction survived predicted removal")
	}
}

func TestDeleteMessageDropsReactions(t *testing.T) {
	patcher, _ := newTestPatcher(t)

	reaction := schema.Reaction{MessageID: "msg-a", User: "user/bob", Emoji: "👍"}
	if err := patcher.Confirm(patcher.AddReaction(reaction), nil); err != nil {
		t.Fatalf("Confirm failed: %v", err)
	}

	patcher.DeleteMessage("msg-a")
	view := patcher.View()
	if len(view.Messages["chan-general"]) != 0 {
		t.Error("message survived predicted delete")
	}
	if _, ok := view.Reactions["msg-a"]; ok {
		t.Error("reactions survived predicted delete")
	}
}

func TestResetBaselineDropsPending(t *testing.T) {
	patcher, _ := newTestPatcher(t)

	patcher.SendMessage("chan-general", "user/bob", "will vanish", "")
	patcher.ResetBaseline(&Snapshot{
		Messages:  map[schema.ChannelID][]schema.Message{},
		Reactions: map[schema.MessageID][]schema.Reaction{},
		Muted:     map[schema.ChannelID]bool{},
	})

	if patcher.PendingCount() != 0 {
		t.Errorf("PendingCount = %d after reset, want 0", patcher.PendingCount())
	}
	if len(patcher.View().Messages["chan-general"]) != 0 {
		t.Error("stale messages in view after reset")
	}
}
