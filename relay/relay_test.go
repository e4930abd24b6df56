// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

func newTestRelay(t *testing.T) (*Relay, *store.Store, *clock.FakeClock) {
	t.Helper()

	fake := clock.Fake(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))
	st, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "babble.db"),
		PoolSize: 2,
		Clock:    fake,
	})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	return New(Config{Store: st, Clock: fake}), st, fake
}

func joinRoom(t *testing.T, st *store.Store, team schema.TeamID, users ...schema.UserID) {
	t.Helper()
	for _, user := range users {
		if err := st.UpsertParticipant(context.Background(), user, team); err != nil {
			t.Fatalf("UpsertParticipant(%s) failed: %v", user, err)
		}
	}
}

// Signaling between users who do not share a babble room must fail
// atomically with precondition_failed and leave no mailbox row.
func TestSendRequiresSharedRoom(t *testing.T) {
	relay, st, _ := newTestRelay(t)
	ctx := context.Background()

	joinRoom(t, st, "team-red", "user/ada")
	joinRoom(t, st, "team-blue", "user/bob")

	_, err := relay.Send(ctx, "user/ada", "user/bob", schema.SignalOffer, []byte{0xa0})
	if !schema.IsCode(err, schema.ErrCodePreconditionFailed) {
		t.Fatalf("Send across rooms: err = %v, want precondition_failed", err)
	}

	mailbox, err := relay.Poll(ctx, "user/bob")
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(mailbox) != 0 {
		t.Errorf("rejected send left a mailbox row: %v", mailbox)
	}
}

func TestPollIsNonDestructive(t *testing.T) {
	relay, st, _ := newTestRelay(t)
	ctx := context.Background()

	joinRoom(t, st, "team-red", "user/ada", "user/bob")

	sent, err := relay.Send(ctx, "user/ada", "user/bob", schema.SignalOffer, []byte{0xa0})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		mailbox, err := relay.Poll(ctx, "user/bob")
		if err != nil {
			t.Fatalf("Poll %d failed: %v", i, err)
		}
		if len(mailbox) != 1 || mailbox[0].ID != sent.ID {
			t.Fatalf("Poll %d = %v, want the signal to persist until deleted", i, mailbox)
		}
	}
}

// Only the recipient may delete a signal; the sender and bystanders
// get forbidden, and repeated recipient deletes are no-ops.
func TestDeleteIsRecipientOnly(t *testing.T) {
	relay, st, _ := newTestRelay(t)
	ctx := context.Background()

	joinRoom(t, st, "team-red", "user/ada", "user/bob")

	sent, err := relay.Send(ctx, "user/ada", "user/bob", schema.SignalAnswer, []byte{0xa0})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	if err := relay.Delete(ctx, "user/ada", sent.ID); !schema.IsCode(err, schema.ErrCodeForbidden) {
		t.Fatalf("sender delete: err = %v, want forbidden", err)
	}
	if err := relay.Delete(ctx, "user/eve", sent.ID); !schema.IsCode(err, schema.ErrCodeForbidden) {
		t.Fatalf("bystander delete: err = %v, want forbidden", err)
	}

	if err := relay.Delete(ctx, "user/bob", sent.ID); err != nil {
		t.Fatalf("recipient delete failed: %v", err)
	}
	if err := relay.Delete(ctx, "user/bob", sent.ID); err != nil {
		t.Fatalf("repeated delete failed: %v", err)
	}

	mailbox, err := relay.Poll(ctx, "user/bob")
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(mailbox) != 0 {
		t.Errorf("mailbox after delete = %v, want empty", mailbox)
	}
}

func TestRetentionHidesAndSweepReclaims(t *testing.T) {
	relay, st, fake := newTestRelay(t)
	ctx := context.Background()

	joinRoom(t, st, "team-red", "user/ada", "user/bob")

	stale, err := relay.Send(ctx, "user/ada", "user/bob", schema.SignalOffer, []byte{0xa0})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	fake.Advance(31 * time.Second)
	fresh, err := relay.Send(ctx, "user/ada", "user/bob", schema.SignalICECandidate, []byte{0xa1})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mailbox, err := relay.Poll(ctx, "user/bob")
	if err != nil {
		t.Fatalf("Poll failed: %v", err)
	}
	if len(mailbox) != 1 || mailbox[0].ID != fresh.ID {
		t.Fatalf("mailbox = %v, want only the fresh signal", mailbox)
	}

	if err := relay.PurgeExpired(ctx); err != nil {
		t.Fatalf("PurgeExpired failed: %v", err)
	}
	gone, err := st.GetSignal(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetSignal failed: %v", err)
	}
	if gone != nil {
		t.Error("stale signal survived the sweep")
	}
}

// Polling refreshes the participant's seen_at so an active client is
// never reclaimed as abandoned.
func TestPollCountsAsLiveness(t *testing.T) {
	relay, st, fake := newTestRelay(t)
	ctx := context.Background()

	joinRoom(t, st, "team-red", "user/bob")
	joined := fake.Now()

	fake.Advance(5 * time.Minute)
	if _, err := relay.Poll(ctx, "user/bob"); err != nil {
		t.Fatalf("Poll failed: %v", err)
	}

	participant, err := st.GetParticipant(ctx, "user/bob")
	if err != nil {
		t.Fatalf("GetParticipant failed: %v", err)
	}
	if participant == nil || !participant.SeenAt.After(joined) {
		t.Errorf("participant = %+v, want seen_at refreshed past %v", participant, joined)
	}
}
