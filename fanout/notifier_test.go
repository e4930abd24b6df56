// Copyright 2026 The Babble Authors
// SPDX-License-Identifier: Apache-2.0

package fanout

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/babble-foundation/babble/lib/clock"
	"github.com/babble-foundation/babble/schema"
	"github.com/babble-foundation/babble/store"
)

// recordingPusher records pushes and optionally fails selected
// recipients.
type recordingPusher struct {
	mu     sync.Mutex
	pushed []schema.PushNotification
	fail   map[schema.UserID]bool
	done   chan struct{} // receives one tick per Push call
}

func newRecordingPusher() *recordingPusher {
	return &recordingPusher{
		fail: make(map[schema.UserID]bool),
		done: make(chan struct{}, 64),
	}
}

func (p *recordingPusher) Push(_ context.Context, notification schema.PushNotification) error {
	p.mu.Lock()
	shouldFail := p.fail[notification.Recipient]
	if !shouldFail {
		p.pushed = append(p.pushed, notification)
	}
	p.mu.Unlock()

	p.done <- struct{}{}
	if shouldFail {
		return fmt.Errorf("gateway rejected %s", notification.Recipient)
	}
	return nil
}

func (p *recordingPusher) recipients() []schema.UserID {
	p.mu.Lock()
	defer p.mu.Unlock()
	var users []schema.UserID
	for _, notification := range p.pushed {
		users = append(users, notification.Recipient)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// waitPushes blocks until n Push calls happened (success or failure).
func (p *recordingPusher) waitPushes(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-p.done:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for push %d of %d", i+1, n)
		}
	}
}

func newTestNotifier(t *testing.T) (*Notifier, *store.Store, *recordingPusher) {
	t.Helper()

	st, err := store.Open(store.Config{
		Path:     filepath.Join(t.TempDir(), "babble.db"),
		PoolSize: 2,
		Clock:    clock.Fake(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	pusher := newRecordingPusher()
	notifier := New(Config{Store: st, Pusher: pusher})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go notifier.Run(ctx)

	return notifier, st, pusher
}

func seedTeam(t *testing.T, st *store.Store) {
	t.Helper()
	ctx := context.Background()

	if err := st.PutChannel(ctx, store.Channel{ID: "chan-general", Team: "team-red", Name: "general"}); err != nil {
		t.Fatalf("PutChannel failed: %v", err)
	}
	for _, member := range []store.TeamMember{
		{Team: "team-red", User: "user/ada", DisplayName: "Ada"},
		{Team: "team-red", User: "user/bob", DisplayName: "Bob"},
		{Team: "team-red", User: "user/cam", DisplayName: "Cam"},
		{Team: "team-red", User: "user/dee", DisplayName: "Dee"},
		{Team: "team-red", User: "user/eli", DisplayName: "Eli"},
	} {
		if err := st.PutTeamMember(ctx, member); err != nil {
			t.Fatalf("PutTeamMember failed: %v", err)
		}
	}
}

// Five team members, one is the author, one muted the channel: the
// fan-out must reach exactly the remaining three.
func TestFanOutSkipsAuthorAndMuters(t *testing.T) {
	notifier, st, pusher := newTestNotifier(t)
	seedTeam(t, st)

	if err := st.SetChannelMuted(context.Background(), "user/cam", "chan-general", true); err != nil {
		t.Fatalf("SetChannelMuted failed: %v", err)
	}

	notifier.MessageCreated(schema.Message{
		ID:      "msg-1",
		Channel: "chan-general",
		Author:  "user/ada",
		Content: "lunch?",
	})

	pusher.waitPushes(t, 3)
	got := pusher.recipients()
	want := []schema.UserID{"user/bob", "user/dee", "user/eli"}
	if len(got) != len(want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recipients = %v, want %v", got, want)
		}
	}
}

func TestFanOutUsesDisplayNameAndThreadParent(t *testing.T) {
	notifier, st, pusher := newTestNotifier(t)
	seedTeam(t, st)

	notifier.MessageCreated(schema.Message{
		ID:       "msg-2",
		Channel:  "chan-general",
		Author:   "user/ada",
		Content:  "replying in thread",
		ParentID: "msg-root",
	})

	pusher.waitPushes(t, 4)
	pusher.mu.Lock()
	defer pusher.mu.Unlock()
	for _, notification := range pusher.pushed {
		if notification.SenderName != "Ada" {
			t.Errorf("SenderName = %q, want display name Ada", notification.SenderName)
		}
		if notification.ThreadParent != "msg-root" {
			t.Errorf("ThreadParent = %q, want msg-root", notification.ThreadParent)
		}
		if notification.Team != "team-red" || notification.Channel != "chan-general" {
			t.Errorf("addressing = %s/%s, want team-red/chan-general", notification.Team, notification.Channel)
		}
	}
}

// One recipient's gateway failure must not cost the others their
// notification.
func TestPushFailureIsIsolated(t *testing.T) {
	notifier, st, pusher := newTestNotifier(t)
	seedTeam(t, st)
	pusher.fail["user/bob"] = true

	notifier.MessageCreated(schema.Message{
		ID:      "msg-3",
		Channel: "chan-general",
		Author:  "user/ada",
		Content: "hello",
	})

	pusher.waitPushes(t, 4)
	got := pusher.recipients()
	want := []schema.UserID{"user/cam", "user/dee", "user/eli"}
	if len(got) != len(want) {
		t.Fatalf("recipients = %v, want %v", got, want)
	}
}

func TestEmptyMessageNotifiesNobody(t *testing.T) {
	notifier, st, pusher := newTestNotifier(t)
	seedTeam(t, st)

	notifier.MessageCreated(schema.Message{
		ID:      "msg-4",
		Channel: "chan-general",
		Author:  "user/ada",
	})
	// Follow with a real message; if the empty one produced pushes
	// they would arrive first and skew the recipient count.
	notifier.MessageCreated(schema.Message{
		ID:      "msg-5",
		Channel: "chan-general",
		Author:  "user/ada",
		Content: "real",
	})

	pusher.waitPushes(t, 4)
	if got := len(pusher.recipients()); got != 4 {
		t.Errorf("pushes = %d, want 4 from the real message only", got)
	}
}

func TestSummarize(t *testing.T) {
	long := strings.Repeat("x", 400)
	got := summarize(schema.Message{Content: long})
	if len([]rune(got)) != summaryLimit {
		t.Errorf("summary length = %d runes, want %d", len([]rune(got)), summaryLimit)
	}
	if !strings.HasSuffix(got, "…") {
		t.Error("long summary missing ellipsis")
	}

	if got := summarize(schema.Message{AttachmentCount: 1}); got != "sent an attachment" {
		t.Errorf("single attachment summary = %q", got)
	}
	if got := summarize(schema.Message{AttachmentCount: 3}); got != "sent 3 attachments" {
		t.Errorf("multi attachment summary = %q", got)
	}
	if got := summarize(schema.Message{Content: "short"}); got != "short" {
		t.Errorf("short summary = %q", got)
	}
}
