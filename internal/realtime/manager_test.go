package realtime

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/chat"
	"github.com/avtopazar/avtochat/internal/docstore/memstore"
)

func newTestManager(t *testing.T) (*Manager, *chat.Service) {
	t.Helper()
	store := memstore.New()
	svc := chat.NewService(store, "", "", 8*time.Second, zap.NewNop())
	m := NewManager(store, svc, zap.NewNop())
	t.Cleanup(m.StopAll)
	return m, svc
}

func waitSnapshot(t *testing.T, ch <-chan Snapshot) Snapshot {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for snapshot")
		return Snapshot{}
	}
}

func TestListenDeliversInitialAndUpdatedSnapshots(t *testing.T) {
	m, svc := newTestManager(t)
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	if err := m.Listen(ctx, KindMessages, "u2", func(s Snapshot) { snaps <- s }); err != nil {
		t.Fatal(err)
	}

	// Initial snapshot is empty.
	first := waitSnapshot(t, snaps)
	if len(first.Messages) != 0 {
		t.Errorf("initial snapshot has %d messages, want 0", len(first.Messages))
	}

	if _, err := svc.SendMessage(ctx, chat.Draft{SenderID: "u1", ReceiverID: "u2", Content: "hello"}); err != nil {
		t.Fatal(err)
	}

	// Every subsequent delivery is a full result set, not a diff.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-snaps:
			if len(snap.Messages) == 1 && snap.Messages[0].Content == "hello" {
				return
			}
		case <-deadline:
			t.Fatal("never saw snapshot containing the sent message")
		}
	}
}

func TestChatRoomsSubscription(t *testing.T) {
	m, svc := newTestManager(t)
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	if err := m.Listen(ctx, KindChatRooms, "u2", func(s Snapshot) { snaps <- s }); err != nil {
		t.Fatal(err)
	}
	waitSnapshot(t, snaps)

	if _, err := svc.SendMessage(ctx, chat.Draft{SenderID: "u1", ReceiverID: "u2", Content: "hi"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-snaps:
			if len(snap.Rooms) == 1 {
				if got := snap.Rooms[0].UnreadCount["u2"]; got != 1 {
					t.Errorf("unreadCount[u2] = %d, want 1", got)
				}
				return
			}
		case <-deadline:
			t.Fatal("never saw room snapshot")
		}
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	// Stopping a never-subscribed key is a no-op.
	m.Stop(KindMessages, "u1")

	if err := m.Listen(context.Background(), KindMessages, "u1", func(Snapshot) {}); err != nil {
		t.Fatal(err)
	}
	if !m.Active(KindMessages, "u1") {
		t.Fatal("subscription should be active")
	}

	m.Stop(KindMessages, "u1")
	m.Stop(KindMessages, "u1")
	if m.Active(KindMessages, "u1") {
		t.Error("subscription still active after stop")
	}
}

func TestRelistenReplacesPreviousSubscription(t *testing.T) {
	m, svc := newTestManager(t)
	ctx := context.Background()

	firstDone := make(chan struct{})
	var firstClosed bool
	if err := m.Listen(ctx, KindMessages, "u2", func(Snapshot) {
		if !firstClosed {
			firstClosed = true
			close(firstDone)
		}
	}); err != nil {
		t.Fatal(err)
	}
	<-firstDone

	snaps := make(chan Snapshot, 16)
	if err := m.Listen(ctx, KindMessages, "u2", func(s Snapshot) { snaps <- s }); err != nil {
		t.Fatal(err)
	}
	waitSnapshot(t, snaps)

	if _, err := svc.SendMessage(ctx, chat.Draft{SenderID: "u1", ReceiverID: "u2", Content: "after relisten"}); err != nil {
		t.Fatal(err)
	}

	// The replacement subscription sees the write; had the first leaked,
	// the old callback (which is single-shot) would panic on reuse.
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-snaps:
			if len(snap.Messages) == 1 {
				return
			}
		case <-deadline:
			t.Fatal("replacement subscription never delivered")
		}
	}
}

func TestTypingSubscription(t *testing.T) {
	m, svc := newTestManager(t)
	ctx := context.Background()

	snaps := make(chan Snapshot, 16)
	if err := m.Listen(ctx, KindTyping, "u2", func(s Snapshot) { snaps <- s }); err != nil {
		t.Fatal(err)
	}
	waitSnapshot(t, snaps)

	if err := svc.SendTypingIndicator(ctx, "u1", "u2", true); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-snaps:
			if len(snap.Typing) == 1 && snap.Typing[0].UserID == "u1" {
				return
			}
		case <-deadline:
			t.Fatal("never saw typing snapshot")
		}
	}
}
