package sync

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/bus"
	"github.com/avtopazar/avtochat/internal/cache"
	"github.com/avtopazar/avtochat/internal/chat"
	"github.com/avtopazar/avtochat/internal/docstore/memstore"
	"github.com/avtopazar/avtochat/internal/realtime"
)

func testDB(t *testing.T) *cache.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := cache.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestIngestMessages(t *testing.T) {
	db := testDB(t)
	b := bus.New()
	e := NewEngine(nil, db, b, "u1", zap.NewNop())

	ch, unsub := b.Subscribe("message.", 10)
	defer unsub()

	msgs := []chat.Message{
		{ID: "m1", RoomID: "u1_u2", SenderID: "u2", ReceiverID: "u1", Content: "zdravei", Type: chat.TypeText, CreatedAt: time.UnixMilli(1000)},
		{ID: "m2", RoomID: "u1_u2", SenderID: "u1", ReceiverID: "u2", Content: "zdr", Type: chat.TypeText, CreatedAt: time.UnixMilli(2000)},
	}
	if err := e.IngestMessages(msgs); err != nil {
		t.Fatal(err)
	}

	cached, err := db.ListMessages("u1_u2", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 2 {
		t.Fatalf("got %d cached messages, want 2", len(cached))
	}
	// Newest first; the sent one is from me.
	if !cached[0].FromMe || cached[1].FromMe {
		t.Errorf("from_me flags wrong: %v %v", cached[0].FromMe, cached[1].FromMe)
	}

	select {
	case evt := <-ch:
		if evt.Kind != EventMessageUpserted {
			t.Errorf("event kind = %q, want %q", evt.Kind, EventMessageUpserted)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.upserted event")
	}
}

func TestIngestMessagesIdempotent(t *testing.T) {
	db := testDB(t)
	e := NewEngine(nil, db, bus.New(), "u1", zap.NewNop())

	msgs := []chat.Message{
		{ID: "m1", RoomID: "u1_u2", SenderID: "u2", Content: "hi", Type: chat.TypeText, CreatedAt: time.UnixMilli(1000)},
	}
	if err := e.IngestMessages(msgs); err != nil {
		t.Fatal(err)
	}
	// Snapshot re-delivery carries the same messages again.
	msgs[0].IsRead = true
	if err := e.IngestMessages(msgs); err != nil {
		t.Fatal(err)
	}

	cached, err := db.ListMessages("u1_u2", 0, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(cached) != 1 {
		t.Fatalf("got %d cached messages, want 1", len(cached))
	}
	if !cached[0].IsRead {
		t.Error("re-ingest did not refresh is_read")
	}
}

func TestIngestRooms(t *testing.T) {
	db := testDB(t)
	e := NewEngine(nil, db, bus.New(), "u1", zap.NewNop())

	rooms := []chat.ChatRoom{{
		ID:               "u1_u2",
		Participants:     []string{"u1", "u2"},
		ParticipantNames: map[string]string{"u1": "Az", "u2": "Ivan"},
		LastMessage:      chat.Message{Content: "posledno", CreatedAt: time.UnixMilli(5000)},
		UnreadCount:      map[string]int{"u1": 2, "u2": 0},
	}}
	if err := e.IngestRooms(rooms); err != nil {
		t.Fatal(err)
	}

	room, err := db.GetChatRoom("u1_u2")
	if err != nil {
		t.Fatal(err)
	}
	if room == nil {
		t.Fatal("room not cached")
	}
	if room.PeerID != "u2" || room.PeerName != "Ivan" {
		t.Errorf("peer = %q/%q, want u2/Ivan", room.PeerID, room.PeerName)
	}
	if room.UnreadCount != 2 {
		t.Errorf("unread = %d, want this user's counter 2", room.UnreadCount)
	}
	if room.LastMessagePreview != "posledno" {
		t.Errorf("preview = %q", room.LastMessagePreview)
	}
}

// End-to-end: a write to the remote store flows through the subscription
// manager into the cache.
func TestEngineSyncsRemoteWrites(t *testing.T) {
	db := testDB(t)
	store := memstore.New()
	svc := chat.NewService(store, "", "", 8*time.Second, zap.NewNop())
	mgr := realtime.NewManager(store, svc, zap.NewNop())
	t.Cleanup(mgr.StopAll)

	e := NewEngine(mgr, db, bus.New(), "u1", zap.NewNop())
	if err := e.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer e.Stop()

	if _, err := svc.SendMessage(context.Background(), chat.Draft{
		SenderID: "u2", SenderName: "Ivan", ReceiverID: "u1", Content: "kolata svobodna li e",
	}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		msgs, err := db.ListMessages(chat.RoomID("u1", "u2"), 0, 10)
		if err != nil {
			t.Fatal(err)
		}
		if len(msgs) == 1 {
			if msgs[0].Body != "kolata svobodna li e" {
				t.Errorf("body = %q", msgs[0].Body)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("message never reached the cache")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
