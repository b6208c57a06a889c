package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avtopazar/avtochat/internal/docstore"
)

func TestPutGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := map[string]any{"senderId": "u1", "createdAt": int64(100)}
	if err := s.Put(ctx, "messages", "m1", doc); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, "messages", "m1")
	if err != nil {
		t.Fatal(err)
	}
	if got["senderId"] != "u1" {
		t.Errorf("senderId = %v, want u1", got["senderId"])
	}

	// Mutating the returned doc must not leak into the store.
	got["senderId"] = "tampered"
	again, _ := s.Get(ctx, "messages", "m1")
	if again["senderId"] != "u1" {
		t.Error("Get should return a copy")
	}
}

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "messages", "nope")
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFindFilterOrderLimit(t *testing.T) {
	s := New()
	ctx := context.Background()
	for i, id := range []string{"a", "b", "c"} {
		_ = s.Put(ctx, "messages", id, map[string]any{
			"roomId":    "r1",
			"createdAt": int64(100 + i),
		})
	}
	_ = s.Put(ctx, "messages", "other", map[string]any{"roomId": "r2", "createdAt": int64(999)})

	got, err := s.Find(ctx, "messages", docstore.Query{
		Filters:    []docstore.Filter{{Field: "roomId", Op: docstore.OpEq, Value: "r1"}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d docs, want 2", len(got))
	}
	if got[0]["createdAt"].(int64) != 102 || got[1]["createdAt"].(int64) != 101 {
		t.Errorf("wrong order: %v", got)
	}
}

func TestFindArrayContains(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, "chat_rooms", "r1", map[string]any{"participants": []string{"u1", "u2"}})
	_ = s.Put(ctx, "chat_rooms", "r2", map[string]any{"participants": []string{"u3", "u4"}})

	got, err := s.Find(ctx, "chat_rooms", docstore.Query{
		Filters: []docstore.Filter{{Field: "participants", Op: docstore.OpEq, Value: "u2"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d rooms, want 1", len(got))
	}
}

func TestUpdateSetAndInc(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, "chat_rooms", "r1", map[string]any{"unread_u2": int64(1), "updatedAt": int64(1)})

	err := s.Update(ctx, "chat_rooms", "r1",
		map[string]any{"updatedAt": int64(2)},
		map[string]int64{"unread_u2": 1})
	if err != nil {
		t.Fatal(err)
	}
	doc, _ := s.Get(ctx, "chat_rooms", "r1")
	if doc["unread_u2"].(int64) != 2 {
		t.Errorf("unread_u2 = %v, want 2", doc["unread_u2"])
	}
	if doc["updatedAt"].(int64) != 2 {
		t.Errorf("updatedAt = %v, want 2", doc["updatedAt"])
	}

	if err := s.Update(ctx, "chat_rooms", "missing", nil, nil); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("update missing = %v, want ErrNotFound", err)
	}
}

func TestUpdateDottedPathInc(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Put(ctx, "chat_rooms", "r1", map[string]any{
		"unreadCount": map[string]any{"u2": int64(1)},
	})

	if err := s.Update(ctx, "chat_rooms", "r1", nil, map[string]int64{"unreadCount.u2": 1}); err != nil {
		t.Fatal(err)
	}
	// Incrementing a counter that does not exist yet starts from zero.
	if err := s.Update(ctx, "chat_rooms", "r1", nil, map[string]int64{"unreadCount.u1": 1}); err != nil {
		t.Fatal(err)
	}

	doc, _ := s.Get(ctx, "chat_rooms", "r1")
	unread := doc["unreadCount"].(map[string]any)
	if unread["u2"].(int64) != 2 {
		t.Errorf("unreadCount.u2 = %v, want 2", unread["u2"])
	}
	if unread["u1"].(int64) != 1 {
		t.Errorf("unreadCount.u1 = %v, want 1", unread["u1"])
	}
}

func TestWatchSignalsOnChange(t *testing.T) {
	s := New()
	ctx := context.Background()
	ch, cancel, err := s.Watch(ctx, "messages")
	if err != nil {
		t.Fatal(err)
	}
	defer cancel()

	_ = s.Put(ctx, "messages", "m1", map[string]any{"x": int64(1)})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no change signal after Put")
	}

	// Changes to other collections must not signal.
	_ = s.Put(ctx, "chat_rooms", "r1", map[string]any{})
	select {
	case <-ch:
		t.Error("unexpected signal for unrelated collection")
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	_ = s.Put(ctx, "messages", "m2", map[string]any{})
	select {
	case _, ok := <-ch:
		if ok {
			t.Error("signal after cancel")
		}
	case <-time.After(50 * time.Millisecond):
	}
}
