package inbox

import (
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap"
)

type memState struct {
	values map[string]string
}

func newMemState() *memState {
	return &memState{values: map[string]string{}}
}

func (m *memState) GetState(key string) (string, error) {
	return m.values[key], nil
}

func (m *memState) SetState(key, value string) error {
	m.values[key] = value
	return nil
}

func TestRingBufferBound(t *testing.T) {
	in := Load(newMemState(), zap.NewNop())

	for i := 0; i < 60; i++ {
		in.Add(Notification{Title: fmt.Sprintf("n%d", i), Type: TypeMessage})
	}

	items := in.Notifications()
	if len(items) != MaxNotifications {
		t.Fatalf("got %d notifications, want %d", len(items), MaxNotifications)
	}
	// Newest first: the most recent add is at the head, the oldest 10 evicted.
	if items[0].Title != "n59" {
		t.Errorf("head = %q, want n59", items[0].Title)
	}
	if items[len(items)-1].Title != "n10" {
		t.Errorf("tail = %q, want n10", items[len(items)-1].Title)
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	state := newMemState()
	in := Load(state, zap.NewNop())

	first := in.Add(Notification{Title: "offer", Body: "golf 5", Type: TypeMessage})
	in.Add(Notification{Title: "price drop", Type: TypeCarUpdate})
	in.MarkRead(first.ID)

	before := in.Notifications()

	reloaded := Load(state, zap.NewNop()).Notifications()
	if len(reloaded) != len(before) {
		t.Fatalf("got %d notifications after reload, want %d", len(reloaded), len(before))
	}
	for i := range before {
		if !reflect.DeepEqual(reloaded[i], before[i]) {
			t.Errorf("entry %d = %+v, want %+v", i, reloaded[i], before[i])
		}
	}
	if !reloaded[1].Read {
		t.Error("read flag lost across reload")
	}
}

func TestCorruptStateStartsEmpty(t *testing.T) {
	state := newMemState()
	state.values[StateKey] = "{not json"

	in := Load(state, zap.NewNop())
	if got := in.Notifications(); len(got) != 0 {
		t.Errorf("got %d notifications from corrupt state, want 0", len(got))
	}

	// The inbox remains usable.
	in.Add(Notification{Title: "fresh"})
	if got := in.UnreadCount(); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}
}

func TestUnreadCountDerived(t *testing.T) {
	in := Load(newMemState(), zap.NewNop())

	a := in.Add(Notification{Title: "a"})
	in.Add(Notification{Title: "b"})
	in.Add(Notification{Title: "c"})
	if got := in.UnreadCount(); got != 3 {
		t.Fatalf("unread = %d, want 3", got)
	}

	in.MarkRead(a.ID)
	if got := in.UnreadCount(); got != 2 {
		t.Errorf("unread after MarkRead = %d, want 2", got)
	}
	in.MarkRead("no-such-id")
	if got := in.UnreadCount(); got != 2 {
		t.Errorf("unread after unknown MarkRead = %d, want 2", got)
	}

	in.MarkAllRead()
	if got := in.UnreadCount(); got != 0 {
		t.Errorf("unread after MarkAllRead = %d, want 0", got)
	}
}

func TestClear(t *testing.T) {
	state := newMemState()
	in := Load(state, zap.NewNop())

	in.Add(Notification{Title: "a"})
	in.Clear()
	if got := in.Notifications(); len(got) != 0 {
		t.Fatalf("got %d after clear, want 0", len(got))
	}

	if got := Load(state, zap.NewNop()).Notifications(); len(got) != 0 {
		t.Errorf("clear not persisted, reload has %d", len(got))
	}
}

func TestSubscribeFanOutOrder(t *testing.T) {
	in := Load(newMemState(), zap.NewNop())

	var order []string
	in.Subscribe(func(Notification) { order = append(order, "first") })
	in.Subscribe(func(Notification) { order = append(order, "second") })

	in.Add(Notification{Title: "x"})
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Errorf("fan-out order = %v, want [first second]", order)
	}
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	in := Load(newMemState(), zap.NewNop())

	calls := 0
	unsub := in.Subscribe(func(Notification) { calls++ })
	in.Add(Notification{Title: "a"})

	unsub()
	unsub()
	in.Add(Notification{Title: "b"})

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}
