// Package inbox keeps a bounded, persisted list of received push
// notifications with read/unread state and listener fan-out.
package inbox

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// StateKey is the fixed key the inbox is persisted under.
const StateKey = "avtopazar.notifications"

// MaxNotifications bounds the inbox; the oldest entries are evicted first.
const MaxNotifications = 50

// Type classifies a notification for display purposes.
type Type string

const (
	TypeMessage   Type = "message"
	TypeCarUpdate Type = "car_update"
	TypeSystem    Type = "system"
	TypePromotion Type = "promotion"
)

// Notification is a single inbox entry. Notifications are owned entirely
// by this client; there is no server-side read model.
type Notification struct {
	ID        string            `json:"id"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	Type      Type              `json:"type"`
	Timestamp int64             `json:"timestamp"`
	Read      bool              `json:"read"`
}

// StateStore persists the serialized inbox across restarts.
type StateStore interface {
	GetState(key string) (string, error)
	SetState(key, value string) error
}

// Inbox is a process-wide notification buffer, newest first.
type Inbox struct {
	mu        sync.Mutex
	store     StateStore
	logger    *zap.Logger
	items     []Notification
	listeners []listener
	nextToken int
}

type listener struct {
	token int
	fn    func(Notification)
}

// Load builds an Inbox from the persisted state. Unreadable or corrupt
// state yields an empty inbox rather than an error.
func Load(store StateStore, logger *zap.Logger) *Inbox {
	in := &Inbox{store: store, logger: logger}

	raw, err := store.GetState(StateKey)
	if err != nil {
		logger.Warn("read notification state", zap.Error(err))
		return in
	}
	if raw == "" {
		return in
	}
	var items []Notification
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		logger.Warn("corrupt notification state, starting empty", zap.Error(err))
		return in
	}
	if len(items) > MaxNotifications {
		items = items[:MaxNotifications]
	}
	in.items = items
	return in
}

// Add prepends a notification, evicts past the cap, persists, and fans
// out to every subscribed listener in registration order. A missing ID
// or timestamp is filled in.
func (in *Inbox) Add(n Notification) Notification {
	in.mu.Lock()
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.Timestamp == 0 {
		n.Timestamp = time.Now().UnixMilli()
	}
	if n.Type == "" {
		n.Type = TypeSystem
	}

	in.items = append([]Notification{n}, in.items...)
	if len(in.items) > MaxNotifications {
		in.items = in.items[:MaxNotifications]
	}
	in.persistLocked()

	fanout := make([]listener, len(in.listeners))
	copy(fanout, in.listeners)
	in.mu.Unlock()

	for _, l := range fanout {
		l.fn(n)
	}
	return n
}

// MarkRead flags a single notification as read. Unknown IDs are ignored.
func (in *Inbox) MarkRead(id string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	for i := range in.items {
		if in.items[i].ID == id {
			if !in.items[i].Read {
				in.items[i].Read = true
				in.persistLocked()
			}
			return
		}
	}
}

// MarkAllRead flags every notification as read.
func (in *Inbox) MarkAllRead() {
	in.mu.Lock()
	defer in.mu.Unlock()
	changed := false
	for i := range in.items {
		if !in.items[i].Read {
			in.items[i].Read = true
			changed = true
		}
	}
	if changed {
		in.persistLocked()
	}
}

// Clear empties the inbox.
func (in *Inbox) Clear() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if len(in.items) == 0 {
		return
	}
	in.items = nil
	in.persistLocked()
}

// Notifications returns a copy of the inbox, newest first.
func (in *Inbox) Notifications() []Notification {
	in.mu.Lock()
	defer in.mu.Unlock()
	out := make([]Notification, len(in.items))
	copy(out, in.items)
	return out
}

// UnreadCount is derived, not stored.
func (in *Inbox) UnreadCount() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for i := range in.items {
		if !in.items[i].Read {
			n++
		}
	}
	return n
}

// Subscribe registers a listener invoked once per Add, in registration
// order. The returned function removes the listener and is safe to call
// more than once.
func (in *Inbox) Subscribe(fn func(Notification)) func() {
	in.mu.Lock()
	token := in.nextToken
	in.nextToken++
	in.listeners = append(in.listeners, listener{token: token, fn: fn})
	in.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			in.mu.Lock()
			defer in.mu.Unlock()
			for i := range in.listeners {
				if in.listeners[i].token == token {
					in.listeners = append(in.listeners[:i], in.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (in *Inbox) persistLocked() {
	raw, err := json.Marshal(in.items)
	if err != nil {
		in.logger.Error("marshal notification state", zap.Error(err))
		return
	}
	if err := in.store.SetState(StateKey, string(raw)); err != nil {
		in.logger.Warn("persist notification state", zap.Error(err))
	}
}
