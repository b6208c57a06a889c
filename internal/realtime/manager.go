// Package realtime manages the registry of long-lived snapshot
// subscriptions against the remote store: one per (kind, user) key, with
// an explicit lifecycle so listeners are never leaked.
package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/chat"
	"github.com/avtopazar/avtochat/internal/docstore"
)

// Kind selects which query a subscription watches.
type Kind string

const (
	KindMessages  Kind = "messages"
	KindChatRooms Kind = "chatrooms"
	KindTyping    Kind = "typing"
)

// Snapshot carries the full current result set for a subscription — not a
// diff. Exactly one of the payload slices is populated, matching Kind.
type Snapshot struct {
	Kind     Kind
	UserID   string
	Messages []chat.Message
	Rooms    []chat.ChatRoom
	Typing   []chat.TypingIndicator
}

type subKey struct {
	kind   Kind
	userID string
}

type watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager owns all active subscriptions. At most one subscription exists
// per (kind, user) key; re-listening on a live key tears the old
// subscription down first instead of leaking it.
type Manager struct {
	store  docstore.Store
	svc    *chat.Service
	logger *zap.Logger

	mu   sync.Mutex
	subs map[subKey]*watcher
}

// NewManager creates an empty subscription registry.
func NewManager(store docstore.Store, svc *chat.Service, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		svc:    svc,
		logger: logger,
		subs:   make(map[subKey]*watcher),
	}
}

// Listen subscribes cb to snapshots of the given kind for userID. The
// callback receives the current result set immediately, then again after
// every relevant store change. Calls for a key that is already active
// replace the previous subscription.
//
// Within one subscription, callbacks are invoked sequentially from a
// single goroutine, so a later invocation always reflects a state at
// least as new as an earlier one. No ordering holds across subscriptions.
func (m *Manager) Listen(ctx context.Context, kind Kind, userID string, cb func(Snapshot)) error {
	key := subKey{kind: kind, userID: userID}

	changes, cancelWatch, err := m.store.Watch(ctx, collectionFor(kind))
	if err != nil {
		return err
	}

	subCtx, cancel := context.WithCancel(ctx)
	w := &watcher{
		cancel: func() { cancel(); cancelWatch() },
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	if prev, ok := m.subs[key]; ok {
		prev.cancel()
		<-prev.done
	}
	m.subs[key] = w
	m.mu.Unlock()

	go func() {
		defer close(w.done)
		m.deliver(subCtx, kind, userID, cb)
		for {
			select {
			case <-changes:
				m.deliver(subCtx, kind, userID, cb)
			case <-subCtx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop tears down the subscription for (kind, userID). Idempotent: calling
// it twice, or for a key that was never subscribed, is a no-op.
func (m *Manager) Stop(kind Kind, userID string) {
	key := subKey{kind: kind, userID: userID}
	m.mu.Lock()
	w, ok := m.subs[key]
	if ok {
		delete(m.subs, key)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	w.cancel()
	<-w.done
}

// StopAll tears down every active subscription.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ws := make([]*watcher, 0, len(m.subs))
	for key, w := range m.subs {
		ws = append(ws, w)
		delete(m.subs, key)
	}
	m.mu.Unlock()
	for _, w := range ws {
		w.cancel()
		<-w.done
	}
}

// Active reports whether a subscription exists for the key.
func (m *Manager) Active(kind Kind, userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.subs[subKey{kind: kind, userID: userID}]
	return ok
}

func (m *Manager) deliver(ctx context.Context, kind Kind, userID string, cb func(Snapshot)) {
	if ctx.Err() != nil {
		return
	}
	snap := Snapshot{Kind: kind, UserID: userID}
	var err error
	switch kind {
	case KindMessages:
		snap.Messages, err = m.svc.MessagesTo(ctx, userID, 100)
	case KindChatRooms:
		snap.Rooms, err = m.svc.GetUserChatRooms(ctx, userID)
	case KindTyping:
		snap.Typing, err = m.svc.TypingTo(ctx, userID)
	}
	if err != nil {
		if ctx.Err() == nil {
			m.logger.Warn("subscription query failed",
				zap.String("kind", string(kind)), zap.String("user_id", userID), zap.Error(err))
		}
		return
	}
	cb(snap)
}

func collectionFor(kind Kind) string {
	switch kind {
	case KindChatRooms:
		return chat.CollChatRooms
	case KindTyping:
		return chat.CollTyping
	default:
		return chat.CollMessages
	}
}
