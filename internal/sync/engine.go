// Package sync mirrors the remote chat state for one user into the local
// cache, so the TUI reads from SQLite and survives offline restarts.
package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/bus"
	"github.com/avtopazar/avtochat/internal/cache"
	"github.com/avtopazar/avtochat/internal/chat"
	"github.com/avtopazar/avtochat/internal/realtime"
)

// Bus event kinds published by the engine.
const (
	EventMessageUpserted = "message.upserted"
	EventChatUpdated     = "chat.updated"
	EventTypingChanged   = "typing.changed"
)

// Engine subscribes to the remote snapshot streams for the local user and
// ingests every snapshot into the cache (idempotent upserts).
type Engine struct {
	mgr    *realtime.Manager
	db     *cache.DB
	bus    *bus.Bus
	selfID string
	logger *zap.Logger
}

func NewEngine(mgr *realtime.Manager, db *cache.DB, b *bus.Bus, selfID string, logger *zap.Logger) *Engine {
	return &Engine{
		mgr:    mgr,
		db:     db,
		bus:    b,
		selfID: selfID,
		logger: logger,
	}
}

// Start opens the three snapshot subscriptions for the local user.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.mgr.Listen(ctx, realtime.KindMessages, e.selfID, func(s realtime.Snapshot) {
		if err := e.IngestMessages(s.Messages); err != nil {
			e.logger.Error("ingest messages", zap.Error(err), zap.Int("count", len(s.Messages)))
		}
	}); err != nil {
		return fmt.Errorf("listen messages: %w", err)
	}

	if err := e.mgr.Listen(ctx, realtime.KindChatRooms, e.selfID, func(s realtime.Snapshot) {
		if err := e.IngestRooms(s.Rooms); err != nil {
			e.logger.Error("ingest rooms", zap.Error(err), zap.Int("count", len(s.Rooms)))
		}
	}); err != nil {
		return fmt.Errorf("listen chat rooms: %w", err)
	}

	if err := e.mgr.Listen(ctx, realtime.KindTyping, e.selfID, func(s realtime.Snapshot) {
		e.bus.Publish(bus.Event{
			Kind:    EventTypingChanged,
			At:      time.Now(),
			Payload: s.Typing,
		})
	}); err != nil {
		return fmt.Errorf("listen typing: %w", err)
	}
	return nil
}

// Stop tears down the engine's subscriptions.
func (e *Engine) Stop() {
	e.mgr.Stop(realtime.KindMessages, e.selfID)
	e.mgr.Stop(realtime.KindChatRooms, e.selfID)
	e.mgr.Stop(realtime.KindTyping, e.selfID)
}

// IngestMessages upserts a message snapshot into the cache. Snapshots are
// full result sets, so re-delivery of already-cached messages is the
// normal case; the upsert keyed on (room_id, msg_id) keeps it idempotent.
func (e *Engine) IngestMessages(msgs []chat.Message) error {
	rooms := map[string]bool{}
	for i := range msgs {
		m := &msgs[i]
		if err := e.db.UpsertMessage(&cache.Message{
			RoomID:      m.RoomID,
			MsgID:       m.ID,
			SenderID:    m.SenderID,
			SenderName:  m.SenderName,
			ReceiverID:  m.ReceiverID,
			Body:        m.Content,
			MessageType: string(m.Type),
			FromMe:      m.SenderID == e.selfID,
			IsRead:      m.IsRead,
			Status:      "synced",
			Timestamp:   m.CreatedAt.UnixMilli(),
		}); err != nil {
			return fmt.Errorf("upsert message %s: %w", m.ID, err)
		}
		rooms[m.RoomID] = true
	}

	for roomID := range rooms {
		e.bus.Publish(bus.Event{
			Kind:    EventMessageUpserted,
			At:      time.Now(),
			Payload: map[string]string{"room_id": roomID},
		})
	}
	return nil
}

// IngestRooms upserts a chat room snapshot into the cache, flattening the
// per-participant aggregate to this user's point of view.
func (e *Engine) IngestRooms(rooms []chat.ChatRoom) error {
	for i := range rooms {
		r := &rooms[i]
		peerID := peerOf(r.Participants, e.selfID)
		if err := e.db.UpsertChatRoom(&cache.ChatRoom{
			RoomID:             r.ID,
			PeerID:             peerID,
			PeerName:           r.ParticipantNames[peerID],
			UnreadCount:        r.UnreadCount[e.selfID],
			LastMessageAt:      r.LastMessage.CreatedAt.UnixMilli(),
			LastMessagePreview: truncate(r.LastMessage.Content, 100),
		}); err != nil {
			return fmt.Errorf("upsert room %s: %w", r.ID, err)
		}
		e.bus.Publish(bus.Event{
			Kind:    EventChatUpdated,
			At:      time.Now(),
			Payload: map[string]string{"room_id": r.ID},
		})
	}
	return nil
}

func peerOf(participants []string, selfID string) string {
	for _, p := range participants {
		if p != selfID {
			return p
		}
	}
	return selfID
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
