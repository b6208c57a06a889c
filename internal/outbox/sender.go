package outbox

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/bus"
	"github.com/avtopazar/avtochat/internal/cache"
	"github.com/avtopazar/avtochat/internal/chat"
)

// Bus event kinds published by the sender.
const (
	EventUpserted   = "message.upserted"
	EventSendAck    = "message.send_ack"
	EventSendFailed = "message.send_failed"
)

// MessageSender is the interface for delivering a drafted message to the
// remote store. *chat.Service satisfies it.
type MessageSender interface {
	SendMessage(ctx context.Context, d chat.Draft) (serverMsgID string, err error)
}

// Sender drains the outbox and delivers messages to the remote store.
// A failed entry stays failed; it is never retried without an explicit
// requeue by the user.
type Sender struct {
	db       *cache.DB
	sender   MessageSender
	bus      *bus.Bus
	selfID   string
	selfName string
	logger   *zap.Logger
	cancel   context.CancelFunc
}

// NewSender creates a new outbox sender.
func NewSender(db *cache.DB, sender MessageSender, b *bus.Bus, selfID, selfName string, logger *zap.Logger) *Sender {
	return &Sender{
		db:       db,
		sender:   sender,
		bus:      b,
		selfID:   selfID,
		selfName: selfName,
		logger:   logger,
	}
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending(ctx context.Context) {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}

		roomID := chat.RoomID(s.selfID, entry.ReceiverID)

		// Optimistic insert: show the message in the UI immediately.
		now := time.Now().UnixMilli()
		_ = s.db.UpsertMessage(&cache.Message{
			RoomID:      roomID,
			MsgID:       entry.ClientMsgID,
			SenderID:    s.selfID,
			SenderName:  s.selfName,
			ReceiverID:  entry.ReceiverID,
			Body:        entry.Body,
			MessageType: entry.MessageType,
			FromMe:      true,
			Status:      "sending",
			Timestamp:   now,
		})
		s.bus.Publish(bus.Event{
			Kind:    EventUpserted,
			At:      time.Now(),
			Payload: map[string]string{"room_id": roomID, "msg_id": entry.ClientMsgID},
		})

		serverMsgID, err := s.sender.SendMessage(ctx, chat.Draft{
			SenderID:   s.selfID,
			SenderName: s.selfName,
			ReceiverID: entry.ReceiverID,
			Content:    entry.Body,
			Type:       chat.MessageType(entry.MessageType),
		})
		if err != nil {
			s.logger.Error("failed to send message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			_ = s.db.MarkOutboxFailed(entry.ClientMsgID, err.Error())
			_ = s.db.UpsertMessage(&cache.Message{
				RoomID: roomID, MsgID: entry.ClientMsgID,
				SenderID: s.selfID, SenderName: s.selfName, ReceiverID: entry.ReceiverID,
				Body: entry.Body, MessageType: entry.MessageType, FromMe: true,
				Status: "failed", Timestamp: now,
			})
			s.bus.Publish(bus.Event{
				Kind: EventSendFailed,
				At:   time.Now(),
				Payload: map[string]string{
					"client_msg_id": entry.ClientMsgID,
					"error":         err.Error(),
				},
			})
			continue
		}

		if err := s.db.MarkOutboxSent(entry.ClientMsgID, serverMsgID); err != nil {
			s.logger.Error("failed to mark sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}

		_ = s.db.UpsertMessage(&cache.Message{
			RoomID: roomID, MsgID: entry.ClientMsgID,
			SenderID: s.selfID, SenderName: s.selfName, ReceiverID: entry.ReceiverID,
			Body: entry.Body, MessageType: entry.MessageType, FromMe: true,
			Status: "sent", Timestamp: now,
		})

		s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("server_msg_id", serverMsgID))
		s.bus.Publish(bus.Event{
			Kind: EventSendAck,
			At:   time.Now(),
			Payload: map[string]string{
				"client_msg_id": entry.ClientMsgID,
				"server_msg_id": serverMsgID,
			},
		})
	}
}
