package chat

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/docstore"
)

// MaxContentLen is the maximum message content length in runes. Longer
// drafts are rejected client-side before any store write.
const MaxContentLen = 2000

const defaultFetchLimit = 50

// Service is the message store adapter plus the chat room aggregate
// maintainer. One Service is constructed per signed-in user and passed to
// consumers explicitly.
type Service struct {
	store       docstore.Store
	actorID     string
	actorName   string
	typingStale time.Duration
	logger      *zap.Logger
}

// NewService creates a chat service acting on behalf of actorID. An empty
// actorID disables permission checks (used by admin tooling and tests).
func NewService(store docstore.Store, actorID, actorName string, typingStale time.Duration, logger *zap.Logger) *Service {
	if typingStale <= 0 {
		typingStale = 8 * time.Second
	}
	return &Service{
		store:       store,
		actorID:     actorID,
		actorName:   actorName,
		typingStale: typingStale,
		logger:      logger,
	}
}

// SendMessage validates and writes a new immutable message, then updates
// the room aggregate as a best-effort side effect. It returns the
// generated message id.
//
// A failed send must be surfaced to the user, never retried automatically:
// the write is not idempotent and a blind retry would duplicate the
// message.
func (s *Service) SendMessage(ctx context.Context, d Draft) (string, error) {
	content := strings.TrimSpace(d.Content)
	if content == "" {
		return "", &ValidationError{Reason: "empty content"}
	}
	if utf8.RuneCountInString(content) > MaxContentLen {
		return "", &ValidationError{Reason: "content exceeds 2000 characters"}
	}
	if d.SenderID == "" || d.ReceiverID == "" {
		return "", &ValidationError{Reason: "sender and receiver are required"}
	}
	if s.actorID != "" && d.SenderID != s.actorID {
		return "", ErrPermission
	}

	now := time.Now()
	msg := Message{
		ID:           uuid.New().String(),
		RoomID:       RoomID(d.SenderID, d.ReceiverID),
		SenderID:     d.SenderID,
		SenderName:   d.SenderName,
		ReceiverID:   d.ReceiverID,
		ReceiverName: d.ReceiverName,
		CarID:        d.CarID,
		CarTitle:     d.CarTitle,
		Content:      content,
		Type:         d.Type,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if msg.Type == "" {
		msg.Type = TypeText
	}

	if err := s.store.Put(ctx, CollMessages, msg.ID, encodeMessage(msg)); err != nil {
		return "", transient("send message", err)
	}

	// The message is durably written; the room summary is a derived cache
	// and must not fail the send.
	if err := s.updateRoomOnSend(ctx, msg); err != nil {
		s.logger.Warn("chat room aggregate update failed",
			zap.String("room_id", msg.RoomID), zap.Error(err))
	}

	return msg.ID, nil
}

// GetMessages returns the most recent limit messages between the pair,
// ordered chronologically ascending for display.
func (s *Service) GetMessages(ctx context.Context, userA, userB string, limit int) ([]Message, error) {
	if s.actorID != "" && s.actorID != userA && s.actorID != userB {
		return nil, ErrPermission
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	docs, err := s.store.Find(ctx, CollMessages, docstore.Query{
		Filters:    []docstore.Filter{{Field: "roomId", Op: docstore.OpEq, Value: RoomID(userA, userB)}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, transient("fetch messages", err)
	}

	// The store returns newest first; reverse into ascending creation order.
	msgs := make([]Message, len(docs))
	for i, doc := range docs {
		msgs[len(docs)-1-i] = decodeMessage(doc)
	}
	return msgs, nil
}

// MessagesTo returns the most recent messages addressed to userID across
// all rooms, ascending. It backs the per-user messages subscription.
func (s *Service) MessagesTo(ctx context.Context, userID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 100
	}
	docs, err := s.store.Find(ctx, CollMessages, docstore.Query{
		Filters:    []docstore.Filter{{Field: "receiverId", Op: docstore.OpEq, Value: userID}},
		OrderBy:    "createdAt",
		Descending: true,
		Limit:      limit,
	})
	if err != nil {
		return nil, transient("fetch inbound messages", err)
	}
	msgs := make([]Message, len(docs))
	for i, doc := range docs {
		msgs[len(docs)-1-i] = decodeMessage(doc)
	}
	return msgs, nil
}

// MarkMessagesAsRead flips isRead on every unread message from senderID to
// receiverID, then corrects the room's unread counter. Idempotent and safe
// to retry: a partially applied batch leaves already-flipped messages
// flipped.
func (s *Service) MarkMessagesAsRead(ctx context.Context, senderID, receiverID string) error {
	if s.actorID != "" && s.actorID != receiverID {
		return ErrPermission
	}

	unread, err := s.unreadDocs(ctx, senderID, receiverID)
	if err != nil {
		return transient("list unread messages", err)
	}

	now := time.Now().UnixMilli()
	for _, doc := range unread {
		id := docString(doc, "id")
		err := s.store.Update(ctx, CollMessages, id,
			map[string]any{"isRead": true, "updatedAt": now}, nil)
		if err != nil && !errors.Is(err, docstore.ErrNotFound) {
			return transient("mark message read", err)
		}
	}

	// Recount rather than blindly decrement: the true unread number is
	// obtainable from the message collection, so the badge can't drift.
	s.correctUnreadCount(ctx, senderID, receiverID)
	return nil
}

// GetUserChatRooms returns the rooms userID participates in, most recently
// updated first.
func (s *Service) GetUserChatRooms(ctx context.Context, userID string) ([]ChatRoom, error) {
	if s.actorID != "" && s.actorID != userID {
		return nil, ErrPermission
	}
	docs, err := s.store.Find(ctx, CollChatRooms, docstore.Query{
		Filters:    []docstore.Filter{{Field: "participants", Op: docstore.OpEq, Value: userID}},
		OrderBy:    "updatedAt",
		Descending: true,
	})
	if err != nil {
		return nil, transient("fetch chat rooms", err)
	}
	rooms := make([]ChatRoom, len(docs))
	for i, doc := range docs {
		rooms[i] = decodeRoom(doc)
	}
	return rooms, nil
}

// GetChatRoom returns a single room aggregate.
func (s *Service) GetChatRoom(ctx context.Context, roomID string) (ChatRoom, error) {
	doc, err := s.store.Get(ctx, CollChatRooms, roomID)
	if errors.Is(err, docstore.ErrNotFound) {
		return ChatRoom{}, ErrNotFound
	}
	if err != nil {
		return ChatRoom{}, transient("get chat room", err)
	}
	room := decodeRoom(doc)
	if s.actorID != "" && !containsUser(room.Participants, s.actorID) {
		return ChatRoom{}, ErrPermission
	}
	return room, nil
}

// updateRoomOnSend keeps exactly one ChatRoom document per unordered pair
// in sync with the latest message. Creation is lazy on first contact; the
// unread increment is pushed down to the store as an atomic operation.
//
// The existence check and create are not atomic across two clients: if
// both participants send their first message at the same moment, one
// create can overwrite the other's counter. Accepted: the counter is a
// best-effort badge, not an audit-grade count.
func (s *Service) updateRoomOnSend(ctx context.Context, msg Message) error {
	_, err := s.store.Get(ctx, CollChatRooms, msg.RoomID)
	if errors.Is(err, docstore.ErrNotFound) {
		room := ChatRoom{
			ID:           msg.RoomID,
			Participants: []string{msg.SenderID, msg.ReceiverID},
			ParticipantNames: map[string]string{
				msg.SenderID:   msg.SenderName,
				msg.ReceiverID: msg.ReceiverName,
			},
			LastMessage: msg,
			UnreadCount: map[string]int{msg.ReceiverID: 1, msg.SenderID: 0},
			CarID:       msg.CarID,
			CarTitle:    msg.CarTitle,
			CreatedAt:   msg.CreatedAt,
			UpdatedAt:   msg.CreatedAt,
		}
		return s.store.Put(ctx, CollChatRooms, room.ID, encodeRoom(room))
	}
	if err != nil {
		return err
	}

	set := map[string]any{
		"lastMessage": encodeMessage(msg),
		"updatedAt":   msg.CreatedAt.UnixMilli(),
		"participantNames." + msg.SenderID: msg.SenderName,
	}
	if msg.CarID != "" {
		set["carId"] = msg.CarID
		set["carTitle"] = msg.CarTitle
	}
	return s.store.Update(ctx, CollChatRooms, msg.RoomID, set,
		map[string]int64{"unreadCount." + msg.ReceiverID: 1})
}

// correctUnreadCount resets the receiver's counter to the number of
// messages still unread in the store. Aggregate correction is best-effort:
// failures are logged, not raised, because the message flips themselves
// already succeeded.
func (s *Service) correctUnreadCount(ctx context.Context, senderID, receiverID string) {
	remaining, err := s.unreadDocs(ctx, senderID, receiverID)
	if err != nil {
		s.logger.Warn("unread recount failed",
			zap.String("sender_id", senderID), zap.Error(err))
		return
	}
	roomID := RoomID(senderID, receiverID)
	err = s.store.Update(ctx, CollChatRooms, roomID, map[string]any{
		"unreadCount." + receiverID: int64(len(remaining)),
		"updatedAt":                 time.Now().UnixMilli(),
	}, nil)
	if err != nil && !errors.Is(err, docstore.ErrNotFound) {
		s.logger.Warn("unread counter update failed",
			zap.String("room_id", roomID), zap.Error(err))
	}
}

func (s *Service) unreadDocs(ctx context.Context, senderID, receiverID string) ([]map[string]any, error) {
	return s.store.Find(ctx, CollMessages, docstore.Query{
		Filters: []docstore.Filter{
			{Field: "senderId", Op: docstore.OpEq, Value: senderID},
			{Field: "receiverId", Op: docstore.OpEq, Value: receiverID},
			{Field: "isRead", Op: docstore.OpEq, Value: false},
		},
	})
}

func containsUser(participants []string, userID string) bool {
	for _, p := range participants {
		if p == userID {
			return true
		}
	}
	return false
}
