package chat

import "time"

// Collection names in the remote document store.
const (
	CollMessages  = "messages"
	CollChatRooms = "chat_rooms"
	CollTyping    = "typing_indicators"
)

// MessageType classifies a chat message.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeOffer    MessageType = "offer"
	TypeQuestion MessageType = "question"
)

// Message is a single chat message between a buyer and a seller. Immutable
// after creation except for IsRead and UpdatedAt.
type Message struct {
	ID           string
	RoomID       string
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	CarID        string
	CarTitle     string
	Content      string
	Type         MessageType
	IsRead       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ChatRoom is the aggregate summary for one unordered pair of users: last
// message plus per-participant unread counters. It is a derived cache of
// the message collection, maintained best-effort on every send.
type ChatRoom struct {
	ID               string
	Participants     []string
	ParticipantNames map[string]string
	LastMessage      Message
	UnreadCount      map[string]int
	CarID            string
	CarTitle         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// TypingIndicator is an ephemeral "user X is typing to user Y" signal.
// Indicators are append-only; only the most recent record per sender is
// authoritative, and records older than the staleness window count as not
// typing.
type TypingIndicator struct {
	UserID     string
	UserName   string
	ReceiverID string
	IsTyping   bool
	At         time.Time
}

// Draft is the caller-provided input to SendMessage.
type Draft struct {
	SenderID     string
	SenderName   string
	ReceiverID   string
	ReceiverName string
	CarID        string
	CarTitle     string
	Content      string
	Type         MessageType
}
