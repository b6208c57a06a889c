package cache

// ChatRoom represents a synced conversation.
type ChatRoom struct {
	RoomID             string
	PeerID             string
	PeerName           string
	UnreadCount        int
	LastMessageAt      int64
	LastMessagePreview string
}

// Message represents a synced message.
type Message struct {
	ID          int64
	RoomID      string
	MsgID       string
	SenderID    string
	SenderName  string
	ReceiverID  string
	Body        string
	MessageType string
	FromMe      bool
	IsRead      bool
	Status      string
	Timestamp   int64
}

// OutboxEntry represents a pending outgoing message.
type OutboxEntry struct {
	ID           int64
	ClientMsgID  string
	ReceiverID   string
	Body         string
	MessageType  string
	Status       string // queued, sending, sent, failed
	ErrorMessage string
	ServerMsgID  string
}

// SearchResult holds a message with a search snippet.
type SearchResult struct {
	Message Message
	Snippet string
}
