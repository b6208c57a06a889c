package cache

import (
	"database/sql"
	"time"
)

// UpsertChatRoom inserts or updates a chat room record.
func (db *DB) UpsertChatRoom(c *ChatRoom) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO chat_rooms (room_id, peer_id, peer_name, unread_count, last_message_at, last_message_preview, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id) DO UPDATE SET
			peer_id = excluded.peer_id,
			peer_name = CASE WHEN excluded.peer_name != '' THEN excluded.peer_name ELSE chat_rooms.peer_name END,
			unread_count = excluded.unread_count,
			last_message_at = excluded.last_message_at,
			last_message_preview = excluded.last_message_preview,
			updated_at = excluded.updated_at`,
		c.RoomID, c.PeerID, c.PeerName, c.UnreadCount, c.LastMessageAt, c.LastMessagePreview, now)
	return err
}

// ListChatRooms returns rooms sorted by last message timestamp descending.
func (db *DB) ListChatRooms(limit, offset int) ([]ChatRoom, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT room_id,
			peer_id,
			COALESCE(NULLIF(peer_name,''), peer_id) AS display_name,
			unread_count, last_message_at, last_message_preview
		FROM chat_rooms
		ORDER BY last_message_at DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var rooms []ChatRoom
	for rows.Next() {
		var c ChatRoom
		if err := rows.Scan(&c.RoomID, &c.PeerID, &c.PeerName, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview); err != nil {
			return nil, err
		}
		rooms = append(rooms, c)
	}
	return rooms, rows.Err()
}

// GetChatRoom returns a single room by ID, or nil if absent.
func (db *DB) GetChatRoom(roomID string) (*ChatRoom, error) {
	var c ChatRoom
	err := db.QueryRow(`
		SELECT room_id,
			peer_id,
			COALESCE(NULLIF(peer_name,''), peer_id) AS display_name,
			unread_count, last_message_at, last_message_preview
		FROM chat_rooms
		WHERE room_id = ?`, roomID).
		Scan(&c.RoomID, &c.PeerID, &c.PeerName, &c.UnreadCount, &c.LastMessageAt, &c.LastMessagePreview)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}
