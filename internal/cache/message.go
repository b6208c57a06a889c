package cache

import "time"

// UpsertMessage inserts or updates a message (idempotent on room_id + msg_id).
func (db *DB) UpsertMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO messages (room_id, msg_id, sender_id, sender_name, receiver_id, body, message_type, from_me, is_read, status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(room_id, msg_id) DO UPDATE SET
			sender_name = excluded.sender_name,
			body = excluded.body,
			is_read = excluded.is_read,
			status = excluded.status`,
		m.RoomID, m.MsgID, m.SenderID, m.SenderName, m.ReceiverID, m.Body, m.MessageType, m.FromMe, m.IsRead, m.Status, m.Timestamp, now)
	return err
}

// ListMessages returns messages for a room using keyset pagination by timestamp.
func (db *DB) ListMessages(roomID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(`
		SELECT id, room_id, msg_id, sender_id, sender_name, receiver_id, body, message_type, from_me, is_read, status, timestamp
		FROM messages
		WHERE room_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, roomID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.RoomID, &m.MsgID, &m.SenderID, &m.SenderName, &m.ReceiverID, &m.Body, &m.MessageType, &m.FromMe, &m.IsRead, &m.Status, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
