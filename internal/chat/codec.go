package chat

import "time"

// Document field names follow the remote store's existing schema
// (camelCase, timestamps as unix milliseconds).

func encodeMessage(m Message) map[string]any {
	return map[string]any{
		"id":           m.ID,
		"roomId":       m.RoomID,
		"senderId":     m.SenderID,
		"senderName":   m.SenderName,
		"receiverId":   m.ReceiverID,
		"receiverName": m.ReceiverName,
		"carId":        m.CarID,
		"carTitle":     m.CarTitle,
		"content":      m.Content,
		"messageType":  string(m.Type),
		"isRead":       m.IsRead,
		"createdAt":    m.CreatedAt.UnixMilli(),
		"updatedAt":    m.UpdatedAt.UnixMilli(),
	}
}

func decodeMessage(doc map[string]any) Message {
	return Message{
		ID:           docString(doc, "id"),
		RoomID:       docString(doc, "roomId"),
		SenderID:     docString(doc, "senderId"),
		SenderName:   docString(doc, "senderName"),
		ReceiverID:   docString(doc, "receiverId"),
		ReceiverName: docString(doc, "receiverName"),
		CarID:        docString(doc, "carId"),
		CarTitle:     docString(doc, "carTitle"),
		Content:      docString(doc, "content"),
		Type:         MessageType(docString(doc, "messageType")),
		IsRead:       docBool(doc, "isRead"),
		CreatedAt:    docTime(doc, "createdAt"),
		UpdatedAt:    docTime(doc, "updatedAt"),
	}
}

func encodeRoom(r ChatRoom) map[string]any {
	names := make(map[string]any, len(r.ParticipantNames))
	for k, v := range r.ParticipantNames {
		names[k] = v
	}
	unread := make(map[string]any, len(r.UnreadCount))
	for k, v := range r.UnreadCount {
		unread[k] = int64(v)
	}
	return map[string]any{
		"id":               r.ID,
		"participants":     append([]string(nil), r.Participants...),
		"participantNames": names,
		"lastMessage":      encodeMessage(r.LastMessage),
		"unreadCount":      unread,
		"carId":            r.CarID,
		"carTitle":         r.CarTitle,
		"createdAt":        r.CreatedAt.UnixMilli(),
		"updatedAt":        r.UpdatedAt.UnixMilli(),
	}
}

func decodeRoom(doc map[string]any) ChatRoom {
	r := ChatRoom{
		ID:               docString(doc, "id"),
		Participants:     docStrings(doc, "participants"),
		ParticipantNames: map[string]string{},
		UnreadCount:      map[string]int{},
		CarID:            docString(doc, "carId"),
		CarTitle:         docString(doc, "carTitle"),
		CreatedAt:        docTime(doc, "createdAt"),
		UpdatedAt:        docTime(doc, "updatedAt"),
	}
	if sub, ok := docMap(doc, "lastMessage"); ok {
		r.LastMessage = decodeMessage(sub)
	}
	if sub, ok := docMap(doc, "participantNames"); ok {
		for k, v := range sub {
			if s, ok := v.(string); ok {
				r.ParticipantNames[k] = s
			}
		}
	}
	if sub, ok := docMap(doc, "unreadCount"); ok {
		for k, v := range sub {
			if n, ok := docInt64Value(v); ok {
				r.UnreadCount[k] = int(n)
			}
		}
	}
	return r
}

func encodeTyping(t TypingIndicator, id string) map[string]any {
	return map[string]any{
		"id":         id,
		"userId":     t.UserID,
		"userName":   t.UserName,
		"receiverId": t.ReceiverID,
		"isTyping":   t.IsTyping,
		"at":         t.At.UnixMilli(),
	}
}

func decodeTyping(doc map[string]any) TypingIndicator {
	return TypingIndicator{
		UserID:     docString(doc, "userId"),
		UserName:   docString(doc, "userName"),
		ReceiverID: docString(doc, "receiverId"),
		IsTyping:   docBool(doc, "isTyping"),
		At:         docTime(doc, "at"),
	}
}

func docString(doc map[string]any, key string) string {
	s, _ := doc[key].(string)
	return s
}

func docBool(doc map[string]any, key string) bool {
	b, _ := doc[key].(bool)
	return b
}

// docInt64Value tolerates the numeric types different store drivers decode
// into (BSON yields int32/int64, JSON yields float64).
func docInt64Value(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

func docTime(doc map[string]any, key string) time.Time {
	if ms, ok := docInt64Value(doc[key]); ok && ms > 0 {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}

func docStrings(doc map[string]any, key string) []string {
	switch arr := doc[key].(type) {
	case []string:
		return append([]string(nil), arr...)
	case []any:
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func docMap(doc map[string]any, key string) (map[string]any, bool) {
	m, ok := doc[key].(map[string]any)
	return m, ok
}
