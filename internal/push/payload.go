// Package push consumes platform push notifications from a Kafka topic
// and feeds them into the local notification inbox.
package push

import (
	"encoding/json"
	"fmt"

	"github.com/avtopazar/avtochat/internal/inbox"
)

// Payload is the wire format of a push notification as published by the
// marketplace backend.
type Payload struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Type      string            `json:"type"`
	Data      map[string]string `json:"data,omitempty"`
	Timestamp int64             `json:"timestamp,omitempty"`
}

// Decode parses a push payload and converts it to an inbox notification.
func Decode(raw []byte) (inbox.Notification, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return inbox.Notification{}, fmt.Errorf("decode push payload: %w", err)
	}
	if p.Title == "" && p.Body == "" {
		return inbox.Notification{}, fmt.Errorf("decode push payload: empty title and body")
	}
	return inbox.Notification{
		Title:     p.Title,
		Body:      p.Body,
		Data:      p.Data,
		Type:      notificationType(p.Type),
		Timestamp: p.Timestamp,
	}, nil
}

func notificationType(s string) inbox.Type {
	switch inbox.Type(s) {
	case inbox.TypeMessage, inbox.TypeCarUpdate, inbox.TypeSystem, inbox.TypePromotion:
		return inbox.Type(s)
	default:
		return inbox.TypeSystem
	}
}
