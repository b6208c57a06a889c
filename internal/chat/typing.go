package chat

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/avtopazar/avtochat/internal/docstore"
)

// typingFetchLimit bounds how many recent indicator records are scanned
// when resolving the latest record per sender.
const typingFetchLimit = 50

// SendTypingIndicator appends a new indicator record targeting peerID.
// Records are never updated in place; readers keep only the most recent
// record per sender. Fire-and-forget at the call sites: the returned error
// is informational.
func (s *Service) SendTypingIndicator(ctx context.Context, selfID, peerID string, isTyping bool) error {
	if s.actorID != "" && selfID != s.actorID {
		return ErrPermission
	}
	ind := TypingIndicator{
		UserID:     selfID,
		UserName:   s.actorName,
		ReceiverID: peerID,
		IsTyping:   isTyping,
		At:         time.Now(),
	}
	id := uuid.New().String()
	if err := s.store.Put(ctx, CollTyping, id, encodeTyping(ind, id)); err != nil {
		return transient("send typing indicator", err)
	}
	return nil
}

// TypingTo returns the authoritative typing state for each peer currently
// typing to userID: the latest record per sender, with records older than
// the staleness window dropped. The staleness cutoff is a deliberate
// addition — the upstream schema never expires indicators, so a peer that
// crashed mid-keystroke would otherwise look busy forever.
func (s *Service) TypingTo(ctx context.Context, userID string) ([]TypingIndicator, error) {
	docs, err := s.store.Find(ctx, CollTyping, docstore.Query{
		Filters:    []docstore.Filter{{Field: "receiverId", Op: docstore.OpEq, Value: userID}},
		OrderBy:    "at",
		Descending: true,
		Limit:      typingFetchLimit,
	})
	if err != nil {
		return nil, transient("fetch typing indicators", err)
	}

	cutoff := time.Now().Add(-s.typingStale)
	seen := make(map[string]bool)
	var out []TypingIndicator
	for _, doc := range docs {
		ind := decodeTyping(doc)
		if seen[ind.UserID] {
			continue
		}
		seen[ind.UserID] = true
		if !ind.IsTyping || ind.At.Before(cutoff) {
			continue
		}
		out = append(out, ind)
	}
	return out, nil
}
