package chat

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a message or room id does not exist.
var ErrNotFound = errors.New("chat: not found")

// ErrPermission is returned when the acting user is neither sender nor
// receiver of the message or room being touched.
var ErrPermission = errors.New("chat: permission denied")

// ValidationError rejects a draft before any store I/O happens.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "chat: invalid message: " + e.Reason
}

// TransientError wraps a store failure. Reads and idempotent writes (such
// as marking messages read) are safe to retry; sends are not, because a
// retry would duplicate the message.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("chat: %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}
