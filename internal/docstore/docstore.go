// Package docstore defines the narrow boundary to the remote document
// store. The chat and realtime layers are written against this interface
// only; the mongostore and memstore subpackages implement it.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document id does not exist.
var ErrNotFound = errors.New("docstore: not found")

// Op is a filter operator.
type Op string

const (
	// OpEq matches documents whose field equals the value. Applied to an
	// array field it matches documents whose array contains the value.
	OpEq Op = "=="
)

// Filter restricts a query to documents matching a single field condition.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query describes a filtered, ordered, bounded read.
type Query struct {
	Filters    []Filter
	OrderBy    string
	Descending bool
	Limit      int
}

// Store is the remote document store. Documents are flat-ish JSON-style
// maps; timestamps are stored as unix milliseconds (int64).
//
// Implementations must make Put a full overwrite keyed by id, Update a
// partial set with optional atomic integer increments, and Watch a
// coalesced change signal for a collection (each receive means "something
// in this collection changed; re-query if you care").
type Store interface {
	Put(ctx context.Context, collection, id string, doc map[string]any) error
	Get(ctx context.Context, collection, id string) (map[string]any, error)
	Find(ctx context.Context, collection string, q Query) ([]map[string]any, error)
	Update(ctx context.Context, collection, id string, set map[string]any, inc map[string]int64) error
	Watch(ctx context.Context, collection string) (<-chan struct{}, func(), error)
}
