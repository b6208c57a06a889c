// Package memstore is an in-memory docstore.Store used by tests and by
// offline runs. Change notifications are fanned out per collection the same
// way the Mongo change stream implementation does, so the realtime layer
// behaves identically against either backend.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/avtopazar/avtochat/internal/docstore"
)

// Store is an in-memory document store. The zero value is not usable; call
// New.
type Store struct {
	mu       sync.RWMutex
	colls    map[string]map[string]map[string]any
	watchers map[string]map[int]chan struct{}
	nextID   int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		colls:    make(map[string]map[string]map[string]any),
		watchers: make(map[string]map[int]chan struct{}),
	}
}

// Put stores doc under id, overwriting any previous document.
func (s *Store) Put(_ context.Context, collection, id string, doc map[string]any) error {
	s.mu.Lock()
	coll, ok := s.colls[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		s.colls[collection] = coll
	}
	coll[id] = cloneDoc(doc)
	s.mu.Unlock()
	s.notify(collection)
	return nil
}

// Get returns the document stored under id, or docstore.ErrNotFound.
func (s *Store) Get(_ context.Context, collection, id string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.colls[collection][id]
	if !ok {
		return nil, docstore.ErrNotFound
	}
	return cloneDoc(doc), nil
}

// Find evaluates q against the collection.
func (s *Store) Find(_ context.Context, collection string, q docstore.Query) ([]map[string]any, error) {
	s.mu.RLock()
	var out []map[string]any
	for _, doc := range s.colls[collection] {
		if matches(doc, q.Filters) {
			out = append(out, cloneDoc(doc))
		}
	}
	s.mu.RUnlock()

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := fieldLess(out[i][q.OrderBy], out[j][q.OrderBy])
			if q.Descending {
				return !less && !fieldEqual(out[i][q.OrderBy], out[j][q.OrderBy])
			}
			return less
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// Update applies a partial set and integer increments to an existing
// document.
func (s *Store) Update(_ context.Context, collection, id string, set map[string]any, inc map[string]int64) error {
	s.mu.Lock()
	doc, ok := s.colls[collection][id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	for k, v := range set {
		setPath(doc, k, v)
	}
	for k, delta := range inc {
		parent, leaf := resolvePath(doc, k)
		cur, _ := asInt64(parent[leaf])
		parent[leaf] = cur + delta
	}
	s.mu.Unlock()
	s.notify(collection)
	return nil
}

// Watch returns a coalesced change-signal channel for a collection.
func (s *Store) Watch(_ context.Context, collection string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[int]chan struct{})
	}
	s.watchers[collection][id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.watchers[collection], id)
		s.mu.Unlock()
	}
	return ch, cancel, nil
}

func (s *Store) notify(collection string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending; receiving it covers this change.
		}
	}
}

// setPath writes a value at a dotted field path ("unreadCount.u2"),
// creating intermediate maps as needed, matching Mongo's update semantics.
func setPath(doc map[string]any, path string, v any) {
	parent, leaf := resolvePath(doc, path)
	parent[leaf] = v
}

func resolvePath(doc map[string]any, path string) (map[string]any, string) {
	parts := strings.Split(path, ".")
	cur := doc
	for _, p := range parts[:len(parts)-1] {
		next, ok := cur[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			cur[p] = next
		}
		cur = next
	}
	return cur, parts[len(parts)-1]
}

func matches(doc map[string]any, filters []docstore.Filter) bool {
	for _, f := range filters {
		if f.Op != docstore.OpEq {
			return false
		}
		val := doc[f.Field]
		if arr, ok := asStringSlice(val); ok {
			if !containsString(arr, fmt.Sprint(f.Value)) {
				return false
			}
			continue
		}
		if !fieldEqual(val, f.Value) {
			return false
		}
	}
	return true
}

func containsString(arr []string, want string) bool {
	for _, v := range arr {
		if v == want {
			return true
		}
	}
	return false
}

func fieldEqual(a, b any) bool {
	if ai, ok := asInt64(a); ok {
		if bi, ok := asInt64(b); ok {
			return ai == bi
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func fieldLess(a, b any) bool {
	if ai, ok := asInt64(a); ok {
		if bi, ok := asInt64(b); ok {
			return ai < bi
		}
	}
	return fmt.Sprint(a) < fmt.Sprint(b)
}

func asInt64(v any) (int64, bool) {
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

func asStringSlice(v any) ([]string, bool) {
	switch arr := v.(type) {
	case []string:
		return arr, true
	case []any:
		out := make([]string, 0, len(arr))
		for _, e := range arr {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func cloneDoc(doc map[string]any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		if arr, ok := v.([]string); ok {
			v = append([]string(nil), arr...)
		}
		if m, ok := v.(map[string]any); ok {
			v = cloneDoc(m)
		}
		out[k] = v
	}
	return out
}
