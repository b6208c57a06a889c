// Package mongostore implements docstore.Store on MongoDB. Change
// notifications come from collection change streams, which requires the
// server to run as a replica set (a single-node replica set is enough).
package mongostore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/avtopazar/avtochat/internal/docstore"
)

// Store is a MongoDB-backed document store.
type Store struct {
	db     *mongo.Database
	logger *zap.Logger
}

// Connect dials MongoDB and returns a Store bound to the given database.
func Connect(ctx context.Context, uri, database string, logger *zap.Logger) (*Store, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(dialCtx, options.Client().ApplyURI(uri).SetRetryWrites(true))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(dialCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return &Store{db: client.Database(database), logger: logger}, nil
}

// Close disconnects the underlying client.
func (s *Store) Close(ctx context.Context) error {
	return s.db.Client().Disconnect(ctx)
}

// Put overwrites the document with the given id.
func (s *Store) Put(ctx context.Context, collection, id string, doc map[string]any) error {
	d := bson.M(doc)
	d["_id"] = id
	opts := options.Replace().SetUpsert(true)
	_, err := s.db.Collection(collection).ReplaceOne(ctx, bson.M{"_id": id}, d, opts)
	return err
}

// Get returns the document with the given id.
func (s *Store) Get(ctx context.Context, collection, id string) (map[string]any, error) {
	var doc bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, docstore.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	delete(doc, "_id")
	return normalizeDoc(doc), nil
}

// Find evaluates q against the collection.
func (s *Store) Find(ctx context.Context, collection string, q docstore.Query) ([]map[string]any, error) {
	filter := bson.M{}
	for _, f := range q.Filters {
		// Mongo equality on an array field already means "contains".
		filter[f.Field] = f.Value
	}
	opts := options.Find()
	if q.OrderBy != "" {
		dir := 1
		if q.Descending {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: q.OrderBy, Value: dir}})
	}
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	cur, err := s.db.Collection(collection).Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = cur.Close(ctx) }()

	var out []map[string]any
	for cur.Next(ctx) {
		var doc bson.M
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		delete(doc, "_id")
		out = append(out, normalizeDoc(doc))
	}
	return out, cur.Err()
}

// normalizeDoc rewrites the driver's named BSON container types
// (primitive.M, primitive.A) into plain maps and slices so callers can use
// ordinary type assertions.
func normalizeDoc(doc bson.M) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case bson.M:
		return normalizeDoc(t)
	case bson.D:
		m := make(map[string]any, len(t))
		for _, e := range t {
			m[e.Key] = normalizeValue(e.Value)
		}
		return m
	case bson.A:
		arr := make([]any, len(t))
		for i, e := range t {
			arr[i] = normalizeValue(e)
		}
		return arr
	default:
		return v
	}
}

// Update applies a partial set and atomic integer increments.
func (s *Store) Update(ctx context.Context, collection, id string, set map[string]any, inc map[string]int64) error {
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = bson.M(set)
	}
	if len(inc) > 0 {
		incDoc := bson.M{}
		for k, v := range inc {
			incDoc[k] = v
		}
		update["$inc"] = incDoc
	}
	if len(update) == 0 {
		return nil
	}
	res, err := s.db.Collection(collection).UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return docstore.ErrNotFound
	}
	return nil
}

// Watch opens a change stream on the collection and coalesces its events
// into a signal channel.
func (s *Store) Watch(ctx context.Context, collection string) (<-chan struct{}, func(), error) {
	stream, err := s.db.Collection(collection).Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan struct{}, 1)
	watchCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer func() { _ = stream.Close(context.Background()) }()
		for stream.Next(watchCtx) {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			s.logger.Warn("change stream ended",
				zap.String("collection", collection), zap.Error(err))
		}
	}()

	return ch, cancel, nil
}

var _ docstore.Store = (*Store)(nil)
