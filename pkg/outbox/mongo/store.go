// Package mongo is the document-store outbox used by the order service.
// Records live in their own collection and Append joins the multi-document
// transaction carried by the session context.
package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iota-uz/order-saga/pkg/outbox"
)

const DefaultCollection = "outbox_event"

type document struct {
	ID           string     `bson:"_id"`
	AggregateID  string     `bson:"aggregate_id"`
	EventType    string     `bson:"event_type"`
	EventData    string     `bson:"event_data"`
	Destination  string     `bson:"destination"`
	CreatedAt    time.Time  `bson:"created_at"`
	Processed    bool       `bson:"processed"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty"`
	RetryCount   int        `bson:"retry_count"`
	ErrorMessage string     `bson:"error_message,omitempty"`
	TraceParent  string     `bson:"trace_parent,omitempty"`
	TraceState   string     `bson:"trace_state,omitempty"`
}

func toDocument(r outbox.Record) document {
	return document{
		ID:           r.ID.String(),
		AggregateID:  r.AggregateID,
		EventType:    r.EventType,
		EventData:    r.EventData,
		Destination:  r.Destination,
		CreatedAt:    r.CreatedAt,
		Processed:    r.Processed,
		ProcessedAt:  r.ProcessedAt,
		RetryCount:   r.RetryCount,
		ErrorMessage: r.ErrorMessage,
		TraceParent:  r.TraceParent,
		TraceState:   r.TraceState,
	}
}

func (d document) record() (outbox.Record, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return outbox.Record{}, err
	}
	return outbox.Record{
		ID:           id,
		AggregateID:  d.AggregateID,
		EventType:    d.EventType,
		EventData:    d.EventData,
		Destination:  d.Destination,
		CreatedAt:    d.CreatedAt,
		Processed:    d.Processed,
		ProcessedAt:  d.ProcessedAt,
		RetryCount:   d.RetryCount,
		ErrorMessage: d.ErrorMessage,
		TraceParent:  d.TraceParent,
		TraceState:   d.TraceState,
	}, nil
}

type Store struct {
	coll *mongodriver.Collection
}

func New(db *mongodriver.Database, collection string) *Store {
	if collection == "" {
		collection = DefaultCollection
	}
	return &Store{coll: db.Collection(collection)}
}

// EnsureIndexes creates the pending-scan and retention indexes.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongodriver.IndexModel{
		{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "retry_count", Value: 1}, {Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "processed_at", Value: 1}}},
	})
	return err
}

func (s *Store) Append(ctx context.Context, rec *outbox.Record) error {
	if mongodriver.SessionFromContext(ctx) == nil {
		return outbox.ErrNoTx
	}
	if _, err := s.coll.InsertOne(ctx, toDocument(*rec)); err != nil {
		return err
	}
	return nil
}

func (s *Store) QueryPending(ctx context.Context, maxRetry, limit int) ([]outbox.Record, error) {
	filter := bson.M{"processed": false, "retry_count": bson.M{"$lt": maxRetry}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return s.find(ctx, filter, opts)
}

func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id.String()},
		bson.M{"$set": bson.M{"processed": true, "processed_at": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return outbox.ErrRecordNotFound
	}
	return nil
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "processed": false},
		bson.M{"$inc": bson.M{"retry_count": 1}, "$set": bson.M{"error_message": errMsg}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		_, err := s.Get(ctx, id)
		return err
	}
	return nil
}

func (s *Store) PurgeDeliveredOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"processed": true, "processed_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (s *Store) Stats(ctx context.Context, maxRetry int, now time.Time) (outbox.Stats, error) {
	stats := outbox.Stats{RetryDistribution: map[int]int64{}}
	var err error

	pendingFilter := bson.M{"processed": false, "retry_count": bson.M{"$lt": maxRetry}}
	if stats.Pending, err = s.coll.CountDocuments(ctx, pendingFilter); err != nil {
		return outbox.Stats{}, err
	}
	if stats.Dead, err = s.coll.CountDocuments(ctx, bson.M{"processed": false, "retry_count": bson.M{"$gte": maxRetry}}); err != nil {
		return outbox.Stats{}, err
	}
	if stats.Delivered, err = s.coll.CountDocuments(ctx, bson.M{"processed": true}); err != nil {
		return outbox.Stats{}, err
	}

	var oldest document
	err = s.coll.FindOne(ctx, pendingFilter, options.FindOne().SetSort(bson.D{{Key: "created_at", Value: 1}})).Decode(&oldest)
	switch {
	case errors.Is(err, mongodriver.ErrNoDocuments):
	case err != nil:
		return outbox.Stats{}, err
	default:
		stats.OldestPendingAge = now.Sub(oldest.CreatedAt)
	}

	cur, err := s.coll.Aggregate(ctx, mongodriver.Pipeline{
		{{Key: "$match", Value: bson.M{"processed": false}}},
		{{Key: "$group", Value: bson.M{"_id": "$retry_count", "n": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return outbox.Stats{}, err
	}
	defer cur.Close(ctx)
	for cur.Next(ctx) {
		var row struct {
			Retries int   `bson:"_id"`
			N       int64 `bson:"n"`
		}
		if err := cur.Decode(&row); err != nil {
			return outbox.Stats{}, err
		}
		stats.RetryDistribution[row.Retries] = row.N
	}
	return stats, cur.Err()
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (outbox.Record, error) {
	var doc document
	err := s.coll.FindOne(ctx, bson.M{"_id": id.String()}).Decode(&doc)
	if errors.Is(err, mongodriver.ErrNoDocuments) {
		return outbox.Record{}, outbox.ErrRecordNotFound
	}
	if err != nil {
		return outbox.Record{}, err
	}
	return doc.record()
}

func (s *Store) ListDead(ctx context.Context, maxRetry, limit int) ([]outbox.Record, error) {
	filter := bson.M{"processed": false, "retry_count": bson.M{"$gte": maxRetry}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(int64(limit))
	return s.find(ctx, filter, opts)
}

func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id.String(), "processed": false},
		bson.M{"$set": bson.M{"retry_count": 0}, "$unset": bson.M{"error_message": ""}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		_, err := s.Get(ctx, id)
		return err
	}
	return nil
}

func (s *Store) find(ctx context.Context, filter any, opts *options.FindOptions) ([]outbox.Record, error) {
	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []outbox.Record
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		rec, err := doc.record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, cur.Err()
}
