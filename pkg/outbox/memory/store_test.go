package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/outbox"
)

func appendRecord(t *testing.T, db *memtx.DB, s *Store, agg string, created time.Time) outbox.Record {
	t.Helper()
	rec := outbox.Record{
		ID:          uuid.New(),
		AggregateID: agg,
		EventType:   "ORDER_CREATED",
		EventData:   `{}`,
		Destination: "product-validation-start",
		CreatedAt:   created,
	}
	require.NoError(t, db.InTx(context.Background(), func(ctx context.Context) error {
		return s.Append(ctx, &rec)
	}))
	return rec
}

func TestStore_AppendRequiresTx(t *testing.T) {
	t.Parallel()

	s := New(memtx.New())
	err := s.Append(context.Background(), &outbox.Record{ID: uuid.New()})
	require.ErrorIs(t, err, outbox.ErrNoTx)
}

func TestStore_AppendRolledBackWithMutation(t *testing.T) {
	t.Parallel()

	db := memtx.New()
	s := New(db)
	err := db.InTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, s.Append(ctx, &outbox.Record{ID: uuid.New(), AggregateID: "o-1"}))
		return errors.New("mutation failed")
	})
	require.Error(t, err)
	require.Empty(t, s.All())
}

func TestStore_QueryPendingOrderAndCap(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := memtx.New()
	s := New(db)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	newer := appendRecord(t, db, s, "o-2", base.Add(time.Second))
	older := appendRecord(t, db, s, "o-1", base)
	dead := appendRecord(t, db, s, "o-3", base.Add(-time.Second))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.MarkFailed(ctx, dead.ID, "broker down"))
	}

	pending, err := s.QueryPending(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, older.ID, pending[0].ID)
	require.Equal(t, newer.ID, pending[1].ID)

	got, err := s.Get(ctx, dead.ID)
	require.NoError(t, err)
	require.Equal(t, 3, got.RetryCount)
	require.Equal(t, "broker down", got.ErrorMessage)

	limited, err := s.QueryPending(ctx, 3, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestStore_MarkDeliveredIdempotent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := memtx.New()
	s := New(db)
	rec := appendRecord(t, db, s, "o-1", time.Now())

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(time.Minute)
	require.NoError(t, s.MarkDelivered(ctx, rec.ID, first))
	require.NoError(t, s.MarkDelivered(ctx, rec.ID, second))
	require.NoError(t, s.MarkFailed(ctx, rec.ID, "late failure"))

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, got.Processed)
	require.Equal(t, second, *got.ProcessedAt)
	require.Zero(t, got.RetryCount)
}

func TestStore_PurgeAndStats(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db := memtx.New()
	s := New(db)
	now := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	old := appendRecord(t, db, s, "o-1", now.Add(-9*24*time.Hour))
	recent := appendRecord(t, db, s, "o-2", now.Add(-time.Hour))
	pending := appendRecord(t, db, s, "o-3", now.Add(-2*time.Hour))
	dead := appendRecord(t, db, s, "o-4", now.Add(-3*time.Hour))
	require.NoError(t, s.MarkDelivered(ctx, old.ID, now.Add(-8*24*time.Hour)))
	require.NoError(t, s.MarkDelivered(ctx, recent.ID, now.Add(-time.Hour)))
	require.NoError(t, s.MarkFailed(ctx, pending.ID, "timeout"))
	for i := 0; i < 3; i++ {
		require.NoError(t, s.MarkFailed(ctx, dead.ID, "timeout"))
	}

	stats, err := s.Stats(ctx, 3, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, stats.Pending)
	require.EqualValues(t, 1, stats.Dead)
	require.EqualValues(t, 2, stats.Delivered)
	require.Equal(t, 2*time.Hour, stats.OldestPendingAge)
	require.Equal(t, map[int]int64{1: 1, 3: 1}, stats.RetryDistribution)

	n, err := s.PurgeDeliveredOlderThan(ctx, now.Add(-7*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	_, err = s.Get(ctx, old.ID)
	require.ErrorIs(t, err, outbox.ErrRecordNotFound)

	deadList, err := s.ListDead(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, deadList, 1)
	require.NoError(t, s.Requeue(ctx, dead.ID))
	deadList, err = s.ListDead(ctx, 3, 10)
	require.NoError(t, err)
	require.Empty(t, deadList)
}
