package outbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/outbox/memory"
)

func TestRecordAndEnqueue_AtomicWithMutation(t *testing.T) {
	t.Parallel()

	db := memtx.New()
	store := memory.New(db)
	ob, err := outbox.New("order", store, outbox.TransactorFunc(db.InTx))
	require.NoError(t, err)

	orders := map[string]string{}
	mutation := func(ctx context.Context) error {
		orders["o-1"] = "PENDING"
		return memtx.OnRollback(ctx, func() { delete(orders, "o-1") })
	}

	rec, err := ob.RecordAndEnqueue(context.Background(), mutation, "ORDER_CREATED", orderEvent{OrderID: "o-1"}, "product-validation-start")
	require.NoError(t, err)
	require.Equal(t, "o-1", rec.AggregateID)
	require.Equal(t, "PENDING", orders["o-1"])
	require.Len(t, store.All(), 1)

	failing := func(ctx context.Context) error {
		orders["o-2"] = "PENDING"
		if err := memtx.OnRollback(ctx, func() { delete(orders, "o-2") }); err != nil {
			return err
		}
		return errors.New("write conflict")
	}
	_, err = ob.RecordAndEnqueue(context.Background(), failing, "ORDER_CREATED", orderEvent{OrderID: "o-2"}, "product-validation-start")
	require.Error(t, err)
	require.NotContains(t, orders, "o-2")
	require.Len(t, store.All(), 1)
}

type failingStore struct {
	outbox.Store
}

func (failingStore) Append(context.Context, *outbox.Record) error {
	return errors.New("disk full")
}

func TestRecordAndEnqueue_AppendFailureRollsBackMutation(t *testing.T) {
	t.Parallel()

	db := memtx.New()
	ob, err := outbox.New("order", failingStore{memory.New(db)}, outbox.TransactorFunc(db.InTx))
	require.NoError(t, err)

	saved := false
	_, err = ob.RecordAndEnqueue(context.Background(), func(ctx context.Context) error {
		saved = true
		return memtx.OnRollback(ctx, func() { saved = false })
	}, "ORDER_CREATED", orderEvent{OrderID: "o-1"}, "orchestrator")

	require.EqualError(t, err, "disk full")
	require.False(t, saved)
}

func TestEnqueue_OutsideTransaction(t *testing.T) {
	t.Parallel()

	db := memtx.New()
	ob, err := outbox.New("order", memory.New(db), outbox.TransactorFunc(db.InTx))
	require.NoError(t, err)

	_, err = ob.Enqueue(context.Background(), "ORDER_CREATED", orderEvent{OrderID: "o-1"}, "orchestrator")
	require.ErrorIs(t, err, outbox.ErrNoTx)
}

func TestEnqueue_RejectsIncompleteRecords(t *testing.T) {
	t.Parallel()

	db := memtx.New()
	ob, err := outbox.New("order", memory.New(db), outbox.TransactorFunc(db.InTx))
	require.NoError(t, err)

	_, err = ob.RecordAndEnqueue(context.Background(), nil, "", orderEvent{OrderID: "o-1"}, "orchestrator")
	require.ErrorIs(t, err, outbox.ErrInvalidRecord)
	_, err = ob.RecordAndEnqueue(context.Background(), nil, "ORDER_CREATED", orderEvent{OrderID: "o-1"}, "")
	require.ErrorIs(t, err, outbox.ErrInvalidRecord)
}

func TestEnqueue_CapturesTraceContext(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	db := memtx.New()
	store := memory.New(db)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ob, err := outbox.New("order", store, outbox.TransactorFunc(db.InTx), outbox.WithClock(func() time.Time { return fixed }))
	require.NoError(t, err)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	rec, err := ob.RecordAndEnqueue(ctx, nil, "ORDER_CREATED", orderEvent{OrderID: "o-1"}, "orchestrator")
	require.NoError(t, err)
	require.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", rec.TraceParent)
	require.Equal(t, fixed, rec.CreatedAt)
}
