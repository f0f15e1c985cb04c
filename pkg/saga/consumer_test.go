package saga_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func TestConsume_DecodesEnvelope(t *testing.T) {
	t.Parallel()

	env := saga.Envelope{
		TransactionID: "1700000000000_abc",
		AggregateID:   "order-1",
		Source:        saga.SourceOrder,
		Status:        saga.StatusSuccess,
		CreatedAt:     time.Now().UTC(),
	}
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var got saga.Envelope
	h := saga.Consume(func(_ context.Context, e saga.Envelope) error {
		got = e
		return nil
	}, nil)
	require.NoError(t, h(context.Background(), broker.Message{Topic: "t", Value: data}))
	require.Equal(t, env.Key(), got.Key())
	require.Equal(t, saga.SourceOrder, got.Source)
}

func TestConsume_AcksMalformedPayload(t *testing.T) {
	t.Parallel()

	called := false
	h := saga.Consume(func(context.Context, saga.Envelope) error {
		called = true
		return nil
	}, nil)

	require.NoError(t, h(context.Background(), broker.Message{Topic: "t", Value: []byte("{not json")}))
	require.NoError(t, h(context.Background(), broker.Message{Topic: "t", Value: []byte(`{"aggregateId":"o"}`)}))
	require.False(t, called)
}

func TestConsume_SurfacesHandlerError(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(saga.Envelope{TransactionID: "t", AggregateID: "a", Source: saga.SourcePayment, Status: saga.StatusFail})
	require.NoError(t, err)
	boom := errors.New("db down")
	h := saga.Consume(func(context.Context, saga.Envelope) error { return boom }, nil)
	require.ErrorIs(t, h(context.Background(), broker.Message{Value: data}), boom)
}

func TestDedupKey(t *testing.T) {
	t.Parallel()

	env := saga.Envelope{TransactionID: "tx", AggregateID: "a", Source: saga.SourcePayment, Status: saga.StatusFail}
	require.Equal(t, "payment-fail:tx:PAYMENT_SERVICE:FAIL", saga.DedupKey("payment-fail", env))
}
