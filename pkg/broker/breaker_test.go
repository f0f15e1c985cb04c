package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/broker/memory"
)

func TestBreakerPublisher_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	mem := memory.New(nil)
	mem.SetAvailable(false)
	p := broker.NewBreakerPublisher(mem, broker.BreakerOptions{
		Name:                "test",
		ConsecutiveFailures: 2,
		Timeout:             50 * time.Millisecond,
	})
	ctx := context.Background()
	msg := broker.Message{Topic: "t", Key: "k"}

	require.ErrorIs(t, p.Publish(ctx, msg), broker.ErrUnavailable)
	require.ErrorIs(t, p.Publish(ctx, msg), broker.ErrUnavailable)
	require.Equal(t, gobreaker.StateOpen, p.State())

	// open: rejected without reaching the broker
	mem.SetAvailable(true)
	require.ErrorIs(t, p.Publish(ctx, msg), broker.ErrUnavailable)
	require.Empty(t, mem.Messages("t"))

	require.Eventually(t, func() bool {
		return p.Publish(ctx, msg) == nil
	}, time.Second, 10*time.Millisecond)
	require.Equal(t, gobreaker.StateClosed, p.State())
	require.Len(t, mem.Messages("t"), 1)
}
