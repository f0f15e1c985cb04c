package payment_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iota-uz/order-saga/modules/payment"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func TestRoutes_MatchDefaultSlice(t *testing.T) {
	t.Parallel()

	topics := saga.DefaultTopics()
	require.True(t, payment.Routes(topics).Equal(saga.ServiceRoutes(saga.SourcePayment, topics)))
}
