package rabbitmq

import (
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
)

func TestFromTable_SkipsNonStringValues(t *testing.T) {
	t.Parallel()

	got := fromTable(amqp.Table{"traceparent": "00-a-b-01", "retries": int32(2)})
	require.Equal(t, map[string]string{"traceparent": "00-a-b-01"}, got)
}

func TestQueueName(t *testing.T) {
	t.Parallel()

	require.Equal(t, "payment.payment-start", queueName("payment-start", "payment"))
}
