package kafka

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_RequiresBrokers(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)

	b, err := New(Config{Brokers: []string{"localhost:9092"}}, nil)
	require.NoError(t, err)
	require.NoError(t, b.writer.Close())
}

func TestHeaders_RoundTrip(t *testing.T) {
	t.Parallel()

	in := map[string]string{"traceparent": "00-abc-def-01", "event_type": "PAYMENT_SUCCESS"}
	require.Equal(t, in, fromHeaders(toHeaders(in)))
}
