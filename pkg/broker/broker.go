// Package broker is the transport between services. Implementations hand a
// message to Kafka, RabbitMQ or an in-process bus; consumers acknowledge a
// message only after its handler returns nil.
package broker

import (
	"context"

	"github.com/iota-uz/order-saga/pkg/serrors"
)

var (
	ErrUnavailable = serrors.NewError("BROKER_UNAVAILABLE", "broker unavailable", "")
	ErrClosed      = serrors.NewError("BROKER_CLOSED", "broker closed", "")
	ErrNotAcked    = serrors.NewError("BROKER_NOT_ACKED", "broker did not acknowledge the message", "")
)

type Message struct {
	Topic   string
	Key     string
	Value   []byte
	Headers map[string]string
}

type Handler func(ctx context.Context, msg Message) error

type Publisher interface {
	// Publish returns nil only once the broker accepted msg.
	Publish(ctx context.Context, msg Message) error
	Close() error
}

type Subscriber interface {
	// Subscribe consumes topic as part of group until ctx is done.
	Subscribe(ctx context.Context, topic, group string, h Handler) error
	Close() error
}

type Broker interface {
	Publisher
	Subscriber
}
