package broker

import (
	"context"

	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/outbox"
)

const (
	HeaderOutboxID    = "outbox_id"
	HeaderEventType   = "event_type"
	HeaderStore       = "outbox_store"
	HeaderTraceParent = "traceparent"
	HeaderTraceState  = "tracestate"
)

// Dispatcher hands relay records to a broker publisher. The aggregate id
// becomes the message key and the captured trace context travels in headers.
type Dispatcher struct {
	pub broker.Publisher
}

func New(pub broker.Publisher) *Dispatcher {
	return &Dispatcher{
		pub: pub,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.DispatchedMessage) error {
	headers := map[string]string{
		HeaderOutboxID:  msg.Meta.ID.String(),
		HeaderEventType: msg.Meta.EventType,
		HeaderStore:     msg.Meta.Store,
	}
	if msg.Meta.TraceParent != "" {
		headers[HeaderTraceParent] = msg.Meta.TraceParent
	}
	if msg.Meta.TraceState != "" {
		headers[HeaderTraceState] = msg.Meta.TraceState
	}
	return d.pub.Publish(ctx, broker.Message{
		Topic:   msg.Meta.Destination,
		Key:     msg.Meta.AggregateID,
		Value:   msg.Payload,
		Headers: headers,
	})
}
