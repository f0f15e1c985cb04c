package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// Outbox is the write side of a service's outbox: it appends records in the
// caller's unit of work and wakes the relay once that unit commits.
type Outbox struct {
	name  string
	store Store
	tx    Transactor
	wake  chan struct{}
	now   func() time.Time
	m     *metrics
}

type Option func(*Outbox)

func WithClock(now func() time.Time) Option {
	return func(o *Outbox) { o.now = now }
}

func New(name string, store Store, tx Transactor, opts ...Option) (*Outbox, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	if tx == nil {
		return nil, invalidConfig("transactor is required")
	}
	o := &Outbox{
		name:  name,
		store: store,
		tx:    tx,
		wake:  make(chan struct{}, 1),
		now:   time.Now,
		m:     getMetrics(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

func (o *Outbox) Name() string {
	return o.name
}

func (o *Outbox) Store() Store {
	return o.store
}

func (o *Outbox) Transactor() Transactor {
	return o.tx
}

// Wake is the signal channel a Relay listens on.
func (o *Outbox) Wake() <-chan struct{} {
	return o.wake
}

// Notify wakes the relay without blocking. Callers that use Enqueue inside
// their own transaction call it after commit.
func (o *Outbox) Notify() {
	select {
	case o.wake <- struct{}{}:
	default:
	}
}

// Enqueue serializes event and appends it. ctx must carry the unit of work.
func (o *Outbox) Enqueue(ctx context.Context, eventType string, event Event, destination string) (Record, error) {
	if event == nil {
		return Record{}, fmt.Errorf("%w: event is required", ErrInvalidRecord)
	}
	if eventType == "" {
		return Record{}, fmt.Errorf("%w: event type is required", ErrInvalidRecord)
	}
	if destination == "" {
		return Record{}, fmt.Errorf("%w: destination is required", ErrInvalidRecord)
	}
	data, err := json.Marshal(event)
	if err != nil {
		return Record{}, fmt.Errorf("outbox: encode %s: %w", eventType, err)
	}

	rec := Record{
		ID:          uuid.New(),
		AggregateID: event.AggregateKey(),
		EventType:   eventType,
		EventData:   string(data),
		Destination: destination,
		CreatedAt:   o.now().UTC(),
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	rec.TraceParent = carrier.Get("traceparent")
	rec.TraceState = carrier.Get("tracestate")

	if err := o.store.Append(ctx, &rec); err != nil {
		return Record{}, err
	}
	o.m.enqueueTotal.WithLabelValues(o.name, destination).Inc()
	return rec, nil
}

// RecordAndEnqueue runs mutation and appends event in one unit of work. If
// either fails nothing is committed.
func (o *Outbox) RecordAndEnqueue(
	ctx context.Context,
	mutation func(context.Context) error,
	eventType string,
	event Event,
	destination string,
) (Record, error) {
	var rec Record
	err := o.tx.InTx(ctx, func(txCtx context.Context) error {
		if mutation != nil {
			if err := mutation(txCtx); err != nil {
				return err
			}
		}
		var err error
		rec, err = o.Enqueue(txCtx, eventType, event, destination)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	o.Notify()
	return rec, nil
}
