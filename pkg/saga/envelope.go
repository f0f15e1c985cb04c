package saga

import (
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire format exchanged between services. A handler never
// edits a received envelope; it derives the next one with Next.
type Envelope struct {
	TransactionID string        `json:"transactionId"`
	AggregateID   string        `json:"aggregateId"`
	Payload       OrderSnapshot `json:"payload"`
	Source        Source        `json:"source"`
	Status        Status        `json:"status"`
	CreatedAt     time.Time     `json:"createdAt"`
}

// Key identifies one saga instance on one aggregate.
type Key struct {
	AggregateID   string
	TransactionID string
}

func (k Key) String() string {
	return k.AggregateID + "/" + k.TransactionID
}

func (e Envelope) Key() Key {
	return Key{AggregateID: e.AggregateID, TransactionID: e.TransactionID}
}

// AggregateKey orders and partitions envelopes by aggregate.
func (e Envelope) AggregateKey() string {
	return e.AggregateID
}

func (e Envelope) Next(source Source, status Status, at time.Time) Envelope {
	next := e
	next.Source = source
	next.Status = status
	next.CreatedAt = at.UTC()
	return next
}

// EventType names the outbox record that carries e, e.g. PAYMENT_SUCCESS.
func (e Envelope) EventType() string {
	return eventPrefix(e.Source) + "_" + string(e.Status)
}

func eventPrefix(s Source) string {
	switch s {
	case SourceOrder:
		return "ORDER"
	case SourceProductValidation:
		return "PRODUCT_VALIDATION"
	case SourcePayment:
		return "PAYMENT"
	case SourceInventory:
		return "INVENTORY"
	default:
		return string(s)
	}
}

func (e Envelope) Validate() error {
	if e.TransactionID == "" || e.AggregateID == "" {
		return fmt.Errorf("%w: transactionId and aggregateId are required", ErrMalformedEnvelope)
	}
	if e.Source == "" || e.Status == "" {
		return fmt.Errorf("%w: source and status are required", ErrMalformedEnvelope)
	}
	return nil
}

func DecodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
