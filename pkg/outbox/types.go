package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Record is one row of a service's outbox. EventData holds the serialized
// event exactly as it was enqueued.
type Record struct {
	ID           uuid.UUID  `json:"id"`
	AggregateID  string     `json:"aggregate_id"`
	EventType    string     `json:"event_type"`
	EventData    string     `json:"event_data"`
	Destination  string     `json:"destination"`
	CreatedAt    time.Time  `json:"created_at"`
	Processed    bool       `json:"processed"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	RetryCount   int        `json:"retry_count"`
	ErrorMessage string     `json:"error_message,omitempty"`

	// W3C trace context captured at enqueue time.
	TraceParent string `json:"trace_parent,omitempty"`
	TraceState  string `json:"trace_state,omitempty"`
}

// Event is anything that can be serialized into a record. AggregateKey is the
// ordering and partitioning key.
type Event interface {
	AggregateKey() string
}

// Meta is the dispatch metadata handed to a Dispatcher with the payload.
type Meta struct {
	Store       string
	ID          uuid.UUID
	AggregateID string
	EventType   string
	Destination string
	CreatedAt   time.Time
	RetryCount  int

	TraceParent string
	TraceState  string
}

// DispatchedMessage is the unit delivered by Relay to Dispatcher.
type DispatchedMessage struct {
	Meta    Meta
	Payload []byte
}

// Stats is the read-only operational view over a store.
type Stats struct {
	Pending           int64         `json:"pending"`
	Dead              int64         `json:"dead"`
	Delivered         int64         `json:"delivered"`
	OldestPendingAge  time.Duration `json:"oldest_pending_age"`
	RetryDistribution map[int]int64 `json:"retry_distribution"`
}

func (r Record) dispatched(store string) DispatchedMessage {
	return DispatchedMessage{
		Meta: Meta{
			Store:       store,
			ID:          r.ID,
			AggregateID: r.AggregateID,
			EventType:   r.EventType,
			Destination: r.Destination,
			CreatedAt:   r.CreatedAt,
			RetryCount:  r.RetryCount,
			TraceParent: r.TraceParent,
			TraceState:  r.TraceState,
		},
		Payload: []byte(r.EventData),
	}
}
