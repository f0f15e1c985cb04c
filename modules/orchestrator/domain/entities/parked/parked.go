package parked

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/order-saga/pkg/saga"
	"github.com/iota-uz/order-saga/pkg/serrors"
)

var ErrParkedNotFound = serrors.NewError("PARKED_NOT_FOUND", "parked event not found", "")

// Event is an envelope the orchestrator could not route. It stays until an
// operator re-drives it.
type Event struct {
	ID            uuid.UUID   `json:"id"`
	TransactionID string      `json:"transactionId"`
	AggregateID   string      `json:"aggregateId"`
	Source        saga.Source `json:"source"`
	Status        saga.Status `json:"status"`
	EventData     string      `json:"eventData"`
	Reason        string      `json:"reason"`
	ParkedAt      time.Time   `json:"parkedAt"`
	ReprocessedAt *time.Time  `json:"reprocessedAt,omitempty"`
}

type Repository interface {
	Save(ctx context.Context, e Event) error
	Get(ctx context.Context, id uuid.UUID) (Event, error)
	// ListOpen returns events not yet re-driven, oldest first.
	ListOpen(ctx context.Context, limit int) ([]Event, error)
	MarkReprocessed(ctx context.Context, id uuid.UUID, at time.Time) error
}
