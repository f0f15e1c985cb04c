// Package ledger stores a step's per-saga state row keyed by
// (order id, transaction id). Product validation and inventory reservation
// both keep their step state in this shape.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/iota-uz/order-saga/pkg/saga"
	"github.com/iota-uz/order-saga/pkg/serrors"
)

var ErrNotFound = serrors.NewError("LEDGER_NOT_FOUND", "ledger entry not found", "")

type Entry struct {
	OrderID       string
	TransactionID string
	Status        saga.StepState
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (e Entry) Key() saga.Key {
	return saga.Key{AggregateID: e.OrderID, TransactionID: e.TransactionID}
}

type Repository interface {
	// Lock serializes units of work on key until the current one ends.
	Lock(ctx context.Context, key saga.Key) error
	// Get returns ErrNotFound when the saga was never seen.
	Get(ctx context.Context, key saga.Key) (Entry, error)
	// Save inserts or overwrites the entry of its key. It must run inside
	// the caller's unit of work.
	Save(ctx context.Context, e Entry) error
}

// State locks key and maps a missing entry to saga.StateNone. Concurrent
// deliveries of one envelope therefore observe each other's writes.
func State(ctx context.Context, repo Repository, key saga.Key) (saga.StepState, error) {
	if err := repo.Lock(ctx, key); err != nil {
		return saga.StateNone, err
	}
	e, err := repo.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return saga.StateNone, nil
	}
	if err != nil {
		return saga.StateNone, err
	}
	return e.Status, nil
}

// Mark saves status for the saga of env.
func Mark(ctx context.Context, repo Repository, env saga.Envelope, status saga.StepState, reason string, now time.Time) error {
	return repo.Save(ctx, Entry{
		OrderID:       env.AggregateID,
		TransactionID: env.TransactionID,
		Status:        status,
		Reason:        reason,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
}
