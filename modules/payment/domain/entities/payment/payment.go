package payment

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/order-saga/pkg/saga"
	"github.com/iota-uz/order-saga/pkg/serrors"
)

var ErrPaymentNotFound = serrors.NewError("PAYMENT_NOT_FOUND", "payment not found", "")

// Payment is the charge of one saga. Status SUCCESS means charged and
// COMPENSATED means refunded.
type Payment struct {
	OrderID       string
	TransactionID string
	TotalAmount   decimal.Decimal
	TotalItems    int
	Status        saga.StepState
	Reason        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (p Payment) Key() saga.Key {
	return saga.Key{AggregateID: p.OrderID, TransactionID: p.TransactionID}
}

type Repository interface {
	// Lock serializes units of work on key until the current one ends.
	Lock(ctx context.Context, key saga.Key) error
	GetByKey(ctx context.Context, key saga.Key) (Payment, error)
	Save(ctx context.Context, p Payment) error
}
