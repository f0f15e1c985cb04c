package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/order-saga/pkg/saga"
	"github.com/iota-uz/order-saga/pkg/serrors"
)

var ErrOrderNotFound = serrors.NewError("ORDER_NOT_FOUND", "order not found", "")

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFail    Status = "FAIL"
)

func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFail
}

// Order is the aggregate that starts a saga. TransactionID names the saga
// instance and never changes after creation.
type Order struct {
	ID            string
	TransactionID string
	Products      []saga.OrderProduct
	TotalAmount   decimal.Decimal
	TotalItems    int
	Status        Status
	CreatedAt     time.Time
	FinishedAt    *time.Time
}

func (o Order) Snapshot() saga.OrderSnapshot {
	return saga.OrderSnapshot{
		ID:            o.ID,
		TransactionID: o.TransactionID,
		Products:      o.Products,
		TotalAmount:   o.TotalAmount,
		TotalItems:    o.TotalItems,
		CreatedAt:     o.CreatedAt,
	}
}

// Finish returns o in its terminal status. It does not check whether o is
// already terminal.
func (o Order) Finish(status Status, at time.Time) Order {
	at = at.UTC()
	o.Status = status
	o.FinishedAt = &at
	return o
}

// Duration is the time from creation to finish, zero while pending.
func (o Order) Duration() time.Duration {
	if o.FinishedAt == nil {
		return 0
	}
	return o.FinishedAt.Sub(o.CreatedAt)
}
