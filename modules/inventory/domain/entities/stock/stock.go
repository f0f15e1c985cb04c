package stock

import (
	"context"
	"time"

	"github.com/iota-uz/order-saga/pkg/serrors"
)

var ErrStockNotFound = serrors.NewError("STOCK_NOT_FOUND", "product has no stock entry", "")

type Stock struct {
	ProductCode string
	Available   int
}

// Movement records one reservation line so compensation can restore it.
type Movement struct {
	OrderID       string
	TransactionID string
	ProductCode   string
	OrderQuantity int
	OldQuantity   int
	NewQuantity   int
	CreatedAt     time.Time
}

type Repository interface {
	// GetForUpdate locks the row until the unit of work ends.
	GetForUpdate(ctx context.Context, code string) (Stock, error)
	SetAvailable(ctx context.Context, code string, available int) error
	AddMovement(ctx context.Context, m Movement) error
	Movements(ctx context.Context, orderID, transactionID string) ([]Movement, error)
	GetAll(ctx context.Context) ([]Stock, error)
}
