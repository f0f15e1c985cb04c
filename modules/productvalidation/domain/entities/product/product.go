package product

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/order-saga/pkg/serrors"
)

var ErrProductNotFound = serrors.NewError("PRODUCT_NOT_FOUND", "product not found", "")

// Product is a catalog entry.
type Product struct {
	Code      string
	UnitValue decimal.Decimal
}

type Repository interface {
	GetByCode(ctx context.Context, code string) (Product, error)
	GetAll(ctx context.Context) ([]Product, error)
}
