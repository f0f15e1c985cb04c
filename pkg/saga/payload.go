package saga

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	Code      string          `json:"code" validate:"required"`
	UnitValue decimal.Decimal `json:"unitValue"`
}

type OrderProduct struct {
	Product  Product `json:"product" validate:"required"`
	Quantity int     `json:"quantity" validate:"gt=0"`
}

// OrderSnapshot is the order as seen by the steps. It travels unchanged in
// every envelope of a saga.
type OrderSnapshot struct {
	ID            string          `json:"id"`
	TransactionID string          `json:"transactionId"`
	Products      []OrderProduct  `json:"products"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	TotalItems    int             `json:"totalItems"`
	CreatedAt     time.Time       `json:"createdAt"`
}
