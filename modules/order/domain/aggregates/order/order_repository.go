package order

import "context"

type Repository interface {
	GetByID(ctx context.Context, id string) (Order, error)
	// Save inserts or replaces the order.
	Save(ctx context.Context, o Order) error
}
