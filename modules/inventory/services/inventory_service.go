package services

import (
	"context"
	"errors"
	"time"

	"github.com/iota-uz/order-saga/modules/inventory/domain/entities/stock"
	"github.com/iota-uz/order-saga/pkg/ledger"
	"github.com/iota-uz/order-saga/pkg/saga"
)

// InventoryService is the last forward step: it reserves the ordered
// quantities and returns them on compensation.
type InventoryService struct {
	stock        stock.Repository
	reservations ledger.Repository
	now          func() time.Time
}

func NewInventoryService(repo stock.Repository, reservations ledger.Repository) *InventoryService {
	return &InventoryService{stock: repo, reservations: reservations, now: time.Now}
}

func (s *InventoryService) Source() saga.Source {
	return saga.SourceInventory
}

func (s *InventoryService) State(ctx context.Context, key saga.Key) (saga.StepState, error) {
	return ledger.State(ctx, s.reservations, key)
}

// Execute reserves every line or none: a shortage on any line rolls back the
// lines already written in this unit of work.
func (s *InventoryService) Execute(ctx context.Context, env saga.Envelope) error {
	now := s.now().UTC()
	for _, line := range env.Payload.Products {
		code := line.Product.Code
		current, err := s.stock.GetForUpdate(ctx, code)
		if errors.Is(err, stock.ErrStockNotFound) {
			return saga.Rejectf("product %s out of stock", code)
		}
		if err != nil {
			return err
		}
		if line.Quantity > current.Available {
			return saga.Rejectf("product %s out of stock", code)
		}
		left := current.Available - line.Quantity
		if err := s.stock.SetAvailable(ctx, code, left); err != nil {
			return err
		}
		if err := s.stock.AddMovement(ctx, stock.Movement{
			OrderID:       env.AggregateID,
			TransactionID: env.TransactionID,
			ProductCode:   code,
			OrderQuantity: line.Quantity,
			OldQuantity:   current.Available,
			NewQuantity:   left,
			CreatedAt:     now,
		}); err != nil {
			return err
		}
	}
	return ledger.Mark(ctx, s.reservations, env, saga.StateSuccess, "", now)
}

func (s *InventoryService) RecordFailure(ctx context.Context, env saga.Envelope, reason string) error {
	return ledger.Mark(ctx, s.reservations, env, saga.StateFailed, reason, s.now())
}

// Compensate puts back what the recorded movements took.
func (s *InventoryService) Compensate(ctx context.Context, env saga.Envelope, prior saga.StepState) error {
	if prior != saga.StateSuccess {
		return ledger.Mark(ctx, s.reservations, env, saga.StateCompensated, "rollback before stock was reserved", s.now())
	}
	moves, err := s.stock.Movements(ctx, env.AggregateID, env.TransactionID)
	if err != nil {
		return err
	}
	for _, m := range moves {
		current, err := s.stock.GetForUpdate(ctx, m.ProductCode)
		if err != nil {
			return err
		}
		if err := s.stock.SetAvailable(ctx, m.ProductCode, current.Available+m.OrderQuantity); err != nil {
			return err
		}
	}
	return ledger.Mark(ctx, s.reservations, env, saga.StateCompensated, "stock released", s.now())
}
