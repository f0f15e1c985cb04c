package services

import (
	"context"
	"errors"
	"time"

	"github.com/iota-uz/order-saga/modules/productvalidation/domain/entities/product"
	"github.com/iota-uz/order-saga/pkg/ledger"
	"github.com/iota-uz/order-saga/pkg/saga"
)

// ValidationService is the product validation step: every ordered product
// must be named and present in the catalog.
type ValidationService struct {
	products    product.Repository
	validations ledger.Repository
	now         func() time.Time
}

func NewValidationService(products product.Repository, validations ledger.Repository) *ValidationService {
	return &ValidationService{products: products, validations: validations, now: time.Now}
}

func (s *ValidationService) Source() saga.Source {
	return saga.SourceProductValidation
}

func (s *ValidationService) State(ctx context.Context, key saga.Key) (saga.StepState, error) {
	return ledger.State(ctx, s.validations, key)
}

func (s *ValidationService) Execute(ctx context.Context, env saga.Envelope) error {
	if err := s.validate(ctx, env.Payload); err != nil {
		return err
	}
	return ledger.Mark(ctx, s.validations, env, saga.StateSuccess, "", s.now())
}

func (s *ValidationService) validate(ctx context.Context, order saga.OrderSnapshot) error {
	if len(order.Products) == 0 {
		return saga.Rejectf("product list is empty")
	}
	if order.ID == "" || order.TransactionID == "" {
		return saga.Rejectf("order id and transaction id must be informed")
	}
	for _, item := range order.Products {
		if item.Product.Code == "" {
			return saga.Rejectf("product must be informed")
		}
		if _, err := s.products.GetByCode(ctx, item.Product.Code); err != nil {
			if errors.Is(err, product.ErrProductNotFound) {
				return saga.Rejectf("product %s does not exist in the catalog", item.Product.Code)
			}
			return err
		}
	}
	return nil
}

func (s *ValidationService) RecordFailure(ctx context.Context, env saga.Envelope, reason string) error {
	return ledger.Mark(ctx, s.validations, env, saga.StateFailed, reason, s.now())
}

// Compensate only flips the ledger: validation has no side effect to undo.
func (s *ValidationService) Compensate(ctx context.Context, env saga.Envelope, prior saga.StepState) error {
	reason := "rollback of product validation"
	if prior != saga.StateSuccess {
		reason = "rollback before validation succeeded"
	}
	return ledger.Mark(ctx, s.validations, env, saga.StateCompensated, reason, s.now())
}
