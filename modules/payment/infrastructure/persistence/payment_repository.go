package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/order-saga/modules/payment/domain/entities/payment"
	"github.com/iota-uz/order-saga/pkg/composables"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const (
	selectPaymentQuery = `
		SELECT order_id, transaction_id, total_amount, total_items, status, COALESCE(reason, ''), created_at, updated_at
		  FROM payment
		 WHERE order_id = $1 AND transaction_id = $2`

	upsertPaymentQuery = `
		INSERT INTO payment (order_id, transaction_id, total_amount, total_items, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)
		ON CONFLICT (order_id, transaction_id)
		DO UPDATE SET total_amount = EXCLUDED.total_amount,
		              total_items = EXCLUDED.total_items,
		              status = EXCLUDED.status,
		              reason = EXCLUDED.reason,
		              updated_at = EXCLUDED.updated_at`
)

type PaymentRepository struct{}

func NewPaymentRepository() payment.Repository {
	return &PaymentRepository{}
}

// Lock holds an advisory lock on key until the bound transaction ends.
func (r *PaymentRepository) Lock(ctx context.Context, key saga.Key) error {
	if err := composables.LockKey(ctx, "payment:"+key.AggregateID+"/"+key.TransactionID); err != nil {
		return gerrors.Wrap(err, "lock payment")
	}
	return nil
}

func (r *PaymentRepository) GetByKey(ctx context.Context, key saga.Key) (payment.Payment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return payment.Payment{}, err
	}
	var p payment.Payment
	var status string
	err = tx.QueryRow(ctx, selectPaymentQuery, key.AggregateID, key.TransactionID).Scan(
		&p.OrderID, &p.TransactionID, &p.TotalAmount, &p.TotalItems, &status, &p.Reason, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return payment.Payment{}, payment.ErrPaymentNotFound
	}
	if err != nil {
		return payment.Payment{}, gerrors.Wrap(err, "get payment")
	}
	p.Status = saga.StepState(status)
	return p, nil
}

func (r *PaymentRepository) Save(ctx context.Context, p payment.Payment) error {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, upsertPaymentQuery,
		p.OrderID, p.TransactionID, p.TotalAmount, p.TotalItems, string(p.Status), p.Reason, p.CreatedAt, p.UpdatedAt,
	); err != nil {
		return gerrors.Wrap(err, "save payment")
	}
	return nil
}
