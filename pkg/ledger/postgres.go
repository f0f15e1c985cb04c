package ledger

import (
	"context"
	"errors"
	"fmt"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/order-saga/pkg/composables"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type PostgresRepository struct {
	table string
	scope string
}

// NewPostgresRepository stores entries in table, which has the columns
// order_id, transaction_id, status, reason, created_at, updated_at.
func NewPostgresRepository(table string) *PostgresRepository {
	return &PostgresRepository{table: pgx.Identifier{table}.Sanitize(), scope: table}
}

// Lock takes an advisory lock on key for the bound transaction.
func (r *PostgresRepository) Lock(ctx context.Context, key saga.Key) error {
	if err := composables.LockKey(ctx, r.scope+":"+key.AggregateID+"/"+key.TransactionID); err != nil {
		return gerrors.Wrap(err, "ledger lock")
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, key saga.Key) (Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return Entry{}, err
	}
	q := fmt.Sprintf(`
		SELECT order_id, transaction_id, status, COALESCE(reason, ''), created_at, updated_at
		  FROM %s
		 WHERE order_id = $1 AND transaction_id = $2`, r.table)
	var e Entry
	var status string
	err = tx.QueryRow(ctx, q, key.AggregateID, key.TransactionID).
		Scan(&e.OrderID, &e.TransactionID, &status, &e.Reason, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, gerrors.Wrap(err, "ledger get")
	}
	e.Status = saga.StepState(status)
	return e, nil
}

func (r *PostgresRepository) Save(ctx context.Context, e Entry) error {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (order_id, transaction_id, status, reason, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
		ON CONFLICT (order_id, transaction_id)
		DO UPDATE SET status = EXCLUDED.status, reason = EXCLUDED.reason, updated_at = EXCLUDED.updated_at`, r.table)
	if _, err := tx.Exec(ctx, q, e.OrderID, e.TransactionID, string(e.Status), e.Reason, e.CreatedAt, e.UpdatedAt); err != nil {
		return gerrors.Wrap(err, "ledger save")
	}
	return nil
}
