package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/order-saga/modules/inventory/domain/entities/stock"
	"github.com/iota-uz/order-saga/pkg/composables"
)

const (
	selectStockForUpdateQuery = `SELECT product_code, available FROM inventory WHERE product_code = $1 FOR UPDATE`
	selectAllStockQuery       = `SELECT product_code, available FROM inventory ORDER BY product_code`
	updateStockQuery          = `UPDATE inventory SET available = $2 WHERE product_code = $1`

	insertMovementQuery = `
		INSERT INTO order_inventory (order_id, transaction_id, product_code, order_quantity, old_quantity, new_quantity, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	selectMovementsQuery = `
		SELECT order_id, transaction_id, product_code, order_quantity, old_quantity, new_quantity, created_at
		  FROM order_inventory
		 WHERE order_id = $1 AND transaction_id = $2
		 ORDER BY id`
)

type StockRepository struct{}

func NewStockRepository() stock.Repository {
	return &StockRepository{}
}

func (r *StockRepository) GetForUpdate(ctx context.Context, code string) (stock.Stock, error) {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return stock.Stock{}, err
	}
	var s stock.Stock
	err = tx.QueryRow(ctx, selectStockForUpdateQuery, code).Scan(&s.ProductCode, &s.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return stock.Stock{}, stock.ErrStockNotFound
	}
	if err != nil {
		return stock.Stock{}, gerrors.Wrap(err, "lock stock")
	}
	return s, nil
}

func (r *StockRepository) SetAvailable(ctx context.Context, code string, available int) error {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, updateStockQuery, code, available)
	if err != nil {
		return gerrors.Wrap(err, "update stock")
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrStockNotFound
	}
	return nil
}

func (r *StockRepository) AddMovement(ctx context.Context, m stock.Movement) error {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertMovementQuery,
		m.OrderID, m.TransactionID, m.ProductCode, m.OrderQuantity, m.OldQuantity, m.NewQuantity, m.CreatedAt,
	); err != nil {
		return gerrors.Wrap(err, "insert order inventory")
	}
	return nil
}

func (r *StockRepository) Movements(ctx context.Context, orderID, transactionID string) ([]stock.Movement, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectMovementsQuery, orderID, transactionID)
	if err != nil {
		return nil, gerrors.Wrap(err, "query order inventory")
	}
	defer rows.Close()

	var out []stock.Movement
	for rows.Next() {
		var m stock.Movement
		if err := rows.Scan(&m.OrderID, &m.TransactionID, &m.ProductCode, &m.OrderQuantity, &m.OldQuantity, &m.NewQuantity, &m.CreatedAt); err != nil {
			return nil, gerrors.Wrap(err, "scan order inventory")
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *StockRepository) GetAll(ctx context.Context) ([]stock.Stock, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectAllStockQuery)
	if err != nil {
		return nil, gerrors.Wrap(err, "query stock")
	}
	defer rows.Close()

	var out []stock.Stock
	for rows.Next() {
		var s stock.Stock
		if err := rows.Scan(&s.ProductCode, &s.Available); err != nil {
			return nil, gerrors.Wrap(err, "scan stock")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
