package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/order-saga/modules/productvalidation/domain/entities/product"
	"github.com/iota-uz/order-saga/pkg/composables"
)

const (
	selectProductQuery = `SELECT code, unit_value FROM product`
)

type ProductRepository struct{}

func NewProductRepository() product.Repository {
	return &ProductRepository{}
}

func (r *ProductRepository) GetByCode(ctx context.Context, code string) (product.Product, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return product.Product{}, err
	}
	var p product.Product
	var unit decimal.Decimal
	err = tx.QueryRow(ctx, selectProductQuery+` WHERE code = $1`, code).Scan(&p.Code, &unit)
	if errors.Is(err, pgx.ErrNoRows) {
		return product.Product{}, product.ErrProductNotFound
	}
	if err != nil {
		return product.Product{}, gerrors.Wrap(err, "get product")
	}
	p.UnitValue = unit
	return p, nil
}

func (r *ProductRepository) GetAll(ctx context.Context) ([]product.Product, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, selectProductQuery+` ORDER BY code`)
	if err != nil {
		return nil, gerrors.Wrap(err, "list products")
	}
	defer rows.Close()
	var out []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.Code, &p.UnitValue); err != nil {
			return nil, gerrors.Wrap(err, "scan product")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
