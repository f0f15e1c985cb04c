package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/iota-uz/order-saga/modules/productvalidation/domain/entities/product"
)

// DefaultCatalog mirrors the rows seeded by the product migration.
func DefaultCatalog() []product.Product {
	return []product.Product{
		{Code: "COMIC_BOOKS", UnitValue: decimal.RequireFromString("15.50")},
		{Code: "BOOKS", UnitValue: decimal.RequireFromString("9.90")},
		{Code: "MOVIES", UnitValue: decimal.RequireFromString("5.00")},
		{Code: "MUSIC", UnitValue: decimal.RequireFromString("10.00")},
	}
}

type MemoryProductRepository struct {
	mu       sync.RWMutex
	products map[string]product.Product
}

func NewMemoryProductRepository(catalog ...product.Product) *MemoryProductRepository {
	r := &MemoryProductRepository{products: map[string]product.Product{}}
	for _, p := range catalog {
		r.products[p.Code] = p
	}
	return r
}

func (r *MemoryProductRepository) GetByCode(_ context.Context, code string) (product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[code]
	if !ok {
		return product.Product{}, product.ErrProductNotFound
	}
	return p, nil
}

func (r *MemoryProductRepository) GetAll(_ context.Context) ([]product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]product.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}
