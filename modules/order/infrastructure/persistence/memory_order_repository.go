package persistence

import (
	"context"
	"sync"

	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	"github.com/iota-uz/order-saga/pkg/memtx"
)

type MemoryOrderRepository struct {
	db     *memtx.DB
	mu     sync.RWMutex
	orders map[string]order.Order
}

func NewMemoryOrderRepository(db *memtx.DB) *MemoryOrderRepository {
	return &MemoryOrderRepository{db: db, orders: map[string]order.Order{}}
}

func (r *MemoryOrderRepository) GetByID(_ context.Context, id string) (order.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.orders[id]
	if !ok {
		return order.Order{}, order.ErrOrderNotFound
	}
	return o, nil
}

func (r *MemoryOrderRepository) Save(ctx context.Context, o order.Order) error {
	if !r.db.Active(ctx) {
		return memtx.ErrNoTx
	}
	r.mu.Lock()
	prev, had := r.orders[o.ID]
	r.orders[o.ID] = o
	r.mu.Unlock()
	return memtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if had {
			r.orders[o.ID] = prev
		} else {
			delete(r.orders, o.ID)
		}
	})
}
