package persistence

import (
	"context"
	"sync"

	"github.com/iota-uz/order-saga/modules/payment/domain/entities/payment"
	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type MemoryPaymentRepository struct {
	db       *memtx.DB
	mu       sync.RWMutex
	payments map[saga.Key]payment.Payment
}

func NewMemoryPaymentRepository(db *memtx.DB) *MemoryPaymentRepository {
	return &MemoryPaymentRepository{db: db, payments: map[saga.Key]payment.Payment{}}
}

func (r *MemoryPaymentRepository) Lock(context.Context, saga.Key) error {
	return nil
}

func (r *MemoryPaymentRepository) GetByKey(_ context.Context, key saga.Key) (payment.Payment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.payments[key]
	if !ok {
		return payment.Payment{}, payment.ErrPaymentNotFound
	}
	return p, nil
}

func (r *MemoryPaymentRepository) Save(ctx context.Context, p payment.Payment) error {
	if !r.db.Active(ctx) {
		return memtx.ErrNoTx
	}
	key := p.Key()
	r.mu.Lock()
	prev, had := r.payments[key]
	r.payments[key] = p
	r.mu.Unlock()
	return memtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if had {
			r.payments[key] = prev
		} else {
			delete(r.payments, key)
		}
	})
}

// All returns every payment, for inspection.
func (r *MemoryPaymentRepository) All() []payment.Payment {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]payment.Payment, 0, len(r.payments))
	for _, p := range r.payments {
		out = append(out, p)
	}
	return out
}
