package persistence

import (
	"context"
	"sort"
	"sync"

	"github.com/iota-uz/order-saga/modules/inventory/domain/entities/stock"
	"github.com/iota-uz/order-saga/pkg/memtx"
)

// DefaultStock mirrors the seed rows of the inventory migration.
func DefaultStock() []stock.Stock {
	return []stock.Stock{
		{ProductCode: "COMIC_BOOKS", Available: 10},
		{ProductCode: "BOOKS", Available: 2},
		{ProductCode: "MOVIES", Available: 5},
		{ProductCode: "MUSIC", Available: 9},
	}
}

// MemoryStockRepository relies on memtx serializing transactions, so a read in
// GetForUpdate stays valid until the unit of work ends.
type MemoryStockRepository struct {
	db        *memtx.DB
	mu        sync.RWMutex
	stock     map[string]int
	movements []stock.Movement
}

func NewMemoryStockRepository(db *memtx.DB, seed ...stock.Stock) *MemoryStockRepository {
	r := &MemoryStockRepository{db: db, stock: make(map[string]int, len(seed))}
	for _, s := range seed {
		r.stock[s.ProductCode] = s.Available
	}
	return r
}

func (r *MemoryStockRepository) GetForUpdate(ctx context.Context, code string) (stock.Stock, error) {
	if !r.db.Active(ctx) {
		return stock.Stock{}, memtx.ErrNoTx
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	available, ok := r.stock[code]
	if !ok {
		return stock.Stock{}, stock.ErrStockNotFound
	}
	return stock.Stock{ProductCode: code, Available: available}, nil
}

func (r *MemoryStockRepository) SetAvailable(ctx context.Context, code string, available int) error {
	if !r.db.Active(ctx) {
		return memtx.ErrNoTx
	}
	r.mu.Lock()
	prev, ok := r.stock[code]
	if !ok {
		r.mu.Unlock()
		return stock.ErrStockNotFound
	}
	r.stock[code] = available
	r.mu.Unlock()
	return memtx.OnRollback(ctx, func() {
		r.mu.Lock()
		r.stock[code] = prev
		r.mu.Unlock()
	})
}

func (r *MemoryStockRepository) AddMovement(ctx context.Context, m stock.Movement) error {
	if !r.db.Active(ctx) {
		return memtx.ErrNoTx
	}
	r.mu.Lock()
	r.movements = append(r.movements, m)
	n := len(r.movements)
	r.mu.Unlock()
	return memtx.OnRollback(ctx, func() {
		r.mu.Lock()
		r.movements = r.movements[:n-1]
		r.mu.Unlock()
	})
}

func (r *MemoryStockRepository) Movements(_ context.Context, orderID, transactionID string) ([]stock.Movement, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []stock.Movement
	for _, m := range r.movements {
		if m.OrderID == orderID && m.TransactionID == transactionID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryStockRepository) GetAll(_ context.Context) ([]stock.Stock, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]stock.Stock, 0, len(r.stock))
	for code, available := range r.stock {
		out = append(out, stock.Stock{ProductCode: code, Available: available})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductCode < out[j].ProductCode })
	return out, nil
}

// Available is a lock-free read for tests and the simulator.
func (r *MemoryStockRepository) Available(code string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stock[code]
}
