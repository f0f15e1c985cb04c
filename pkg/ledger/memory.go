package ledger

import (
	"context"
	"sync"

	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type MemoryRepository struct {
	db      *memtx.DB
	mu      sync.RWMutex
	entries map[saga.Key]Entry
}

func NewMemoryRepository(db *memtx.DB) *MemoryRepository {
	return &MemoryRepository{db: db, entries: map[saga.Key]Entry{}}
}

// Lock is a no-op: memtx already runs one unit of work at a time.
func (r *MemoryRepository) Lock(context.Context, saga.Key) error {
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, key saga.Key) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}

func (r *MemoryRepository) Save(ctx context.Context, e Entry) error {
	if !r.db.Active(ctx) {
		return memtx.ErrNoTx
	}
	key := e.Key()
	r.mu.Lock()
	prev, had := r.entries[key]
	if had {
		e.CreatedAt = prev.CreatedAt
	}
	r.entries[key] = e
	r.mu.Unlock()

	return memtx.OnRollback(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if had {
			r.entries[key] = prev
		} else {
			delete(r.entries, key)
		}
	})
}

// All returns every entry, for inspection.
func (r *MemoryRepository) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}
