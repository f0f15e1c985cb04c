package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/order-saga/modules/orchestrator/domain/entities/parked"
	"github.com/iota-uz/order-saga/pkg/memtx"
)

type MemoryParkedRepository struct {
	db     *memtx.DB
	mu     sync.RWMutex
	events map[uuid.UUID]parked.Event
}

func NewMemoryParkedRepository(db *memtx.DB) *MemoryParkedRepository {
	return &MemoryParkedRepository{db: db, events: map[uuid.UUID]parked.Event{}}
}

func (r *MemoryParkedRepository) Save(ctx context.Context, e parked.Event) error {
	if !r.db.Active(ctx) {
		return memtx.ErrNoTx
	}
	r.mu.Lock()
	r.events[e.ID] = e
	r.mu.Unlock()
	return memtx.OnRollback(ctx, func() {
		r.mu.Lock()
		delete(r.events, e.ID)
		r.mu.Unlock()
	})
}

func (r *MemoryParkedRepository) Get(_ context.Context, id uuid.UUID) (parked.Event, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.events[id]
	if !ok {
		return parked.Event{}, parked.ErrParkedNotFound
	}
	return e, nil
}

func (r *MemoryParkedRepository) ListOpen(_ context.Context, limit int) ([]parked.Event, error) {
	r.mu.RLock()
	out := make([]parked.Event, 0, len(r.events))
	for _, e := range r.events {
		if e.ReprocessedAt == nil {
			out = append(out, e)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ParkedAt.Before(out[j].ParkedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryParkedRepository) MarkReprocessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	if !r.db.Active(ctx) {
		return memtx.ErrNoTx
	}
	r.mu.Lock()
	e, ok := r.events[id]
	if !ok || e.ReprocessedAt != nil {
		r.mu.Unlock()
		return parked.ErrParkedNotFound
	}
	prev := e
	at = at.UTC()
	e.ReprocessedAt = &at
	r.events[id] = e
	r.mu.Unlock()
	return memtx.OnRollback(ctx, func() {
		r.mu.Lock()
		r.events[id] = prev
		r.mu.Unlock()
	})
}
