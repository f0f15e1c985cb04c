// Package memory is an in-process outbox store bound to a memtx.DB, used by
// the simulator and by tests.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/outbox"
)

type Store struct {
	db *memtx.DB

	mu      sync.RWMutex
	records []*outbox.Record
}

func New(db *memtx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, rec *outbox.Record) error {
	if !s.db.Active(ctx) {
		return outbox.ErrNoTx
	}
	cp := *rec
	s.mu.Lock()
	s.records = append(s.records, &cp)
	s.mu.Unlock()

	return memtx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.records = slices.DeleteFunc(s.records, func(r *outbox.Record) bool { return r.ID == cp.ID })
	})
}

func (s *Store) QueryPending(_ context.Context, maxRetry, limit int) ([]outbox.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []outbox.Record
	for _, r := range s.records {
		if !r.Processed && r.RetryCount < maxRetry {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) MarkDelivered(_ context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return outbox.ErrRecordNotFound
	}
	r.Processed = true
	r.ProcessedAt = &at
	return nil
}

func (s *Store) MarkFailed(_ context.Context, id uuid.UUID, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return outbox.ErrRecordNotFound
	}
	if r.Processed {
		return nil
	}
	r.RetryCount++
	r.ErrorMessage = errMsg
	return nil
}

func (s *Store) PurgeDeliveredOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.records)
	s.records = slices.DeleteFunc(s.records, func(r *outbox.Record) bool {
		return r.Processed && r.ProcessedAt != nil && r.ProcessedAt.Before(cutoff)
	})
	return int64(before - len(s.records)), nil
}

func (s *Store) Stats(_ context.Context, maxRetry int, now time.Time) (outbox.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := outbox.Stats{RetryDistribution: map[int]int64{}}
	var oldest *time.Time
	for _, r := range s.records {
		if r.Processed {
			stats.Delivered++
			continue
		}
		stats.RetryDistribution[r.RetryCount]++
		if r.RetryCount >= maxRetry {
			stats.Dead++
			continue
		}
		stats.Pending++
		if oldest == nil || r.CreatedAt.Before(*oldest) {
			created := r.CreatedAt
			oldest = &created
		}
	}
	if oldest != nil {
		stats.OldestPendingAge = now.Sub(*oldest)
	}
	return stats, nil
}

func (s *Store) Get(_ context.Context, id uuid.UUID) (outbox.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := s.find(id)
	if r == nil {
		return outbox.Record{}, outbox.ErrRecordNotFound
	}
	return *r, nil
}

func (s *Store) ListDead(_ context.Context, maxRetry, limit int) ([]outbox.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []outbox.Record
	for _, r := range s.records {
		if !r.Processed && r.RetryCount >= maxRetry {
			out = append(out, *r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Requeue(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := s.find(id)
	if r == nil {
		return outbox.ErrRecordNotFound
	}
	if r.Processed {
		return nil
	}
	r.RetryCount = 0
	r.ErrorMessage = ""
	return nil
}

// All returns a snapshot of every record in append order.
func (s *Store) All() []outbox.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]outbox.Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, *r)
	}
	return out
}

func (s *Store) find(id uuid.UUID) *outbox.Record {
	for _, r := range s.records {
		if r.ID == id {
			return r
		}
	}
	return nil
}
