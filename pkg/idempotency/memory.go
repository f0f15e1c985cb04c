package idempotency

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	state   State
	expires time.Time
}

type MemoryGuard struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{entries: map[string]entry{}, now: time.Now}
}

func (g *MemoryGuard) Begin(_ context.Context, k string, lease time.Duration) (State, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	if e, ok := g.entries[k]; ok && now.Before(e.expires) {
		return e.state, nil
	}
	g.entries[k] = entry{state: InFlight, expires: now.Add(lease)}
	return Acquired, nil
}

func (g *MemoryGuard) Complete(_ context.Context, k string, ttl time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[k] = entry{state: Done, expires: g.now().Add(ttl)}
	return nil
}

func (g *MemoryGuard) Release(_ context.Context, k string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.entries, k)
	return nil
}
