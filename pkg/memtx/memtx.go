// Package memtx provides a process-local unit of work for in-memory
// repositories. A DB serializes its transactions; repositories register undo
// steps that run in reverse order when the transaction function fails.
package memtx

import (
	"context"
	"errors"
	"sync"
)

var ErrNoTx = errors.New("memtx: no transaction found in context")

type ctxKey struct{}

type DB struct {
	mu sync.Mutex
}

func New() *DB {
	return &DB{}
}

type tx struct {
	db   *DB
	undo []func()
}

// InTx runs fn in a transaction of db. Nested calls on the same db join the
// outer transaction.
func (db *DB) InTx(ctx context.Context, fn func(context.Context) error) error {
	if t, ok := ctx.Value(ctxKey{}).(*tx); ok && t.db == db {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	t := &tx{db: db}
	if err := fn(context.WithValue(ctx, ctxKey{}, t)); err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		return err
	}
	return nil
}

// OnRollback registers undo for the transaction bound to ctx.
func OnRollback(ctx context.Context, undo func()) error {
	t, ok := ctx.Value(ctxKey{}).(*tx)
	if !ok {
		return ErrNoTx
	}
	t.undo = append(t.undo, undo)
	return nil
}

// Active reports whether ctx carries a transaction of db.
func (db *DB) Active(ctx context.Context) bool {
	t, ok := ctx.Value(ctxKey{}).(*tx)
	return ok && t.db == db
}
