package postgres

import (
	"context"
	"hash/fnv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Locker elects a single active relay per table with a session-level
// advisory lock. The lock lives as long as the acquired connection.
type Locker struct {
	pool *pgxpool.Pool
	key  int64
}

func NewLocker(pool *pgxpool.Pool, name string) *Locker {
	return &Locker{pool: pool, key: advisoryLockKey("outbox:" + name)}
}

func (l *Locker) TryLock(ctx context.Context) (func(context.Context) error, bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	var ok bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1::bigint)`, l.key).Scan(&ok); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !ok {
		conn.Release()
		return nil, false, nil
	}
	unlock := func(ctx context.Context) error {
		defer conn.Release()
		var released bool
		return conn.QueryRow(ctx, `SELECT pg_advisory_unlock($1::bigint)`, l.key).Scan(&released)
	}
	return unlock, true, nil
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}
