// Package postgres is the pgx-backed outbox store. Append joins the
// transaction bound to the context by composables.InTx; every other method
// runs on the pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iota-uz/order-saga/pkg/composables"
	"github.com/iota-uz/order-saga/pkg/outbox"
)

const DefaultTable = "outbox_event"

type Store struct {
	pool  *pgxpool.Pool
	table pgx.Identifier
	name  string
}

func New(pool *pgxpool.Pool, table pgx.Identifier) *Store {
	if len(table) == 0 {
		table = pgx.Identifier{DefaultTable}
	}
	return &Store{pool: pool, table: table, name: table.Sanitize()}
}

// Transactor opens pgx transactions on the store's pool.
func (s *Store) Transactor() outbox.Transactor {
	return outbox.TransactorFunc(func(ctx context.Context, fn func(context.Context) error) error {
		return composables.InTx(composables.WithPool(ctx, s.pool), fn)
	})
}

const recordColumns = `id, aggregate_id, event_type, event_data, destination, created_at,
	processed, processed_at, retry_count, COALESCE(error_message, ''),
	COALESCE(trace_parent, ''), COALESCE(trace_state, '')`

func (s *Store) Append(ctx context.Context, rec *outbox.Record) error {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return outbox.ErrNoTx
	}
	q := fmt.Sprintf(`
		INSERT INTO %s (id, aggregate_id, event_type, event_data, destination, created_at,
			processed, retry_count, trace_parent, trace_state)
		VALUES ($1, $2, $3, $4, $5, $6, false, 0, NULLIF($7, ''), NULLIF($8, ''))`, s.name)
	if _, err := tx.Exec(ctx, q,
		rec.ID, rec.AggregateID, rec.EventType, rec.EventData, rec.Destination, rec.CreatedAt,
		rec.TraceParent, rec.TraceState,
	); err != nil {
		return gerrors.Wrap(err, "outbox append")
	}
	return nil
}

func (s *Store) QueryPending(ctx context.Context, maxRetry, limit int) ([]outbox.Record, error) {
	q := fmt.Sprintf(`
		SELECT %s
		  FROM %s
		 WHERE processed = false
		   AND retry_count < $1
		 ORDER BY created_at, id
		 LIMIT $2`, recordColumns, s.name)
	rows, err := s.pool.Query(ctx, q, maxRetry, limit)
	if err != nil {
		return nil, gerrors.Wrap(err, "outbox query pending")
	}
	return collect(rows)
}

func (s *Store) MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error {
	q := fmt.Sprintf(`
		UPDATE %s
		   SET processed = true,
		       processed_at = $2
		 WHERE id = $1`, s.name)
	return s.execOne(ctx, "outbox mark delivered", q, id, at)
}

func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	q := fmt.Sprintf(`
		UPDATE %s
		   SET retry_count = retry_count + CASE WHEN processed THEN 0 ELSE 1 END,
		       error_message = CASE WHEN processed THEN error_message ELSE $2 END
		 WHERE id = $1`, s.name)
	return s.execOne(ctx, "outbox mark failed", q, id, errMsg)
}

func (s *Store) PurgeDeliveredOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	q := fmt.Sprintf(`DELETE FROM %s WHERE processed = true AND processed_at < $1`, s.name)
	tag, err := s.pool.Exec(ctx, q, cutoff)
	if err != nil {
		return 0, gerrors.Wrap(err, "outbox purge")
	}
	return tag.RowsAffected(), nil
}

func (s *Store) Stats(ctx context.Context, maxRetry int, now time.Time) (outbox.Stats, error) {
	stats := outbox.Stats{RetryDistribution: map[int]int64{}}

	q := fmt.Sprintf(`
		SELECT count(*) FILTER (WHERE NOT processed AND retry_count < $1),
		       count(*) FILTER (WHERE NOT processed AND retry_count >= $1),
		       count(*) FILTER (WHERE processed),
		       min(created_at) FILTER (WHERE NOT processed AND retry_count < $1)
		  FROM %s`, s.name)
	var oldest *time.Time
	if err := s.pool.QueryRow(ctx, q, maxRetry).Scan(&stats.Pending, &stats.Dead, &stats.Delivered, &oldest); err != nil {
		return outbox.Stats{}, gerrors.Wrap(err, "outbox stats")
	}
	if oldest != nil {
		stats.OldestPendingAge = now.Sub(*oldest)
	}

	dq := fmt.Sprintf(`SELECT retry_count, count(*) FROM %s WHERE NOT processed GROUP BY retry_count`, s.name)
	rows, err := s.pool.Query(ctx, dq)
	if err != nil {
		return outbox.Stats{}, gerrors.Wrap(err, "outbox retry distribution")
	}
	defer rows.Close()
	for rows.Next() {
		var retries int
		var n int64
		if err := rows.Scan(&retries, &n); err != nil {
			return outbox.Stats{}, gerrors.Wrap(err, "outbox retry distribution scan")
		}
		stats.RetryDistribution[retries] = n
	}
	return stats, rows.Err()
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (outbox.Record, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, recordColumns, s.name)
	rows, err := s.pool.Query(ctx, q, id)
	if err != nil {
		return outbox.Record{}, gerrors.Wrap(err, "outbox get")
	}
	recs, err := collect(rows)
	if err != nil {
		return outbox.Record{}, err
	}
	if len(recs) == 0 {
		return outbox.Record{}, outbox.ErrRecordNotFound
	}
	return recs[0], nil
}

func (s *Store) ListDead(ctx context.Context, maxRetry, limit int) ([]outbox.Record, error) {
	q := fmt.Sprintf(`
		SELECT %s
		  FROM %s
		 WHERE processed = false
		   AND retry_count >= $1
		 ORDER BY created_at, id
		 LIMIT $2`, recordColumns, s.name)
	rows, err := s.pool.Query(ctx, q, maxRetry, limit)
	if err != nil {
		return nil, gerrors.Wrap(err, "outbox list dead")
	}
	return collect(rows)
}

func (s *Store) Requeue(ctx context.Context, id uuid.UUID) error {
	q := fmt.Sprintf(`
		UPDATE %s
		   SET retry_count = 0,
		       error_message = NULL
		 WHERE id = $1 AND processed = false`, s.name)
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return gerrors.Wrap(err, "outbox requeue")
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) execOne(ctx context.Context, op, q string, args ...any) error {
	tag, err := s.pool.Exec(ctx, q, args...)
	if err != nil {
		return gerrors.Wrap(err, op)
	}
	if tag.RowsAffected() == 0 {
		return outbox.ErrRecordNotFound
	}
	return nil
}

func collect(rows pgx.Rows) ([]outbox.Record, error) {
	defer rows.Close()
	var out []outbox.Record
	for rows.Next() {
		var r outbox.Record
		if err := rows.Scan(
			&r.ID, &r.AggregateID, &r.EventType, &r.EventData, &r.Destination, &r.CreatedAt,
			&r.Processed, &r.ProcessedAt, &r.RetryCount, &r.ErrorMessage,
			&r.TraceParent, &r.TraceState,
		); err != nil {
			return nil, gerrors.Wrap(err, "outbox scan")
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, gerrors.Wrap(err, "outbox rows")
	}
	return out, nil
}
