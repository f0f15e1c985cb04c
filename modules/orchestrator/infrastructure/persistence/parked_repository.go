package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/order-saga/modules/orchestrator/domain/entities/parked"
	"github.com/iota-uz/order-saga/pkg/composables"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const (
	parkedColumns = `id, transaction_id, aggregate_id, source, status, event_data, reason, parked_at, reprocessed_at`

	insertParkedQuery = `
		INSERT INTO orchestrator_parked_event (` + parkedColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	selectParkedQuery = `SELECT ` + parkedColumns + ` FROM orchestrator_parked_event WHERE id = $1`

	listOpenParkedQuery = `
		SELECT ` + parkedColumns + `
		  FROM orchestrator_parked_event
		 WHERE reprocessed_at IS NULL
		 ORDER BY parked_at
		 LIMIT $1`

	markReprocessedQuery = `
		UPDATE orchestrator_parked_event
		   SET reprocessed_at = $2
		 WHERE id = $1 AND reprocessed_at IS NULL`
)

type ParkedRepository struct{}

func NewParkedRepository() parked.Repository {
	return &ParkedRepository{}
}

func (r *ParkedRepository) Save(ctx context.Context, e parked.Event) error {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, insertParkedQuery,
		e.ID, e.TransactionID, e.AggregateID, string(e.Source), string(e.Status), e.EventData, e.Reason, e.ParkedAt, e.ReprocessedAt,
	); err != nil {
		return gerrors.Wrap(err, "park event")
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanParked(row scanner) (parked.Event, error) {
	var e parked.Event
	var source, status string
	if err := row.Scan(&e.ID, &e.TransactionID, &e.AggregateID, &source, &status, &e.EventData, &e.Reason, &e.ParkedAt, &e.ReprocessedAt); err != nil {
		return parked.Event{}, err
	}
	e.Source = saga.Source(source)
	e.Status = saga.Status(status)
	return e, nil
}

func (r *ParkedRepository) Get(ctx context.Context, id uuid.UUID) (parked.Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return parked.Event{}, err
	}
	e, err := scanParked(tx.QueryRow(ctx, selectParkedQuery, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return parked.Event{}, parked.ErrParkedNotFound
	}
	if err != nil {
		return parked.Event{}, gerrors.Wrap(err, "get parked event")
	}
	return e, nil
}

func (r *ParkedRepository) ListOpen(ctx context.Context, limit int) ([]parked.Event, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, listOpenParkedQuery, limit)
	if err != nil {
		return nil, gerrors.Wrap(err, "list parked events")
	}
	defer rows.Close()

	var out []parked.Event
	for rows.Next() {
		e, err := scanParked(rows)
		if err != nil {
			return nil, gerrors.Wrap(err, "scan parked event")
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *ParkedRepository) MarkReprocessed(ctx context.Context, id uuid.UUID, at time.Time) error {
	tx, err := composables.UseStrictTx(ctx)
	if err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, markReprocessedQuery, id, at)
	if err != nil {
		return gerrors.Wrap(err, "mark parked event reprocessed")
	}
	if tag.RowsAffected() == 0 {
		return parked.ErrParkedNotFound
	}
	return nil
}
