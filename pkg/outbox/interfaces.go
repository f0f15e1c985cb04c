package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

// Store persists outbox records. Append is only valid inside a unit of work
// opened by the Transactor that belongs to the same store and returns ErrNoTx
// otherwise. The remaining methods are single-row or set updates that run on
// their own.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	QueryPending(ctx context.Context, maxRetry, limit int) ([]Record, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	PurgeDeliveredOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	Stats(ctx context.Context, maxRetry int, now time.Time) (Stats, error)
	Get(ctx context.Context, id uuid.UUID) (Record, error)
	ListDead(ctx context.Context, maxRetry, limit int) ([]Record, error)
	Requeue(ctx context.Context, id uuid.UUID) error
}

// Transactor opens the unit of work that business mutations and Append share.
type Transactor interface {
	InTx(ctx context.Context, fn func(context.Context) error) error
}

type TransactorFunc func(ctx context.Context, fn func(context.Context) error) error

func (f TransactorFunc) InTx(ctx context.Context, fn func(context.Context) error) error {
	return f(ctx, fn)
}

// Locker grants relay leadership. ok=false means another instance leads.
type Locker interface {
	TryLock(ctx context.Context) (unlock func(context.Context) error, ok bool, err error)
}
