// Package idempotency guards consumers against redelivered messages. A key is
// first leased while the handler runs, then marked done once it succeeds. A
// crashed consumer's lease expires, so the message is processed again.
package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/serrors"
)

var ErrInFlight = serrors.NewError("IDEMPOTENCY_IN_FLIGHT", "message is being processed by another consumer", "")

type State int

const (
	Acquired State = iota
	InFlight
	Done
)

type Guard interface {
	// Begin leases key for lease unless it is already leased or done.
	Begin(ctx context.Context, key string, lease time.Duration) (State, error)
	// Complete marks key done for ttl.
	Complete(ctx context.Context, key string, ttl time.Duration) error
	// Release drops the lease so the message can be retried.
	Release(ctx context.Context, key string) error
}

type Options struct {
	Lease  time.Duration
	TTL    time.Duration
	Logger *logrus.Entry
}

func (o *Options) setDefaults() {
	if o.Lease == 0 {
		o.Lease = 30 * time.Second
	}
	if o.TTL == 0 {
		o.TTL = 24 * time.Hour
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
}

// KeyFunc extracts the dedup key of a message. Messages without one pass
// through unguarded.
type KeyFunc func(msg broker.Message) (string, bool)

// Wrap skips messages whose key is done and returns ErrInFlight for keys
// leased by someone else, so the consumer retries them later.
func Wrap(g Guard, key KeyFunc, h broker.Handler, opts Options) broker.Handler {
	opts.setDefaults()
	return func(ctx context.Context, msg broker.Message) error {
		k, ok := key(msg)
		if !ok {
			return h(ctx, msg)
		}
		state, err := g.Begin(ctx, k, opts.Lease)
		if err != nil {
			return fmt.Errorf("idempotency: begin %s: %w", k, err)
		}
		switch state {
		case Done:
			opts.Logger.WithField("key", k).Debug("idempotency: skipping processed message")
			return nil
		case InFlight:
			return fmt.Errorf("%w: %s", ErrInFlight, k)
		}

		if err := h(ctx, msg); err != nil {
			if rerr := g.Release(context.WithoutCancel(ctx), k); rerr != nil {
				opts.Logger.WithError(rerr).WithField("key", k).Warn("idempotency: release failed")
			}
			return err
		}
		if err := g.Complete(context.WithoutCancel(ctx), k, opts.TTL); err != nil {
			// The handler's own ledger still makes a redelivery a no-op.
			opts.Logger.WithError(err).WithField("key", k).Warn("idempotency: complete failed")
		}
		return nil
	}
}
