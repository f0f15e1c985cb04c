package outbox

import (
	"context"
	"errors"
	"time"
)

// Relay delivers pending records to a Dispatcher. Each tick fetches the
// oldest pending records below the retry cap and hands them off one by one,
// never inside a store transaction.
type Relay struct {
	store      Store
	dispatcher Dispatcher
	opts       RelayOptions

	m *metrics
}

func NewRelay(store Store, dispatcher Dispatcher, opts RelayOptions) (*Relay, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	if dispatcher == nil {
		return nil, invalidConfig("dispatcher is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts.setDefaults()

	return &Relay{
		store:      store,
		dispatcher: dispatcher,
		opts:       opts,
		m:          getMetrics(),
	}, nil
}

// MaxRetry is the retry cap the relay queries with.
func (r *Relay) MaxRetry() int {
	return r.opts.MaxRetry
}

func (r *Relay) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}

	if r.opts.Locker != nil {
		return r.runSingleActive(ctx)
	}

	r.m.relayLeader.WithLabelValues(r.opts.Name).Set(1)
	return r.runLoop(ctx)
}

func (r *Relay) runSingleActive(ctx context.Context) error {
	for {
		unlock, leader, err := r.opts.Locker.TryLock(ctx)
		if err != nil {
			r.opts.Logger.WithError(err).Warn("outbox: failed to attempt relay lock")
		}
		if err != nil || !leader {
			r.m.relayLeader.WithLabelValues(r.opts.Name).Set(0)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.opts.PollInterval):
				continue
			}
		}

		r.m.relayLeader.WithLabelValues(r.opts.Name).Set(1)
		r.opts.Logger.WithField("store", r.opts.Name).Info("outbox: relay became leader")

		err = r.runLoop(ctx)
		if unlockErr := unlock(context.Background()); unlockErr != nil {
			r.opts.Logger.WithError(unlockErr).Warn("outbox: failed to release relay lock")
		}
		r.m.relayLeader.WithLabelValues(r.opts.Name).Set(0)
		return err
	}
}

func (r *Relay) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()

	nextStatsAt := r.opts.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-r.opts.Wake:
		}

		if r.opts.Now().After(nextStatsAt) {
			if err := r.observeStats(ctx); err != nil {
				r.opts.Logger.WithError(err).Debug("outbox: observe stats failed")
			}
			nextStatsAt = r.opts.Now().Add(r.opts.ObserveStatsEvery)
		}

		if err := r.Tick(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			r.opts.Logger.WithError(err).Warn("outbox: process tick failed")
		}
	}
}

// Tick runs a single delivery pass. Once a record fails, later records of the
// same aggregate wait for the next tick so they never overtake it.
func (r *Relay) Tick(ctx context.Context) error {
	batch, err := r.store.QueryPending(ctx, r.opts.MaxRetry, r.opts.BatchSize)
	if err != nil {
		return err
	}

	blocked := make(map[string]struct{})
	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, ok := blocked[rec.AggregateID]; ok {
			continue
		}

		dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
		start := time.Now()
		err := r.dispatcher.Dispatch(dispatchCtx, rec.dispatched(r.opts.Name))
		if err == nil && dispatchCtx.Err() != nil {
			err = dispatchCtx.Err()
		}
		cancel()
		latency := time.Since(start)

		if err == nil {
			r.recordDispatch(rec.Destination, "success", latency)
			if ackErr := r.store.MarkDelivered(ctx, rec.ID, r.opts.Now().UTC()); ackErr != nil {
				r.opts.Logger.WithError(ackErr).WithFields(logFields(r.opts.Name, rec)).Warn("outbox: mark delivered failed")
			}
			continue
		}

		blocked[rec.AggregateID] = struct{}{}
		r.recordDispatch(rec.Destination, "failure", latency)
		lastErr := truncateError(err, r.opts.LastErrorMaxLen)
		if failErr := r.store.MarkFailed(ctx, rec.ID, lastErr); failErr != nil {
			r.opts.Logger.WithError(failErr).WithFields(logFields(r.opts.Name, rec)).Warn("outbox: mark failed failed")
			continue
		}

		if rec.RetryCount+1 >= r.opts.MaxRetry {
			r.m.deadTotal.WithLabelValues(r.opts.Name, rec.Destination).Inc()
			r.opts.Logger.WithError(err).WithFields(logFields(r.opts.Name, rec)).Error("outbox: record reached retry cap")
			continue
		}
		r.opts.Logger.WithError(err).WithFields(logFields(r.opts.Name, rec)).Warn("outbox: dispatch failed, will retry")
	}

	return nil
}

func (r *Relay) observeStats(ctx context.Context) error {
	stats, err := r.store.Stats(ctx, r.opts.MaxRetry, r.opts.Now())
	if err != nil {
		return err
	}
	r.m.pending.WithLabelValues(r.opts.Name).Set(float64(stats.Pending))
	r.m.dead.WithLabelValues(r.opts.Name).Set(float64(stats.Dead))
	return nil
}

func (r *Relay) recordDispatch(destination, result string, latency time.Duration) {
	r.m.dispatchTotal.WithLabelValues(r.opts.Name, destination, result).Inc()
	r.m.dispatchLatency.WithLabelValues(r.opts.Name, destination, result).Observe(latency.Seconds())
}
