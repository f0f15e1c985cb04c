package outbox

import (
	"context"
	"errors"
	"time"
)

// Cleaner removes delivered records past the retention window. It runs on
// its own schedule and never shares a transaction with delivery.
type Cleaner struct {
	store Store
	opts  CleanerOptions
	m     *metrics
}

func NewCleaner(store Store, opts CleanerOptions) (*Cleaner, error) {
	if store == nil {
		return nil, invalidConfig("store is required")
	}
	if opts.Retention < 0 {
		return nil, invalidConfig("retention must be positive, got %s", opts.Retention)
	}
	opts.setDefaults()
	return &Cleaner{
		store: store,
		opts:  opts,
		m:     getMetrics(),
	}, nil
}

func (c *Cleaner) Run(ctx context.Context) error {
	if ctx == nil {
		return invalidConfig("ctx is required")
	}
	if !c.opts.Enabled {
		return nil
	}

	ticker := time.NewTicker(c.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if _, err := c.CleanOnce(ctx); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			c.opts.Logger.WithError(err).WithField("store", c.opts.Name).Warn("outbox: cleaner tick failed")
		}
	}
}

func (c *Cleaner) CleanOnce(ctx context.Context) (int64, error) {
	cutoff := c.opts.Now().Add(-c.opts.Retention)
	n, err := c.store.PurgeDeliveredOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		c.m.purgedTotal.WithLabelValues(c.opts.Name).Add(float64(n))
		c.opts.Logger.WithField("store", c.opts.Name).WithField("purged", n).Info("outbox: purged delivered records")
	}
	return n, nil
}
