package broker

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

type RetryOptions struct {
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	JitterMax   time.Duration
	Rand        *rand.Rand
	Logger      *logrus.Entry
}

func (o *RetryOptions) setDefaults() {
	if o.BaseBackoff == 0 {
		o.BaseBackoff = 100 * time.Millisecond
	}
	if o.MaxBackoff == 0 {
		o.MaxBackoff = 30 * time.Second
	}
	if o.JitterMax == 0 {
		o.JitterMax = 50 * time.Millisecond
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	if o.Logger == nil {
		o.Logger = logrus.NewEntry(logrus.StandardLogger())
	}
}

// Retry wraps h so that a failing message is retried in place with capped
// exponential backoff. The message is never skipped: the wrapper returns only
// when h succeeds or ctx is done.
func Retry(h Handler, opts RetryOptions) Handler {
	opts.setDefaults()
	return func(ctx context.Context, msg Message) error {
		for attempt := 1; ; attempt++ {
			err := h(ctx, msg)
			if err == nil {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait := backoff(attempt, opts.BaseBackoff, opts.MaxBackoff) + jitter(opts.Rand, opts.JitterMax)
			opts.Logger.WithError(err).WithFields(logrus.Fields{
				"topic":   msg.Topic,
				"key":     msg.Key,
				"attempt": attempt,
				"wait":    wait.String(),
			}).Warn("broker: handler failed, retrying")

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
}
