package outbox

import (
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultPollInterval    = 5 * time.Second
	DefaultMaxRetry        = 3
	DefaultBatchSize       = 100
	DefaultDispatchTimeout = 10 * time.Second
	DefaultRetention       = 7 * 24 * time.Hour
)

type RelayOptions struct {
	// Name labels metrics and logs, usually the owning service.
	Name            string
	PollInterval    time.Duration
	BatchSize       int
	MaxRetry        int
	DispatchTimeout time.Duration
	LastErrorMaxLen int

	// Wake triggers an immediate tick in addition to the periodic one.
	Wake <-chan struct{}

	// Locker enables single-active mode when set.
	Locker Locker

	Logger *logrus.Entry

	ObserveStatsEvery time.Duration

	Now func() time.Time
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.BatchSize == 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.MaxRetry == 0 {
		o.MaxRetry = DefaultMaxRetry
	}
	if o.DispatchTimeout == 0 {
		o.DispatchTimeout = DefaultDispatchTimeout
	}
	if o.LastErrorMaxLen == 0 {
		o.LastErrorMaxLen = 2048
	}
	if o.ObserveStatsEvery == 0 {
		o.ObserveStatsEvery = 10 * time.Second
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = logrusNop()
	}
}

func (o RelayOptions) validate() error {
	if o.PollInterval < 0 {
		return invalidConfig("poll interval must be positive, got %s", o.PollInterval)
	}
	if o.BatchSize < 0 {
		return invalidConfig("batch size must be positive, got %d", o.BatchSize)
	}
	if o.MaxRetry < 0 {
		return invalidConfig("max retry must be positive, got %d", o.MaxRetry)
	}
	if o.DispatchTimeout < 0 {
		return invalidConfig("dispatch timeout must be positive, got %s", o.DispatchTimeout)
	}
	return nil
}

type CleanerOptions struct {
	Name      string
	Enabled   bool
	Interval  time.Duration
	Retention time.Duration

	Logger *logrus.Entry

	Now func() time.Time
}

func (o *CleanerOptions) setDefaults() {
	if o.Interval == 0 {
		o.Interval = time.Hour
	}
	if o.Retention == 0 {
		o.Retention = DefaultRetention
	}
	if o.Logger == nil {
		o.Logger = logrusNop()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}
