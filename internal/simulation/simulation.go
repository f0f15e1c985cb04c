// Package simulation runs every saga service in one process over the
// in-memory broker and memory storage.
package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iota-uz/order-saga/modules"
	invpersistence "github.com/iota-uz/order-saga/modules/inventory/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	orderservices "github.com/iota-uz/order-saga/modules/order/services"
	"github.com/iota-uz/order-saga/modules/payment/domain/entities/payment"
	paypersistence "github.com/iota-uz/order-saga/modules/payment/infrastructure/persistence"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/broker/memory"
	"github.com/iota-uz/order-saga/pkg/idempotency"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type Options struct {
	Topology saga.Topology
	Logger   *logrus.Logger

	// PollInterval of every relay. Enqueues also wake the relay, so this
	// mostly bounds how fast failed records are retried.
	PollInterval time.Duration
	MaxRetry     int

	PaymentSimulateFailure bool

	// Dedup enables the idempotent-consumer guard.
	Dedup idempotency.Guard
}

type Simulation struct {
	App    application.Application
	Broker *memory.Broker

	orders   *orderservices.OrderService
	stock    *invpersistence.MemoryStockRepository
	payments *paypersistence.MemoryPaymentRepository
}

func New(opts Options) (*Simulation, error) {
	if opts.Topology == "" {
		opts.Topology = saga.Orchestrated
	}
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetLevel(logrus.WarnLevel)
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = 25 * time.Millisecond
	}

	bus := memory.New(opts.Logger.WithField("component", "memory-broker"))
	app := application.New(&application.ApplicationOptions{
		Logger:   opts.Logger,
		Broker:   bus,
		Topology: opts.Topology,
		Topics:   saga.DefaultTopics(),
		Relay: outbox.RelayOptions{
			PollInterval:    opts.PollInterval,
			MaxRetry:        opts.MaxRetry,
			DispatchTimeout: time.Second,
		},
		Cleaner: outbox.CleanerOptions{Enabled: false},
		Breaker: broker.BreakerOptions{ConsecutiveFailures: 1000},
		Retry: broker.RetryOptions{
			BaseBackoff: 5 * time.Millisecond,
			MaxBackoff:  100 * time.Millisecond,
			JitterMax:   time.Millisecond,
		},
		Dedup: opts.Dedup,
	})

	mods := modules.BuiltInModules(opts.Topology, modules.Options{PaymentSimulateFailure: opts.PaymentSimulateFailure})
	if err := modules.Load(app, mods...); err != nil {
		return nil, err
	}

	return &Simulation{
		App:      app,
		Broker:   bus,
		orders:   app.Service(orderservices.OrderService{}).(*orderservices.OrderService),
		stock:    app.Service(invpersistence.MemoryStockRepository{}).(*invpersistence.MemoryStockRepository),
		payments: app.Service(paypersistence.MemoryPaymentRepository{}).(*paypersistence.MemoryPaymentRepository),
	}, nil
}

// Run blocks until ctx is done.
func (s *Simulation) Run(ctx context.Context) error {
	return s.App.Run(ctx)
}

func (s *Simulation) PlaceOrder(ctx context.Context, products ...saga.OrderProduct) (order.Order, error) {
	return s.orders.CreateOrder(ctx, products)
}

// AwaitOrder polls until the order is terminal or timeout elapses.
func (s *Simulation) AwaitOrder(ctx context.Context, id string, timeout time.Duration) (order.Order, error) {
	deadline := time.Now().Add(timeout)
	for {
		o, err := s.orders.Get(ctx, id)
		if err != nil {
			return order.Order{}, err
		}
		if o.Status.Terminal() {
			return o, nil
		}
		if time.Now().After(deadline) {
			return o, fmt.Errorf("simulation: order %s still %s after %s", id, o.Status, timeout)
		}
		select {
		case <-ctx.Done():
			return o, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func (s *Simulation) Available(code string) int {
	return s.stock.Available(code)
}

func (s *Simulation) Payments() []payment.Payment {
	return s.payments.All()
}

// Relay returns the relay of the named service's outbox.
func (s *Simulation) Relay(service string) *outbox.Relay {
	e, ok := s.App.Outbox(service)
	if !ok {
		return nil
	}
	return e.Relay
}
