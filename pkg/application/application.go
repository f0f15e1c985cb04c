package application

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/eventbus"
	"github.com/iota-uz/order-saga/pkg/idempotency"
	"github.com/iota-uz/order-saga/pkg/outbox"
	dispatcher "github.com/iota-uz/order-saga/pkg/outbox/dispatchers/broker"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type ApplicationOptions struct {
	Logger   *logrus.Logger
	EventBus eventbus.EventBus
	Broker   broker.Broker
	Topology saga.Topology
	Topics   saga.Topics
	// Pools maps a service name to its database.
	Pools map[string]*pgxpool.Pool
	Mongo *mongo.Database
	// OutboxTable is the Postgres outbox table; empty means outbox_event.
	OutboxTable pgx.Identifier

	// SingleActive makes Postgres relays take an advisory lock per tick.
	SingleActive bool
	// DisableRelay registers relays for inspection without running them.
	DisableRelay bool

	// Relay and Cleaner are templates; Name, Wake and Locker are set per outbox.
	Relay   outbox.RelayOptions
	Cleaner outbox.CleanerOptions
	Breaker broker.BreakerOptions
	Retry   broker.RetryOptions

	// Dedup enables the idempotent-consumer guard when set.
	Dedup        idempotency.Guard
	DedupOptions idempotency.Options
}

func New(opts *ApplicationOptions) Application {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	bus := opts.EventBus
	if bus == nil {
		bus = eventbus.NewEventPublisher(logger)
	}
	return &application{
		opts:        *opts,
		logger:      logger,
		bus:         bus,
		services:    make(map[reflect.Type]interface{}),
		controllers: make(map[string]Controller),
		runners:     make(map[string]Runner),
	}
}

type application struct {
	opts   ApplicationOptions
	logger *logrus.Logger
	bus    eventbus.EventBus

	services      map[reflect.Type]interface{}
	controllers   map[string]Controller
	outboxes      []OutboxEntry
	subscriptions []Subscription
	runners       map[string]Runner
}

func (app *application) Logger() *logrus.Logger {
	return app.logger
}

func (app *application) EventPublisher() eventbus.EventBus {
	return app.bus
}

func (app *application) Broker() broker.Broker {
	return app.opts.Broker
}

func (app *application) Topology() saga.Topology {
	return app.opts.Topology
}

func (app *application) Topics() saga.Topics {
	return app.opts.Topics
}

func (app *application) Pool(service string) *pgxpool.Pool {
	return app.opts.Pools[service]
}

func (app *application) Mongo() *mongo.Database {
	return app.opts.Mongo
}

// RegisterServices registers a new service in the application by its type
func (app *application) RegisterServices(services ...interface{}) {
	for _, service := range services {
		serviceType := reflect.TypeOf(service).Elem()
		app.services[serviceType] = service
	}
}

// Service retrieves a service by its type
func (app *application) Service(service interface{}) interface{} {
	serviceType := reflect.TypeOf(service)
	svc, exists := app.services[serviceType]
	if !exists {
		panic(fmt.Sprintf("service %s not found", serviceType.Name()))
	}
	return svc
}

func (app *application) Services() map[reflect.Type]interface{} {
	return app.services
}

func (app *application) RegisterControllers(controllers ...Controller) {
	for _, c := range controllers {
		app.controllers[c.Key()] = c
	}
}

func (app *application) Controllers() []Controller {
	controllers := make([]Controller, 0, len(app.controllers))
	for _, c := range app.controllers {
		controllers = append(controllers, c)
	}
	sort.Slice(controllers, func(i, j int) bool { return controllers[i].Key() < controllers[j].Key() })
	return controllers
}

func (app *application) RegisterOutbox(ob *outbox.Outbox, locker outbox.Locker) error {
	if _, ok := app.Outbox(ob.Name()); ok {
		return fmt.Errorf("application: outbox %q already registered", ob.Name())
	}
	entry := app.logger.WithField("outbox", ob.Name())

	breakerOpts := app.opts.Breaker
	breakerOpts.Name = ob.Name()
	breakerOpts.Logger = entry
	pub := broker.NewBreakerPublisher(app.opts.Broker, breakerOpts)

	relayOpts := app.opts.Relay
	relayOpts.Name = ob.Name()
	relayOpts.Wake = ob.Wake()
	relayOpts.Locker = locker
	relayOpts.Logger = entry.WithField("component", "relay")
	relay, err := outbox.NewRelay(ob.Store(), dispatcher.New(pub), relayOpts)
	if err != nil {
		return err
	}

	cleanerOpts := app.opts.Cleaner
	cleanerOpts.Name = ob.Name()
	cleanerOpts.Logger = entry.WithField("component", "cleaner")
	cleaner, err := outbox.NewCleaner(ob.Store(), cleanerOpts)
	if err != nil {
		return err
	}

	app.outboxes = append(app.outboxes, OutboxEntry{Outbox: ob, Relay: relay})
	if !app.opts.DisableRelay {
		app.RegisterRunner(ob.Name()+"-relay", relay.Run)
	}
	app.RegisterRunner(ob.Name()+"-cleaner", cleaner.Run)
	return nil
}

func (app *application) Outboxes() []OutboxEntry {
	return slices.Clone(app.outboxes)
}

func (app *application) Outbox(name string) (OutboxEntry, bool) {
	for _, e := range app.outboxes {
		if e.Outbox.Name() == name {
			return e, true
		}
	}
	return OutboxEntry{}, false
}

func (app *application) Subscribe(topic, group string, h broker.Handler) {
	if app.opts.Dedup != nil {
		dedupOpts := app.opts.DedupOptions
		dedupOpts.Logger = app.logger.WithField("group", group)
		h = idempotency.Wrap(app.opts.Dedup, saga.MessageKey, h, dedupOpts)
	}
	retryOpts := app.opts.Retry
	retryOpts.Logger = app.logger.WithFields(logrus.Fields{"group": group, "topic": topic})
	app.subscriptions = append(app.subscriptions, Subscription{
		Topic:   topic,
		Group:   group,
		Handler: broker.Retry(h, retryOpts),
	})
}

func (app *application) Subscriptions() []Subscription {
	return slices.Clone(app.subscriptions)
}

func (app *application) RegisterRunner(name string, r Runner) {
	app.runners[name] = r
}

func (app *application) Run(ctx context.Context) error {
	if app.opts.Broker == nil {
		return errors.New("application: broker is required")
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range app.subscriptions {
		g.Go(func() error {
			app.logger.WithFields(logrus.Fields{"topic": sub.Topic, "group": sub.Group}).Info("consumer started")
			return ignoreCanceled(app.opts.Broker.Subscribe(gctx, sub.Topic, sub.Group, sub.Handler))
		})
	}
	for name, r := range app.runners {
		g.Go(func() error {
			app.logger.WithField("runner", name).Info("runner started")
			if err := ignoreCanceled(r(gctx)); err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

// WaitIdle blocks until every registered outbox has no pending record or
// timeout elapses.
func WaitIdle(ctx context.Context, app Application, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		idle := true
		for _, e := range app.Outboxes() {
			st, err := e.Outbox.Store().Stats(ctx, e.Relay.MaxRetry(), time.Now())
			if err != nil {
				return err
			}
			if st.Pending > 0 {
				idle = false
				break
			}
		}
		if idle {
			return nil
		}
		if time.Now().After(deadline) {
			return context.DeadlineExceeded
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(20 * time.Millisecond):
		}
	}
}
