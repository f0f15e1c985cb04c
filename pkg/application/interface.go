package application

import (
	"context"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/eventbus"
	"github.com/iota-uz/order-saga/pkg/memtx"
	"github.com/iota-uz/order-saga/pkg/outbox"
	"github.com/iota-uz/order-saga/pkg/saga"
)

// Controller mounts HTTP handlers on the ops router.
type Controller interface {
	Register(r *mux.Router)
	Key() string
}

// Module is one saga service. Register wires its repositories, step handler
// and broker subscriptions into app.
type Module interface {
	Register(app Application) error
	Name() string
}

// Runner is a long-running loop started by Run; it returns when ctx is done.
type Runner func(ctx context.Context) error

type Subscription struct {
	Topic   string
	Group   string
	Handler broker.Handler
}

// OutboxEntry is a registered outbox and the relay draining it.
type OutboxEntry struct {
	Outbox *outbox.Outbox
	Relay  *outbox.Relay
}

type Application interface {
	Logger() *logrus.Logger
	EventPublisher() eventbus.EventBus
	Broker() broker.Broker
	Topology() saga.Topology
	Topics() saga.Topics

	// Pool returns the database of service, or nil when it runs on memory
	// storage.
	Pool(service string) *pgxpool.Pool
	// Mongo is nil when the order service runs on memory storage.
	Mongo() *mongo.Database

	RegisterServices(services ...interface{})
	Service(service interface{}) interface{}
	Services() map[reflect.Type]interface{}

	RegisterControllers(controllers ...Controller)
	Controllers() []Controller

	// NewOutbox builds and registers the outbox of a relational service: on
	// Postgres when Pool(name) is set, otherwise on a fresh memtx.DB which is
	// returned so the service's repositories share its unit of work.
	NewOutbox(name string) (*outbox.Outbox, *memtx.DB, error)

	// RegisterOutbox creates the relay and cleaner of ob. locker may be nil.
	RegisterOutbox(ob *outbox.Outbox, locker outbox.Locker) error
	Outboxes() []OutboxEntry
	Outbox(name string) (OutboxEntry, bool)

	// Subscribe consumes topic as group. h is wrapped with in-place retry and,
	// when configured, the idempotency guard.
	Subscribe(topic, group string, h broker.Handler)
	Subscriptions() []Subscription

	RegisterRunner(name string, r Runner)

	// Run starts every subscription and runner and blocks until ctx is done
	// or one of them fails.
	Run(ctx context.Context) error
}
