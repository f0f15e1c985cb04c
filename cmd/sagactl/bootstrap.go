package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/iota-uz/order-saga/migrations"
	"github.com/iota-uz/order-saga/modules"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/broker"
	"github.com/iota-uz/order-saga/pkg/broker/kafka"
	"github.com/iota-uz/order-saga/pkg/broker/memory"
	"github.com/iota-uz/order-saga/pkg/broker/rabbitmq"
	"github.com/iota-uz/order-saga/pkg/configuration"
	"github.com/iota-uz/order-saga/pkg/idempotency"
	"github.com/iota-uz/order-saga/pkg/outbox"
)

// runtime is a wired application plus everything that must be closed with it.
type runtime struct {
	conf    *configuration.Configuration
	app     application.Application
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

type bootOptions struct {
	// Inspect wires storage only: memory broker, no relays.
	Inspect bool
}

func connectPool(ctx context.Context, conf *configuration.Configuration, service string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(conf.Database.ServiceConnectionString(service))
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = conf.Database.MaxConns

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("db connect %s failed: %w", conf.Database.ServiceName(service), err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping %s failed: %w", conf.Database.ServiceName(service), err)
	}
	return pool, nil
}

func connectMongo(ctx context.Context, conf *configuration.Configuration) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(conf.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("mongo connect failed: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping failed: %w", err)
	}
	return client, nil
}

func newBroker(conf *configuration.Configuration, logger *logrus.Entry) (broker.Broker, error) {
	switch conf.Broker.Kind {
	case configuration.BrokerKafka:
		return kafka.New(kafka.Config{
			Brokers:    conf.Kafka.Brokers,
			ClientID:   conf.Kafka.ClientID,
			StartFirst: conf.Kafka.StartFirst,
		}, logger)
	case configuration.BrokerRabbitMQ:
		return rabbitmq.Dial(rabbitmq.Config{
			URL:      conf.RabbitMQ.URL,
			Exchange: conf.RabbitMQ.Exchange,
		}, logger)
	case configuration.BrokerMemory:
		return memory.New(logger), nil
	default:
		return nil, fmt.Errorf("unknown broker %q", conf.Broker.Kind)
	}
}

func boot(ctx context.Context, conf *configuration.Configuration, opts bootOptions) (_ *runtime, err error) {
	rt := &runtime{conf: conf}
	defer func() {
		if err != nil {
			rt.Close()
		}
	}()
	logger := conf.Logger()

	topology, err := conf.Saga.ParsedTopology()
	if err != nil {
		return nil, err
	}
	mods, err := modules.Select(
		modules.BuiltInModules(topology, modules.Options{PaymentSimulateFailure: conf.Saga.PaymentSimulateFailure}),
		conf.Saga.Service,
	)
	if err != nil {
		return nil, err
	}

	pools := map[string]*pgxpool.Pool{}
	var mongoDB *mongo.Database
	for _, m := range mods {
		switch {
		case conf.Saga.StepStorage == configuration.StoragePostgres && slices.Contains(migrations.Services, m.Name()):
			pool, err := connectPool(ctx, conf, m.Name())
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, pool.Close)
			pools[m.Name()] = pool
		case conf.Saga.OrderStorage == configuration.StorageMongo && m.Name() == "order":
			client, err := connectMongo(ctx, conf)
			if err != nil {
				return nil, err
			}
			rt.closers = append(rt.closers, func() { _ = client.Disconnect(context.Background()) })
			mongoDB = client.Database(conf.Mongo.Database)
		}
	}

	var bus broker.Broker
	if opts.Inspect {
		bus = memory.New(logger.WithField("component", "broker"))
	} else {
		bus, err = newBroker(conf, logger.WithField("component", "broker"))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() {
			if err := bus.Close(); err != nil && !errors.Is(err, broker.ErrClosed) {
				logger.WithError(err).Warn("broker close failed")
			}
		})
	}

	var guard idempotency.Guard
	if conf.Redis.DedupEnabled && !opts.Inspect {
		client := redis.NewClient(&redis.Options{Addr: conf.Redis.URL})
		rt.closers = append(rt.closers, func() { _ = client.Close() })
		guard = idempotency.NewRedisGuard(client, "")
	}

	outboxTable, err := conf.Outbox.TableIdentifier()
	if err != nil {
		return nil, err
	}

	topics := conf.Saga.Topics
	rt.app = application.New(&application.ApplicationOptions{
		Logger:       logger,
		Broker:       bus,
		Topology:     topology,
		Topics:       topics,
		Pools:        pools,
		Mongo:        mongoDB,
		OutboxTable:  outboxTable,
		SingleActive: conf.Outbox.RelaySingleActive,
		DisableRelay: opts.Inspect || !conf.Outbox.RelayEnabled,
		Relay: outbox.RelayOptions{
			PollInterval:    conf.Outbox.RelayPollInterval,
			BatchSize:       conf.Outbox.RelayBatchSize,
			MaxRetry:        conf.Outbox.RelayMaxRetry,
			DispatchTimeout: conf.Outbox.RelayDispatchTimeout,
			LastErrorMaxLen: conf.Outbox.LastErrorMaxBytes,
		},
		Cleaner: outbox.CleanerOptions{
			Enabled:   conf.Outbox.CleanerEnabled && !opts.Inspect,
			Interval:  conf.Outbox.CleanerInterval,
			Retention: conf.Outbox.CleanerRetention,
		},
		Breaker: broker.BreakerOptions{
			ConsecutiveFailures: conf.Broker.BreakerFailures,
			Timeout:             conf.Broker.BreakerTimeout,
		},
		Retry: broker.RetryOptions{
			BaseBackoff: conf.Broker.ConsumerBackoff,
			MaxBackoff:  conf.Broker.ConsumerMaxDelay,
		},
		Dedup: guard,
		DedupOptions: idempotency.Options{
			Lease: conf.Redis.DedupLease,
			TTL:   conf.Redis.DedupTTL,
		},
	})
	if err := modules.Load(rt.app, mods...); err != nil {
		return nil, err
	}
	return rt, nil
}
