package order

import (
	"context"

	"github.com/iota-uz/order-saga/modules/order/domain/aggregates/order"
	"github.com/iota-uz/order-saga/modules/order/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/order/presentation/controllers"
	"github.com/iota-uz/order-saga/modules/order/services"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/outbox"
	mongostore "github.com/iota-uz/order-saga/pkg/outbox/mongo"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const Name = "order"

func NewModule() application.Module {
	return &Module{}
}

type Module struct{}

func (m *Module) Register(app application.Application) error {
	var (
		ob   *outbox.Outbox
		repo order.Repository
	)
	if db := app.Mongo(); db != nil {
		store := mongostore.New(db, mongostore.DefaultCollection)
		if err := store.EnsureIndexes(context.Background()); err != nil {
			return err
		}
		var err error
		ob, err = outbox.New(Name, store, mongostore.NewTransactor(db.Client()))
		if err != nil {
			return err
		}
		if err := app.RegisterOutbox(ob, nil); err != nil {
			return err
		}
		repo = persistence.NewMongoOrderRepository(db, persistence.DefaultCollection)
	} else {
		memOutbox, mem, err := app.NewOutbox(Name)
		if err != nil {
			return err
		}
		ob = memOutbox
		repo = persistence.NewMemoryOrderRepository(mem)
	}

	decider, err := saga.NewDecider(app.Topology(), saga.SourceOrder, app.Topics(), Routes(app.Topics()))
	if err != nil {
		return err
	}
	logger := app.Logger().WithField("service", Name)
	svc := services.NewOrderService(repo, ob, decider, app.Topics(), app.EventPublisher(), services.Options{Logger: logger})
	services.SubscribeSagaLog(app.EventPublisher(), logger)

	log := logger.WithField("component", "finish")
	app.Subscribe(app.Topics().FinishSuccess, Name, saga.Consume(func(ctx context.Context, env saga.Envelope) error {
		return svc.Finish(ctx, env, order.StatusSuccess)
	}, log))
	app.Subscribe(app.Topics().FinishFail, Name, saga.Consume(func(ctx context.Context, env saga.Envelope) error {
		return svc.Finish(ctx, env, order.StatusFail)
	}, log))

	app.RegisterServices(svc, repo)
	app.RegisterControllers(controllers.NewOrderController(svc))
	return nil
}

func (m *Module) Name() string {
	return Name
}
