package orchestrator

import (
	"github.com/iota-uz/order-saga/modules/orchestrator/domain/entities/parked"
	"github.com/iota-uz/order-saga/modules/orchestrator/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/orchestrator/presentation/controllers"
	"github.com/iota-uz/order-saga/modules/orchestrator/services"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const Name = "orchestrator"

func NewModule() application.Module {
	return &Module{}
}

// Module is only useful in the orchestrated topology; in the choreographed one
// nothing publishes to its topic.
type Module struct{}

func (m *Module) Register(app application.Application) error {
	router, err := saga.NewRouter(saga.DefaultRoutes(app.Topics()))
	if err != nil {
		return err
	}
	ob, mem, err := app.NewOutbox(Name)
	if err != nil {
		return err
	}

	var repo parked.Repository
	if mem == nil {
		repo = persistence.NewParkedRepository()
	} else {
		repo = persistence.NewMemoryParkedRepository(mem)
	}

	logger := app.Logger().WithField("service", Name)
	svc := services.NewOrchestratorService(router, ob, repo, services.Options{Logger: logger})
	app.Subscribe(app.Topics().Orchestrator, Name, saga.Consume(svc.Handle, logger))

	app.RegisterServices(svc, repo)
	app.RegisterControllers(controllers.NewParkedController(svc))
	return nil
}

func (m *Module) Name() string {
	return Name
}
