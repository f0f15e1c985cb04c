package inventory

import (
	"github.com/iota-uz/order-saga/modules/inventory/domain/entities/stock"
	"github.com/iota-uz/order-saga/modules/inventory/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/inventory/services"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/ledger"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const Name = "inventory"

type ModuleOptions struct {
	// Stock seeds memory storage; Postgres uses the inventory table.
	Stock []stock.Stock
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{opts: opts}
}

type Module struct {
	opts *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	ob, mem, err := app.NewOutbox(Name)
	if err != nil {
		return err
	}

	var repo stock.Repository
	var reservations ledger.Repository
	if mem == nil {
		repo = persistence.NewStockRepository()
		reservations = ledger.NewPostgresRepository("inventory_reservation")
	} else {
		seed := m.opts.Stock
		if seed == nil {
			seed = persistence.DefaultStock()
		}
		repo = persistence.NewMemoryStockRepository(mem, seed...)
		reservations = ledger.NewMemoryRepository(mem)
	}

	svc := services.NewInventoryService(repo, reservations)
	decider, err := saga.NewDecider(app.Topology(), saga.SourceInventory, app.Topics(), Routes(app.Topics()))
	if err != nil {
		return err
	}
	handler := saga.NewStepHandler(svc, ob, decider, saga.StepHandlerOptions{
		Logger: app.Logger().WithField("service", Name),
	})
	handler.Bind(app, app.Topics(), Name)

	app.RegisterServices(svc, repo)
	return nil
}

func (m *Module) Name() string {
	return Name
}
