package productvalidation

import (
	"github.com/iota-uz/order-saga/modules/productvalidation/domain/entities/product"
	"github.com/iota-uz/order-saga/modules/productvalidation/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/productvalidation/services"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/ledger"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const Name = "productvalidation"

type ModuleOptions struct {
	// Catalog seeds memory storage; Postgres uses the product table.
	Catalog []product.Product
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

	var products product.Repository
	var validations ledger.Repository
	if mem == nil {
		products = persistence.NewProductRepository()
		validations = ledger.NewPostgresRepository("validation")
	} else {
		catalog := m.opts.Catalog
		if catalog == nil {
			catalog = persistence.DefaultCatalog()
		}
		products = persistence.NewMemoryProductRepository(catalog...)
		validations = ledger.NewMemoryRepository(mem)
	}

	svc := services.NewValidationService(products, validations)
	decider, err := saga.NewDecider(app.Topology(), saga.SourceProductValidation, app.Topics(), Routes(app.Topics()))
	if err != nil {
		return err
	}
	handler := saga.NewStepHandler(svc, ob, decider, saga.StepHandlerOptions{
		Logger: app.Logger().WithField("service", Name),
	})
	handler.Bind(app, app.Topics(), Name)

	app.RegisterServices(svc)
	return nil
}

func (m *Module) Name() string {
	return Name
}
