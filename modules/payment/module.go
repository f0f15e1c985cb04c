package payment

import (
	"github.com/iota-uz/order-saga/modules/payment/domain/entities/payment"
	"github.com/iota-uz/order-saga/modules/payment/infrastructure/persistence"
	"github.com/iota-uz/order-saga/modules/payment/services"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/saga"
)

const Name = "payment"

type ModuleOptions struct {
	Service services.Options
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

	var repo payment.Repository
	if mem == nil {
		repo = persistence.NewPaymentRepository()
	} else {
		repo = persistence.NewMemoryPaymentRepository(mem)
	}

	svc := services.NewPaymentService(repo, m.opts.Service)
	decider, err := saga.NewDecider(app.Topology(), saga.SourcePayment, app.Topics(), Routes(app.Topics()))
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
