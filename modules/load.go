package modules

import (
	"fmt"

	"github.com/iota-uz/order-saga/modules/inventory"
	"github.com/iota-uz/order-saga/modules/orchestrator"
	"github.com/iota-uz/order-saga/modules/order"
	"github.com/iota-uz/order-saga/modules/payment"
	paymentservices "github.com/iota-uz/order-saga/modules/payment/services"
	"github.com/iota-uz/order-saga/modules/productvalidation"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/saga"
)

type Options struct {
	PaymentSimulateFailure bool
}

// BuiltInModules lists every service in saga order. The orchestrator is
// included only in the orchestrated topology.
func BuiltInModules(topology saga.Topology, opts Options) []application.Module {
	mods := []application.Module{
		order.NewModule(),
		productvalidation.NewModule(nil),
		payment.NewModule(&payment.ModuleOptions{
			Service: paymentservices.Options{SimulateFailure: opts.PaymentSimulateFailure},
		}),
		inventory.NewModule(nil),
	}
	if topology == saga.Orchestrated {
		mods = append(mods, orchestrator.NewModule())
	}
	return mods
}

// Select returns the module named service, or every module for "all".
func Select(mods []application.Module, service string) ([]application.Module, error) {
	if service == "all" {
		return mods, nil
	}
	for _, m := range mods {
		if m.Name() == service {
			return []application.Module{m}, nil
		}
	}
	return nil, fmt.Errorf("modules: unknown service %q", service)
}

// DecentralizedRoutes is the union of the tables every service decides with
// when choreographed. It must equal saga.DefaultRoutes.
func DecentralizedRoutes(t saga.Topics) (saga.RouteTable, error) {
	return saga.Union(
		order.Routes(t),
		productvalidation.Routes(t),
		payment.Routes(t),
		inventory.Routes(t),
	)
}

func Load(app application.Application, mods ...application.Module) error {
	for _, module := range mods {
		if err := module.Register(app); err != nil {
			return fmt.Errorf("register %s: %w", module.Name(), err)
		}
	}
	return nil
}
