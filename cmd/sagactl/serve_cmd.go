package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/iota-uz/order-saga/pkg/configuration"
	"github.com/iota-uz/order-saga/pkg/logging"
	"github.com/iota-uz/order-saga/pkg/metrics"
	"github.com/iota-uz/order-saga/pkg/server"
)

func newServeCmd() *cobra.Command {
	var service string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run saga services with their relays, consumers and ops server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := configuration.Use()
			defer conf.Unload()
			if service != "" {
				conf.Saga.Service = service
			}
			return serve(cmd.Context(), conf)
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "service to run (overrides SAGA_SERVICE)")
	return cmd
}

func serve(parent context.Context, conf *configuration.Configuration) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := conf.Logger()
	if conf.OpenTelemetry.Enabled {
		cleanup := logging.SetupTracing(ctx, conf.OpenTelemetry.ServiceName, conf.OpenTelemetry.TempoURL)
		defer cleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to " + conf.OpenTelemetry.TempoURL)
	} else {
		logging.SetupPropagation()
	}

	rt, err := boot(ctx, conf, bootOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	app := rt.app
	app.RegisterControllers(metrics.NewOutboxController(app))
	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(conf.Prometheus.Path))
	}
	ops := server.NewHTTPServer(app)

	logger.WithField("service", conf.Saga.Service).
		WithField("topology", app.Topology()).
		WithField("broker", conf.Broker.Kind).
		Info("starting saga services")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return app.Run(gctx) })
	g.Go(func() error { return ops.Run(gctx, conf.SocketAddress) })
	return g.Wait()
}
