package main

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/iota-uz/order-saga/internal/simulation"
	"github.com/iota-uz/order-saga/pkg/application"
	"github.com/iota-uz/order-saga/pkg/logging"
	"github.com/iota-uz/order-saga/pkg/saga"
)

var scenarios = map[string][]saga.OrderProduct{
	"success": {
		{Product: saga.Product{Code: "COMIC_BOOKS", UnitValue: decimal.RequireFromString("15.50")}, Quantity: 1},
	},
	"out-of-stock": {
		{Product: saga.Product{Code: "BOOKS", UnitValue: decimal.RequireFromString("9.90")}, Quantity: 3},
	},
	"unknown-product": {
		{Product: saga.Product{Code: "VINYL", UnitValue: decimal.RequireFromString("20")}, Quantity: 1},
	},
}

func newSimulateCmd() *cobra.Command {
	var (
		topology       string
		scenario       string
		orders         int
		paymentFailure bool
		timeout        time.Duration
		verbose        bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run every service in one process over the in-memory broker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			top, err := saga.ParseTopology(topology)
			if err != nil {
				return err
			}
			products, ok := scenarios[scenario]
			if !ok {
				return fmt.Errorf("unknown scenario %q", scenario)
			}
			level := logrus.WarnLevel
			if verbose {
				level = logrus.InfoLevel
			}
			sim, err := simulation.New(simulation.Options{
				Topology:               top,
				Logger:                 logging.ConsoleLogger(level),
				PaymentSimulateFailure: paymentFailure,
			})
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- sim.Run(ctx) }()

			out := cmd.OutOrStdout()
			for i := 0; i < orders; i++ {
				o, err := sim.PlaceOrder(ctx, products...)
				if err != nil {
					return err
				}
				final, err := sim.AwaitOrder(ctx, o.ID, timeout)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "order %s tx %s: %s in %s\n", final.ID, final.TransactionID, final.Status, final.Duration())
			}
			if err := application.WaitIdle(ctx, sim.App, timeout); err != nil {
				return err
			}
			for _, p := range products {
				fmt.Fprintf(out, "stock %s: %d\n", p.Product.Code, sim.Available(p.Product.Code))
			}

			cancel()
			return <-done
		},
	}
	cmd.Flags().StringVar(&topology, "topology", string(saga.Orchestrated), "orchestrated or choreographed")
	cmd.Flags().StringVar(&scenario, "scenario", "success", "success, out-of-stock or unknown-product")
	cmd.Flags().IntVar(&orders, "orders", 1, "number of orders to place one after another")
	cmd.Flags().BoolVar(&paymentFailure, "payment-failure", false, "make the payment step reject every charge")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "time to wait for each saga")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log saga lifecycle lines")
	return cmd
}
