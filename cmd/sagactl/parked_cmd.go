package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/order-saga/modules/orchestrator"
	"github.com/iota-uz/order-saga/modules/orchestrator/services"
	"github.com/iota-uz/order-saga/pkg/configuration"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func newParkedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parked",
		Short: "Envelopes the orchestrator could not route",
	}
	cmd.AddCommand(newParkedListCmd())
	cmd.AddCommand(newParkedReprocessCmd())
	return cmd
}

func bootOrchestrator(cmd *cobra.Command) (*runtime, *services.OrchestratorService, error) {
	conf := configuration.Use()
	conf.Saga.Service = orchestrator.Name
	conf.Saga.Topology = string(saga.Orchestrated)
	rt, err := boot(cmd.Context(), conf, bootOptions{Inspect: true})
	if err != nil {
		return nil, nil, err
	}
	return rt, rt.app.Service(services.OrchestratorService{}).(*services.OrchestratorService), nil
}

func newParkedListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List parked envelopes, oldest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer configuration.Use().Unload()
			rt, svc, err := bootOrchestrator(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			events, err := svc.Parked(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), events)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum events")
	return cmd
}

func newParkedReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <id>",
		Short: "Route a parked envelope again and enqueue it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid parked event id: %w", err)
			}
			defer configuration.Use().Unload()
			rt, svc, err := bootOrchestrator(cmd)
			if err != nil {
				return err
			}
			defer rt.Close()

			dest, err := svc.Reprocess(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s to %s\n", id, dest)
			return nil
		},
	}
}
