package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/iota-uz/order-saga/modules"
	"github.com/iota-uz/order-saga/pkg/configuration"
	"github.com/iota-uz/order-saga/pkg/saga"
)

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the routing table and check both topologies agree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := configuration.Use()
			defer conf.Unload()
			topics := conf.Saga.Topics

			central := saga.DefaultRoutes(topics)
			if _, err := saga.NewRouter(central); err != nil {
				return err
			}
			decentral, err := modules.DecentralizedRoutes(topics)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tSTATUS\tDESTINATION")
			for _, r := range central.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%s\n", r.Source, r.Status, r.Destination)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !decentral.Equal(central) {
				return fmt.Errorf("choreographed routes differ from the orchestrator table")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "choreographed routes match the orchestrator table")
			return nil
		},
	}
}
