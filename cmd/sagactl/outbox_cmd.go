package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/order-saga/pkg/configuration"
	"github.com/iota-uz/order-saga/pkg/outbox"
)

func newOutboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and repair service outboxes",
	}
	cmd.AddCommand(newOutboxStatsCmd())
	cmd.AddCommand(newOutboxDeadCmd())
	cmd.AddCommand(newOutboxRequeueCmd())
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type outboxStats struct {
	Name  string       `json:"name"`
	Stats outbox.Stats `json:"stats"`
}

func newOutboxStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Pending, dead and delivered counts per outbox",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := configuration.Use()
			defer conf.Unload()
			rt, err := boot(cmd.Context(), conf, bootOptions{Inspect: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			out := make([]outboxStats, 0)
			for _, e := range rt.app.Outboxes() {
				st, err := e.Outbox.Store().Stats(cmd.Context(), e.Relay.MaxRetry(), time.Now())
				if err != nil {
					return fmt.Errorf("%s: %w", e.Outbox.Name(), err)
				}
				out = append(out, outboxStats{Name: e.Outbox.Name(), Stats: st})
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}

func newOutboxDeadCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "dead",
		Short: "List records that reached the retry cap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := configuration.Use()
			defer conf.Unload()
			rt, err := boot(cmd.Context(), conf, bootOptions{Inspect: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			out := map[string][]outbox.Record{}
			for _, e := range rt.app.Outboxes() {
				recs, err := e.Outbox.Store().ListDead(cmd.Context(), e.Relay.MaxRetry(), limit)
				if err != nil {
					return fmt.Errorf("%s: %w", e.Outbox.Name(), err)
				}
				out[e.Outbox.Name()] = recs
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 100, "maximum records per outbox")
	return cmd
}

func newOutboxRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <service> <record-id>",
		Short: "Reset the retry count of a dead record so the relay picks it up again",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[1])
			if err != nil {
				return fmt.Errorf("invalid record id: %w", err)
			}
			conf := configuration.Use()
			defer conf.Unload()
			conf.Saga.Service = args[0]
			rt, err := boot(cmd.Context(), conf, bootOptions{Inspect: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			e, ok := rt.app.Outbox(args[0])
			if !ok {
				return fmt.Errorf("no outbox for service %q", args[0])
			}
			if err := e.Outbox.Store().Requeue(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "requeued %s in %s\n", id, args[0])
			return nil
		},
	}
}
