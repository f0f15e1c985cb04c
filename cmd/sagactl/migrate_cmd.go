package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/iota-uz/order-saga/migrations"
	"github.com/iota-uz/order-saga/pkg/configuration"
)

func newMigrateCmd() *cobra.Command {
	var (
		service string
		create  bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema of the relational services",
		RunE: func(cmd *cobra.Command, _ []string) error {
			conf := configuration.Use()
			defer conf.Unload()

			services := migrations.Services
			if service != "" && service != configuration.ServiceAll {
				services = []string{service}
			}
			for _, svc := range services {
				if create {
					if err := ensureDatabase(cmd.Context(), conf, conf.Database.ServiceName(svc)); err != nil {
						return err
					}
				}
				versions, err := migrate(cmd.Context(), conf, svc)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: applied %d migration(s) %v\n", svc, len(versions), versions)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&service, "service", "", "service to migrate (default: every relational service)")
	cmd.Flags().BoolVar(&create, "create-db", false, "create the service database when it does not exist")
	return cmd
}

func migrate(ctx context.Context, conf *configuration.Configuration, service string) ([]int64, error) {
	cfg, err := pgx.ParseConfig(conf.Database.ServiceConnectionString(service))
	if err != nil {
		return nil, err
	}
	db := stdlib.OpenDB(*cfg)
	defer func(db *sql.DB) { _ = db.Close() }(db)
	return migrations.Up(ctx, db, service)
}

// ensureDatabase connects to the base database and creates name if missing.
func ensureDatabase(ctx context.Context, conf *configuration.Configuration, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, conf.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("db connect failed: %w", err)
	}
	defer func() { _ = conn.Close(context.Background()) }()

	var exists bool
	if err := conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)`, name).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{name}.Sanitize()); err != nil {
		return fmt.Errorf("create database %s: %w", name, err)
	}
	return nil
}
