// Package migrations holds the Postgres schema of every relational service.
// Each service applies only its own directory.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"slices"

	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/database"
)

//go:embed */*.sql
var files embed.FS

var Services = []string{"productvalidation", "payment", "inventory", "orchestrator"}

// Up applies the pending migrations of service and returns the applied versions.
func Up(ctx context.Context, db *sql.DB, service string) ([]int64, error) {
	if !slices.Contains(Services, service) {
		return nil, fmt.Errorf("migrations: unknown service %q", service)
	}
	sub, err := fs.Sub(files, service)
	if err != nil {
		return nil, err
	}
	// A version table per service lets several services share one database.
	store, err := database.NewStore(database.DialectPostgres, "goose_"+service+"_version")
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider("", db, sub, goose.WithStore(store))
	if err != nil {
		return nil, fmt.Errorf("migrations: %s: %w", service, err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrations: %s up: %w", service, err)
	}
	versions := make([]int64, 0, len(results))
	for _, r := range results {
		versions = append(versions, r.Source.Version)
	}
	return versions, nil
}
