// Package app wires shared process dependencies for the api and worker
// binaries: database pool, redis, task queue, and schema migrations.
package app

import (
	"context"
	"fmt"

	validator "github.com/go-playground/validator/v10"
	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	redis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/backend-kasir/db"
)

// Dependencies enumerates the long-lived resources shared across modules.
type Dependencies struct {
	Context         context.Context
	DB              *pgxpool.Pool
	Redis           *redis.Client
	Validator       *validator.Validate
	TaskClient      *asynq.Client
	TaskServer      *asynq.Server
	MetricsRegistry *prometheus.Registry
	TracerProvider  trace.TracerProvider
}

// MigrateUp applies all pending schema migrations from the embedded set.
// A fully migrated database is not an error.
func MigrateUp(databaseURL string) error {
	source, err := iofs.New(db.MigrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("app: open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", source, databaseURL)
	if err != nil {
		return fmt.Errorf("app: init migrator: %w", err)
	}
	defer func() {
		_, _ = m.Close()
	}()
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("app: apply migrations: %w", err)
	}
	return nil
}
