package cli

import (
	"context"
	"database/sql"
	"errors"

	"corrode-course/internal/config"
	pgmigrations "corrode-course/internal/infra/postgres/migrations"
	"corrode-course/internal/infra/sqlite"
	"corrode-course/internal/logging"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), *configPath)
		},
	}
}

func runMigrations(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return err
	}
	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.Info().Str("database", redactURL(cfg.Database.URL)).Msg("migrations applied")
	return nil
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config) error {
	switch {
	case cfg.IsMemory():
		return errors.New("in-memory store has no schema to migrate")
	case cfg.IsPostgres():
		return migratePostgres(ctx, cfg.Database.URL)
	default:
		db, err := sqlite.Open(cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		return sqlite.Migrate(ctx, db)
	}
}

func migratePostgres(ctx context.Context, dsn string) error {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)

	if err := migrator.Init(ctx); err != nil {
		return err
	}

	if _, err := migrator.Migrate(ctx); err != nil {
		return err
	}
	return nil
}
