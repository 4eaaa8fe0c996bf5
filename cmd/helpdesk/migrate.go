package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/corpnet/helpdesk/internal/config"
	"github.com/corpnet/helpdesk/internal/observability"
	"github.com/corpnet/helpdesk/internal/persistence"
)

var steps int

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply or roll back the embedded schema migrations against POSTGRES_DSN.`,
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE:  runMigrateDown,
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			RunE:  runMigrateUp,
		},
		down,
	)
	return cmd
}

func openMigrationTarget(ctx context.Context) (*persistence.Postgres, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Postgres.DSN == "" {
		return nil, nil, errors.New("POSTGRES_DSN is required for migrations")
	}
	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init logger: %w", err)
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, cfg.App.Name+"-migrate", logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect postgres: %w", err)
	}
	return pg, logger, nil
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	pg, logger, err := openMigrationTarget(cmd.Context())
	if err != nil {
		return err
	}
	defer pg.Close()
	defer logger.Sync() //nolint:errcheck

	if err := persistence.RunMigrations(cmd.Context(), pg.PoolHandle(), logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	pg, logger, err := openMigrationTarget(cmd.Context())
	if err != nil {
		return err
	}
	defer pg.Close()
	defer logger.Sync() //nolint:errcheck

	if err := persistence.RollbackMigrations(cmd.Context(), pg.PoolHandle(), steps, logger); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}
	return nil
}
