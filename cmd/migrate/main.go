// Command migrate applies or rolls back the config store's database schema.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdesk/sd-bridge/internal/database"
	"github.com/opsdesk/sd-bridge/internal/database/postgres"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var downSteps int

	connect := func(ctx context.Context) (*postgres.PostgresPool, error) {
		cfg := postgres.LoadFromEnv()
		pool := postgres.NewPostgresPool(cfg, logger)
		if err := pool.Connect(ctx); err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return pool, nil
	}

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the sd-bridge config store schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return database.RunMigrations(ctx, pool, logger)
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the given number of migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return database.RunMigrationsDown(ctx, pool, downSteps, logger)
		},
	}
	down.Flags().IntVar(&downSteps, "steps", 1, "number of migrations to roll back")

	status := &cobra.Command{
		Use:   "status",
		Short: "Print the current migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()
			return database.GetMigrationStatus(ctx, pool, logger)
		},
	}

	root.AddCommand(up, down, status)
	root.SetContext(context.Background())

	if err := root.Execute(); err != nil {
		logger.Error("migrate command failed", "error", err)
		os.Exit(1)
	}
}
