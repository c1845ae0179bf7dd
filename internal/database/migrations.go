package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pressly/goose/v3"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/opsdesk/sd-bridge/internal/database/postgres"
)

// RunMigrations applies all pending goose migrations.
func RunMigrations(ctx context.Context, pool postgres.DatabaseConnection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Starting database migrations...")

	migrationsDir := filepath.Join("migrations")

	db, err := createSQLDBFromPool(pool)
	if err != nil {
		logger.Error("Failed to create SQL DB from pool", "error", err)
		return fmt.Errorf("failed to create SQL DB: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("Failed to set goose dialect", "error", err)
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, migrationsDir); err != nil {
		logger.Error("Failed to run migrations", "error", err)
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// RunMigrationsDown rolls back the given number of migration steps.
func RunMigrationsDown(ctx context.Context, pool postgres.DatabaseConnection, steps int, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("Starting database migration rollback", "steps", steps)

	migrationsDir := filepath.Join("migrations")

	db, err := createSQLDBFromPool(pool)
	if err != nil {
		logger.Error("Failed to create SQL DB from pool", "error", err)
		return fmt.Errorf("failed to create SQL DB: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("Failed to set goose dialect", "error", err)
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	for i := 0; i < steps; i++ {
		if err := goose.Down(db, migrationsDir); err != nil {
			logger.Error("Failed to rollback migrations", "error", err, "steps", steps)
			return fmt.Errorf("failed to rollback migrations: %w", err)
		}
	}

	logger.Info("Database migration rollback completed", "steps", steps)
	return nil
}

// GetMigrationStatus prints the current migration status to the logger's
// underlying writer via goose.Status.
func GetMigrationStatus(ctx context.Context, pool postgres.DatabaseConnection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	migrationsDir := filepath.Join("migrations")

	db, err := createSQLDBFromPool(pool)
	if err != nil {
		logger.Error("Failed to create SQL DB from pool", "error", err)
		return fmt.Errorf("failed to create SQL DB: %w", err)
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.Error("Failed to set goose dialect", "error", err)
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Status(db, migrationsDir); err != nil {
		logger.Error("Failed to get migration status", "error", err)
		return fmt.Errorf("failed to get migration status: %w", err)
	}

	return nil
}

// createSQLDBFromPool builds a database/sql.DB from the pool's configuration,
// since goose drives migrations through database/sql rather than pgx directly.
func createSQLDBFromPool(pool postgres.DatabaseConnection) (*sql.DB, error) {
	if pgPool, ok := pool.(*postgres.PostgresPool); ok {
		config := pgPool.GetConfig()

		db, err := sql.Open("pgx", config.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to open SQL DB: %w", err)
		}

		db.SetMaxOpenConns(int(config.MaxConns))
		db.SetMaxIdleConns(int(config.MinConns))
		db.SetConnMaxLifetime(config.MaxConnLifetime)
		db.SetConnMaxIdleTime(config.MaxConnIdleTime)

		return db, nil
	}

	return nil, fmt.Errorf("unsupported pool type")
}
