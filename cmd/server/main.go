// Command server runs the config HTTP surface: GET/PUT config, history,
// rollback, the SD open-queue proxy, and liveness/readiness probes.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opsdesk/sd-bridge/internal/api"
	"github.com/opsdesk/sd-bridge/internal/container"
	"github.com/opsdesk/sd-bridge/internal/database"
	"github.com/opsdesk/sd-bridge/internal/database/postgres"
	"github.com/opsdesk/sd-bridge/pkg/logger"
)

func main() {
	log := logger.NewLogger(logger.Config{
		Level:  envOr("LOG_LEVEL", "info"),
		Format: envOr("LOG_FORMAT", "json"),
		Output: envOr("LOG_OUTPUT", "stdout"),
	})
	slog.SetDefault(log)

	cfg, err := container.LoadConfig()
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	dbCfg := postgres.LoadFromEnv()
	pool := postgres.NewPostgresPool(dbCfg, log)
	if err := pool.Connect(ctx); err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.RunMigrations(ctx, pool, log); err != nil {
		log.Warn("database migrations failed; continuing, manual intervention may be required", "error", err)
	}

	stateStore, err := container.NewStateStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize state store", "error", err)
		os.Exit(1)
	}

	routerCfg, dbExporter := container.NewServer(cfg, log, pool, stateStore)
	router := api.NewRouter(routerCfg)

	dbExporter.Start(ctx, container.PoolMetricsExportInterval)
	defer dbExporter.Stop()

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("http server starting", "port", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-rootCtx.Done()
	log.Info("shutting down http server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server exited")
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
