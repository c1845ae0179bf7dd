// Command bot runs the open-queue poller, escalation engine, config
// sync, notifier, and self-observability probes as one process.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/opsdesk/sd-bridge/internal/container"
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

	missing := missingRequiredEnv()
	if len(missing) > 0 {
		if cfg.StrictReadiness {
			log.Error("missing required environment variables", "vars", strings.Join(missing, ", "))
			os.Exit(1)
		}
		log.Warn("missing required environment variables; continuing in non-strict mode", "vars", strings.Join(missing, ", "))
	}

	stateStore, err := container.NewStateStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize state store", "error", err)
		os.Exit(1)
	}

	bot := container.NewBot(cfg, log, stateStore)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("bot starting", "environment", cfg.Environment, "web_base_url", cfg.WebBaseURL)
	bot.Run(ctx)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func missingRequiredEnv() []string {
	var missing []string
	for _, name := range []string{"SERVICEDESK_BASE_URL", "SERVICEDESK_API_TOKEN", "DATABASE_URL", "BOT_TOKEN"} {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	return missing
}
