// Package api wires the config HTTP surface: read/write endpoints over
// the versioned configuration, the SD open-queue proxy, and the
// liveness/readiness probes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsdesk/sd-bridge/internal/api/middleware"
)

// RouterConfig holds the dependencies and middleware toggles for the
// router.
type RouterConfig struct {
	Logger *slog.Logger

	ConfigStore ConfigStore
	SDProxy     SDProxy
	Health      HealthChecker

	// AdminToken gates PUT /config, /config/history, and /config/rollback*.
	AdminToken string

	EnableMetrics   bool
	EnableRateLimit bool

	RateLimitPerMinute int
	RateLimitBurst     int
}

// DefaultRouterConfig returns sane defaults; callers still must set
// Logger, ConfigStore, SDProxy, Health, and AdminToken.
func DefaultRouterConfig(logger *slog.Logger) RouterConfig {
	return RouterConfig{
		Logger:             logger,
		EnableMetrics:      true,
		EnableRateLimit:    true,
		RateLimitPerMinute: 120,
		RateLimitBurst:     30,
	}
}

// NewRouter builds the HTTP surface described in the configuration
// endpoint table. Middleware is applied in order:
//  1. RequestID (always)
//  2. Logging (always)
//  3. Metrics (if enabled; also registers GET /metrics)
//  4. Route-specific: BearerAuth on write endpoints, rate limiting on all.
func NewRouter(cfg RouterConfig) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(cfg.Logger))
	if cfg.EnableMetrics {
		router.Use(middleware.MetricsMiddleware)
		router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	if cfg.EnableRateLimit {
		router.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute, cfg.RateLimitBurst))
	}

	h := &handlers{
		logger:      cfg.Logger,
		configStore: cfg.ConfigStore,
		sdProxy:     cfg.SDProxy,
		health:      cfg.Health,
	}

	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.handleReady).Methods(http.MethodGet)
	router.HandleFunc("/sd/open", h.handleSDOpen).Methods(http.MethodGet)
	router.HandleFunc("/config", h.handleGetConfig).Methods(http.MethodGet)
	router.HandleFunc("/config/explain", h.handleGetExplain).Methods(http.MethodGet)

	admin := router.PathPrefix("").Subrouter()
	admin.Use(middleware.BearerAuthMiddleware(cfg.AdminToken))
	admin.HandleFunc("/config", h.handlePutConfig).Methods(http.MethodPut)
	admin.HandleFunc("/config/history", h.handleGetHistory).Methods(http.MethodGet)
	admin.HandleFunc("/config/rollback", h.handlePostRollback).Methods(http.MethodPost)
	admin.HandleFunc("/config/rollbacks", h.handleGetRollbacks).Methods(http.MethodGet)

	return router
}
