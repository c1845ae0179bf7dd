package container

import (
	"log/slog"
	"os"
	"time"

	"github.com/opsdesk/sd-bridge/internal/api"
	"github.com/opsdesk/sd-bridge/internal/configstore"
	"github.com/opsdesk/sd-bridge/internal/configvalidator"
	"github.com/opsdesk/sd-bridge/internal/database/postgres"
	"github.com/opsdesk/sd-bridge/internal/metrics"
	"github.com/opsdesk/sd-bridge/internal/sdclient"
	"github.com/opsdesk/sd-bridge/internal/statestore"
)

// PoolMetricsExportInterval controls how often the connection pool's
// atomic counters are pushed into Prometheus gauges/counters.
const PoolMetricsExportInterval = 10 * time.Second

// NewServer builds the config HTTP surface's router configuration
// (C7-C9) and the database pool's Prometheus exporter. pool must already
// be connected; the caller owns its lifecycle (cmd/server connects
// before calling this and closes it on shutdown, and must call
// exporter.Start/Stop around the process lifetime). stateStore may be
// nil to disable the readiness check's state-store ping.
func NewServer(cfg *Config, logger *slog.Logger, pool *postgres.PostgresPool, stateStore statestore.Store) (api.RouterConfig, *postgres.PrometheusExporter) {
	if logger == nil {
		logger = slog.Default()
	}

	validator := configvalidator.New()
	store := configstore.New(pool.Pool(), validator, logger)

	rawClient := sdclient.New(cfg.ServiceDeskBaseURL, time.Duration(cfg.WebTimeoutS)*time.Second, logger)
	sdProxy := sdclient.NewCachingClient(rawClient, time.Duration(cfg.WebCacheTTLS)*time.Second)

	health := NewReadinessChecker(cfg.StrictReadiness, func(k string) (string, bool) { return os.LookupEnv(k) }, pool, stateStore)

	routerCfg := api.DefaultRouterConfig(logger)
	routerCfg.ConfigStore = store
	routerCfg.SDProxy = sdProxy
	routerCfg.Health = health
	routerCfg.AdminToken = cfg.ConfigAdminToken

	exporter := postgres.NewPrometheusExporter(pool, metrics.NewDatabaseMetrics())

	return routerCfg, exporter
}
