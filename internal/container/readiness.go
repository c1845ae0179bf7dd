package container

import (
	"context"
	"fmt"
	"strings"

	"github.com/opsdesk/sd-bridge/internal/database/postgres"
	"github.com/opsdesk/sd-bridge/internal/statestore"
)

// requiredEnv lists the environment variables whose absence means the
// process cannot do useful work.
var requiredEnv = []string{"SERVICEDESK_BASE_URL", "SERVICEDESK_API_TOKEN", "DATABASE_URL"}

// LookupEnv matches observability.LookupEnv's shape so the same function
// value can satisfy both.
type LookupEnv func(key string) (string, bool)

// ReadinessChecker implements api.HealthChecker: it reports missing
// required configuration and pings the database and (if configured)
// state store. Satisfies internal/api.HealthChecker.
type ReadinessChecker struct {
	strict     bool
	lookupEnv  LookupEnv
	pool       *postgres.PostgresPool
	stateStore statestore.Store
}

// NewReadinessChecker constructs a ReadinessChecker. stateStore may be
// nil when the process runs without Redis (in-memory state only).
func NewReadinessChecker(strict bool, lookupEnv LookupEnv, pool *postgres.PostgresPool, stateStore statestore.Store) *ReadinessChecker {
	return &ReadinessChecker{strict: strict, lookupEnv: lookupEnv, pool: pool, stateStore: stateStore}
}

// Ready reports whether the process is ready to serve traffic. Missing
// required env vars fail readiness only when strict is set; otherwise
// they are tolerated (the caller is expected to have warned at startup).
func (c *ReadinessChecker) Ready(ctx context.Context) (bool, string) {
	var missing []string
	for _, name := range requiredEnv {
		if v, ok := c.lookupEnv(name); !ok || v == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 && c.strict {
		return false, fmt.Sprintf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.pool != nil {
		if err := c.pool.Health(ctx); err != nil {
			return false, fmt.Sprintf("database not reachable: %v", err)
		}
	}
	if c.stateStore != nil {
		if err := c.stateStore.Ping(ctx); err != nil {
			return false, fmt.Sprintf("state store not reachable: %v", err)
		}
	}

	return true, ""
}
