package container

import (
	"fmt"
	"log/slog"

	"github.com/opsdesk/sd-bridge/internal/statestore"
)

// NewStateStore returns a RedisStore when cfg.RedisAddr is set, or a
// MemoryStore otherwise. A MemoryStore loses escalation/poller state
// across restarts, so it is a development fallback, not a production
// choice.
func NewStateStore(cfg *Config, logger *slog.Logger) (statestore.Store, error) {
	if cfg.RedisAddr == "" {
		if logger != nil {
			logger.Warn("REDIS_ADDR not set; using in-memory state store (state lost on restart)")
		}
		return statestore.NewMemoryStore(), nil
	}

	redisCfg := statestore.DefaultRedisConfig()
	redisCfg.Addr = cfg.RedisAddr

	store, err := statestore.NewRedisStore(redisCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("container: connect redis: %w", err)
	}
	return store, nil
}
