package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisStore's connection pool.
type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB"`

	PoolSize     int           `env:"REDIS_POOL_SIZE"`
	MinIdleConns int           `env:"REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT"`

	MaxRetries      int           `env:"REDIS_MAX_RETRIES"`
	MinRetryBackoff time.Duration `env:"REDIS_MIN_RETRY_BACKOFF"`
	MaxRetryBackoff time.Duration `env:"REDIS_MAX_RETRY_BACKOFF"`
}

// DefaultRedisConfig returns sane connection defaults.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:            "localhost:6379",
		DB:              0,
		PoolSize:        10,
		MinIdleConns:    1,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		MaxRetries:      3,
		MinRetryBackoff: 8 * time.Millisecond,
		MaxRetryBackoff: 512 * time.Millisecond,
	}
}

// RedisStore is a Store backed by Redis, used as the bridge's durable state
// backend in production.
type RedisStore struct {
	client *redis.Client
	logger *slog.Logger

	mu      sync.RWMutex
	lastOK  time.Time
	hadOK   bool
}

// NewRedisStore dials Redis and verifies connectivity with a ping. It
// returns an error rather than a degraded store if the initial ping fails,
// since the caller decides whether cold-starting without state is
// acceptable.
func NewRedisStore(cfg RedisConfig, logger *slog.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		MaxRetries:      cfg.MaxRetries,
		MinRetryBackoff: cfg.MinRetryBackoff,
		MaxRetryBackoff: cfg.MaxRetryBackoff,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", "error", err, "addr", cfg.Addr)
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	logger.Info("Connected to Redis state store", "addr", cfg.Addr, "db", cfg.DB)

	s := &RedisStore{client: client, logger: logger}
	s.markOK()
	return s, nil
}

func (s *RedisStore) markOK() {
	s.mu.Lock()
	s.lastOK = time.Now()
	s.hadOK = true
	s.mu.Unlock()
}

// GetJSON implements Store.
func (s *RedisStore) GetJSON(ctx context.Context, key string, dest interface{}) error {
	val, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			s.markOK()
			return ErrNotFound
		}
		s.logger.Error("Failed to read state key", "key", key, "error", err)
		return fmt.Errorf("get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return fmt.Errorf("unmarshal state key %s: %w", key, err)
	}

	s.markOK()
	return nil
}

// SetJSON implements Store.
func (s *RedisStore) SetJSON(ctx context.Context, key string, value interface{}) error {
	data, err := marshalJSON(value)
	if err != nil {
		return err
	}

	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		s.logger.Error("Failed to write state key", "key", key, "error", err)
		return fmt.Errorf("set %s: %w", key, err)
	}

	s.markOK()
	return nil
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	s.markOK()
	return nil
}

// LastOK implements Store.
func (s *RedisStore) LastOK() (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastOK, s.hadOK
}

// Close closes the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
