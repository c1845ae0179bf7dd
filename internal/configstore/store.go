// Package configstore persists the bridge's versioned runtime
// configuration in Postgres: a single current-row table plus an
// append-only history table, written inside one transaction per change so
// the version counter and the history trail never drift apart.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opsdesk/sd-bridge/internal/database/postgres"
	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/metrics"
)

// ErrNoConfig is returned by Read when bot_config has never been
// initialized.
var ErrNoConfig = errors.New("configstore: no configuration row")

// ErrVersionNotFound is returned by Rollback when the requested version
// has no matching history row.
var ErrVersionNotFound = errors.New("configstore: version not found in history")

// HistoryRow is one append-only entry: the body *prior* to the write that
// produced it, plus who made the write and why.
type HistoryRow struct {
	Version         int64
	At              time.Time
	Actor           string
	ChangeSummary   string
	PriorConfigJSON string
}

// Validator is satisfied by internal/configvalidator.Validator; accepting
// it as an interface keeps this package free of a direct dependency on
// go-playground/validator.
type Validator interface {
	Validate(body []byte) error
}

// writeMaxFailures and writeResetTimeout bound the circuit breaker guarding
// the write path: after this many consecutive failed round-trips, further
// writes fail fast with ErrCircuitBreakerOpen instead of queuing behind a
// database that isn't answering, until resetTimeout has passed.
const (
	writeMaxFailures  = 5
	writeResetTimeout = 30 * time.Second
)

// Store is the Postgres-backed config store (component C7). Writes and
// rollbacks retry transient failures with backoff and trip a circuit
// breaker after repeated failures, since a config write racing a brief
// connection blip shouldn't surface as an operator-visible error.
type Store struct {
	pool      *pgxpool.Pool
	validator Validator
	retry     *postgres.RetryExecutor
	breaker   *postgres.CircuitBreaker
}

// New constructs a Store. logger may be nil.
func New(pool *pgxpool.Pool, validator Validator, logger *slog.Logger) *Store {
	return &Store{
		pool:      pool,
		validator: validator,
		retry:     postgres.NewRetryExecutor(postgres.DefaultRetryConfig(), logger),
		breaker:   postgres.NewCircuitBreaker(writeMaxFailures, writeResetTimeout),
	}
}

// Read returns the current configuration and its version.
func (s *Store) Read(ctx context.Context) (domain.RuntimeConfig, error) {
	var version int64
	var body string
	err := s.pool.QueryRow(ctx, `SELECT version, config_json FROM bot_config WHERE id = 1`).Scan(&version, &body)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RuntimeConfig{}, ErrNoConfig
	}
	if err != nil {
		return domain.RuntimeConfig{}, fmt.Errorf("configstore: read: %w", err)
	}
	return domain.ParseRuntimeConfig(version, []byte(body)), nil
}

// Write validates and persists a new configuration body, inserting a
// history row with the *prior* body before updating the current row. The
// returned version is the current row's version after the write.
func (s *Store) Write(ctx context.Context, body []byte, actor, summary string) (int64, error) {
	start := time.Now()
	status := "error"
	defer func() {
		metrics.ConfigReloadDuration.Observe(time.Since(start).Seconds())
		metrics.ConfigReloadTotal.WithLabelValues(status).Inc()
	}()

	if s.validator != nil {
		if err := s.validator.Validate(body); err != nil {
			status = "validation_failed"
			metrics.ConfigReloadErrors.WithLabelValues("validation_failed").Inc()
			return 0, fmt.Errorf("configstore: validation failed: %w", err)
		}
	}

	var newVersion int64
	err := s.breaker.Call(func() error {
		return s.retry.Execute(ctx, func() error {
			v, err := s.writeOnce(ctx, body, actor, summary)
			if err != nil {
				return err
			}
			newVersion = v
			return nil
		})
	})
	if err != nil {
		metrics.ConfigReloadErrors.WithLabelValues("storage_failed").Inc()
		return 0, err
	}

	if isRollbackSummary(summary) {
		status = "rolled_back"
		metrics.ConfigReloadRollbacks.WithLabelValues("api").Inc()
	} else {
		status = "success"
	}
	metrics.ConfigReloadLastSuccess.SetToCurrentTime()
	metrics.ConfigReloadVersion.Set(float64(newVersion))

	return newVersion, nil
}

func isRollbackSummary(summary string) bool {
	return strings.HasPrefix(summary, "rollback to version")
}

// writeOnce runs the insert-history-then-update-current transaction exactly
// once. It is the unit Write retries: every statement inside runs against a
// transaction that gets rolled back on any error, so replaying the whole
// thing on a transient failure can never duplicate a history row or skip a
// version.
func (s *Store) writeOnce(ctx context.Context, body []byte, actor, summary string) (int64, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("configstore: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var currentVersion int64
	var currentBody string
	err = tx.QueryRow(ctx, `SELECT version, config_json FROM bot_config WHERE id = 1 FOR UPDATE`).Scan(&currentVersion, &currentBody)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		currentVersion = 0
		currentBody = "{}"
		if _, err := tx.Exec(ctx, `INSERT INTO bot_config (id, version, config_json) VALUES (1, 0, $1)`, currentBody); err != nil {
			return 0, fmt.Errorf("configstore: seed row: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("configstore: read current row: %w", err)
	}

	newVersion := currentVersion + 1

	_, err = tx.Exec(ctx, `
		INSERT INTO bot_config_history (version, at, actor, change_summary, prior_config_json)
		VALUES ($1, $2, $3, $4, $5)`,
		currentVersion, time.Now(), actor, summary, currentBody)
	if err != nil {
		return 0, fmt.Errorf("configstore: insert history: %w", err)
	}

	_, err = tx.Exec(ctx, `UPDATE bot_config SET version = $1, config_json = $2 WHERE id = 1`, newVersion, string(body))
	if err != nil {
		return 0, fmt.Errorf("configstore: update current row: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("configstore: commit: %w", err)
	}

	return newVersion, nil
}

// Rollback finds the history row whose content matches toVersion and
// writes it back as a new version. Rollback never rewrites history in
// place — it is just another Write, so it always increments the version
// counter and leaves a full audit trail of the rollback itself.
func (s *Store) Rollback(ctx context.Context, toVersion int64, actor string) (int64, error) {
	var priorBody string
	err := s.retry.Execute(ctx, func() error {
		return s.pool.QueryRow(ctx, `
			SELECT prior_config_json FROM bot_config_history WHERE version = $1`, toVersion).Scan(&priorBody)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrVersionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("configstore: rollback lookup: %w", err)
	}

	summary := fmt.Sprintf("rollback to version %d", toVersion)
	return s.Write(ctx, []byte(priorBody), actor, summary)
}

// History returns the most recent limit history rows, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]HistoryRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT version, at, actor, change_summary, prior_config_json
		FROM bot_config_history ORDER BY version DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("configstore: history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRow
	for rows.Next() {
		var h HistoryRow
		if err := rows.Scan(&h.Version, &h.At, &h.Actor, &h.ChangeSummary, &h.PriorConfigJSON); err != nil {
			return nil, fmt.Errorf("configstore: scan history row: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// RollbackStats counts rollback-labelled writes within the trailing
// window and reports the most recent one's timestamp.
type RollbackStats struct {
	Count      int64
	MostRecent time.Time
}

// RollbackStats reports rollback activity within window, used by the
// observability probe that alerts on rollback storms (C12).
func (s *Store) RollbackStats(ctx context.Context, window time.Duration) (RollbackStats, error) {
	since := time.Now().Add(-window)
	var stats RollbackStats
	var mostRecent *time.Time
	err := s.pool.QueryRow(ctx, `
		SELECT count(*), max(at) FROM bot_config_history
		WHERE change_summary LIKE 'rollback to version%' AND at >= $1`, since).Scan(&stats.Count, &mostRecent)
	if err != nil {
		return RollbackStats{}, fmt.Errorf("configstore: rollback stats: %w", err)
	}
	if mostRecent != nil {
		stats.MostRecent = *mostRecent
	}
	return stats, nil
}
