// Package observability runs the four admin-facing degradation probes
// described alongside the notification service: no-destination tickets,
// backend health/readiness, state-store connectivity, and configuration
// rollback storms. Each probe rate-limits its own admin alert
// independently and counts skips rather than silently dropping them.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/notifier/chat"
	"github.com/opsdesk/sd-bridge/internal/statestore"
)

// Config controls probe cadence, alert rate limits, and the rollback
// storm threshold. New stores it as given; zero-value fields are not
// filled in from DefaultConfig.
type Config struct {
	WebCheckInterval      time.Duration
	RedisCheckInterval    time.Duration
	RollbackCheckInterval time.Duration

	NoDestinationAlertInterval time.Duration
	WebAlertInterval           time.Duration
	RedisAlertInterval         time.Duration
	RollbackAlertInterval      time.Duration

	RollbackWindow    time.Duration
	RollbackThreshold int

	AdminToken string // bearer token for GET /config/rollbacks
}

// DefaultConfig matches the reference 5-15 minute alert rate limits and a
// 10-rollback/hour storm threshold.
func DefaultConfig() Config {
	return Config{
		WebCheckInterval:      time.Minute,
		RedisCheckInterval:    time.Minute,
		RollbackCheckInterval: 5 * time.Minute,

		NoDestinationAlertInterval: 5 * time.Minute,
		WebAlertInterval:           5 * time.Minute,
		RedisAlertInterval:         15 * time.Minute,
		RollbackAlertInterval:      15 * time.Minute,

		RollbackWindow:    time.Hour,
		RollbackThreshold: 10,
	}
}

// ConfigProvider returns the currently active runtime configuration.
type ConfigProvider interface {
	Current() domain.RuntimeConfig
}

// Counters are the externally observable skip/occurrence counts, mirroring
// the reference PollingState admin-alert fields.
type Counters struct {
	TicketsWithoutDestinationTotal int64
	AdminAlertsSkippedRateLimit    int64
	WebAlertsSkippedRateLimit      int64
	RedisAlertsSkippedRateLimit    int64
	RollbackAlertsSkippedRateLimit int64
}

// Service owns the four probes. It sends admin alerts directly through a
// chat.Sender using the same bot credentials as the notification service.
type Service struct {
	sender     chat.Sender
	webClient  WebClient
	stateStore statestore.Store // nil disables the redis/state-store probe
	config     ConfigProvider
	lookupEnv  LookupEnv
	cfg        Config
	logger     *slog.Logger

	mu       sync.Mutex
	counters Counters

	lastNoDestAlertAt   time.Time
	lastWebAlertAt      time.Time
	lastRedisAlertAt    time.Time
	lastRollbackAlertAt time.Time
}

// New constructs a Service. stateStore may be nil to disable the
// state-store probe entirely (mirroring the reference implementation's
// "state_store is None" early return). lookupEnv defaults to os.LookupEnv
// semantics; pass a fixed map in tests.
func New(sender chat.Sender, webClient WebClient, stateStore statestore.Store, config ConfigProvider,
	lookupEnv LookupEnv, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if lookupEnv == nil {
		lookupEnv = os.LookupEnv
	}
	return &Service{
		sender:     sender,
		webClient:  webClient,
		stateStore: stateStore,
		config:     config,
		lookupEnv:  lookupEnv,
		cfg:        cfg,
		logger:     logger,
	}
}

// Snapshot returns a copy of the current counters.
func (s *Service) Snapshot() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Run starts the three periodic probes (web, redis, rollback storm) and
// blocks until ctx is cancelled. No-destination and forbidden-send are
// invoked inline by the poller/notifier, not on a timer.
func (s *Service) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() { defer wg.Done(); s.runTicker(ctx, s.cfg.WebCheckInterval, s.CheckWeb) }()
	go func() { defer wg.Done(); s.runTicker(ctx, s.cfg.RedisCheckInterval, s.CheckRedis) }()
	go func() { defer wg.Done(); s.runTicker(ctx, s.cfg.RollbackCheckInterval, s.CheckRollbacks) }()

	wg.Wait()
}

func (s *Service) runTicker(ctx context.Context, interval time.Duration, probe func(context.Context)) {
	probe(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe(ctx)
		}
	}
}

// HandleNoDestination sends an admin alert that a ticket matched no
// routing rule and no default destination is configured. Satisfies
// notifier.NoDestinationHandler.
func (s *Service) HandleNoDestination(ctx context.Context, items []domain.Ticket) {
	s.mu.Lock()
	s.counters.TicketsWithoutDestinationTotal++
	if !s.lastNoDestAlertAt.IsZero() && time.Since(s.lastNoDestAlertAt) < s.cfg.NoDestinationAlertInterval {
		s.counters.AdminAlertsSkippedRateLimit++
		s.mu.Unlock()
		s.logger.InfoContext(ctx, "no destinations; admin alert skipped by rate limit")
		return
	}
	s.lastNoDestAlertAt = time.Now()
	s.mu.Unlock()

	cfg := s.config.Current()
	var ticket *domain.Ticket
	if len(items) > 0 {
		ticket = &items[0]
	}
	text := buildNoDestinationAlertText(ticket, len(cfg.Routing.Rules), cfg.Routing.DefaultDest != nil,
		cfg.Routing.Fields.ServiceIDField, cfg.Routing.Fields.CustomerIDField, cfg.Version)

	s.sendAdminAlert(ctx, text, "no destinations configured and no admin destination to alert to")
}

// HandleForbiddenSend sends an admin alert that the bot was denied
// posting to a destination (removed from the chat, or the thread was
// deleted). Satisfies notifier.ForbiddenSendHandler.
func (s *Service) HandleForbiddenSend(ctx context.Context, chatID, threadID int64, notifyContext, reason string) {
	text := fmt.Sprintf("Forbidden: bot can no longer post to a configured destination.\n\n"+
		"- chat_id: %d\n- thread_id: %d\n- context: %s\n- reason: %s",
		chatID, threadID, notifyContext, reason)

	s.sendAdminAlert(ctx, text, "forbidden send but no admin destination to alert to")
}

// CheckWeb probes /health and /ready up to 3 times with a short sleep
// between attempts, alerting if either remains failing on the final try.
func (s *Service) CheckWeb(ctx context.Context) {
	const attempts = 3

	var health, ready ProbeResult
	for i := 0; i < attempts; i++ {
		health = s.webClient.CheckHealth(ctx)
		ready = s.webClient.CheckReady(ctx)
		if health.OK && ready.OK {
			return
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(500 * time.Millisecond):
			}
		}
	}

	s.mu.Lock()
	if !s.lastWebAlertAt.IsZero() && time.Since(s.lastWebAlertAt) < s.cfg.WebAlertInterval {
		s.counters.WebAlertsSkippedRateLimit++
		s.mu.Unlock()
		return
	}
	s.lastWebAlertAt = time.Now()
	s.mu.Unlock()

	text := buildWebDegradedAlertText(health.OK, ready.OK, health.Status, ready.Status, attempts)
	s.sendAdminAlert(ctx, text, "web degraded but no admin destination configured")
}

// CheckRedis pings the state store and alerts on failure. A nil
// stateStore disables this probe entirely.
func (s *Service) CheckRedis(ctx context.Context) {
	if s.stateStore == nil {
		return
	}

	err := s.stateStore.Ping(ctx)
	if err == nil {
		return
	}

	s.mu.Lock()
	if !s.lastRedisAlertAt.IsZero() && time.Since(s.lastRedisAlertAt) < s.cfg.RedisAlertInterval {
		s.counters.RedisAlertsSkippedRateLimit++
		s.mu.Unlock()
		return
	}
	s.lastRedisAlertAt = time.Now()
	s.mu.Unlock()

	lastOK, hadOK := s.stateStore.LastOK()
	text := buildRedisDegradedAlertText(err.Error(), lastOK, hadOK)
	s.sendAdminAlert(ctx, text, "state store degraded but no admin destination configured")
}

// CheckRollbacks fetches the rollback count over the configured window
// and alerts if it meets or exceeds the storm threshold. Disabled when
// no admin token is configured, since the rollbacks endpoint requires
// one.
func (s *Service) CheckRollbacks(ctx context.Context) {
	if s.cfg.AdminToken == "" {
		return
	}

	windowS := int(s.cfg.RollbackWindow / time.Second)
	stats, err := s.webClient.GetRollbacks(ctx, windowS, s.cfg.AdminToken)
	if err != nil {
		s.logger.WarnContext(ctx, "rollback stats fetch failed", "error", err)
		return
	}
	if stats.Count < s.cfg.RollbackThreshold {
		return
	}

	s.mu.Lock()
	if !s.lastRollbackAlertAt.IsZero() && time.Since(s.lastRollbackAlertAt) < s.cfg.RollbackAlertInterval {
		s.counters.RollbackAlertsSkippedRateLimit++
		s.mu.Unlock()
		return
	}
	s.lastRollbackAlertAt = time.Now()
	s.mu.Unlock()

	text := buildRollbacksAlertText(stats.Count, s.cfg.RollbackWindow, stats.LastRollbackAt)
	s.sendAdminAlert(ctx, text, "rollback storm but no admin destination configured")
}

func (s *Service) sendAdminAlert(ctx context.Context, text, noDestLogMsg string) {
	dest := ResolveAdminDestination(s.lookupEnv)
	if dest == nil {
		s.logger.WarnContext(ctx, noDestLogMsg)
		return
	}
	if err := s.sender.SendMessage(ctx, dest.ChatID, dest.ThreadID, text); err != nil {
		s.logger.ErrorContext(ctx, "failed to send admin alert", "error", err)
	}
}
