// Package poller runs the open-queue fetch loop: pull the current open
// ticket set from the web service, notify on composition change, and hand
// the same items to the escalation engine every successful pass.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/sdclient"
)

// Config controls interval/backoff/fetch-size behavior.
type Config struct {
	BaseInterval time.Duration
	MaxInterval  time.Duration
	FetchLimit   int
	BaseURL      string // SD deep-link base, for notification text
}

// DefaultConfig matches the reference base/max backoff of 30s/300s.
func DefaultConfig() Config {
	return Config{
		BaseInterval: 30 * time.Second,
		MaxInterval:  300 * time.Second,
		FetchLimit:   200,
	}
}

// SDClient is the subset of sdclient.Client the poller depends on.
type SDClient interface {
	GetOpen(ctx context.Context, limit int) sdclient.Result
}

// EscalationEngine is the subset of escalation.Engine the poller depends
// on, expressed as an interface so test doubles don't need a state store.
type EscalationEngine interface {
	Process(ctx context.Context, items []domain.Ticket, cfg domain.EscalationConfig, now time.Time) []EscalationAction
}

// EscalationAction mirrors escalation.Action; defined here to avoid the
// poller package importing the escalation package's concrete Engine just
// for its result type. The two types are distinct; the container's
// escalationAdapter converts escalation.Action values into this type.
type EscalationAction struct {
	Dest    domain.Destination
	Mention string
	Tickets []domain.Ticket
}

// Notifier is the subset of the notification service the poller uses.
type Notifier interface {
	NotifyMain(ctx context.Context, items []domain.Ticket, text string) error
	NotifyEscalation(ctx context.Context, actions []EscalationAction) error
}

// ConfigProvider returns the currently active runtime configuration; the
// poller re-reads it every iteration since config sync may have swapped it.
type ConfigProvider interface {
	Current() domain.RuntimeConfig
}

// State is the poller's externally observable counters, mirroring the
// reference PollingState dataclass.
type State struct {
	Runs                int64
	Failures            int64
	ConsecutiveFailures int64
	LastRunAt           time.Time
	LastSuccessAt       time.Time
	LastError           string
	LastDurationMs      int64
	LastSentSnapshot    string
	LastSentIDs         []int64
	LastSentCount       int
	LastSentAt          time.Time
}

// Poller owns the fetch/notify/escalate loop.
type Poller struct {
	cfg        Config
	sd         SDClient
	escalation EscalationEngine
	notifier   Notifier
	config     ConfigProvider
	logger     *slog.Logger

	mu    sync.Mutex
	state State
}

// New constructs a Poller. logger defaults to slog.Default() if nil.
func New(cfg Config, sd SDClient, escalation EscalationEngine, notifier Notifier, config ConfigProvider, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{cfg: cfg, sd: sd, escalation: escalation, notifier: notifier, config: config, logger: logger}
}

// Snapshot returns a copy of the current counters, safe for concurrent
// reads from a health/diagnostics endpoint.
func (p *Poller) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Run blocks until ctx is cancelled, running one iteration immediately and
// then on a backoff-adjusted interval. Sleeps are interruptible by ctx.
func (p *Poller) Run(ctx context.Context) {
	interval := p.cfg.BaseInterval

	for {
		interval = p.runOnce(ctx, interval)

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// runOnce executes one fetch-notify-escalate cycle and returns the next
// interval to sleep for, per the fetch-ok/fetch-fail state table.
func (p *Poller) runOnce(ctx context.Context, currentInterval time.Duration) time.Duration {
	start := time.Now()

	p.mu.Lock()
	p.state.Runs++
	p.state.LastRunAt = start
	p.mu.Unlock()

	result := p.sd.GetOpen(ctx, p.cfg.FetchLimit)

	if !result.OK {
		p.mu.Lock()
		p.state.Failures++
		p.state.ConsecutiveFailures++
		p.state.LastError = result.Error
		p.state.LastDurationMs = time.Since(start).Milliseconds()
		p.mu.Unlock()

		p.logger.WarnContext(ctx, "open queue fetch failed",
			slog.String("error", result.Error), slog.String("request_id", result.RequestID))

		next := currentInterval * 2
		if next > p.cfg.MaxInterval {
			next = p.cfg.MaxInterval
		}
		if next < p.cfg.BaseInterval {
			next = p.cfg.BaseInterval
		}
		return next
	}

	p.mu.Lock()
	p.state.ConsecutiveFailures = 0
	p.state.LastSuccessAt = start
	p.state.LastDurationMs = time.Since(start).Milliseconds()
	p.mu.Unlock()

	cfg := p.config.Current()
	snap := BuildSnapshot(result.Items, p.cfg.BaseURL)

	p.mu.Lock()
	changed := snap.Hash != p.state.LastSentSnapshot
	p.mu.Unlock()

	if changed {
		text := RenderOpenQueueText(snap)
		if err := p.notifier.NotifyMain(ctx, result.Items, text); err != nil {
			p.logger.ErrorContext(ctx, "notify main failed", slog.String("error", err.Error()))
		}
		p.mu.Lock()
		p.state.LastSentSnapshot = snap.Hash
		p.state.LastSentIDs = snap.IDs
		p.state.LastSentCount = len(snap.IDs)
		p.state.LastSentAt = time.Now()
		p.mu.Unlock()
	}

	if p.escalation != nil {
		actions := p.escalation.Process(ctx, result.Items, cfg.Escalation, time.Now())
		if len(actions) > 0 {
			if err := p.notifier.NotifyEscalation(ctx, actions); err != nil {
				p.logger.ErrorContext(ctx, "notify escalation failed", slog.String("error", err.Error()))
			}
		}
	}

	return p.cfg.BaseInterval
}
