package container

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/opsdesk/sd-bridge/internal/configsync"
	"github.com/opsdesk/sd-bridge/internal/configvalidator"
	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/escalation"
	"github.com/opsdesk/sd-bridge/internal/notifier"
	"github.com/opsdesk/sd-bridge/internal/notifier/chat"
	"github.com/opsdesk/sd-bridge/internal/observability"
	"github.com/opsdesk/sd-bridge/internal/poller"
	"github.com/opsdesk/sd-bridge/internal/sdclient"
	"github.com/opsdesk/sd-bridge/internal/statestore"
)

// escalationAdapter adapts *escalation.Engine to poller.EscalationEngine.
// The two packages define field-identical but distinct Action types so
// that poller never needs to import escalation; this is the one place
// that bridges them.
type escalationAdapter struct {
	engine *escalation.Engine
}

func (a *escalationAdapter) Process(ctx context.Context, items []domain.Ticket, cfg domain.EscalationConfig, now time.Time) []poller.EscalationAction {
	actions := a.engine.Process(ctx, items, cfg, now)
	out := make([]poller.EscalationAction, len(actions))
	for i, act := range actions {
		out[i] = poller.EscalationAction{Dest: act.Dest, Mention: act.Mention, Tickets: act.Tickets}
	}
	return out
}

// Bot is the process wiring for the poller/escalation/notifier/
// observability side of the bridge.
type Bot struct {
	cfg      *Config
	logger   *slog.Logger
	syncer   *configsync.Syncer
	poller   *poller.Poller
	observer *observability.Service
}

// NewBot constructs every collaborator for the bot process. stateStore
// may be a *statestore.RedisStore or a *statestore.MemoryStore, chosen by
// the caller based on whether REDIS_ADDR is configured.
func NewBot(cfg *Config, logger *slog.Logger, stateStore statestore.Store) *Bot {
	if logger == nil {
		logger = slog.Default()
	}

	sdClient := sdclient.New(cfg.WebBaseURL, time.Duration(cfg.SDWebTimeoutS)*time.Second, logger)

	engine := escalation.NewEngine(context.Background(), stateStore)
	escalationEngine := &escalationAdapter{engine: engine}

	validator := configvalidator.New()
	syncer := configsync.New(cfg.WebBaseURL, cfg.configSyncInterval(), validator, logger)

	sender := chat.NewHTTPSender(cfg.ChatAPIBaseURL, cfg.BotToken, logger)

	obsCfg := observability.DefaultConfig()
	obsCfg.AdminToken = cfg.ConfigAdminToken
	webClient := observability.NewHTTPWebClient(cfg.WebBaseURL, time.Duration(cfg.WebTimeoutS)*time.Second)
	observer := observability.New(sender, webClient, stateStore, syncer, os.LookupEnv, obsCfg, logger)

	notifySvc := notifier.New(sender, syncer, observer, observer, logger)

	pollerCfg := poller.DefaultConfig()
	pollerCfg.BaseInterval = cfg.pollInterval()
	pollerCfg.MaxInterval = cfg.pollMaxBackoff()
	pollerCfg.BaseURL = cfg.WebBaseURL

	p := poller.New(pollerCfg, sdClient, escalationEngine, notifySvc, syncer, logger)

	return &Bot{
		cfg:      cfg,
		logger:   logger,
		syncer:   syncer,
		poller:   p,
		observer: observer,
	}
}

// Run starts the poller, config sync, and observability loops and blocks
// until ctx is cancelled, then waits for every loop to exit.
func (b *Bot) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(3)

	go func() { defer wg.Done(); b.syncer.Run(ctx) }()
	go func() { defer wg.Done(); b.poller.Run(ctx) }()
	go func() { defer wg.Done(); b.observer.Run(ctx) }()

	b.logger.Info("bot started", "environment", b.cfg.Environment)
	wg.Wait()
	b.logger.Info("bot stopped")
}
