package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/escalation"
)

func TestEscalationAdapter_ConvertsEngineActionsToPollerShape(t *testing.T) {
	engine := escalation.NewEngine(context.Background(), nil)
	adapter := &escalationAdapter{engine: engine}

	dest := domain.Destination{ChatID: 100, ThreadID: 5}
	cfg := domain.EscalationConfig{
		Enabled: true,
		AfterS:  0,
		Rules: []domain.EscalationRule{
			{Dest: dest, Mention: "@oncall"},
		},
	}
	items := []domain.Ticket{{ID: 1, Name: "first"}}

	// AfterS=0 means a ticket escalates the moment it is first observed.
	actions := adapter.Process(context.Background(), items, cfg, time.Now())

	require.Len(t, actions, 1)
	assert.Equal(t, dest, actions[0].Dest)
	assert.Equal(t, "@oncall", actions[0].Mention)
	assert.Equal(t, items, actions[0].Tickets)
}

func TestNewBot_WiresAllCollaboratorsWithoutPanicking(t *testing.T) {
	cfg := &Config{
		Environment:      "local",
		WebBaseURL:       "http://web.invalid",
		PollIntervalS:    30,
		PollMaxBackoffS:  300,
		ConfigSyncS:      30,
		BotToken:         "test-token",
		ChatAPIBaseURL:   "http://chat.invalid",
		SDWebTimeoutS:    3,
		WebTimeoutS:      3,
		ConfigAdminToken: "admin",
	}
	store, err := NewStateStore(cfg, nil)
	require.NoError(t, err)

	bot := NewBot(cfg, nil, store)
	require.NotNil(t, bot)
	require.NotNil(t, bot.poller)
	require.NotNil(t, bot.syncer)
	require.NotNil(t, bot.observer)
}
