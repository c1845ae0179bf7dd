package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/sd-bridge/internal/domain"
	"github.com/opsdesk/sd-bridge/internal/notifier/chat"
	"github.com/opsdesk/sd-bridge/internal/poller"
)

type sentMessage struct {
	chatID, threadID int64
	text             string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID, threadID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMessage{chatID, threadID, text})
	return nil
}

type fakeConfig struct {
	cfg domain.RuntimeConfig
}

func (f fakeConfig) Current() domain.RuntimeConfig { return f.cfg }

type fakeNoDest struct {
	called bool
	items  []domain.Ticket
}

func (f *fakeNoDest) HandleNoDestination(ctx context.Context, items []domain.Ticket) {
	f.called = true
	f.items = items
}

type fakeForbidden struct {
	called  bool
	chatID  int64
	context string
}

func (f *fakeForbidden) HandleForbiddenSend(ctx context.Context, chatID, threadID int64, context, reason string) {
	f.called = true
	f.chatID = chatID
	f.context = context
}

func TestNotifyMain_SendsToMatchedRuleDestination(t *testing.T) {
	dest := domain.Destination{ChatID: 100}
	cfg := domain.RuntimeConfig{
		Routing: domain.RoutingConfig{
			Rules: []domain.Rule{{Dest: dest, Filt: domain.Filter{Keywords: []string{"vip"}}}},
		},
	}
	sender := &fakeSender{}
	svc := New(sender, fakeConfig{cfg}, nil, nil, nil)

	items := []domain.Ticket{{ID: 1, Name: "vip outage"}}
	err := svc.NotifyMain(context.Background(), items, "hello")

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(100), sender.sent[0].chatID)
	assert.Equal(t, "hello", sender.sent[0].text)
}

func TestNotifyMain_NoDestinationInvokesHandler(t *testing.T) {
	sender := &fakeSender{}
	noDest := &fakeNoDest{}
	svc := New(sender, fakeConfig{domain.RuntimeConfig{}}, noDest, nil, nil)

	items := []domain.Ticket{{ID: 1, Name: "anything"}}
	err := svc.NotifyMain(context.Background(), items, "hello")

	require.NoError(t, err)
	assert.True(t, noDest.called)
	assert.Empty(t, sender.sent)
}

func TestNotifyMain_ForbiddenSendInvokesHandlerAndDoesNotError(t *testing.T) {
	dest := domain.Destination{ChatID: 100}
	cfg := domain.RuntimeConfig{
		Routing: domain.RoutingConfig{DefaultDest: &dest},
	}
	sender := &fakeSender{err: chat.ErrForbidden}
	forbidden := &fakeForbidden{}
	svc := New(sender, fakeConfig{cfg}, nil, forbidden, nil)

	err := svc.NotifyMain(context.Background(), []domain.Ticket{{ID: 1}}, "hello")

	require.NoError(t, err)
	assert.True(t, forbidden.called)
	assert.Equal(t, int64(100), forbidden.chatID)
}

func TestNotifyMain_PropagatesNonForbiddenSendErrors(t *testing.T) {
	dest := domain.Destination{ChatID: 100}
	cfg := domain.RuntimeConfig{Routing: domain.RoutingConfig{DefaultDest: &dest}}
	sender := &fakeSender{err: errors.New("network down")}
	svc := New(sender, fakeConfig{cfg}, nil, nil, nil)

	err := svc.NotifyMain(context.Background(), []domain.Ticket{{ID: 1}}, "hello")

	require.Error(t, err)
}

func TestNotifyEscalation_SkipsWhenEscalationDisabled(t *testing.T) {
	sender := &fakeSender{}
	svc := New(sender, fakeConfig{domain.RuntimeConfig{}}, nil, nil, nil)

	actions := []poller.EscalationAction{{Dest: domain.Destination{ChatID: 5}, Mention: "@oncall"}}
	err := svc.NotifyEscalation(context.Background(), actions)

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}

func TestNotifyEscalation_SendsRenderedTextPerAction(t *testing.T) {
	cfg := domain.RuntimeConfig{Escalation: domain.EscalationConfig{Enabled: true}}
	sender := &fakeSender{}
	svc := New(sender, fakeConfig{cfg}, nil, nil, nil)

	actions := []poller.EscalationAction{
		{Dest: domain.Destination{ChatID: 5}, Mention: "@oncall", Tickets: []domain.Ticket{{ID: 42, Name: "db down"}}},
	}
	err := svc.NotifyEscalation(context.Background(), actions)

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(5), sender.sent[0].chatID)
	assert.Contains(t, sender.sent[0].text, "@oncall")
	assert.Contains(t, sender.sent[0].text, "#42: db down")
}

func TestNotifyEventlog_SendsToMatchedFilterDestination(t *testing.T) {
	cfg := domain.RuntimeConfig{
		Eventlog: domain.EventlogRouteSet{Filters: []domain.EventlogFilter{
			{ID: 1, Field: "description", Pattern: "disk full", Dest: domain.Destination{ChatID: 200}, Enabled: true},
		}},
	}
	sender := &fakeSender{}
	svc := New(sender, fakeConfig{cfg}, nil, nil, nil)

	entry := domain.EventlogEntry{ID: 1, Fields: map[string]string{"description": "disk full on host-9"}}
	err := svc.NotifyEventlog(context.Background(), entry, "disk alert")

	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(200), sender.sent[0].chatID)
}

func TestNotifyEventlog_NoMatchIsDroppedSilently(t *testing.T) {
	sender := &fakeSender{}
	svc := New(sender, fakeConfig{domain.RuntimeConfig{}}, nil, nil, nil)

	err := svc.NotifyEventlog(context.Background(), domain.EventlogEntry{ID: 1}, "text")

	require.NoError(t, err)
	assert.Empty(t, sender.sent)
}
