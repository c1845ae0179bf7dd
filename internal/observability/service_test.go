package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) SendMessage(ctx context.Context, chatID, threadID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeWebClient struct {
	health, ready ProbeResult
	rollbacks     RollbackStats
	rollbacksErr  error
}

func (f *fakeWebClient) CheckHealth(ctx context.Context) ProbeResult { return f.health }
func (f *fakeWebClient) CheckReady(ctx context.Context) ProbeResult  { return f.ready }
func (f *fakeWebClient) GetRollbacks(ctx context.Context, windowS int, adminToken string) (RollbackStats, error) {
	return f.rollbacks, f.rollbacksErr
}

type fakeStateStore struct {
	pingErr error
	lastOK  time.Time
	hadOK   bool
}

func (f *fakeStateStore) GetJSON(ctx context.Context, key string, dest interface{}) error { return nil }
func (f *fakeStateStore) SetJSON(ctx context.Context, key string, value interface{}) error { return nil }
func (f *fakeStateStore) Ping(ctx context.Context) error                                  { return f.pingErr }
func (f *fakeStateStore) LastOK() (time.Time, bool)                                       { return f.lastOK, f.hadOK }

type fakeConfigProvider struct {
	cfg domain.RuntimeConfig
}

func (f fakeConfigProvider) Current() domain.RuntimeConfig { return f.cfg }

func adminEnv(chatID string) LookupEnv {
	return func(key string) (string, bool) {
		if key == "ADMIN_ALERT_CHAT_ID" {
			return chatID, chatID != ""
		}
		return "", false
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AdminToken = "admin-token"
	return cfg
}

func TestHandleNoDestination_SendsAlertOnFirstOccurrence(t *testing.T) {
	sender := &fakeSender{}
	svc := New(sender, &fakeWebClient{}, nil, fakeConfigProvider{}, adminEnv("555"), testConfig(), nil)

	svc.HandleNoDestination(context.Background(), []domain.Ticket{{ID: 1, Name: "a"}})

	assert.Equal(t, 1, sender.count())
	assert.Equal(t, int64(1), svc.Snapshot().TicketsWithoutDestinationTotal)
}

func TestHandleNoDestination_SkipsWithinRateLimitWindow(t *testing.T) {
	sender := &fakeSender{}
	svc := New(sender, &fakeWebClient{}, nil, fakeConfigProvider{}, adminEnv("555"), testConfig(), nil)

	svc.HandleNoDestination(context.Background(), nil)
	svc.HandleNoDestination(context.Background(), nil)

	assert.Equal(t, 1, sender.count())
	assert.Equal(t, int64(1), svc.Snapshot().AdminAlertsSkippedRateLimit)
}

func TestHandleNoDestination_LogsAndSkipsWhenNoAdminDestConfigured(t *testing.T) {
	sender := &fakeSender{}
	svc := New(sender, &fakeWebClient{}, nil, fakeConfigProvider{}, adminEnv(""), testConfig(), nil)

	svc.HandleNoDestination(context.Background(), nil)

	assert.Equal(t, 0, sender.count())
}

func TestHandleForbiddenSend_SendsAlert(t *testing.T) {
	sender := &fakeSender{}
	svc := New(sender, &fakeWebClient{}, nil, fakeConfigProvider{}, adminEnv("555"), testConfig(), nil)

	svc.HandleForbiddenSend(context.Background(), 42, 7, "routing.main", "bot was kicked")

	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sent[0], "42")
}

func TestCheckWeb_AlertsWhenBothProbesFail(t *testing.T) {
	sender := &fakeSender{}
	web := &fakeWebClient{health: ProbeResult{OK: false, Status: "500"}, ready: ProbeResult{OK: false, Status: "503"}}
	svc := New(sender, web, nil, fakeConfigProvider{}, adminEnv("555"), testConfig(), nil)

	svc.CheckWeb(context.Background())

	assert.Equal(t, 1, sender.count())
}

func TestCheckWeb_NoAlertWhenHealthy(t *testing.T) {
	sender := &fakeSender{}
	web := &fakeWebClient{health: ProbeResult{OK: true}, ready: ProbeResult{OK: true}}
	svc := New(sender, web, nil, fakeConfigProvider{}, adminEnv("555"), testConfig(), nil)

	svc.CheckWeb(context.Background())

	assert.Equal(t, 0, sender.count())
}

func TestCheckRedis_NilStateStoreNeverAlerts(t *testing.T) {
	sender := &fakeSender{}
	svc := New(sender, &fakeWebClient{}, nil, fakeConfigProvider{}, adminEnv("555"), testConfig(), nil)

	svc.CheckRedis(context.Background())

	assert.Equal(t, 0, sender.count())
}

func TestCheckRedis_AlertsOnPingFailure(t *testing.T) {
	sender := &fakeSender{}
	store := &fakeStateStore{pingErr: errors.New("connection refused")}
	svc := New(sender, &fakeWebClient{}, store, fakeConfigProvider{}, adminEnv("555"), testConfig(), nil)

	svc.CheckRedis(context.Background())

	require.Equal(t, 1, sender.count())
	assert.Contains(t, sender.sent[0], "connection refused")
}

func TestCheckRollbacks_AlertsWhenCountMeetsThreshold(t *testing.T) {
	sender := &fakeSender{}
	web := &fakeWebClient{rollbacks: RollbackStats{Count: 10, WindowS: 3600}}
	cfg := testConfig()
	cfg.RollbackThreshold = 10
	svc := New(sender, web, nil, fakeConfigProvider{}, adminEnv("555"), cfg, nil)

	svc.CheckRollbacks(context.Background())

	assert.Equal(t, 1, sender.count())
}

func TestCheckRollbacks_NoAlertBelowThreshold(t *testing.T) {
	sender := &fakeSender{}
	web := &fakeWebClient{rollbacks: RollbackStats{Count: 2, WindowS: 3600}}
	cfg := testConfig()
	cfg.RollbackThreshold = 10
	svc := New(sender, web, nil, fakeConfigProvider{}, adminEnv("555"), cfg, nil)

	svc.CheckRollbacks(context.Background())

	assert.Equal(t, 0, sender.count())
}

func TestCheckRollbacks_DisabledWithoutAdminToken(t *testing.T) {
	sender := &fakeSender{}
	web := &fakeWebClient{rollbacks: RollbackStats{Count: 99}}
	cfg := testConfig()
	cfg.AdminToken = ""
	svc := New(sender, web, nil, fakeConfigProvider{}, adminEnv("555"), cfg, nil)

	svc.CheckRollbacks(context.Background())

	assert.Equal(t, 0, sender.count())
}

func TestRun_StopsOnContextCancellation(t *testing.T) {
	sender := &fakeSender{}
	web := &fakeWebClient{health: ProbeResult{OK: true}, ready: ProbeResult{OK: true}}
	cfg := testConfig()
	cfg.WebCheckInterval = 10 * time.Millisecond
	cfg.RedisCheckInterval = 10 * time.Millisecond
	cfg.RollbackCheckInterval = 10 * time.Millisecond
	svc := New(sender, web, nil, fakeConfigProvider{}, adminEnv("555"), cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
