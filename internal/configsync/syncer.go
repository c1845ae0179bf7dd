// Package configsync pulls the versioned runtime configuration from the
// web service's config HTTP surface and exposes it as a single
// atomically-swapped snapshot: readers never observe a torn read, and a
// failed or stale fetch never replaces a good snapshot with a bad one.
package configsync

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// DefaultInterval is the default pull period.
const DefaultInterval = 30 * time.Second

// Validator is satisfied by internal/configvalidator.Validator. The
// syncer runs it as defense in depth even though the server already
// validated the body on write — a syncer that blindly trusted the wire
// would have no second opinion if the server's own validation regressed.
type Validator interface {
	Validate(body []byte) error
}

// Syncer periodically pulls GET /config and keeps the most recent valid
// body as an immutable snapshot behind an atomic pointer.
type Syncer struct {
	baseURL    string
	httpClient *http.Client
	validator  Validator
	interval   time.Duration
	logger     *slog.Logger

	snapshot     atomic.Pointer[domain.RuntimeConfig]
	localVersion atomic.Int64
}

// New constructs a Syncer. interval of zero uses DefaultInterval. baseURL
// is the web service's root (e.g. "https://web.internal"); "/config" is
// appended to it.
func New(baseURL string, interval time.Duration, validator Validator, logger *slog.Logger) *Syncer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		baseURL:   baseURL,
		validator: validator,
		interval:  interval,
		logger:    logger,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				DialContext: (&net.Dialer{
					Timeout:   2 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Current returns the most recently synced configuration. Before the
// first successful sync it returns a zero-value RuntimeConfig (version
// 0, empty routing/escalation) rather than blocking.
func (s *Syncer) Current() domain.RuntimeConfig {
	p := s.snapshot.Load()
	if p == nil {
		return domain.RuntimeConfig{}
	}
	return *p
}

// Run pulls immediately, then on every interval until ctx is canceled.
// A fetch or validation failure is logged and the existing snapshot is
// kept — config sync must never crash the process it serves.
func (s *Syncer) Run(ctx context.Context) {
	s.syncOnce(ctx)

	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			s.syncOnce(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) {
	version, body, err := s.fetch(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "config sync fetch failed", "error", err)
		return
	}

	if version <= s.localVersion.Load() {
		return
	}

	if s.validator != nil {
		if err := s.validator.Validate(body); err != nil {
			s.logger.ErrorContext(ctx, "config sync: fetched config failed local validation, keeping current snapshot",
				"error", err, "version", version)
			return
		}
	}

	cfg := domain.ParseRuntimeConfig(version, body)
	s.snapshot.Store(&cfg)
	s.localVersion.Store(version)
	s.logger.InfoContext(ctx, "config synced", "version", version)
}

func (s *Syncer) fetch(ctx context.Context) (int64, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/config", nil)
	if err != nil {
		return 0, nil, fmt.Errorf("configsync: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("configsync: fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("configsync: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return 0, nil, fmt.Errorf("configsync: http %d", resp.StatusCode)
	}

	var versioned struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(body, &versioned); err != nil {
		return 0, nil, fmt.Errorf("configsync: decode version: %w", err)
	}

	return versioned.Version, body, nil
}
