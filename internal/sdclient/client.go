// Package sdclient fetches the open ticket queue from one HTTP endpoint.
// The bot points it at the web service's /sd/open proxy; the web service
// points it at SD to serve that proxy. It never returns a Go error for a
// failed fetch: every outcome,
// success or failure, is encoded in the Result so the poller can drive its
// own backoff without a type switch on error causes.
package sdclient

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/opsdesk/sd-bridge/internal/domain"
)

// DefaultTimeout bounds the whole request, matching "total request timeout
// bounded (default 3 s)".
const DefaultTimeout = 3 * time.Second

// Result is the SD client's only output shape. Items is nil and Error is
// set on any failure; Items is non-nil (possibly empty) on success.
type Result struct {
	OK            bool            `json:"ok"`
	Items         []domain.Ticket `json:"items"`
	CountReturned int             `json:"count_returned"`
	Error         string          `json:"error,omitempty"`
	RequestID     string          `json:"request_id"`
}

// Client fetches the open queue from its configured endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// New constructs a Client. timeout of zero uses DefaultTimeout.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		logger:  logger,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				DialContext: (&net.Dialer{
					Timeout:   2 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   2 * time.Second,
				ResponseHeaderTimeout: timeout,
				IdleConnTimeout:       30 * time.Second,
				MaxIdleConnsPerHost:   4,
			},
		},
	}
}

type openQueueResponse struct {
	Items []ticketWire `json:"items"`
}

type ticketWire struct {
	ID     int64                  `json:"id"`
	Name   string                 `json:"name"`
	Fields map[string]interface{} `json:"fields"`
}

// GetOpen fetches up to limit open tickets. It never returns a non-nil
// error; every failure mode is reported through Result.OK/Result.Error.
func (c *Client) GetOpen(ctx context.Context, limit int) Result {
	reqID := newRequestID()

	endpoint, err := c.buildURL(limit)
	if err != nil {
		return Result{OK: false, Error: fmt.Sprintf("build request: %v", err), RequestID: reqID}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{OK: false, Error: fmt.Sprintf("build request: %v", err), RequestID: reqID}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WarnContext(ctx, "sd client fetch failed", slog.String("error", err.Error()), slog.String("request_id", reqID))
		return Result{OK: false, Error: err.Error(), RequestID: reqID}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Result{OK: false, Error: fmt.Sprintf("read body: %v", err), RequestID: reqID}
	}

	if resp.StatusCode != http.StatusOK {
		return Result{OK: false, Error: fmt.Sprintf("http %d: %s", resp.StatusCode, string(body)), RequestID: reqID}
	}

	var parsed openQueueResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{OK: false, Error: fmt.Sprintf("decode body: %v", err), RequestID: reqID}
	}

	items := make([]domain.Ticket, 0, len(parsed.Items))
	for _, w := range parsed.Items {
		items = append(items, domain.Ticket{ID: w.ID, Name: w.Name, Fields: w.Fields})
	}

	return Result{OK: true, Items: items, CountReturned: len(items), RequestID: reqID}
}

func (c *Client) buildURL(limit int) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("limit", strconv.Itoa(limit))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func newRequestID() string {
	return uuid.New().String()
}
