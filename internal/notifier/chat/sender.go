// Package chat implements the outbound side of the notification service:
// a rate-limited, retrying HTTP client against a generic chat platform's
// sendMessage endpoint (aiogram/Telegram-shaped: chat_id, an optional
// message_thread_id, and text).
package chat

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrForbidden is returned when the platform reports the bot can no
// longer post to a chat or thread (removed from the chat, thread
// deleted). Callers distinguish this from transient failures: it is
// never worth retrying and is routed to the admin-alert path instead.
var ErrForbidden = errors.New("chat: forbidden to post to this chat or thread")

// Sender is the outbound notification boundary. Tests substitute a fake
// to avoid a real network dependency.
type Sender interface {
	SendMessage(ctx context.Context, chatID, threadID int64, text string) error
}

// APIError is a non-2xx response from the chat platform.
type APIError struct {
	StatusCode  int
	Description string
	RetryAfterS int
}

func (e *APIError) Error() string {
	if e.RetryAfterS > 0 {
		return fmt.Sprintf("chat API error %d: %s (retry after %ds)", e.StatusCode, e.Description, e.RetryAfterS)
	}
	return fmt.Sprintf("chat API error %d: %s", e.StatusCode, e.Description)
}

// isRetryable reports whether err warrants another attempt: 429, 5xx, or
// a transient network error. 403/404 (forbidden/not found) and other 4xx
// are permanent.
func isRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// isForbidden reports whether err means the bot can no longer reach the
// destination (removed from chat, or the thread was deleted).
func isForbidden(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusForbidden || apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

const (
	maxRetries     = 3
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// HTTPSender posts to https://<baseURL>/bot<token>/sendMessage, rate
// limited to one message per second (the platform's own per-bot limit)
// with burst 1, and retried with exponential backoff on transient
// failures.
type HTTPSender struct {
	httpClient  *http.Client
	baseURL     string
	token       string
	rateLimiter *rate.Limiter
	logger      *slog.Logger
}

// NewHTTPSender constructs a sender targeting baseURL (e.g.
// "https://api.telegram.org") with the given bot token.
func NewHTTPSender(baseURL, token string, logger *slog.Logger) *HTTPSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPSender{
		baseURL:     baseURL,
		token:       token,
		rateLimiter: rate.NewLimiter(rate.Every(1*time.Second), 1),
		logger:      logger,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
				DialContext: (&net.Dialer{
					Timeout:   3 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
			},
		},
	}
}

type sendMessageRequest struct {
	ChatID          int64  `json:"chat_id"`
	MessageThreadID *int64 `json:"message_thread_id,omitempty"`
	Text            string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendMessage posts text to chatID, optionally scoped to threadID (0
// means no thread). It blocks on the rate limiter, then retries
// transient failures with exponential backoff, honoring a Retry-After
// header on 429. Permanent failures (ErrForbidden, bad request) return
// immediately without retrying.
func (s *HTTPSender) SendMessage(ctx context.Context, chatID, threadID int64, text string) error {
	body := sendMessageRequest{ChatID: chatID, Text: text}
	if threadID != 0 {
		body.MessageThreadID = &threadID
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("chat: marshal request: %w", err)
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		if err := s.rateLimiter.Wait(ctx); err != nil {
			return fmt.Errorf("chat: rate limiter: %w", err)
		}

		err := s.doRequest(ctx, payload)
		if err == nil {
			return nil
		}
		lastErr = err

		if isForbidden(err) {
			return fmt.Errorf("%w: %v", ErrForbidden, err)
		}
		if !isRetryable(err) {
			return err
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfterS > 0 {
			backoff = time.Duration(apiErr.RetryAfterS) * time.Second
		}

		s.logger.WarnContext(ctx, "chat send retrying", "attempt", attempt+1, "error", err)
	}

	return fmt.Errorf("chat: exhausted retries: %w", lastErr)
}

func (s *HTTPSender) doRequest(ctx context.Context, payload []byte) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chat: do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("chat: read response: %w", err)
	}

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode}
	var parsed sendMessageResponse
	if err := json.Unmarshal(respBody, &parsed); err == nil && parsed.Description != "" {
		apiErr.Description = parsed.Description
	} else {
		apiErr.Description = string(respBody)
	}
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		fmt.Sscanf(retryAfter, "%d", &apiErr.RetryAfterS)
	}
	return apiErr
}
