package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRetryExecutor_Execute_SucceedsWithoutRetryOnFirstAttempt checks that a
// successful operation never triggers a retry or a delay.
func TestRetryExecutor_Execute_SucceedsWithoutRetryOnFirstAttempt(t *testing.T) {
	executor := NewRetryExecutor(DefaultRetryConfig(), nil)

	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

// TestRetryExecutor_Execute_RetriesRetryableErrorsUntilSuccess checks that a
// retryable error is retried with backoff until the operation succeeds.
func TestRetryExecutor_Execute_RetriesRetryableErrorsUntilSuccess(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, BackoffFactor: 2}
	executor := NewRetryExecutor(cfg, nil)

	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return NewDatabaseError("40001", "serialization failure")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

// TestRetryExecutor_Execute_GivesUpOnNonRetryableError checks that a
// non-retryable error returns immediately without consuming a retry.
func TestRetryExecutor_Execute_GivesUpOnNonRetryableError(t *testing.T) {
	executor := NewRetryExecutor(DefaultRetryConfig(), nil)

	calls := 0
	wantErr := NewDatabaseError("42601", "syntax error")
	err := executor.Execute(context.Background(), func() error {
		calls++
		return wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, calls)
}

// TestRetryExecutor_Execute_StopsAfterMaxRetries checks that a persistently
// retryable error still gives up once MaxRetries is exhausted.
func TestRetryExecutor_Execute_StopsAfterMaxRetries(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}
	executor := NewRetryExecutor(cfg, nil)

	calls := 0
	err := executor.Execute(context.Background(), func() error {
		calls++
		return NewDatabaseError("40001", "serialization failure")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls) // initial attempt + 2 retries
}

// TestRetryExecutor_Execute_StopsOnContextCancellation checks that a
// cancelled context interrupts the backoff wait instead of retrying blindly.
func TestRetryExecutor_Execute_StopsOnContextCancellation(t *testing.T) {
	cfg := RetryConfig{MaxRetries: 5, InitialDelay: time.Second, MaxDelay: time.Second, BackoffFactor: 1}
	executor := NewRetryExecutor(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := executor.Execute(ctx, func() error {
		calls++
		if calls == 1 {
			cancel()
		}
		return NewDatabaseError("40001", "serialization failure")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

// TestCircuitBreaker_Call_OpensAfterMaxFailures checks that the breaker
// trips to open and short-circuits further calls once maxFailures is hit.
func TestCircuitBreaker_Call_OpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker(2, time.Minute)
	failure := errors.New("boom")

	assert.Error(t, cb.Call(func() error { return failure }))
	assert.False(t, cb.IsOpen())

	assert.Error(t, cb.Call(func() error { return failure }))
	assert.True(t, cb.IsOpen())

	calls := 0
	err := cb.Call(func() error { calls++; return nil })
	assert.ErrorIs(t, err, ErrCircuitBreakerOpen)
	assert.Equal(t, 0, calls)
}

// TestCircuitBreaker_Call_HalfOpensAfterResetTimeout checks that the breaker
// allows a trial call through once resetTimeout has elapsed, and closes
// again on success.
func TestCircuitBreaker_Call_HalfOpensAfterResetTimeout(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Millisecond)
	failure := errors.New("boom")

	require.Error(t, cb.Call(func() error { return failure }))
	require.True(t, cb.IsOpen())

	time.Sleep(5 * time.Millisecond)

	err := cb.Call(func() error { return nil })
	require.NoError(t, err)
	assert.Equal(t, StateClosed, cb.GetState())
	assert.Equal(t, 0, cb.GetFailureCount())
}

// TestCircuitBreaker_Reset checks that Reset restores the breaker to its
// initial closed state regardless of prior failures.
func TestCircuitBreaker_Reset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.True(t, cb.IsOpen())

	cb.Reset()

	assert.False(t, cb.IsOpen())
	assert.Equal(t, 0, cb.GetFailureCount())
}
