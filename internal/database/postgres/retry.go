package postgres

import (
	"context"
	"math/rand"
	"time"

	"log/slog"
)

// RetryConfig controls the retry behavior of a RetryExecutor.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFactor  float64
}

// DefaultRetryConfig returns sane retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2.0,
		JitterFactor:  0.1,
	}
}

// RetryExecutor runs operations with exponential backoff retry.
type RetryExecutor struct {
	config RetryConfig
	logger *slog.Logger
}

// NewRetryExecutor creates a new retry executor.
func NewRetryExecutor(config RetryConfig, logger *slog.Logger) *RetryExecutor {
	if logger == nil {
		logger = slog.Default()
	}

	return &RetryExecutor{
		config: config,
		logger: logger,
	}
}

// Execute runs operation, retrying on retryable errors up to MaxRetries.
func (r *RetryExecutor) Execute(ctx context.Context, operation func() error) error {
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retry",
					"attempt", attempt+1,
					"total_attempts", attempt+1)
			}
			return nil
		}

		lastErr = err

		if attempt < r.config.MaxRetries && r.shouldRetry(err) {
			r.logger.Warn("Operation failed, retrying",
				"attempt", attempt+1,
				"max_retries", r.config.MaxRetries,
				"delay", delay,
				"error", err)

			if !r.waitWithContext(ctx, delay) {
				return ctx.Err()
			}

			delay = r.nextDelay(delay)
		} else {
			break
		}
	}

	r.logger.Error("Operation failed after all retries",
		"max_retries", r.config.MaxRetries,
		"error", lastErr)

	return lastErr
}

// ExecuteWithResult is like Execute but for operations that return a value.
func (r *RetryExecutor) ExecuteWithResult(ctx context.Context, operation func() (interface{}, error)) (interface{}, error) {
	var lastResult interface{}
	var lastErr error
	delay := r.config.InitialDelay

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result, err := operation()
		if err == nil {
			if attempt > 0 {
				r.logger.Info("Operation succeeded after retry",
					"attempt", attempt+1,
					"total_attempts", attempt+1)
			}
			return result, nil
		}

		lastResult = result
		lastErr = err

		if attempt < r.config.MaxRetries && r.shouldRetry(err) {
			r.logger.Warn("Operation failed, retrying",
				"attempt", attempt+1,
				"max_retries", r.config.MaxRetries,
				"delay", delay,
				"error", err)

			if !r.waitWithContext(ctx, delay) {
				return nil, ctx.Err()
			}

			delay = r.nextDelay(delay)
		} else {
			break
		}
	}

	r.logger.Error("Operation failed after all retries",
		"max_retries", r.config.MaxRetries,
		"error", lastErr)

	return lastResult, lastErr
}

// shouldRetry reports whether err is worth retrying.
func (r *RetryExecutor) shouldRetry(err error) bool {
	return IsRetryable(err)
}

// waitWithContext sleeps for delay unless ctx is cancelled first.
func (r *RetryExecutor) waitWithContext(ctx context.Context, delay time.Duration) bool {
	select {
	case <-time.After(delay):
		return true
	case <-ctx.Done():
		return false
	}
}

// nextDelay computes the next backoff delay with jitter.
func (r *RetryExecutor) nextDelay(currentDelay time.Duration) time.Duration {
	nextDelay := time.Duration(float64(currentDelay) * r.config.BackoffFactor)

	if nextDelay > r.config.MaxDelay {
		nextDelay = r.config.MaxDelay
	}

	if r.config.JitterFactor > 0 {
		jitter := time.Duration(float64(nextDelay) * r.config.JitterFactor * rand.Float64())
		nextDelay += jitter
	}

	return nextDelay
}

// CircuitBreaker implements the circuit breaker pattern for a generic
// operation.
type CircuitBreaker struct {
	state        CircuitBreakerState
	failureCount int
	maxFailures  int
	resetTimeout time.Duration
	lastFailure  time.Time
	lastSuccess  time.Time
}

// NewCircuitBreaker creates a new circuit breaker.
func NewCircuitBreaker(maxFailures int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		state:        StateClosed,
		maxFailures:  maxFailures,
		resetTimeout: resetTimeout,
	}
}

// Call runs operation through the circuit breaker.
func (cb *CircuitBreaker) Call(operation func() error) error {
	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailure) > cb.resetTimeout {
			cb.state = StateHalfOpen
		} else {
			return ErrCircuitBreakerOpen
		}
	case StateHalfOpen:
		fallthrough
	case StateClosed:
		break
	}

	err := operation()

	if err != nil {
		cb.recordFailure()
		return err
	}

	cb.recordSuccess()
	return nil
}

// recordFailure records a failed call.
func (cb *CircuitBreaker) recordFailure() {
	cb.failureCount++
	cb.lastFailure = time.Now()

	if cb.failureCount >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// recordSuccess records a successful call.
func (cb *CircuitBreaker) recordSuccess() {
	cb.failureCount = 0
	cb.lastSuccess = time.Now()
	cb.state = StateClosed
}

// GetState returns the current circuit breaker state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	return cb.state
}

// GetFailureCount returns the current consecutive failure count.
func (cb *CircuitBreaker) GetFailureCount() int {
	return cb.failureCount
}

// IsOpen reports whether the breaker is open.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.state == StateOpen
}

// Reset returns the breaker to its initial closed state.
func (cb *CircuitBreaker) Reset() {
	cb.state = StateClosed
	cb.failureCount = 0
	cb.lastFailure = time.Time{}
	cb.lastSuccess = time.Now()
}
