package hyx

import (
	"context"
	"fmt"
	"time"
)

// ---------------------------------------------------------------------------
// Attempt counter
// ---------------------------------------------------------------------------

// Counter tracks retry attempts, bounded or unbounded. Grounded on
// original_source/hyx/retry/counters.py's AttemptCounter/
// UntilSuccessCounter, expressed here as a small interface rather than a
// raising `__iadd__` since Go has no operator overloading.
type Counter interface {
	// HasMore reports whether another attempt may be made.
	HasMore() bool
	// Attempt returns the current 0-indexed attempt number.
	Attempt() int
	// Incr advances to the next attempt.
	Incr()
}

type boundedCounter struct {
	max     int
	attempt int
}

// HasMore allows attempt indices 0..max inclusive, i.e. max+1 total
// invocations for max retries after the initial attempt — matching
// original_source/hyx/retry/counters.py's AttemptCounter, whose __bool__
// is `current <= max`.
func (c *boundedCounter) HasMore() bool { return c.attempt <= c.max }
func (c *boundedCounter) Attempt() int  { return c.attempt }
func (c *boundedCounter) Incr()         { c.attempt++ }

type unboundedCounter struct {
	attempt int
}

func (c *unboundedCounter) HasMore() bool { return true }
func (c *unboundedCounter) Attempt() int  { return c.attempt }
func (c *unboundedCounter) Incr()         { c.attempt++ }

// newCounter builds the Counter matching maxAttempts: a value <= 0 means
// unbounded, any other value is clamped to at least 1 (one retry, two
// total invocations).
func newCounter(maxAttempts int) Counter {
	if maxAttempts <= 0 {
		return &unboundedCounter{}
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &boundedCounter{max: maxAttempts}
}

// ---------------------------------------------------------------------------
// RetryOption
// ---------------------------------------------------------------------------

// retryConfig holds the optional configuration for retry behavior.
type retryConfig struct {
	maxDelay          time.Duration    // 0 means no cap
	perAttemptTimeout time.Duration    // 0 means no per-attempt timeout
	retryIf           func(error) bool // nil means use default Transient/Permanent check
}

// RetryOption configures retry behavior.
type RetryOption func(*retryConfig)

// MaxDelay caps the backoff delay to a maximum value.
func MaxDelay(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.maxDelay = d
	}
}

// PerAttemptTimeout sets a timeout for each individual retry attempt.
func PerAttemptTimeout(d time.Duration) RetryOption {
	return func(cfg *retryConfig) {
		cfg.perAttemptTimeout = d
	}
}

// RetryIf sets a custom predicate that determines whether an error is retryable,
// in addition to the Transient/Permanent classification.
func RetryIf(fn func(error) bool) RetryOption {
	return func(cfg *retryConfig) {
		cfg.retryIf = fn
	}
}

// ---------------------------------------------------------------------------
// DoRetry
// ---------------------------------------------------------------------------

// RetryParams groups DoRetry's configuration.
type RetryParams struct {
	// MaxAttempts bounds the number of retries after the initial attempt,
	// so a bounded retry invokes the operation at most MaxAttempts+1
	// times; <= 0 means unbounded (retries until success, a
	// non-retryable error, or context cancellation).
	MaxAttempts int
	Strategy    BackoffStrategy
	Hooks       *Hooks
	Clock       Clock
	// Limiter, if set, is consulted before every attempt (including the
	// first); a rejection is a hard stop that propagates immediately
	// without counting as a retryable failure.
	Limiter Limiter
	// Dispatcher, if set, publishes retry events to the event fabric in
	// addition to Hooks.
	Dispatcher *Dispatcher
	// EngineName identifies this retry engine in dispatched events;
	// defaults to "retry".
	EngineName string
	Opts       []RetryOption
}

// Pattern: Retry with Backoff — masks transient failures with a
// configurable backoff strategy; respects Permanent error classification
// to stop early, and an attached Limiter to cap retry rate across
// invocations.

// DoRetry executes fn with retry logic per params. It retries while the
// outcome is a matching failure, waiting per params.Strategy between
// attempts, and returns the last error wrapped in [ErrAttemptsExceeded]
// once a bounded attempt count is exhausted.
func DoRetry[T any](ctx context.Context, fn func(context.Context) (T, error), params RetryParams) (T, error) {
	var cfg retryConfig
	for _, opt := range params.Opts {
		opt(&cfg)
	}

	engine := params.EngineName
	if engine == "" {
		engine = "retry"
	}

	params.Strategy.Reset()
	counter := newCounter(params.MaxAttempts)

	var zero T
	var lastErr error

	for counter.HasMore() {
		attempt := counter.Attempt()

		if params.Limiter != nil {
			if err := params.Limiter.Allow(ctx); err != nil {
				return zero, err
			}
		}

		// Execute fn, optionally with per-attempt timeout.
		var result T
		var err error
		if cfg.perAttemptTimeout > 0 {
			attemptCtx, attemptCancel := context.WithTimeout(ctx, cfg.perAttemptTimeout)
			result, err = fn(attemptCtx)
			attemptCancel()
		} else {
			result, err = fn(ctx)
		}

		// On success: return result immediately.
		if err == nil {
			params.Hooks.emitSuccess(attempt + 1)
			DispatchEvent[RetryOnSuccessListener](params.Dispatcher, func(l RetryOnSuccessListener) {
				l.OnRetrySuccess(engine, attempt+1)
			})
			return result, nil
		}

		lastErr = err
		counter.Incr()

		// If error is Permanent: stop immediately.
		if IsPermanent(err) {
			return zero, err
		}

		// If retryIf predicate is set and returns false: stop.
		if cfg.retryIf != nil && !cfg.retryIf(err) {
			return zero, err
		}

		// If no more attempts remain, don't sleep or emit hook.
		if !counter.HasMore() {
			break
		}

		// Emit OnRetry hook with 1-indexed attempt number (the attempt
		// that just failed).
		params.Hooks.emitRetry(attempt+1, err)
		DispatchEvent[RetryOnRetryListener](params.Dispatcher, func(l RetryOnRetryListener) {
			l.OnRetry(engine, err, attempt+1, params.Strategy.Delay(attempt))
		})

		// Compute backoff delay.
		delay := params.Strategy.Delay(attempt)

		// Apply MaxDelay cap.
		if cfg.maxDelay > 0 && delay > cfg.maxDelay {
			delay = cfg.maxDelay
		}

		// Sleep using Clock.NewTimer, respecting context cancellation.
		timer := params.Clock.NewTimer(delay)
		select {
		case <-timer.C():
			// Timer fired, proceed to next attempt.
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		}
	}

	// Attempts exhausted: wrap last error with ErrAttemptsExceeded.
	params.Hooks.emitAttemptsExceeded()
	DispatchEvent[RetryOnAttemptsExceededListener](params.Dispatcher, func(l RetryOnAttemptsExceededListener) {
		l.OnAttemptsExceeded(engine)
	})
	return zero, fmt.Errorf("%w: %w", ErrAttemptsExceeded, lastErr)
}
