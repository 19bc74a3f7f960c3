package hyx

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

// EmptyBucketError is the cause wrapped by [ErrRateLimitExceeded] when a
// [TokenBucket] has no tokens available.
type EmptyBucketError struct {
	// RetryAfter is how long the caller should wait before the bucket next
	// replenishes.
	RetryAfter time.Duration
}

func (e *EmptyBucketError) Error() string {
	return fmt.Sprintf("token bucket empty, retry after %s", e.RetryAfter)
}

// FilledBucketError is the cause wrapped by [ErrRateLimitExceeded] when a
// [LeakyBucket] has no remaining space.
type FilledBucketError struct{}

func (e *FilledBucketError) Error() string { return "leaky bucket filled" }

// ---------------------------------------------------------------------------
// Limiter
// ---------------------------------------------------------------------------

// Limiter is implemented by both bucket algorithms. Allow blocks (in
// blocking mode) or rejects immediately (in reject mode, the default) when
// no capacity is available; Saturated reports capacity exhaustion without
// consuming it.
type Limiter interface {
	// Allow acquires one unit of capacity, or returns an error wrapping
	// [ErrRateLimitExceeded] if none is available and the limiter is not
	// in blocking mode. Honors ctx cancellation in blocking mode.
	Allow(ctx context.Context) error
	// Saturated reports whether the limiter currently has no capacity to
	// grant, without consuming any.
	Saturated() bool
}

type rateLimitConfig struct {
	blocking bool
}

// RateLimitOption configures rate limiter behavior.
type RateLimitOption func(*rateLimitConfig)

// RateLimitBlocking makes Allow wait for capacity instead of rejecting
// immediately, polling once per millisecond and honoring ctx cancellation.
func RateLimitBlocking() RateLimitOption {
	return func(cfg *rateLimitConfig) {
		cfg.blocking = true
	}
}

func defaultRateLimitConfig() rateLimitConfig {
	return rateLimitConfig{}
}

// blockingPoll is shared by both bucket implementations for their blocking
// mode: it retries tryAcquire once per pollInterval until it succeeds or
// ctx is done.
func blockingPoll(ctx context.Context, clock Clock, tryAcquire func() error) error {
	const pollInterval = time.Millisecond

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := tryAcquire(); err == nil {
			return nil
		}

		timer := clock.NewTimer(pollInterval)
		select {
		case <-timer.C():
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
}

// ---------------------------------------------------------------------------
// TokenBucket
// ---------------------------------------------------------------------------

// TokenBucket replenishes tokens as time passes; a call is allowed if a
// token is available and rejected with [ErrRateLimitExceeded] otherwise.
//
// Pattern: Rate Limiter (token bucket). Ported from
// original_source/hyx/ratelimit/buckets.py:TokenBucket — replenishment is
// computed lazily from elapsed wall-clock time against a monotonically
// advancing next_replenish_at, rather than on a ticking goroutine.
// Mutex-guarded: replenishment couples next_replenish_at and the token
// count, which must advance together and can't be expressed as independent
// atomics (unlike the teacher's CAS-based limiter, which this replaces).
type TokenBucket struct {
	clock Clock
	hooks *Hooks
	cfg   rateLimitConfig

	maxExecutions float64
	perTimeSecs   float64
	bucketSize    float64
	tokenPerSecs  float64

	mu              sync.Mutex
	tokens          float64
	nextReplenishAt time.Time
}

// NewTokenBucket creates a token bucket that allows maxExecutions calls per
// perTimeSecs seconds. bucketSize, if non-zero, caps the number of tokens
// that can accumulate; it defaults to maxExecutions.
func NewTokenBucket(maxExecutions, perTimeSecs, bucketSize float64, clock Clock, hooks *Hooks, opts ...RateLimitOption) *TokenBucket {
	cfg := defaultRateLimitConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if bucketSize <= 0 {
		bucketSize = maxExecutions
	}
	tokenPerSecs := perTimeSecs / maxExecutions

	now := clock.Now()
	return &TokenBucket{
		clock:           clock,
		hooks:           hooks,
		cfg:             cfg,
		maxExecutions:   maxExecutions,
		perTimeSecs:     perTimeSecs,
		bucketSize:      bucketSize,
		tokenPerSecs:    tokenPerSecs,
		tokens:          bucketSize,
		nextReplenishAt: now.Add(time.Duration(tokenPerSecs * float64(time.Second))),
	}
}

// replenishLocked recomputes tokens and advances nextReplenishAt once the
// replenish deadline has passed. Caller must hold tb.mu. Returns the
// remaining time until the next replenish if it hasn't passed yet.
func (tb *TokenBucket) replenishLocked(now time.Time) time.Duration {
	untilNext := tb.nextReplenishAt.Sub(now)
	if untilNext > 0 {
		return untilNext
	}

	secsPerToken := tb.tokenPerSecs
	tokensToAdd := math.Min(tb.bucketSize, 1+math.Abs(untilNext.Seconds()/secsPerToken))

	advanced := tb.nextReplenishAt.Add(time.Duration(tokensToAdd * secsPerToken * float64(time.Second)))
	floor := now.Add(time.Duration(secsPerToken * float64(time.Second)))
	if advanced.After(floor) {
		tb.nextReplenishAt = advanced
	} else {
		tb.nextReplenishAt = floor
	}

	tb.tokens = tokensToAdd
	return 0
}

func (tb *TokenBucket) tryAcquireLocked() error {
	now := tb.clock.Now()
	untilNext := tb.replenishLocked(now)

	if tb.tokens > 0 {
		tb.tokens--
		return nil
	}

	return &EmptyBucketError{RetryAfter: untilNext}
}

// Allow acquires one token, or returns an error wrapping
// [ErrRateLimitExceeded] (in reject mode) if none is available.
func (tb *TokenBucket) Allow(ctx context.Context) error {
	tb.mu.Lock()
	err := tb.tryAcquireLocked()
	tb.mu.Unlock()

	if err == nil {
		return nil
	}

	if !tb.cfg.blocking {
		tb.hooks.emitRateLimited()
		return fmt.Errorf("%w: %s", ErrRateLimitExceeded, err)
	}

	return blockingPoll(ctx, tb.clock, func() error {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		return tb.tryAcquireLocked()
	})
}

// Saturated reports whether the bucket currently has no tokens available.
func (tb *TokenBucket) Saturated() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.replenishLocked(tb.clock.Now())
	return tb.tokens <= 0
}

// ---------------------------------------------------------------------------
// LeakyBucket
// ---------------------------------------------------------------------------

// LeakyBucket leaks capacity as time passes; a call is allowed if there is
// room in the bucket and rejected with [ErrRateLimitExceeded] (wrapping
// [FilledBucketError]) otherwise.
//
// Pattern: Rate Limiter (leaky bucket). Ported from
// original_source/hyx/ratelimit/buckets.py:LeakyBucket.
type LeakyBucket struct {
	clock Clock
	hooks *Hooks
	cfg   rateLimitConfig

	maxExecutions float64
	rate          float64 // executions per second

	mu              sync.Mutex
	tokens          float64
	lastBucketCheck time.Time
}

// NewLeakyBucket creates a leaky bucket that allows up to maxExecutions
// outstanding units, leaking at maxExecutions per perTimeSecs seconds.
func NewLeakyBucket(maxExecutions, perTimeSecs float64, clock Clock, hooks *Hooks, opts ...RateLimitOption) *LeakyBucket {
	cfg := defaultRateLimitConfig()
	for _, o := range opts {
		o(&cfg)
	}

	return &LeakyBucket{
		clock:           clock,
		hooks:           hooks,
		cfg:             cfg,
		maxExecutions:   maxExecutions,
		rate:            maxExecutions / perTimeSecs,
		lastBucketCheck: clock.Now(),
	}
}

// leakLocked drains tokens proportional to elapsed time. Caller must hold
// lb.mu.
func (lb *LeakyBucket) leakLocked(now time.Time) {
	elapsed := now.Sub(lb.lastBucketCheck).Seconds()
	lb.tokens = math.Max(0, lb.tokens-elapsed*lb.rate)
	lb.lastBucketCheck = now
}

func (lb *LeakyBucket) tryAcquireLocked() error {
	lb.leakLocked(lb.clock.Now())

	if lb.tokens+1 <= lb.maxExecutions {
		lb.tokens++
		return nil
	}

	return &FilledBucketError{}
}

// Allow adds one unit to the bucket, or returns an error wrapping
// [ErrRateLimitExceeded] (in reject mode) if the bucket is full.
func (lb *LeakyBucket) Allow(ctx context.Context) error {
	lb.mu.Lock()
	err := lb.tryAcquireLocked()
	lb.mu.Unlock()

	if err == nil {
		return nil
	}

	if !lb.cfg.blocking {
		lb.hooks.emitRateLimited()
		return fmt.Errorf("%w: %s", ErrRateLimitExceeded, err)
	}

	return blockingPoll(ctx, lb.clock, func() error {
		lb.mu.Lock()
		defer lb.mu.Unlock()
		return lb.tryAcquireLocked()
	})
}

// Saturated reports whether the bucket is currently full.
func (lb *LeakyBucket) Saturated() bool {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.leakLocked(lb.clock.Now())
	return math.Ceil(lb.tokens) >= lb.maxExecutions
}
