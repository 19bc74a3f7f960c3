package hyx

import (
	"context"
	"sync/atomic"
	"time"
)

// Pattern: Timeout — wraps a call with a context deadline, returning
// ErrMaxDurationExceeded if the operation does not complete in time.
// Distinguishes between timeout-caused cancellation and parent context
// cancellation.

// DoTimeout executes fn with a timeout. If fn does not complete within d,
// the context is cancelled and ErrMaxDurationExceeded is returned.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoTimeout[T any](
	ctx context.Context,
	timeout time.Duration,
	fn func(context.Context) (T, error),
	hooks *Hooks,
) (T, error) {
	var zero T

	// If the parent context is already done, return its error immediately.
	if ctx.Err() != nil {
		return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
	}

	// Create derived context with timeout.
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Run fn in a goroutine and collect result via channel.
	type result struct {
		val T
		err error
	}

	ch := make(chan result, 1)

	go func() {
		v, err := fn(timeoutCtx)
		ch <- result{val: v, err: err}
	}()

	// Wait for fn to complete or context to expire.
	select {
	case r := <-ch:
		return r.val, r.err
	case <-timeoutCtx.Done():
		// Distinguish between timeout and parent cancellation.
		// If the parent context is done, the parent was cancelled externally.
		if ctx.Err() != nil {
			return zero, ctx.Err() //nolint:wrapcheck // preserving context error identity
		}
		// Otherwise, the derived context's deadline was exceeded.
		hooks.emitTimeout()

		return zero, ErrMaxDurationExceeded
	}
}

// ---------------------------------------------------------------------------
// TimeoutGuard — scoped-guard form
// ---------------------------------------------------------------------------

// TimeoutGuard is the enter/exit form of the timeout pattern: Start arms a
// deadline and returns a context that is cancelled once it elapses; Stop
// reports whether the guarded region finished before that happened.
//
// A TimeoutGuard is single-use: a fresh value is required per guarded
// scope. Calling Start twice on the same guard returns an error rather
// than silently resetting the deadline.
type TimeoutGuard struct {
	timeout time.Duration
	hooks   *Hooks

	started  atomic.Bool
	guardCtx context.Context
	cancel   context.CancelFunc
}

// NewTimeoutGuard creates a guard that cancels its scope after timeout.
func NewTimeoutGuard(timeout time.Duration, hooks *Hooks) *TimeoutGuard {
	return &TimeoutGuard{timeout: timeout, hooks: hooks}
}

// Start arms the guard and returns a derived context that is cancelled
// either by the parent ctx or once timeout elapses, whichever comes
// first. Returns an error if the guard was already started.
func (g *TimeoutGuard) Start(ctx context.Context) (context.Context, error) {
	if !g.started.CompareAndSwap(false, true) {
		return nil, errGuardAlreadyStarted
	}

	guardCtx, cancel := context.WithTimeout(ctx, g.timeout)
	g.guardCtx = guardCtx
	g.cancel = cancel

	return guardCtx, nil
}

// Stop ends the guarded scope. err is the error the guarded operation
// returned, if any. If the guard's deadline elapsed before Stop was
// called, Stop returns [ErrMaxDurationExceeded] (dispatching the timeout
// hook) regardless of err; otherwise it returns err unchanged.
//
// guardCtx.Err() is read after cancel, not an async flag set by a
// watcher goroutine: a context's Err() is fixed the first time it
// becomes Done (deadline exceeded takes precedence over a later Stop
// calling cancel), so this is race-free without needing to synchronize
// with anything else.
func (g *TimeoutGuard) Stop(err error) error {
	if g.cancel != nil {
		g.cancel()
	}

	if g.guardCtx != nil && g.guardCtx.Err() == context.DeadlineExceeded {
		g.hooks.emitTimeout()
		return ErrMaxDurationExceeded
	}

	return err
}

var errGuardAlreadyStarted = resilienceError("timeout guard already started")
