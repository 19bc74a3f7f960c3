package hyx

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// ---------------------------------------------------------------------------
// stubClock — controllable clock for deterministic circuit breaker tests
// ---------------------------------------------------------------------------

type stubClock struct {
	now     time.Time
	elapsed time.Duration // returned by Since, regardless of argument
}

func (c *stubClock) Now() time.Time                { return c.now }
func (c *stubClock) Since(time.Time) time.Duration { return c.elapsed }
func (c *stubClock) NewTimer(d time.Duration) Timer {
	return &fakeTimer{}
}

// setElapsed sets the exact elapsed duration returned by Since.
func (c *stubClock) setElapsed(d time.Duration) {
	c.elapsed = d
}

// ---------------------------------------------------------------------------
// Default config values
// ---------------------------------------------------------------------------

func TestCircuitBreakerDefaultConfig(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{})

	// Default threshold is 5 — four failures should keep it Working.
	for range 4 {
		cb.RecordFailure()
	}
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after 4 failures = %v, want nil (threshold is 5)", err)
	}

	// The 5th failure should trip it to Failing.
	cb.RecordFailure()
	if err := cb.Allow(); err != ErrBreakerFailing {
		t.Fatalf("Allow() after 5 failures = %v, want ErrBreakerFailing", err)
	}
}

// ---------------------------------------------------------------------------
// Custom config values
// ---------------------------------------------------------------------------

func TestCircuitBreakerCustomConfig(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{},
		FailureThreshold(2),
		RecoveryTimeout(10*time.Second),
		RecoveryThreshold(3),
	)

	// Two failures trip the breaker (custom threshold = 2).
	cb.RecordFailure()
	cb.RecordFailure()
	if err := cb.Allow(); err != ErrBreakerFailing {
		t.Fatalf("Allow() after 2 failures = %v, want ErrBreakerFailing", err)
	}

	// Advance past custom recovery timeout (10s).
	clk.setElapsed(11 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after recovery timeout = %v, want nil (Recovering)", err)
	}
	if got := cb.State(); got != Recovering {
		t.Fatalf("State() = %q, want %q", got, Recovering)
	}

	// Recovering: need 3 successes to return to Working (custom recoveryThreshold = 3).
	cb.RecordSuccess()
	if got := cb.State(); got != Recovering {
		t.Fatalf("State() after 1 success in Recovering = %q, want %q", got, Recovering)
	}
	cb.RecordSuccess()
	if got := cb.State(); got != Recovering {
		t.Fatalf("State() after 2 successes in Recovering = %q, want %q", got, Recovering)
	}
	cb.RecordSuccess()
	if got := cb.State(); got != Working {
		t.Fatalf("State() after 3 successes in Recovering = %q, want %q", got, Working)
	}
}

// ---------------------------------------------------------------------------
// Working state: allows calls
// ---------------------------------------------------------------------------

func TestWorkingStateAllowsCalls(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{})

	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() on fresh breaker = %v, want nil", err)
	}
	if got := cb.State(); got != Working {
		t.Fatalf("State() = %q, want %q", got, Working)
	}
}

// ---------------------------------------------------------------------------
// Working state: counts failures and trips at threshold
// ---------------------------------------------------------------------------

func TestWorkingStateTripsAtThreshold(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(3))

	cb.RecordFailure()
	cb.RecordFailure()

	// Still Working after 2 failures (threshold is 3).
	if got := cb.State(); got != Working {
		t.Fatalf("State() after 2 failures = %q, want %q", got, Working)
	}

	cb.RecordFailure()

	// Now Failing.
	if got := cb.State(); got != Failing {
		t.Fatalf("State() after 3 failures = %q, want %q", got, Failing)
	}
}

// ---------------------------------------------------------------------------
// Failing state: rejects with ErrBreakerFailing
// ---------------------------------------------------------------------------

func TestFailingStateRejectsWithErrBreakerFailing(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(1))

	cb.RecordFailure()

	err := cb.Allow()
	if err != ErrBreakerFailing {
		t.Fatalf("Allow() in Failing state = %v, want ErrBreakerFailing", err)
	}
}

// ---------------------------------------------------------------------------
// Failing to Recovering: after recovery timeout
// ---------------------------------------------------------------------------

func TestFailingToRecoveringAfterRecoveryTimeout(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{},
		FailureThreshold(1),
		RecoveryTimeout(5*time.Second),
	)

	cb.RecordFailure()

	// Still within recovery timeout.
	clk.setElapsed(4 * time.Second)
	if err := cb.Allow(); err != ErrBreakerFailing {
		t.Fatalf("Allow() before recovery timeout = %v, want ErrBreakerFailing", err)
	}

	// Past recovery timeout.
	clk.setElapsed(6 * time.Second)
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() after recovery timeout = %v, want nil", err)
	}
	if got := cb.State(); got != Recovering {
		t.Fatalf("State() = %q, want %q", got, Recovering)
	}
}

// ---------------------------------------------------------------------------
// Recovering success: returns to Working
// ---------------------------------------------------------------------------

func TestRecoveringSuccessReturnsToWorking(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{},
		FailureThreshold(1),
		RecoveryTimeout(1*time.Second),
		RecoveryThreshold(1),
	)

	cb.RecordFailure()
	clk.setElapsed(2 * time.Second)

	// Transition to Recovering.
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}

	cb.RecordSuccess()

	if got := cb.State(); got != Working {
		t.Fatalf("State() after success in Recovering = %q, want %q", got, Working)
	}
}

// ---------------------------------------------------------------------------
// Recovering failure: trips back to Failing
// ---------------------------------------------------------------------------

func TestRecoveringFailureTripsBackToFailing(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{},
		FailureThreshold(1),
		RecoveryTimeout(1*time.Second),
	)

	cb.RecordFailure()
	clk.setElapsed(2 * time.Second)

	// Transition to Recovering.
	if err := cb.Allow(); err != nil {
		t.Fatalf("Allow() = %v, want nil", err)
	}

	cb.RecordFailure()

	if got := cb.State(); got != Failing {
		t.Fatalf("State() after failure in Recovering = %q, want %q", got, Failing)
	}
}

// ---------------------------------------------------------------------------
// Success in Working state resets failure count
// ---------------------------------------------------------------------------

func TestSuccessInWorkingStateResetsFailureCount(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(3))

	cb.RecordFailure()
	cb.RecordFailure()
	// 2 failures. A success should reset the count.
	cb.RecordSuccess()

	// Now record 2 more failures — should NOT trip (count was reset).
	cb.RecordFailure()
	cb.RecordFailure()
	if got := cb.State(); got != Working {
		t.Fatalf("State() = %q, want %q after reset and 2 failures", got, Working)
	}

	// The 3rd failure after reset should trip.
	cb.RecordFailure()
	if got := cb.State(); got != Failing {
		t.Fatalf("State() = %q, want %q", got, Failing)
	}
}

// ---------------------------------------------------------------------------
// State() returns the expected BreakerState values
// ---------------------------------------------------------------------------

func TestStateReturnsExpectedValues(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{},
		FailureThreshold(1),
		RecoveryTimeout(1*time.Second),
	)

	if got := cb.State(); got != Working {
		t.Fatalf("State() = %q, want %q", got, Working)
	}

	cb.RecordFailure()
	if got := cb.State(); got != Failing {
		t.Fatalf("State() = %q, want %q", got, Failing)
	}

	clk.setElapsed(2 * time.Second)
	cb.Allow() // triggers Recovering
	if got := cb.State(); got != Recovering {
		t.Fatalf("State() = %q, want %q", got, Recovering)
	}
}

// ---------------------------------------------------------------------------
// Hook emissions
// ---------------------------------------------------------------------------

func TestCircuitBreakerHookEmissions(t *testing.T) {
	clk := &stubClock{now: time.Now()}

	var failingCount, workingCount, recoveringCount atomic.Int64
	hooks := &Hooks{
		OnFailing:    func() { failingCount.Add(1) },
		OnWorking:    func() { workingCount.Add(1) },
		OnRecovering: func() { recoveringCount.Add(1) },
	}

	cb := NewCircuitBreaker(clk, hooks,
		FailureThreshold(1),
		RecoveryTimeout(1*time.Second),
		RecoveryThreshold(1),
	)

	// Trip to Failing.
	cb.RecordFailure()
	if got := failingCount.Load(); got != 1 {
		t.Fatalf("OnFailing called %d times, want 1", got)
	}

	// Trigger Recovering.
	clk.setElapsed(2 * time.Second)
	cb.Allow()
	if got := recoveringCount.Load(); got != 1 {
		t.Fatalf("OnRecovering called %d times, want 1", got)
	}

	// Trigger Working.
	cb.RecordSuccess()
	if got := workingCount.Load(); got != 1 {
		t.Fatalf("OnWorking called %d times, want 1", got)
	}
}

func TestCircuitBreakerHookOnReopenFromRecovering(t *testing.T) {
	clk := &stubClock{now: time.Now()}

	var failingCount atomic.Int64
	hooks := &Hooks{
		OnFailing: func() { failingCount.Add(1) },
	}

	cb := NewCircuitBreaker(clk, hooks,
		FailureThreshold(1),
		RecoveryTimeout(1*time.Second),
	)

	// Trip to Failing.
	cb.RecordFailure()
	if got := failingCount.Load(); got != 1 {
		t.Fatalf("OnFailing called %d times, want 1", got)
	}

	// Recovering.
	clk.setElapsed(2 * time.Second)
	cb.Allow()

	// Failure in Recovering should trip back to Failing and fire the hook again.
	cb.RecordFailure()
	if got := failingCount.Load(); got != 2 {
		t.Fatalf("OnFailing called %d times, want 2 (re-tripped from Recovering)", got)
	}
}

// ---------------------------------------------------------------------------
// Release: FailingExceptions predicate gates success/failure recording
// ---------------------------------------------------------------------------

var errBreakerTest = errors.New("breaker test failure")

func TestReleaseIgnoresNonMatchingErrors(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{},
		FailureThreshold(1),
		FailingExceptions(IsTransient),
	)

	// A permanent error should NOT count as a breaker failure.
	cb.Release(Permanent(errBreakerTest))
	if got := cb.State(); got != Working {
		t.Fatalf("State() after releasing a permanent error = %q, want %q", got, Working)
	}

	// A transient error does count.
	cb.Release(Transient(errBreakerTest))
	if got := cb.State(); got != Failing {
		t.Fatalf("State() after releasing a transient error = %q, want %q", got, Failing)
	}
}

// ---------------------------------------------------------------------------
// DoCircuitBreaker wrapper form
// ---------------------------------------------------------------------------

func TestDoCircuitBreakerRejectsWhenFailing(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(1))
	cb.RecordFailure()

	calls := 0
	_, err := DoCircuitBreaker(cb, func() (string, error) {
		calls++
		return "unreached", nil
	})

	if err != ErrBreakerFailing {
		t.Fatalf("DoCircuitBreaker() error = %v, want ErrBreakerFailing", err)
	}
	if calls != 0 {
		t.Fatalf("fn called %d times, want 0", calls)
	}
}

func TestDoCircuitBreakerRunsAndRecordsOutcome(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{}, FailureThreshold(1))

	result, err := DoCircuitBreaker(cb, func() (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("DoCircuitBreaker() error = %v, want nil", err)
	}
	if result != "ok" {
		t.Fatalf("DoCircuitBreaker() = %q, want %q", result, "ok")
	}
	if got := cb.State(); got != Working {
		t.Fatalf("State() = %q, want %q", got, Working)
	}
}

// ---------------------------------------------------------------------------
// Concurrent access: 100 goroutines doing Allow/RecordSuccess/RecordFailure
// ---------------------------------------------------------------------------

func TestCircuitBreakerConcurrentAccess(t *testing.T) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{},
		FailureThreshold(10),
		RecoveryTimeout(1*time.Second),
	)

	const goroutines = 100
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			_ = cb.Allow()
			cb.RecordSuccess()
			cb.RecordFailure()
			_ = cb.State()
		}()
	}

	wg.Wait()

	// Just verify it didn't panic or race — the race detector will catch issues.
	state := cb.State()
	if state != Working && state != Failing && state != Recovering {
		t.Fatalf("State() = %q, want one of Working/Failing/Recovering", state)
	}
}

// ---------------------------------------------------------------------------
// Benchmarks
// ---------------------------------------------------------------------------

func BenchmarkCircuitBreakerAllow(b *testing.B) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{})

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = cb.Allow()
		}
	})
}

func BenchmarkCircuitBreakerRecordSuccess(b *testing.B) {
	clk := &stubClock{now: time.Now()}
	cb := NewCircuitBreaker(clk, &Hooks{})

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			cb.RecordSuccess()
		}
	})
}
