package hyx

import (
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// BreakerState
// ---------------------------------------------------------------------------

// BreakerState identifies one of the three circuit breaker states.
// Grounded on original_source/hyx/circuitbreaker/states.py's
// WorkingState/FailingState/RecoveringState, rather than the more common
// closed/open/half-open vocabulary.
type BreakerState string

const (
	// Working is the default state: calls are allowed and consecutive
	// failures are tracked.
	Working BreakerState = "working"
	// Failing rejects calls with ErrBreakerFailing until the recovery
	// window elapses.
	Failing BreakerState = "failing"
	// Recovering allows calls as a probe; a configured number of
	// consecutive successes returns the breaker to Working, and any
	// failure sends it back to Failing.
	Recovering BreakerState = "recovering"
)

func (s BreakerState) String() string { return string(s) }

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

type circuitBreakerConfig struct {
	failureThreshold  int
	recoveryTimeout   time.Duration
	recoveryThreshold int
	failingExceptions func(error) bool
}

// CircuitBreakerOption configures a circuit breaker.
type CircuitBreakerOption func(*circuitBreakerConfig)

func defaultCircuitBreakerConfig() circuitBreakerConfig {
	return circuitBreakerConfig{
		failureThreshold:  5,
		recoveryTimeout:   30 * time.Second,
		recoveryThreshold: 1,
		failingExceptions: IsTransient,
	}
}

// FailureThreshold sets the number of consecutive failures in Working
// before the breaker trips to Failing.
func FailureThreshold(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.failureThreshold = n
	}
}

// RecoveryTimeout sets how long the breaker stays in Failing before
// allowing a Recovering probe.
func RecoveryTimeout(d time.Duration) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.recoveryTimeout = d
	}
}

// RecoveryThreshold sets the number of consecutive successes in
// Recovering needed to return to Working.
func RecoveryThreshold(n int) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.recoveryThreshold = n
	}
}

// HalfOpenMaxAttempts is a deprecated alias for [RecoveryThreshold], kept
// for call sites written against the breaker's earlier closed/open/
// half-open vocabulary.
func HalfOpenMaxAttempts(n int) CircuitBreakerOption {
	return RecoveryThreshold(n)
}

// FailingExceptions sets the predicate deciding which errors advance the
// breaker's failure count. Errors not matched by it are treated as
// successes by the scoped-guard and wrapper forms; defaults to
// [IsTransient].
func FailingExceptions(fn func(error) bool) CircuitBreakerOption {
	return func(cfg *circuitBreakerConfig) {
		cfg.failingExceptions = fn
	}
}

// ---------------------------------------------------------------------------
// CircuitBreaker
// ---------------------------------------------------------------------------

// CircuitBreaker tracks the health of a dependency and fails fast when
// it's down.
//
// Pattern: Circuit Breaker — fast-fails calls to an unhealthy downstream;
// auto-recovers via a Recovering probe after a timeout. Mutex-guarded:
// the transition table couples multiple fields (consecutive count, since/
// until) that must change together, which independent atomics can't
// express.
type CircuitBreaker struct {
	clock      Clock
	hooks      *Hooks
	dispatcher *Dispatcher
	engineName string
	cfg        circuitBreakerConfig

	mu                   sync.Mutex
	state                BreakerState
	consecutiveFailures  int
	consecutiveSuccesses int
	since                time.Time
	until                time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given options.
func NewCircuitBreaker(clock Clock, hooks *Hooks, opts ...CircuitBreakerOption) *CircuitBreaker {
	cfg := defaultCircuitBreakerConfig()
	for _, o := range opts {
		o(&cfg)
	}

	return &CircuitBreaker{
		clock:      clock,
		hooks:      hooks,
		engineName: "circuit_breaker",
		cfg:        cfg,
		state:      Working,
	}
}

// WithDispatcher attaches an event dispatcher and engine name, used for
// dispatching breaker transitions through the events fabric.
func (cb *CircuitBreaker) WithDispatcher(d *Dispatcher, engineName string) *CircuitBreaker {
	cb.dispatcher = d
	if engineName != "" {
		cb.engineName = engineName
	}
	return cb
}

// Allow checks if a call should be allowed. Returns nil in Working and
// Recovering. Returns [ErrBreakerFailing] in Failing before the recovery
// window elapses; past the window it transitions to Recovering and
// allows the call as a probe.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state != Failing {
		return nil
	}

	if cb.clock.Since(cb.since) < cb.cfg.recoveryTimeout {
		return ErrBreakerFailing
	}

	cb.transitionLocked(Recovering)
	cb.consecutiveSuccesses = 0

	return nil
}

// RecordSuccess records a successful call.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	state := cb.state

	switch state {
	case Working:
		cb.consecutiveFailures = 0

	case Recovering:
		cb.consecutiveSuccesses++
		if cb.consecutiveSuccesses >= cb.cfg.recoveryThreshold {
			cb.transitionLocked(Working)
			cb.consecutiveFailures = 0
		}

	case Failing:
		// no-op — Failing only exits via Allow's timed probe.
	}
	cb.mu.Unlock()

	cb.dispatchSuccess(state)
}

// RecordFailure records a failed call.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	state := cb.state

	switch state {
	case Working:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.cfg.failureThreshold {
			cb.tripLocked()
		}

	case Recovering:
		cb.tripLocked()

	case Failing:
		// no-op — already failing.
	}
	cb.mu.Unlock()
}

// tripLocked transitions to Failing and arms the recovery window. Caller
// must hold cb.mu.
func (cb *CircuitBreaker) tripLocked() {
	cb.since = cb.clock.Now()
	cb.until = cb.since.Add(cb.cfg.recoveryTimeout)
	cb.transitionLocked(Failing)
}

// transitionLocked updates state and fires hooks/events for the
// transition. Caller must hold cb.mu.
func (cb *CircuitBreaker) transitionLocked(to BreakerState) {
	from := cb.state
	cb.state = to
	if from == to {
		return
	}

	switch to {
	case Working:
		cb.hooks.emitWorking()
	case Failing:
		cb.hooks.emitFailing()
	case Recovering:
		cb.hooks.emitRecovering()
	}

	switch to {
	case Working:
		DispatchEvent[BreakerOnWorkingListener](cb.dispatcher, func(l BreakerOnWorkingListener) {
			l.OnWorking(cb.engineName, from, to)
		})
	case Failing:
		DispatchEvent[BreakerOnFailingListener](cb.dispatcher, func(l BreakerOnFailingListener) {
			l.OnFailing(cb.engineName, from, to)
		})
	case Recovering:
		DispatchEvent[BreakerOnRecoveringListener](cb.dispatcher, func(l BreakerOnRecoveringListener) {
			l.OnRecovering(cb.engineName, from, to)
		})
	}
}

func (cb *CircuitBreaker) dispatchSuccess(state BreakerState) {
	DispatchEvent[BreakerOnSuccessListener](cb.dispatcher, func(l BreakerOnSuccessListener) {
		l.OnBreakerSuccess(cb.engineName, state)
	})
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// ---------------------------------------------------------------------------
// Scoped guard and wrapper forms
// ---------------------------------------------------------------------------

// Acquire checks [CircuitBreaker.Allow] and returns its error unchanged;
// paired with Release for the enter/exit form.
func (cb *CircuitBreaker) Acquire() error {
	return cb.Allow()
}

// Release records the outcome of a guarded call. err is matched against
// the breaker's FailingExceptions predicate; a non-matching error (or
// nil) is treated as success, matching spec's "the breaker ignores
// unrelated errors".
func (cb *CircuitBreaker) Release(err error) {
	if err == nil || !cb.cfg.failingExceptions(err) {
		cb.RecordSuccess()
		return
	}
	cb.RecordFailure()
}

// DoCircuitBreaker executes fn under the circuit breaker: rejects
// immediately if the breaker disallows the call, otherwise runs fn and
// records the outcome via Release.
func DoCircuitBreaker[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var zero T
	if err := cb.Acquire(); err != nil {
		return zero, err
	}

	result, err := fn()
	cb.Release(err)

	return result, err
}
