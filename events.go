package hyx

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Pattern: Observer + capability interfaces — engines publish events to an
// arbitrary set of listeners without knowing which events a given listener
// cares about; listeners implement only the single-method capability
// interfaces for the events they want (see RetryOnRetryListener and
// friends below), queried via type assertion at dispatch time. This is the
// statically-typed equivalent of resolving a listener method by name.

// defaultLogger receives isolated listener panics so they never reach an
// engine's return path. Override with SetLogger, e.g. in test setup to
// capture and assert on isolated failures.
var defaultLogger = log.Logger

// SetLogger replaces the package-level logger used to report listener
// panics isolated by the event fabric. It is not safe to call
// concurrently with in-flight dispatches.
func SetLogger(l zerolog.Logger) {
	defaultLogger = l
}

// ---------------------------------------------------------------------------
// EventTracker
// ---------------------------------------------------------------------------

// EventTracker tracks outstanding fire-and-forget listener dispatch
// goroutines spawned by one or more [Dispatcher] values, so a caller can
// wait for in-flight listener work to settle (or abandon it) during
// shutdown. The zero value is not usable; use [NewEventTracker].
type EventTracker struct {
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewEventTracker creates an EventTracker ready to track dispatch work.
func NewEventTracker() *EventTracker {
	ctx, cancel := context.WithCancel(context.Background())
	return &EventTracker{ctx: ctx, cancel: cancel}
}

// track runs fn in a new goroutine, counted by the tracker's WaitGroup.
// A nil receiver tracks nothing and just runs fn inline in its own
// goroutine, matching the no-tracker-supplied case in [Dispatcher].
func (t *EventTracker) track(fn func(ctx context.Context)) {
	if t == nil {
		go fn(context.Background())
		return
	}
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		fn(t.ctx)
	}()
}

// Await blocks until every tracked dispatch goroutine has returned.
func (t *EventTracker) Await() {
	if t == nil {
		return
	}
	t.wg.Wait()
}

// Cancel signals every tracked dispatch goroutine's context as done and
// waits for them to return. Listener implementations are expected to
// observe ctx.Done() at their own suspension points; listeners that never
// check the context run to completion regardless.
func (t *EventTracker) Cancel() {
	if t == nil {
		return
	}
	t.cancel()
	t.wg.Wait()
}

// ---------------------------------------------------------------------------
// Registry — process-wide listener registration per engine kind
// ---------------------------------------------------------------------------

type registryEntry struct {
	listener  any
	factory   func(component any) any
	isFactory bool
}

// EventRegistry holds listeners (or listener factories) registered once for
// an entire engine kind (e.g. every retry engine in the process),
// independent of any single engine instance. Construct one EventRegistry
// per engine kind with [NewEventRegistry]; it is a separate type from the
// health-reporting [Registry] that [DefaultRegistry] returns, and event
// registries are created explicitly so tests can use fresh ones per case
// (spec's "explicit, injectable singletons rather than hidden global
// state").
type EventRegistry struct {
	mu      sync.Mutex
	entries []registryEntry
}

// NewEventRegistry creates an empty listener registry.
func NewEventRegistry() *EventRegistry {
	return &EventRegistry{}
}

// Register adds a listener instance to the registry.
func (r *EventRegistry) Register(listener any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registryEntry{listener: listener})
}

// RegisterFactory adds a listener factory, resolved lazily on first
// dispatch with the owning engine instance passed as component.
func (r *EventRegistry) RegisterFactory(factory func(component any) any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, registryEntry{factory: factory, isFactory: true})
}

// resolve materializes every listener, invoking factories with component.
func (r *EventRegistry) resolve(component any) []any {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]any, 0, len(r.entries))
	for _, e := range r.entries {
		if e.isFactory {
			out = append(out, e.factory(component))
			continue
		}
		out = append(out, e.listener)
	}

	return out
}

// ---------------------------------------------------------------------------
// Dispatcher — per-engine-instance event publisher
// ---------------------------------------------------------------------------

// Dispatcher owns one engine instance's event publishing. It concatenates
// locally-supplied listeners with a process-wide [EventRegistry]'s contents,
// resolving the effective list exactly once (on first dispatch) and
// caching it for the dispatcher's lifetime — later registrations on the
// registry are not picked up by dispatchers that already resolved.
type Dispatcher struct {
	component any
	local     []any
	registry  *EventRegistry
	tracker   *EventTracker

	once     sync.Once
	resolved []any
}

// NewDispatcher creates a dispatcher for component, combining local
// listeners with registry (either may be nil/empty). tracker may be nil,
// in which case dispatched goroutines are untracked fire-and-forget.
func NewDispatcher(component any, local []any, registry *EventRegistry, tracker *EventTracker) *Dispatcher {
	return &Dispatcher{component: component, local: local, registry: registry, tracker: tracker}
}

func (d *Dispatcher) listeners() []any {
	d.once.Do(func() {
		resolved := make([]any, 0, len(d.local))
		resolved = append(resolved, d.local...)
		if d.registry != nil {
			resolved = append(resolved, d.registry.resolve(d.component)...)
		}
		d.resolved = resolved
	})

	return d.resolved
}

// DispatchEvent fans an event out to every resolved listener implementing
// capability interface C, calling emit(listener) for each on its own
// goroutine. The call returns immediately without waiting for listeners;
// a listener panic is recovered and logged, never reaching the caller.
// A nil Dispatcher is a valid no-op target.
func DispatchEvent[C any](d *Dispatcher, emit func(C)) {
	if d == nil {
		return
	}

	var matched []C
	for _, l := range d.listeners() {
		if c, ok := l.(C); ok {
			matched = append(matched, c)
		}
	}
	if len(matched) == 0 {
		return
	}

	d.tracker.track(func(context.Context) {
		var wg sync.WaitGroup
		wg.Add(len(matched))
		for _, c := range matched {
			go func(c C) {
				defer wg.Done()
				defer recoverListenerPanic()
				emit(c)
			}(c)
		}
		wg.Wait()
	})
}

func recoverListenerPanic() {
	if r := recover(); r != nil {
		defaultLogger.Error().
			Interface("panic", r).
			Msg("hyx: event listener panicked; isolated from engine")
	}
}

// ---------------------------------------------------------------------------
// Per-engine capability interfaces
// ---------------------------------------------------------------------------

// Retry listener events (spec: on_retry, on_attempts_exceeded, on_success).
type (
	// RetryOnRetryListener is notified before each backoff wait.
	RetryOnRetryListener interface {
		OnRetry(engine string, err error, attempt int, backoff time.Duration)
	}
	// RetryOnAttemptsExceededListener is notified when a bounded retry
	// gives up.
	RetryOnAttemptsExceededListener interface {
		OnAttemptsExceeded(engine string)
	}
	// RetryOnSuccessListener is notified when an attempt succeeds.
	RetryOnSuccessListener interface {
		OnRetrySuccess(engine string, attempt int)
	}
)

// Circuit breaker listener events (spec: on_working, on_recovering,
// on_failing, on_success), each carrying the transition's endpoints.
type (
	BreakerOnWorkingListener interface {
		OnWorking(engine string, from, to BreakerState)
	}
	BreakerOnRecoveringListener interface {
		OnRecovering(engine string, from, to BreakerState)
	}
	BreakerOnFailingListener interface {
		OnFailing(engine string, from, to BreakerState)
	}
	BreakerOnSuccessListener interface {
		OnBreakerSuccess(engine string, state BreakerState)
	}
)

// Timeout listener events.
type TimeoutOnTimeoutListener interface {
	OnTimeout(engine string)
}

// Bulkhead listener events.
type BulkheadOnFullListener interface {
	OnBulkheadFull(engine string)
}

// Rate limiter listener events.
type RateLimiterOnRateLimitedListener interface {
	OnRateLimited(engine string)
}

// Fallback listener events.
type FallbackOnFallbackListener interface {
	OnFallback(engine string, resultOrErr any)
}
