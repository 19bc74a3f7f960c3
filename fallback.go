package hyx

import (
	"context"
	"errors"
)

// Pattern: Fallback — catches a final error and either returns a static value
// or delegates to a fallback function, providing a last line of defence.
// [FallbackPolicy] extends this with a result predicate, so a technically
// successful call can still be substituted (e.g. an empty page treated as a
// miss).

// DoFallback executes fn. On error, returns the fallback value instead.
//
//nolint:ireturn,unparam // generic type parameter T; error is always nil by
// design.
func DoFallback[T any](
	ctx context.Context,
	fn func(context.Context) (T, error),
	fallbackVal T,
	hooks *Hooks,
) (T, error) {
	result, err := fn(ctx)
	if err != nil {
		hooks.emitFallbackUsed(err)
		return fallbackVal, nil
	}

	return result, nil
}

// DoFallbackFunc executes fn. On error, calls fallbackFn with the error and
// returns its result.
//
//nolint:ireturn // generic type parameter T, not an interface
func DoFallbackFunc[T any](
	ctx context.Context,
	fn func(context.Context) (T, error),
	fallbackFn func(error) (T, error),
	hooks *Hooks,
) (T, error) {
	result, err := fn(ctx)
	if err != nil {
		hooks.emitFallbackUsed(err)

		//nolint:wrapcheck // fallback function's error returned as-is
		return fallbackFn(
			err,
		)
	}

	return result, nil
}

// ---------------------------------------------------------------------------
// FallbackPolicy — predicate-driven form
// ---------------------------------------------------------------------------

// FallbackHandler produces a substitute result. err is nil when the handler
// was triggered by a result predicate match rather than an error.
type FallbackHandler[T any] func(result T, err error) (T, error)

// FallbackOption configures the conditions under which a [FallbackPolicy]
// substitutes its handler's result.
type FallbackOption func(*fallbackConfig)

type fallbackConfig struct {
	exceptions []error
	predicate  func(result any, err error) bool
}

// On triggers the fallback whenever fn's error matches one of exceptions,
// tested with [errors.Is]. Can be combined with [If]; either is sufficient
// to trigger.
func On(exceptions ...error) FallbackOption {
	return func(c *fallbackConfig) {
		c.exceptions = append(c.exceptions, exceptions...)
	}
}

// If triggers the fallback whenever predicate returns true. predicate is
// evaluated against fn's result regardless of whether fn returned an error;
// a nil err means fn succeeded but the result itself warrants a fallback.
func If(predicate func(result any, err error) bool) FallbackOption {
	return func(c *fallbackConfig) {
		c.predicate = predicate
	}
}

// FallbackPolicy wraps a call with a handler substituted in either of two
// cases: the call's error matches a registered exception, or a predicate
// matches the call's result (whether it errored or not).
type FallbackPolicy[T any] struct {
	handler    FallbackHandler[T]
	exceptions []error
	predicate  func(result any, err error) bool
	hooks      *Hooks
}

// NewFallbackPolicy builds a FallbackPolicy around handler. At least one of
// [On] or [If] must be supplied; otherwise construction fails, since a
// fallback with no trigger condition can never run.
func NewFallbackPolicy[T any](handler FallbackHandler[T], hooks *Hooks, opts ...FallbackOption) (*FallbackPolicy[T], error) {
	var cfg fallbackConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	if len(cfg.exceptions) == 0 && cfg.predicate == nil {
		return nil, errFallbackNoTrigger
	}

	return &FallbackPolicy[T]{
		handler:    handler,
		exceptions: cfg.exceptions,
		predicate:  cfg.predicate,
		hooks:      hooks,
	}, nil
}

// Do executes fn. The handler replaces fn's outcome when fn's error matches
// a registered exception or the predicate matches fn's result, in either the
// success or the error case.
func (p *FallbackPolicy[T]) Do(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	result, err := fn(ctx)

	if err != nil {
		if p.triggeredBy(result, err) {
			p.hooks.emitFallbackUsed(err)
			//nolint:wrapcheck // handler's error returned as-is
			return p.handler(result, err)
		}

		return result, err
	}

	if p.predicate != nil && p.predicate(result, nil) {
		p.hooks.emitFallbackUsed(nil)
		//nolint:wrapcheck // handler's error returned as-is
		return p.handler(result, nil)
	}

	return result, nil
}

func (p *FallbackPolicy[T]) triggeredBy(result T, err error) bool {
	for _, target := range p.exceptions {
		if errors.Is(err, target) {
			return true
		}
	}

	return p.predicate != nil && p.predicate(result, err)
}

var errFallbackNoTrigger = resilienceError("fallback: either On or If must be specified")
