package hyx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

// ---------------------------------------------------------------------------
// DoFallback: Success passes through
// ---------------------------------------------------------------------------

func TestDoFallbackSuccessPassesThrough(t *testing.T) {
	hooks := &Hooks{}

	result, err := DoFallback[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "ok", nil
		},
		"fallback-value",
		hooks,
	)

	if err != nil {
		t.Fatalf("DoFallback() error = %v, want nil", err)
	}
	if result != "ok" {
		t.Fatalf("DoFallback() = %q, want %q", result, "ok")
	}
}

// ---------------------------------------------------------------------------
// DoFallback: Error triggers static fallback
// ---------------------------------------------------------------------------

func TestDoFallbackErrorTriggersStaticFallback(t *testing.T) {
	hooks := &Hooks{}

	result, err := DoFallback[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "", errors.New("boom")
		},
		"safe-default",
		hooks,
	)

	if err != nil {
		t.Fatalf("DoFallback() error = %v, want nil", err)
	}
	if result != "safe-default" {
		t.Fatalf("DoFallback() = %q, want %q", result, "safe-default")
	}
}

// ---------------------------------------------------------------------------
// DoFallbackFunc: Success passes through
// ---------------------------------------------------------------------------

func TestDoFallbackFuncSuccessPassesThrough(t *testing.T) {
	hooks := &Hooks{}

	result, err := DoFallbackFunc[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "ok", nil
		},
		func(_ error) (string, error) {
			return "should-not-reach", nil
		},
		hooks,
	)

	if err != nil {
		t.Fatalf("DoFallbackFunc() error = %v, want nil", err)
	}
	if result != "ok" {
		t.Fatalf("DoFallbackFunc() = %q, want %q", result, "ok")
	}
}

// ---------------------------------------------------------------------------
// DoFallbackFunc: Error triggers function fallback
// ---------------------------------------------------------------------------

func TestDoFallbackFuncErrorTriggersFunctionFallback(t *testing.T) {
	hooks := &Hooks{}

	result, err := DoFallbackFunc[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "", errors.New("boom")
		},
		func(origErr error) (string, error) {
			return "recovered-from-" + origErr.Error(), nil
		},
		hooks,
	)

	if err != nil {
		t.Fatalf("DoFallbackFunc() error = %v, want nil", err)
	}
	if result != "recovered-from-boom" {
		t.Fatalf("DoFallbackFunc() = %q, want %q", result, "recovered-from-boom")
	}
}

// ---------------------------------------------------------------------------
// DoFallbackFunc: Fallback function can itself return error
// ---------------------------------------------------------------------------

func TestDoFallbackFuncFallbackCanReturnError(t *testing.T) {
	hooks := &Hooks{}
	fallbackErr := errors.New("fallback also failed")

	result, err := DoFallbackFunc[int](
		context.Background(),
		func(_ context.Context) (int, error) {
			return 0, errors.New("primary failed")
		},
		func(_ error) (int, error) {
			return -1, fallbackErr
		},
		hooks,
	)

	if !errors.Is(err, fallbackErr) {
		t.Fatalf("DoFallbackFunc() error = %v, want %v", err, fallbackErr)
	}
	if result != -1 {
		t.Fatalf("DoFallbackFunc() = %d, want -1", result)
	}
}

// ---------------------------------------------------------------------------
// OnFallbackUsed hook fires with original error (DoFallback)
// ---------------------------------------------------------------------------

func TestDoFallbackOnFallbackUsedHookFires(t *testing.T) {
	origErr := errors.New("original error")
	var hookErr error
	hooks := &Hooks{
		OnFallbackUsed: func(err error) {
			hookErr = err
		},
	}

	_, _ = DoFallback[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "", origErr
		},
		"default",
		hooks,
	)

	if !errors.Is(hookErr, origErr) {
		t.Fatalf("OnFallbackUsed hook received error = %v, want %v", hookErr, origErr)
	}
}

// ---------------------------------------------------------------------------
// OnFallbackUsed hook fires with original error (DoFallbackFunc)
// ---------------------------------------------------------------------------

func TestDoFallbackFuncOnFallbackUsedHookFires(t *testing.T) {
	origErr := errors.New("original error")
	var hookErr error
	hooks := &Hooks{
		OnFallbackUsed: func(err error) {
			hookErr = err
		},
	}

	_, _ = DoFallbackFunc[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "", origErr
		},
		func(_ error) (string, error) {
			return "recovered", nil
		},
		hooks,
	)

	if !errors.Is(hookErr, origErr) {
		t.Fatalf("OnFallbackUsed hook received error = %v, want %v", hookErr, origErr)
	}
}

// ---------------------------------------------------------------------------
// Hook NOT fired on success (DoFallback)
// ---------------------------------------------------------------------------

func TestDoFallbackHookNotFiredOnSuccess(t *testing.T) {
	hookCalled := false
	hooks := &Hooks{
		OnFallbackUsed: func(_ error) {
			hookCalled = true
		},
	}

	_, err := DoFallback[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "ok", nil
		},
		"default",
		hooks,
	)

	if err != nil {
		t.Fatalf("DoFallback() error = %v, want nil", err)
	}
	if hookCalled {
		t.Fatal("OnFallbackUsed hook should not fire on success")
	}
}

// ---------------------------------------------------------------------------
// Hook NOT fired on success (DoFallbackFunc)
// ---------------------------------------------------------------------------

func TestDoFallbackFuncHookNotFiredOnSuccess(t *testing.T) {
	hookCalled := false
	hooks := &Hooks{
		OnFallbackUsed: func(_ error) {
			hookCalled = true
		},
	}

	_, err := DoFallbackFunc[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "ok", nil
		},
		func(_ error) (string, error) {
			return "nope", nil
		},
		hooks,
	)

	if err != nil {
		t.Fatalf("DoFallbackFunc() error = %v, want nil", err)
	}
	if hookCalled {
		t.Fatal("OnFallbackUsed hook should not fire on success")
	}
}

// ---------------------------------------------------------------------------
// Nil hooks don't panic (DoFallback)
// ---------------------------------------------------------------------------

func TestDoFallbackNilHooksDoNotPanic(t *testing.T) {
	hooks := &Hooks{} // all fields nil

	// Success path with nil hooks.
	_, _ = DoFallback[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "ok", nil
		},
		"default",
		hooks,
	)

	// Error path with nil hooks.
	_, _ = DoFallback[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "", errors.New("fail")
		},
		"default",
		hooks,
	)
	// If we reach here without panicking, the test passes.
}

// ---------------------------------------------------------------------------
// Nil hooks don't panic (DoFallbackFunc)
// ---------------------------------------------------------------------------

func TestDoFallbackFuncNilHooksDoNotPanic(t *testing.T) {
	hooks := &Hooks{} // all fields nil

	// Success path with nil hooks.
	_, _ = DoFallbackFunc[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "ok", nil
		},
		func(_ error) (string, error) {
			return "fallback", nil
		},
		hooks,
	)

	// Error path with nil hooks.
	_, _ = DoFallbackFunc[string](
		context.Background(),
		func(_ context.Context) (string, error) {
			return "", errors.New("fail")
		},
		func(_ error) (string, error) {
			return "fallback", nil
		},
		hooks,
	)
	// If we reach here without panicking, the test passes.
}

// ---------------------------------------------------------------------------
// Benchmark
// ---------------------------------------------------------------------------

func BenchmarkDoFallback(b *testing.B) {
	hooks := &Hooks{}
	ctx := context.Background()

	for b.Loop() {
		_, _ = DoFallback[string](
			ctx,
			func(_ context.Context) (string, error) {
				return "ok", nil
			},
			"default",
			hooks,
		)
	}
}

func BenchmarkDoFallbackFunc(b *testing.B) {
	hooks := &Hooks{}
	ctx := context.Background()

	for b.Loop() {
		_, _ = DoFallbackFunc[string](
			ctx,
			func(_ context.Context) (string, error) {
				return "ok", nil
			},
			func(_ error) (string, error) {
				return "fallback", nil
			},
			hooks,
		)
	}
}

// ---------------------------------------------------------------------------
// FallbackPolicy: construction requires On or If
// ---------------------------------------------------------------------------

func TestNewFallbackPolicyRequiresTrigger(t *testing.T) {
	_, err := NewFallbackPolicy[string](
		func(result string, _ error) (string, error) { return result, nil },
		&Hooks{},
	)
	if !errors.Is(err, errFallbackNoTrigger) {
		t.Fatalf("NewFallbackPolicy() error = %v, want errFallbackNoTrigger", err)
	}
}

func TestNewFallbackPolicyAcceptsOnOnly(t *testing.T) {
	sentinel := errors.New("sentinel")
	fp, err := NewFallbackPolicy[string](
		func(result string, _ error) (string, error) { return result, nil },
		&Hooks{},
		On(sentinel),
	)
	if err != nil {
		t.Fatalf("NewFallbackPolicy() error = %v, want nil", err)
	}
	if fp == nil {
		t.Fatal("NewFallbackPolicy() = nil, want non-nil")
	}
}

func TestNewFallbackPolicyAcceptsIfOnly(t *testing.T) {
	fp, err := NewFallbackPolicy[string](
		func(result string, _ error) (string, error) { return result, nil },
		&Hooks{},
		If(func(_ any, _ error) bool { return false }),
	)
	if err != nil {
		t.Fatalf("NewFallbackPolicy() error = %v, want nil", err)
	}
	if fp == nil {
		t.Fatal("NewFallbackPolicy() = nil, want non-nil")
	}
}

// ---------------------------------------------------------------------------
// FallbackPolicy: On matches a specific exception, ignores others
// ---------------------------------------------------------------------------

func TestFallbackPolicyOnMatchesRegisteredException(t *testing.T) {
	target := errors.New("target")
	other := errors.New("other")

	fp, err := NewFallbackPolicy[string](
		func(_ string, _ error) (string, error) { return "substituted", nil },
		&Hooks{},
		On(target),
	)
	if err != nil {
		t.Fatalf("NewFallbackPolicy() error = %v", err)
	}

	result, err := fp.Do(context.Background(), func(_ context.Context) (string, error) {
		return "", fmt.Errorf("wrapped: %w", target)
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if result != "substituted" {
		t.Fatalf("Do() = %q, want %q", result, "substituted")
	}

	result, err = fp.Do(context.Background(), func(_ context.Context) (string, error) {
		return "untouched", other
	})
	if !errors.Is(err, other) {
		t.Fatalf("Do() error = %v, want %v (unregistered exception passes through)", err, other)
	}
	if result != "untouched" {
		t.Fatalf("Do() = %q, want %q", result, "untouched")
	}
}

// ---------------------------------------------------------------------------
// FallbackPolicy: If matches a successful result
// ---------------------------------------------------------------------------

func TestFallbackPolicyIfMatchesSuccessfulResult(t *testing.T) {
	var hookErr error
	hookFired := false
	hooks := &Hooks{
		OnFallbackUsed: func(err error) {
			hookFired = true
			hookErr = err
		},
	}

	fp, err := NewFallbackPolicy[int](
		func(result int, _ error) (int, error) { return result * 10, nil },
		hooks,
		If(func(result any, err error) bool {
			return err == nil && result.(int) == 0
		}),
	)
	if err != nil {
		t.Fatalf("NewFallbackPolicy() error = %v", err)
	}

	result, err := fp.Do(context.Background(), func(_ context.Context) (int, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if result != 0 {
		t.Fatalf("Do() = %d, want 0 (handler multiplies by 10, but input is already 0)", result)
	}
	if !hookFired {
		t.Fatal("OnFallbackUsed did not fire for a predicate match on success")
	}
	if hookErr != nil {
		t.Fatalf("OnFallbackUsed err = %v, want nil (triggered by predicate, not an error)", hookErr)
	}
}

func TestFallbackPolicyIfLeavesNonMatchingResultUntouched(t *testing.T) {
	fp, err := NewFallbackPolicy[int](
		func(result int, _ error) (int, error) { return -1, nil },
		&Hooks{},
		If(func(result any, err error) bool {
			return err == nil && result.(int) < 0
		}),
	)
	if err != nil {
		t.Fatalf("NewFallbackPolicy() error = %v", err)
	}

	result, err := fp.Do(context.Background(), func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if result != 42 {
		t.Fatalf("Do() = %d, want 42 (predicate did not match, result passes through)", result)
	}
}

// ---------------------------------------------------------------------------
// FallbackPolicy: On and If combined, either is sufficient to trigger
// ---------------------------------------------------------------------------

func TestFallbackPolicyOnAndIfCombined(t *testing.T) {
	target := errors.New("target")

	fp, err := NewFallbackPolicy[string](
		func(_ string, _ error) (string, error) { return "substituted", nil },
		&Hooks{},
		On(target),
		If(func(result any, err error) bool {
			return err == nil && result.(string) == "trigger-me"
		}),
	)
	if err != nil {
		t.Fatalf("NewFallbackPolicy() error = %v", err)
	}

	result, err := fp.Do(context.Background(), func(_ context.Context) (string, error) {
		return "trigger-me", nil
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if result != "substituted" {
		t.Fatalf("Do() = %q, want %q (predicate path)", result, "substituted")
	}

	result, err = fp.Do(context.Background(), func(_ context.Context) (string, error) {
		return "", target
	})
	if err != nil {
		t.Fatalf("Do() error = %v, want nil", err)
	}
	if result != "substituted" {
		t.Fatalf("Do() = %q, want %q (exception path)", result, "substituted")
	}
}
