package hyx

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Bulkhead limits concurrent access to a resource using two-semaphore
// admission: a capacity semaphore gates the total number of in-flight-plus-
// queued callers (failing fast once exhausted), and a concurrency
// semaphore gates how many of those may actually be executing at once
// (queueing, cancellable, once admitted by capacity).
//
// Pattern: Bulkhead — partitions load so one overloaded dependency can't
// starve the rest of the system. Grounded on spec.md §4.5's two-semaphore
// admission, replacing the teacher's single counting semaphore (which had
// no queueing tier between "running" and "rejected"). Uses
// [golang.org/x/sync/semaphore.Weighted], the corpus's `x/sync` idiom for
// weighted admission control.
type Bulkhead struct {
	capacity    *semaphore.Weighted
	concurrency *semaphore.Weighted
	hooks       *Hooks
}

// NewBulkhead creates a bulkhead allowing up to maxConcurrency callers to
// run at once and up to maxCapacity callers admitted in total (running
// plus queued). Panics if maxConcurrency < 1 or maxCapacity < maxConcurrency,
// matching spec.md §4.5/§6's construction-time ValueError.
func NewBulkhead(maxCapacity, maxConcurrency int, hooks *Hooks) *Bulkhead {
	if maxConcurrency < 1 {
		panic(fmt.Sprintf("hyx: bulkhead max_concurrency must be >= 1, got %d", maxConcurrency))
	}
	if maxCapacity < maxConcurrency {
		panic(fmt.Sprintf("hyx: bulkhead max_capacity (%d) must be >= max_concurrency (%d)", maxCapacity, maxConcurrency))
	}

	return &Bulkhead{
		capacity:    semaphore.NewWeighted(int64(maxCapacity)),
		concurrency: semaphore.NewWeighted(int64(maxConcurrency)),
		hooks:       hooks,
	}
}

// Acquire admits a caller. It fails immediately with [ErrBulkheadFull] if
// the capacity semaphore is exhausted; otherwise it queues (blocking,
// cancellable via ctx) on the concurrency semaphore.
func (b *Bulkhead) Acquire(ctx context.Context) error {
	if !b.capacity.TryAcquire(1) {
		b.hooks.emitBulkheadFull()
		return ErrBulkheadFull
	}

	if err := b.concurrency.Acquire(ctx, 1); err != nil {
		// Cancelled while queued: give back the capacity slot we never used.
		b.capacity.Release(1)
		return err
	}

	b.hooks.emitBulkheadAcquired()
	return nil
}

// Release releases a slot previously granted by Acquire: concurrency
// first, then capacity, per spec.md §4.5.
func (b *Bulkhead) Release() {
	b.concurrency.Release(1)
	b.capacity.Release(1)
	b.hooks.emitBulkheadReleased()
}

// Full reports whether the bulkhead's total capacity is currently
// exhausted (no more callers, running or queued, can be admitted).
func (b *Bulkhead) Full() bool {
	if b.capacity.TryAcquire(1) {
		b.capacity.Release(1)
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Wrapper form
// ---------------------------------------------------------------------------

// DoBulkhead executes fn under the bulkhead: fails fast with
// [ErrBulkheadFull] if at capacity, otherwise waits for a concurrency slot
// (cancellable via ctx) and runs fn.
func DoBulkhead[T any](ctx context.Context, bh *Bulkhead, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := bh.Acquire(ctx); err != nil {
		return zero, err
	}
	defer bh.Release()

	return fn(ctx)
}
