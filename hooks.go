package hyx

import "time"

// Hooks holds optional callback functions for resilience pattern lifecycle
// events. All fields are nil by default; callers set only the hooks they care
// about. Once constructed, a Hooks value must not be mutated — emit methods
// read the function fields without synchronisation, which is safe as long as
// the struct is read-only after initialisation.
//
// Pattern: Observer — decouples resilience event emission from consumers
// (logging, metrics, alerting) without patterns knowing about observers.
type Hooks struct {
	OnRetry            func(attempt int, err error)
	OnRetrySuccess     func(attempt int)
	OnAttemptsExceeded func()
	OnWorking          func()
	OnFailing          func()
	OnRecovering       func()
	OnRateLimited      func()
	OnBulkheadFull     func()
	OnBulkheadAcquired func()
	OnBulkheadReleased func()
	OnTimeout          func()
	OnStaleServed      func(age time.Duration)
	OnCacheRefreshed   func()
	OnHedgeTriggered   func()
	OnHedgeWon         func()
	OnFallbackUsed     func(err error)
	OnMemoCacheHit     func(key any)
	OnMemoCacheMiss    func(key any)
	OnMemoCacheEvicted func(key any)
}

func (h *Hooks) emitRetry(attempt int, err error) {
	if h != nil && h.OnRetry != nil {
		h.OnRetry(attempt, err)
	}
}

func (h *Hooks) emitSuccess(attempt int) {
	if h != nil && h.OnRetrySuccess != nil {
		h.OnRetrySuccess(attempt)
	}
}

func (h *Hooks) emitAttemptsExceeded() {
	if h != nil && h.OnAttemptsExceeded != nil {
		h.OnAttemptsExceeded()
	}
}

func (h *Hooks) emitWorking() {
	if h != nil && h.OnWorking != nil {
		h.OnWorking()
	}
}

func (h *Hooks) emitFailing() {
	if h != nil && h.OnFailing != nil {
		h.OnFailing()
	}
}

func (h *Hooks) emitRecovering() {
	if h != nil && h.OnRecovering != nil {
		h.OnRecovering()
	}
}

func (h *Hooks) emitRateLimited() {
	if h != nil && h.OnRateLimited != nil {
		h.OnRateLimited()
	}
}

func (h *Hooks) emitBulkheadFull() {
	if h != nil && h.OnBulkheadFull != nil {
		h.OnBulkheadFull()
	}
}

func (h *Hooks) emitBulkheadAcquired() {
	if h != nil && h.OnBulkheadAcquired != nil {
		h.OnBulkheadAcquired()
	}
}

func (h *Hooks) emitBulkheadReleased() {
	if h != nil && h.OnBulkheadReleased != nil {
		h.OnBulkheadReleased()
	}
}

func (h *Hooks) emitTimeout() {
	if h != nil && h.OnTimeout != nil {
		h.OnTimeout()
	}
}

func (h *Hooks) emitStaleServed(age time.Duration) {
	if h != nil && h.OnStaleServed != nil {
		h.OnStaleServed(age)
	}
}

func (h *Hooks) emitCacheRefreshed() {
	if h != nil && h.OnCacheRefreshed != nil {
		h.OnCacheRefreshed()
	}
}

func (h *Hooks) emitHedgeTriggered() {
	if h != nil && h.OnHedgeTriggered != nil {
		h.OnHedgeTriggered()
	}
}

func (h *Hooks) emitHedgeWon() {
	if h != nil && h.OnHedgeWon != nil {
		h.OnHedgeWon()
	}
}

func (h *Hooks) emitFallbackUsed(err error) {
	if h != nil && h.OnFallbackUsed != nil {
		h.OnFallbackUsed(err)
	}
}

func (h *Hooks) emitMemoCacheHit(key any) {
	if h != nil && h.OnMemoCacheHit != nil {
		h.OnMemoCacheHit(key)
	}
}

func (h *Hooks) emitMemoCacheMiss(key any) {
	if h != nil && h.OnMemoCacheMiss != nil {
		h.OnMemoCacheMiss(key)
	}
}

func (h *Hooks) emitMemoCacheEvicted(key any) {
	if h != nil && h.OnMemoCacheEvicted != nil {
		h.OnMemoCacheEvicted(key)
	}
}
