package runtime

import (
	"sync"
	"sync/atomic"
)

// CancelToken is the cooperative cancellation signal polled by compiled
// code at safe points: loop back-edges and call sites. Tripping never
// interrupts in-flight native code; execution unwinds at the next poll.
//
// Mask suppresses cancellation inside critical sections. Fuel, when set,
// bounds the number of polls before the token trips itself; negative fuel
// means unlimited.
type CancelToken struct {
	tripped atomic.Bool
	mask    atomic.Int32
	fuel    atomic.Int64

	mu   sync.Mutex
	done chan struct{}
}

// NewCancelToken returns an untripped token with unlimited fuel.
func NewCancelToken() *CancelToken {
	t := &CancelToken{done: make(chan struct{})}
	t.fuel.Store(-1)
	return t
}

// Cancel trips the token. Safe to call from any goroutine, repeatedly.
func (t *CancelToken) Cancel() {
	if t.tripped.CompareAndSwap(false, true) {
		t.mu.Lock()
		close(t.done)
		t.mu.Unlock()
	}
}

// Done returns a channel closed when the token trips, for blocking
// operations to select on.
func (t *CancelToken) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// SetFuel bounds the number of remaining polls. The token trips itself
// when the budget is exhausted.
func (t *CancelToken) SetFuel(n int64) {
	t.fuel.Store(n)
}

// Mask enters an uncancelable section; Unmask leaves it. Sections nest.
func (t *CancelToken) Mask()   { t.mask.Add(1) }
func (t *CancelToken) Unmask() { t.mask.Add(-1) }

// Masked reports whether cancellation is currently suppressed.
func (t *CancelToken) Masked() bool { return t.mask.Load() > 0 }

// Poll is the safe-point check. It burns one unit of fuel and returns
// ErrCancelled once the token has tripped, unless masked.
func (t *CancelToken) Poll() error {
	if t.fuel.Load() >= 0 && t.fuel.Add(-1) < 0 {
		t.Cancel()
	}
	if t.tripped.Load() && t.mask.Load() == 0 {
		return ErrCancelled
	}
	return nil
}

// Tripped reports whether the token has been cancelled.
func (t *CancelToken) Tripped() bool { return t.tripped.Load() }

// Reset rearms a tripped token so the runtime can serve a subsequent
// unrelated call. Fuel returns to unlimited.
func (t *CancelToken) Reset() {
	t.mu.Lock()
	if t.tripped.Load() {
		t.done = make(chan struct{})
	}
	t.mu.Unlock()
	t.tripped.Store(false)
	t.fuel.Store(-1)
	t.mask.Store(0)
}
