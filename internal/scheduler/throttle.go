package scheduler

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Throttle coalesces calls so that fn starts at most once per wait interval
type Throttle[T any] struct {
	mu      sync.Mutex
	clock   Clock
	wait    time.Duration
	limiter *rate.Limiter
	fn      func(T)

	pending    T
	hasPending bool
	timer      Timer
	stopped    bool
}

// NewThrottle creates a leading-edge throttle around fn. A non-positive wait
// disables throttling.
func NewThrottle[T any](clock Clock, wait time.Duration, fn func(T)) *Throttle[T] {
	if clock == nil {
		clock = Real()
	}
	t := &Throttle[T]{
		clock: clock,
		wait:  wait,
		fn:    fn,
	}
	if wait > 0 {
		t.limiter = rate.NewLimiter(rate.Every(wait), 1)
	}
	return t
}

// Call schedules fn(v). It runs fn synchronously when the window is open,
// otherwise v replaces any pending value and runs when the window opens.
func (t *Throttle[T]) Call(v T) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	if t.limiter == nil {
		t.mu.Unlock()
		t.fn(v)
		return
	}

	if t.timer != nil {
		t.pending = v
		t.hasPending = true
		t.mu.Unlock()
		return
	}

	now := t.clock.Now()
	// The reservation is kept even when delayed: it is the token the
	// trailing execution will spend.
	delay := t.limiter.ReserveN(now, 1).DelayFrom(now)
	if delay <= 0 {
		t.mu.Unlock()
		t.fn(v)
		return
	}

	t.pending = v
	t.hasPending = true
	t.timer = t.clock.AfterFunc(delay, t.flush)
	t.mu.Unlock()
}

func (t *Throttle[T]) flush() {
	t.mu.Lock()
	if t.stopped || !t.hasPending {
		t.timer = nil
		t.mu.Unlock()
		return
	}
	v := t.pending
	var zero T
	t.pending = zero
	t.hasPending = false
	t.timer = nil
	t.mu.Unlock()

	t.fn(v)
}

// Pending reports whether a coalesced call is waiting for the window to open
func (t *Throttle[T]) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasPending
}

// Stop drops any pending call and makes later calls no-ops
func (t *Throttle[T]) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopped = true
	t.hasPending = false
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
