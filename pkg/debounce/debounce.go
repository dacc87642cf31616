package debounce

import (
	"sync"
	"time"
)

// Timer coalesces bursts of Trigger calls into one call of fn after the quiet
// period has elapsed without a new Trigger.
type Timer struct {
	mu      sync.Mutex
	quiet   time.Duration
	fn      func()
	timer   *time.Timer
	pending bool
	gen     uint64
}

func New(quiet time.Duration, fn func()) *Timer {
	return &Timer{quiet: quiet, fn: fn}
}

// Trigger (re)starts the quiet period.
func (t *Timer) Trigger() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.pending = true
	t.timer = time.AfterFunc(t.quiet, func() { t.fire(gen) })
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if !t.pending || gen != t.gen {
		t.mu.Unlock()
		return
	}
	t.pending = false
	t.timer = nil
	t.mu.Unlock()

	t.fn()
}

// Flush runs fn now if a call is pending and reports whether it did.
func (t *Timer) Flush() bool {
	t.mu.Lock()
	if !t.pending {
		t.mu.Unlock()
		return false
	}
	t.cancelLocked()
	t.mu.Unlock()

	t.fn()
	return true
}

// Stop drops a pending call.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelLocked()
}

// Pending reports whether a call is scheduled.
func (t *Timer) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending
}

func (t *Timer) cancelLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = false
	t.gen++
}
