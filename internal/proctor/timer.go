package proctor

import (
	"sync"
	"time"
)

// Timer counts down in whole-second ticks from the configured duration.
// Reaching zero fires the expiry callback at most once, even under racing
// tick callbacks. Remaining never goes negative.
type Timer struct {
	mu        sync.Mutex
	remaining int
	fired     bool
	stopped   bool
	stop      chan struct{}
	onExpire  func()
	onTick    func(remaining int)
}

// NewTimer creates a timer holding seconds of remaining time. onTick may be
// nil; onExpire fires exactly once when the countdown hits zero.
func NewTimer(seconds int, onTick func(remaining int), onExpire func()) *Timer {
	if seconds < 0 {
		seconds = 0
	}
	return &Timer{
		remaining: seconds,
		onTick:    onTick,
		onExpire:  onExpire,
	}
}

// Remaining returns the seconds left on the clock.
func (t *Timer) Remaining() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remaining
}

// Tick applies one whole-second decrement. Safe to call after expiry or
// stop; such calls are no-ops.
func (t *Timer) Tick() {
	t.mu.Lock()
	if t.stopped || t.remaining <= 0 {
		t.mu.Unlock()
		return
	}
	t.remaining--
	remaining := t.remaining
	expire := remaining == 0 && !t.fired
	if expire {
		t.fired = true
	}
	onTick := t.onTick
	onExpire := t.onExpire
	t.mu.Unlock()

	// Callbacks run outside the lock; they re-enter the session machine.
	if onTick != nil {
		onTick(remaining)
	}
	if expire && onExpire != nil {
		onExpire()
	}
}

// Start spawns the production tick loop. Tests call Tick directly instead.
func (t *Timer) Start(interval time.Duration) {
	t.mu.Lock()
	if t.stop != nil || t.stopped {
		t.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	t.stop = stop
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				t.Tick()
			}
		}
	}()
}

// Stop cancels the countdown. Idempotent; no tick fires after Stop returns.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}
	t.stopped = true
	if t.stop != nil {
		close(t.stop)
		t.stop = nil
	}
}
