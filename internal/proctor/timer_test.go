package proctor

import (
	"sync"
	"testing"
)

func TestTimerCountsDownWholeSeconds(t *testing.T) {
	var ticks []int
	timer := NewTimer(3, func(remaining int) { ticks = append(ticks, remaining) }, func() {})

	timer.Tick()
	timer.Tick()

	if got := timer.Remaining(); got != 1 {
		t.Fatalf("expected 1 remaining, got %d", got)
	}
	if len(ticks) != 2 || ticks[0] != 2 || ticks[1] != 1 {
		t.Fatalf("unexpected tick sequence: %v", ticks)
	}
}

func TestTimerExpiryFiresExactlyOnce(t *testing.T) {
	fired := 0
	timer := NewTimer(2, nil, func() { fired++ })

	for i := 0; i < 10; i++ {
		timer.Tick()
	}

	if fired != 1 {
		t.Fatalf("expected exactly one expiry, got %d", fired)
	}
	if got := timer.Remaining(); got != 0 {
		t.Fatalf("remaining must stay at 0, got %d", got)
	}
}

func TestTimerExpiryUnderRacingTicks(t *testing.T) {
	var mu sync.Mutex
	fired := 0
	timer := NewTimer(50, nil, func() {
		mu.Lock()
		fired++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 40; i++ {
				timer.Tick()
			}
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if fired != 1 {
		t.Fatalf("expected exactly one expiry under racing ticks, got %d", fired)
	}
	if timer.Remaining() != 0 {
		t.Fatalf("remaining went negative or non-zero: %d", timer.Remaining())
	}
}

func TestTimerStopPreventsFurtherTicks(t *testing.T) {
	fired := 0
	timer := NewTimer(5, nil, func() { fired++ })

	timer.Tick()
	timer.Stop()
	for i := 0; i < 10; i++ {
		timer.Tick()
	}

	if got := timer.Remaining(); got != 4 {
		t.Fatalf("expected remaining frozen at 4, got %d", got)
	}
	if fired != 0 {
		t.Fatal("expiry fired after stop")
	}
}

func TestTimerZeroDuration(t *testing.T) {
	timer := NewTimer(0, nil, func() { t.Fatal("expiry must not fire without a tick") })
	if timer.Remaining() != 0 {
		t.Fatalf("expected 0 remaining, got %d", timer.Remaining())
	}
	timer.Tick() // no-op at zero
}
