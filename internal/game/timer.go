package game

import (
	"sync"
	"time"
)

// Scheduler arms one-shot deadline callbacks. The wall-clock implementation
// backs production; tests substitute a manual one to fire deadlines
// deterministically.
type Scheduler interface {
	Schedule(d time.Duration, fn func()) *DeadlineTimer
}

// DeadlineTimer is the cancellable handle a room keeps for its pending
// question deadline. Cancel and expiry race safely: whichever wins, the
// callback runs at most once.
type DeadlineTimer struct {
	mu       sync.Mutex
	stop     func() bool
	fired    bool
	canceled bool
}

// Cancel stops the timer. It reports false if the callback already ran or the
// timer was already cancelled; cancelling twice is harmless.
func (t *DeadlineTimer) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.fired || t.canceled {
		return false
	}
	t.canceled = true
	if t.stop != nil {
		t.stop()
	}
	return true
}

// Fire runs fn unless the timer was cancelled first. Schedulers call this;
// a manual test scheduler can call it directly to simulate expiry.
func (t *DeadlineTimer) Fire(fn func()) {
	t.mu.Lock()
	if t.fired || t.canceled {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.mu.Unlock()
	fn()
}

// WallScheduler schedules against real time via time.AfterFunc.
type WallScheduler struct{}

func (WallScheduler) Schedule(d time.Duration, fn func()) *DeadlineTimer {
	t := &DeadlineTimer{}
	timer := time.AfterFunc(d, func() { t.Fire(fn) })
	t.mu.Lock()
	t.stop = timer.Stop
	t.mu.Unlock()
	return t
}
