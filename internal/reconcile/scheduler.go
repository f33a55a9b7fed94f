package reconcile

import (
	"sync"
	"sync/atomic"
	"time"
)

// Handle is a scheduled task that can be disarmed.
type Handle interface {
	// Cancel disarms the task. After Cancel returns the underlying timer is
	// stopped; it is safe to call more than once and from any goroutine.
	Cancel()
}

// Scheduler arms the repeat and deadline timers of a session.
//
// Implementations must never invoke fn synchronously from Every or After,
// callers may hold locks while scheduling.
type Scheduler interface {
	// Every runs fn every interval, first after one interval has passed.
	Every(interval time.Duration, fn func()) Handle
	// After runs fn once after delay.
	After(delay time.Duration, fn func()) Handle
}

// TimerScheduler is the Scheduler backed by the runtime timers.
type TimerScheduler struct{}

func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

type timerHandle struct {
	once      sync.Once
	cancelled atomic.Bool
	stop      chan struct{}
	ticker    *time.Ticker
	timer     *time.Timer
}

func (h *timerHandle) Cancel() {
	h.once.Do(func() {
		h.cancelled.Store(true)
		if h.ticker != nil {
			h.ticker.Stop()
		}
		if h.timer != nil {
			h.timer.Stop()
		}
		close(h.stop)
	})
}

func (s *TimerScheduler) Every(interval time.Duration, fn func()) Handle {
	h := &timerHandle{
		stop:   make(chan struct{}),
		ticker: time.NewTicker(interval),
	}
	go func() {
		for {
			select {
			case <-h.stop:
				return
			case <-h.ticker.C:
				if h.cancelled.Load() {
					return
				}
				fn()
			}
		}
	}()
	return h
}

func (s *TimerScheduler) After(delay time.Duration, fn func()) Handle {
	h := &timerHandle{stop: make(chan struct{})}
	h.timer = time.AfterFunc(delay, func() {
		if h.cancelled.Load() {
			return
		}
		fn()
	})
	return h
}
