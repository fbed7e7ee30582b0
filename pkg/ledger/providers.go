package ledger

import (
	"sync"
	"time"
)

// CancelFunc stops a scheduled timer. Safe to call more than once.
type CancelFunc func()

// TimerProvider is the capability the ledger schedules through. The real
// platform implementation sits on the clock; tests substitute a manual
// fake so firing order is controlled.
type TimerProvider interface {
	// AfterFunc runs fn once after d.
	AfterFunc(d time.Duration, fn func()) CancelFunc
	// TickFunc runs fn every d until cancelled.
	TickFunc(d time.Duration, fn func()) CancelFunc
}

// ClockTimers is the standard-library backed TimerProvider.
type ClockTimers struct{}

func (ClockTimers) AfterFunc(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

func (ClockTimers) TickFunc(d time.Duration, fn func()) CancelFunc {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	var once sync.Once
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
