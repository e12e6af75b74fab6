package refresh

import (
	"sync"
	"time"
)

// Scheduler arms timers. The returned function disarms the timer; it is
// safe to call more than once.
type Scheduler interface {
	Every(d time.Duration, fn func()) (cancel func())
	After(d time.Duration, fn func()) (cancel func())
}

// RealTime schedules on the wall clock.
type RealTime struct{}

// Every runs fn every d on its own goroutine until cancelled. Ticks that
// arrive while fn is still running are dropped.
func (RealTime) Every(d time.Duration, fn func()) func() {
	t := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-t.C:
				fn()
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.Stop()
			close(done)
		})
	}
}

// After runs fn once after d unless cancelled first.
func (RealTime) After(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
