package engine

import "time"

// Cancel stops a scheduled callback. It reports whether the callback
// was cancelled before it fired. Calling it more than once is safe.
type Cancel func() bool

// Scheduler abstracts one-shot timer scheduling so the engine's clocks
// (arpeggiator steps, note-off timers, automation frames) can run on a
// deterministic virtual clock in tests.
type Scheduler interface {
	// Schedule runs fn after delay on the scheduler's own goroutine.
	Schedule(delay time.Duration, fn func()) Cancel
	// Now returns the scheduler's notion of current time.
	Now() time.Time
}

// timerScheduler is the production Scheduler backed by time.AfterFunc.
type timerScheduler struct{}

// NewScheduler returns the wall-clock Scheduler
func NewScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) Schedule(delay time.Duration, fn func()) Cancel {
	t := time.AfterFunc(delay, fn)
	return t.Stop
}

func (timerScheduler) Now() time.Time {
	return time.Now()
}
