package engine

import (
	"sort"
	"time"
)

// fakeScheduler is a deterministic Scheduler for tests: tasks run
// synchronously from advance, in timestamp order, on the caller's
// goroutine.
type fakeScheduler struct {
	now   time.Time
	tasks []*fakeTask
}

type fakeTask struct {
	at        time.Time
	fn        func()
	cancelled bool
	done      bool
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{now: time.Unix(0, 0)}
}

func (f *fakeScheduler) Schedule(delay time.Duration, fn func()) Cancel {
	t := &fakeTask{at: f.now.Add(delay), fn: fn}
	f.tasks = append(f.tasks, t)
	return func() bool {
		if t.done || t.cancelled {
			return false
		}
		t.cancelled = true
		return true
	}
}

func (f *fakeScheduler) Now() time.Time {
	return f.now
}

// advance moves the clock forward, running every due task in order.
// Tasks scheduled by running tasks are picked up within the same call
// when they fall inside the window.
func (f *fakeScheduler) advance(d time.Duration) {
	target := f.now.Add(d)
	for {
		next := f.nextDue(target)
		if next == nil {
			break
		}
		if next.at.After(f.now) {
			f.now = next.at
		}
		next.done = true
		next.fn()
	}
	f.now = target
}

func (f *fakeScheduler) nextDue(target time.Time) *fakeTask {
	sort.SliceStable(f.tasks, func(i, j int) bool { return f.tasks[i].at.Before(f.tasks[j].at) })
	for _, t := range f.tasks {
		if t.cancelled || t.done {
			continue
		}
		if !t.at.After(target) {
			return t
		}
	}
	return nil
}

// pending counts tasks still waiting to run
func (f *fakeScheduler) pending() int {
	n := 0
	for _, t := range f.tasks {
		if !t.cancelled && !t.done {
			n++
		}
	}
	return n
}
