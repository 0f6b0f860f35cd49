package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Scheduler runs delayed callbacks on an injectable clock so timer-driven
// behavior can be tested against a mock clock.
type Scheduler struct {
	clock clock.Clock
}

// New creates a Scheduler. Pass clock.New() for wall-clock time or
// clock.NewMock() in tests.
func New(c clock.Clock) *Scheduler {
	return &Scheduler{clock: c}
}

// Task is a cancellable scheduled callback. A task that is cancelled before
// it starts executing never runs; a task that has started executing cannot
// be cancelled. Whichever of the callback and Cancel takes the task lock
// first wins the race.
type Task struct {
	mu        sync.Mutex
	timer     *clock.Timer
	cancelled bool
	started   bool
}

// Schedule runs fn after the given delay and returns a handle to cancel it.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Task {
	task := &Task{}
	task.timer = s.clock.AfterFunc(delay, func() {
		task.mu.Lock()
		if task.cancelled {
			task.mu.Unlock()
			return
		}
		task.started = true
		task.mu.Unlock()
		fn()
	})
	return task
}

// Cancel stops the task. It reports whether the callback was prevented from
// running; a task that already started or was already cancelled returns
// false. Cancelling is idempotent.
func (t *Task) Cancel() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.cancelled {
		return false
	}
	t.cancelled = true
	t.timer.Stop()
	return true
}
