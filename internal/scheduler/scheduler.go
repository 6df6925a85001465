// Package scheduler implements ScheduledTask, a one-shot, cancellable,
// reschedulable timer used to exit the server after an idle grace period.
// It runs on Go's time.AfterFunc rather than a dedicated waiting thread.
package scheduler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ScheduledTask is a named, one-shot timer. The zero value is not usable;
// construct with New.
type ScheduledTask struct {
	name   string
	task   func()
	logger zerolog.Logger

	mu    sync.Mutex
	timer *time.Timer
	epoch uint64 // bumped on every Schedule/Cancel; pins a fired callback to its arming
}

// New constructs a ScheduledTask in the cancelled (idle) state. task is
// held for the task's lifetime and invoked on its own goroutine when the
// timer fires without having been cancelled or superseded.
func New(name string, task func(), logger zerolog.Logger) *ScheduledTask {
	return &ScheduledTask{name: name, task: task, logger: logger}
}

// Schedule cancels any in-flight arming, then arms the task to run after
// delay. Safe to call from any goroutine, including from within the task
// closure itself (re-entrant rescheduling).
func (t *ScheduledTask) Schedule(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.epoch++
	myEpoch := t.epoch
	t.logger.Debug().Str("task", t.name).Dur("delay", delay).Msg("scheduled")

	t.timer = time.AfterFunc(delay, func() {
		t.mu.Lock()
		fire := t.epoch == myEpoch
		t.mu.Unlock()
		if fire {
			t.logger.Debug().Str("task", t.name).Msg("executing")
			t.task()
		}
	})
}

// Cancel prevents a pending arming from firing. Idempotent.
func (t *ScheduledTask) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
	}
	t.epoch++
	t.logger.Debug().Str("task", t.name).Msg("canceled")
}
