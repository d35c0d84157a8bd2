// Package clock abstracts delayed callback scheduling so every timed
// component in the engine can be tested without real time passing.
package clock

import "time"

// Handle represents a scheduled callback that can be stopped before it fires.
type Handle interface {
	// Stop cancels the pending callback. It reports whether the callback
	// was cancelled before firing. Stopping an already-fired or
	// already-stopped handle is a no-op.
	Stop() bool
}

// Scheduler schedules a callback to run after a delay.
//
// Implementations must invoke the callback at most once, and never after a
// successful Stop. Callbacks may fire on an arbitrary goroutine; components
// are responsible for their own locking.
type Scheduler interface {
	Schedule(delay time.Duration, fn func()) Handle
	Now() time.Time
}

// Real is the production Scheduler backed by time.AfterFunc.
type Real struct{}

// NewReal returns the wall-clock scheduler.
func NewReal() *Real {
	return &Real{}
}

type realHandle struct {
	timer *time.Timer
}

func (h *realHandle) Stop() bool {
	return h.timer.Stop()
}

func (r *Real) Schedule(delay time.Duration, fn func()) Handle {
	return &realHandle{timer: time.AfterFunc(delay, fn)}
}

func (r *Real) Now() time.Time {
	return time.Now()
}
