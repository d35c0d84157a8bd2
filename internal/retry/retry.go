// Package retry declares the engine's retry policy once so call sites do not
// inline their own timer-and-callback chains.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/tidyhost/engage/internal/clock"
)

// Do invokes op up to attempts times, waiting delay between attempts on the
// given scheduler. It returns nil on the first success, the last error after
// the final attempt, or ctx.Err() if the context ends while waiting.
func Do(ctx context.Context, attempts int, delay time.Duration, sched clock.Scheduler, op func(ctx context.Context) error) error {
	if attempts < 1 {
		return fmt.Errorf("retry: attempts must be >= 1, got %d", attempts)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == attempts {
			break
		}

		if err := wait(ctx, sched, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// Scheduled invokes op immediately and, on failure, schedules further
// attempts delay apart without blocking the caller. After the final failed
// attempt the last error is passed to onExhausted, which may be nil.
//
// Used where the caller must not block (alert channel retries); blocking
// call sites use Do.
func Scheduled(sched clock.Scheduler, attempts int, delay time.Duration, op func() error, onExhausted func(error)) {
	if attempts < 1 {
		return
	}

	err := op()
	if err == nil {
		return
	}

	if attempts == 1 {
		if onExhausted != nil {
			onExhausted(err)
		}
		return
	}

	sched.Schedule(delay, func() {
		Scheduled(sched, attempts-1, delay, op, onExhausted)
	})
}

// wait blocks until the scheduler fires after delay or the context ends.
func wait(ctx context.Context, sched clock.Scheduler, delay time.Duration) error {
	done := make(chan struct{})
	handle := sched.Schedule(delay, func() { close(done) })

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		handle.Stop()
		return ctx.Err()
	}
}
