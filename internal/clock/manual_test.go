package clock

import (
	"testing"
	"time"
)

func TestManualFiresInDeadlineOrder(t *testing.T) {
	m := NewManual()

	var order []string
	m.Schedule(300*time.Millisecond, func() { order = append(order, "c") })
	m.Schedule(100*time.Millisecond, func() { order = append(order, "a") })
	m.Schedule(200*time.Millisecond, func() { order = append(order, "b") })

	m.Advance(500 * time.Millisecond)

	if len(order) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(order))
	}
	if order[0] != "a" || order[1] != "b" || order[2] != "c" {
		t.Errorf("callbacks fired out of order: %v", order)
	}
	if m.PendingCount() != 0 {
		t.Errorf("expected no pending callbacks, got %d", m.PendingCount())
	}
}

func TestManualDoesNotFireEarly(t *testing.T) {
	m := NewManual()

	fired := false
	m.Schedule(2500*time.Millisecond, func() { fired = true })

	m.Advance(2499 * time.Millisecond)
	if fired {
		t.Error("callback fired before its deadline")
	}

	m.Advance(1 * time.Millisecond)
	if !fired {
		t.Error("callback did not fire at its deadline")
	}
}

func TestManualStop(t *testing.T) {
	m := NewManual()

	fired := false
	h := m.Schedule(100*time.Millisecond, func() { fired = true })

	if !h.Stop() {
		t.Error("Stop on a pending handle should report true")
	}
	if h.Stop() {
		t.Error("second Stop should report false")
	}

	m.Advance(time.Second)
	if fired {
		t.Error("stopped callback fired")
	}
}

func TestManualCallbackSchedulingFollowUp(t *testing.T) {
	m := NewManual()

	var fired []string
	m.Schedule(100*time.Millisecond, func() {
		fired = append(fired, "first")
		m.Schedule(100*time.Millisecond, func() {
			fired = append(fired, "second")
		})
	})

	m.Advance(150 * time.Millisecond)
	if len(fired) != 1 {
		t.Fatalf("expected only the first callback, got %v", fired)
	}

	m.Advance(50 * time.Millisecond)
	if len(fired) != 2 || fired[1] != "second" {
		t.Fatalf("expected follow-up callback, got %v", fired)
	}
}

func TestManualAdvanceFiresChainedTimersInOneCall(t *testing.T) {
	m := NewManual()

	var fired []string
	m.Schedule(600*time.Millisecond, func() {
		fired = append(fired, "speak")
		m.Schedule(500*time.Millisecond, func() {
			fired = append(fired, "retry")
		})
	})

	m.Advance(2 * time.Second)
	if len(fired) != 2 {
		t.Fatalf("expected chained callbacks to fire in one Advance, got %v", fired)
	}
}

func TestRealSchedulerStop(t *testing.T) {
	r := NewReal()

	ch := make(chan struct{}, 1)
	h := r.Schedule(5*time.Millisecond, func() { ch <- struct{}{} })

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("real scheduler never fired")
	}

	if h.Stop() {
		t.Error("Stop after firing should report false")
	}
}
