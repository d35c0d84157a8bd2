package clock

import (
	"sort"
	"sync"
	"time"
)

// Manual is a virtual-time Scheduler for tests. Time only moves when
// Advance is called; due callbacks run synchronously on the advancing
// goroutine, in deadline order.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	nextID  int
	pending []*manualEntry
}

type manualEntry struct {
	id       int
	deadline time.Time
	fn       func()
	stopped  bool
	owner    *Manual
}

// NewManual creates a virtual scheduler starting at an arbitrary fixed epoch.
func NewManual() *Manual {
	return &Manual{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *Manual) Schedule(delay time.Duration, fn func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	entry := &manualEntry{
		id:       m.nextID,
		deadline: m.now.Add(delay),
		fn:       fn,
		owner:    m,
	}
	m.pending = append(m.pending, entry)
	return entry
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Advance moves virtual time forward and fires every callback whose deadline
// has been reached, in deadline order (insertion order for ties).
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)

	for {
		entry := m.nextDueLocked(target)
		if entry == nil {
			break
		}
		// Advance time to the callback's deadline before firing so that
		// callbacks scheduling follow-up timers observe consistent time.
		if entry.deadline.After(m.now) {
			m.now = entry.deadline
		}
		m.removeLocked(entry.id)
		m.mu.Unlock()
		entry.fn()
		m.mu.Lock()
	}

	m.now = target
	m.mu.Unlock()
}

// PendingCount returns the number of outstanding callbacks. Useful for
// asserting timer exclusivity in tests.
func (m *Manual) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *Manual) nextDueLocked(target time.Time) *manualEntry {
	var due []*manualEntry
	for _, e := range m.pending {
		if !e.deadline.After(target) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].deadline.Equal(due[j].deadline) {
			return due[i].id < due[j].id
		}
		return due[i].deadline.Before(due[j].deadline)
	})
	return due[0]
}

func (m *Manual) removeLocked(id int) {
	for i, e := range m.pending {
		if e.id == id {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return
		}
	}
}

func (e *manualEntry) Stop() bool {
	e.owner.mu.Lock()
	defer e.owner.mu.Unlock()

	if e.stopped {
		return false
	}
	e.stopped = true

	for i, p := range e.owner.pending {
		if p.id == e.id {
			e.owner.pending = append(e.owner.pending[:i], e.owner.pending[i+1:]...)
			return true
		}
	}
	return false
}
