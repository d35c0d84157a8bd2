package notification

import (
	"sync"
	"time"

	"github.com/tidyhost/engage/internal/clock"
)

// DismissAfter is the on-screen lifetime of a non-persistent item. Hover
// restarts the full window rather than resuming a remaining fraction.
const DismissAfter = 2500 * time.Millisecond

// State is the lifecycle state of a displayed item.
type State string

const (
	// StateActiveTimed counts down toward auto-dismissal.
	StateActiveTimed State = "active_timed"
	// StateActiveUntimed is the permanent state of persistent items.
	StateActiveUntimed State = "active_untimed"
	// StatePaused holds the item while the user's pointer is over it.
	StatePaused State = "paused"
	// StateClosing is terminal; the item is being removed.
	StateClosing State = "closing"
)

// CloseReason distinguishes expiry from explicit dismissal.
type CloseReason string

const (
	CloseExpired CloseReason = "expired"
	CloseManual  CloseReason = "manual"
)

// Item is one displayed notification.
type Item struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Body       string    `json:"body"`
	Persistent bool      `json:"isPersistent"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Manager owns one item's auto-dismiss timer, hover pause/resume, and manual
// dismissal. Each instance is fully self-contained; the owning collection
// never touches the timer.
type Manager struct {
	mu      sync.Mutex
	item    Item
	state   State
	sched   clock.Scheduler
	timer   clock.Handle
	onClose func(item Item, reason CloseReason)
}

func newManager(item Item, sched clock.Scheduler, onClose func(Item, CloseReason)) *Manager {
	m := &Manager{
		item:    item,
		sched:   sched,
		onClose: onClose,
	}

	m.mu.Lock()
	if item.Persistent {
		m.state = StateActiveUntimed
	} else {
		m.state = StateActiveTimed
		m.scheduleLocked()
	}
	m.mu.Unlock()

	return m
}

// Item returns the item owned by this manager.
func (m *Manager) Item() Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// HoverStart pauses the dismissal countdown. It reports whether the item
// was actually paused; persistent or already-closing items are not.
func (m *Manager) HoverStart() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActiveTimed {
		return false
	}
	m.cancelTimerLocked()
	m.state = StatePaused
	return true
}

// HoverEnd restarts the full dismissal window. It reports whether the item
// was actually resumed.
func (m *Manager) HoverEnd() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaused {
		return false
	}
	m.state = StateActiveTimed
	m.scheduleLocked()
	return true
}

// Close dismisses the item on explicit user action. Removal is terminal.
func (m *Manager) Close() {
	m.close(CloseManual, false)
}

// expire is the timer callback.
func (m *Manager) expire() {
	m.close(CloseExpired, true)
}

// close transitions to Closing. With timedOnly set the transition only
// happens from ActiveTimed, checked under the same lock acquisition that
// performs it, so a timer callback that lost the race against a hover or
// manual close does nothing.
func (m *Manager) close(reason CloseReason, timedOnly bool) {
	m.mu.Lock()
	if m.state == StateClosing || (timedOnly && m.state != StateActiveTimed) {
		m.mu.Unlock()
		return
	}
	m.cancelTimerLocked()
	m.state = StateClosing
	item := m.item
	onClose := m.onClose
	m.mu.Unlock()

	if onClose != nil {
		onClose(item, reason)
	}
}

// scheduleLocked arms the dismissal timer. Any existing handle is cancelled
// first so at most one timer is ever outstanding per item.
func (m *Manager) scheduleLocked() {
	m.cancelTimerLocked()
	m.timer = m.sched.Schedule(DismissAfter, m.expire)
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}
