package notification

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tidyhost/engage/internal/clock"
	"github.com/tidyhost/engage/internal/logger"
)

// MaxVisible caps how many items the display shows at once. Older items
// remain owned by their managers; only the view is capped.
const MaxVisible = 2

// EventType labels display feed events.
type EventType string

const (
	EventAdded   EventType = "notification_added"
	EventRemoved EventType = "notification_removed"
)

// Event is emitted to display listeners when the visible set changes.
type Event struct {
	Type   EventType   `json:"type"`
	Item   Item        `json:"item"`
	Reason CloseReason `json:"reason,omitempty"`
}

// Listener receives display events. Listeners must not block.
type Listener func(Event)

// Center holds the ordered collection of displayed notifications. It caps
// the visible view and relays add/remove events; it never owns or resets
// any item's timer. Timer ownership is exclusively per item, which is what
// keeps unrelated list changes from restarting dismissal countdowns.
type Center struct {
	mu        sync.Mutex
	sched     clock.Scheduler
	logger    *logger.Logger
	nextID    atomic.Int64
	managers  []*Manager // newest first
	listeners []Listener
}

// NewCenter creates an empty notification center.
func NewCenter(sched clock.Scheduler, logger *logger.Logger) *Center {
	return &Center{
		sched:  sched,
		logger: logger.WithComponent("notification_center"),
	}
}

// AddListener registers a display event listener.
func (c *Center) AddListener(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Push displays a new notification and starts its lifecycle.
func (c *Center) Push(title, body string, persistent bool) Item {
	item := Item{
		ID:         c.nextID.Add(1),
		Title:      title,
		Body:       body,
		Persistent: persistent,
		CreatedAt:  c.sched.Now(),
	}

	mgr := newManager(item, c.sched, c.handleClose)

	c.mu.Lock()
	c.managers = append([]*Manager{mgr}, c.managers...)
	c.mu.Unlock()

	c.logger.Info("notification displayed",
		slog.Int64("id", item.ID),
		slog.String("title", item.Title),
		slog.Bool("persistent", item.Persistent))

	c.emit(Event{Type: EventAdded, Item: item})
	return item
}

// Dismiss closes an item on explicit user action. It reports whether the
// item was known.
func (c *Center) Dismiss(id int64) bool {
	mgr := c.find(id)
	if mgr == nil {
		return false
	}
	mgr.Close()
	return true
}

// HoverStart pauses an item's dismissal countdown. It reports whether the
// item was found and paused.
func (c *Center) HoverStart(id int64) bool {
	mgr := c.find(id)
	if mgr == nil {
		return false
	}
	return mgr.HoverStart()
}

// HoverEnd restarts an item's full dismissal window. It reports whether the
// item was found and resumed.
func (c *Center) HoverEnd(id int64) bool {
	mgr := c.find(id)
	if mgr == nil {
		return false
	}
	return mgr.HoverEnd()
}

// Visible returns the capped, ordered view of displayed items.
func (c *Center) Visible() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.managers)
	if n > MaxVisible {
		n = MaxVisible
	}

	items := make([]Item, 0, n)
	for _, mgr := range c.managers[:n] {
		items = append(items, mgr.Item())
	}
	return items
}

// Count returns the number of live items, visible or not.
func (c *Center) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.managers)
}

func (c *Center) find(id int64) *Manager {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, mgr := range c.managers {
		if mgr.Item().ID == id {
			return mgr
		}
	}
	return nil
}

// handleClose is invoked by an item's manager when it reaches Closing.
func (c *Center) handleClose(item Item, reason CloseReason) {
	c.mu.Lock()
	for i, mgr := range c.managers {
		if mgr.Item().ID == item.ID {
			c.managers = append(c.managers[:i], c.managers[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	c.logger.Debug("notification removed",
		slog.Int64("id", item.ID),
		slog.String("reason", string(reason)))

	c.emit(Event{Type: EventRemoved, Item: item, Reason: reason})
}

func (c *Center) emit(event Event) {
	c.mu.Lock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(event)
	}
}
