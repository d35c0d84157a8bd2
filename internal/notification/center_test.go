package notification

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/tidyhost/engage/internal/clock"
	"github.com/tidyhost/engage/internal/logger"
)

func newTestCenter(t *testing.T) (*Center, *clock.Manual) {
	t.Helper()
	sched := clock.NewManual()
	log := logger.New(logger.Config{Level: slog.LevelError})
	return NewCenter(sched, log), sched
}

func collectEvents(c *Center) *[]Event {
	var events []Event
	c.AddListener(func(e Event) {
		events = append(events, e)
	})
	return &events
}

func TestAutoDismissAfterWindow(t *testing.T) {
	c, sched := newTestCenter(t)
	events := collectEvents(c)

	item := c.Push("New order", "Dana booked Deep Clean", false)

	sched.Advance(DismissAfter - time.Millisecond)
	if c.Count() != 1 {
		t.Fatal("item dismissed before its window elapsed")
	}

	sched.Advance(time.Millisecond)
	if c.Count() != 0 {
		t.Fatal("item not dismissed after its window elapsed")
	}

	if len(*events) != 2 {
		t.Fatalf("expected added+removed events, got %d", len(*events))
	}
	removed := (*events)[1]
	if removed.Type != EventRemoved || removed.Item.ID != item.ID || removed.Reason != CloseExpired {
		t.Errorf("unexpected removal event: %+v", removed)
	}
}

func TestHoverSuppressesDismissal(t *testing.T) {
	c, sched := newTestCenter(t)

	item := c.Push("New order", "body", false)

	sched.Advance(2000 * time.Millisecond)
	if !c.HoverStart(item.ID) {
		t.Fatal("HoverStart did not pause the item")
	}

	// Far beyond the original deadline: hovered items never dismiss.
	sched.Advance(time.Minute)
	if c.Count() != 1 {
		t.Fatal("item dismissed while hovered")
	}

	c.HoverEnd(item.ID)

	// Hover end restarts the full window, not the remaining fraction.
	sched.Advance(DismissAfter - time.Millisecond)
	if c.Count() != 1 {
		t.Fatal("item dismissed before the restarted window elapsed")
	}
	sched.Advance(time.Millisecond)
	if c.Count() != 0 {
		t.Fatal("item not dismissed after the restarted window")
	}
}

func TestTimerExclusivity(t *testing.T) {
	c, sched := newTestCenter(t)

	item := c.Push("New order", "body", false)
	if sched.PendingCount() != 1 {
		t.Fatalf("expected 1 outstanding timer, got %d", sched.PendingCount())
	}

	// Repeated pause/resume cycles must never stack timers.
	for i := 0; i < 5; i++ {
		c.HoverStart(item.ID)
		if sched.PendingCount() != 0 {
			t.Fatalf("paused item holds %d timers", sched.PendingCount())
		}
		c.HoverEnd(item.ID)
		if sched.PendingCount() != 1 {
			t.Fatalf("resumed item holds %d timers", sched.PendingCount())
		}
	}

	// Redundant hover ends must not arm extra timers.
	c.HoverEnd(item.ID)
	if sched.PendingCount() != 1 {
		t.Fatalf("expected 1 outstanding timer, got %d", sched.PendingCount())
	}
}

func TestPersistentItemNeverAutoDismisses(t *testing.T) {
	c, sched := newTestCenter(t)
	events := collectEvents(c)

	item := c.Push("Reminder", "Upload photos for completed cleanings", true)
	if sched.PendingCount() != 0 {
		t.Fatal("persistent item scheduled a dismissal timer")
	}

	sched.Advance(24 * time.Hour)
	if c.Count() != 1 {
		t.Fatal("persistent item auto-dismissed")
	}

	// Hover signals are no-ops for persistent items.
	c.HoverStart(item.ID)
	c.HoverEnd(item.ID)
	if sched.PendingCount() != 0 {
		t.Fatal("hover armed a timer on a persistent item")
	}

	if !c.Dismiss(item.ID) {
		t.Fatal("manual dismissal failed")
	}
	if c.Count() != 0 {
		t.Fatal("persistent item not removed on manual close")
	}

	removed := (*events)[len(*events)-1]
	if removed.Reason != CloseManual {
		t.Errorf("expected manual close reason, got %q", removed.Reason)
	}
}

func TestManualDismissIsTerminal(t *testing.T) {
	c, sched := newTestCenter(t)

	item := c.Push("New order", "body", false)
	if !c.Dismiss(item.ID) {
		t.Fatal("dismiss failed")
	}
	if c.Dismiss(item.ID) {
		t.Error("second dismiss found a removed item")
	}
	if sched.PendingCount() != 0 {
		t.Error("dismissal left a timer outstanding")
	}

	// A stale hover signal against a removed item is ignored.
	if c.HoverStart(item.ID) {
		t.Error("hover found a removed item")
	}
}

func TestVisibleCapsAtTwoNewestFirst(t *testing.T) {
	c, _ := newTestCenter(t)

	c.Push("first", "body", true)
	second := c.Push("second", "body", true)
	third := c.Push("third", "body", true)

	visible := c.Visible()
	if len(visible) != MaxVisible {
		t.Fatalf("expected %d visible items, got %d", MaxVisible, len(visible))
	}
	if visible[0].ID != third.ID || visible[1].ID != second.ID {
		t.Errorf("visible view not newest-first: %+v", visible)
	}

	if c.Count() != 3 {
		t.Errorf("capping the view must not drop items, count=%d", c.Count())
	}
}

func TestHoverRacingExpiryNeverDismissesPausedItem(t *testing.T) {
	// A hover landing at the same instant the dismissal timer fires must
	// either pause the item or lose to the dismissal entirely; it must
	// never report a successful pause on an item that then disappears.
	for i := 0; i < 200; i++ {
		c, sched := newTestCenter(t)
		item := c.Push("New order", "body", false)

		var paused bool
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			sched.Advance(DismissAfter)
		}()
		go func() {
			defer wg.Done()
			paused = c.HoverStart(item.ID)
		}()
		wg.Wait()

		if paused && c.Count() != 1 {
			t.Fatalf("iteration %d: item dismissed while hovered", i)
		}
		if !paused && c.Count() != 0 {
			t.Fatalf("iteration %d: unpaused item survived its window", i)
		}
	}
}

func TestHiddenItemsKeepTheirOwnTimers(t *testing.T) {
	c, sched := newTestCenter(t)

	first := c.Push("first", "body", false)
	sched.Advance(1000 * time.Millisecond)
	c.Push("second", "body", false)
	c.Push("third", "body", false)

	// Pushing more items must not reset the first item's countdown.
	sched.Advance(1500 * time.Millisecond)
	for _, item := range c.Visible() {
		if item.ID == first.ID {
			t.Fatal("first item should have expired on its original schedule")
		}
	}
	if c.Count() != 2 {
		t.Errorf("expected 2 remaining items, got %d", c.Count())
	}
}
