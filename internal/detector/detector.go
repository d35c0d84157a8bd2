// Package detector polls the backend's pending-orders summary and emits one
// event per distinct latest-order transition.
package detector

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tidyhost/engage/internal/backend"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/metrics"
)

// SummarySource provides the pending-orders snapshot.
type SummarySource interface {
	PendingOrdersSummary(ctx context.Context) (*backend.PendingOrdersSnapshot, error)
}

// Handler receives detected orders. Handlers must not block; the alert
// sequencer schedules its stages and returns immediately.
type Handler func(ctx context.Context, order backend.Order)

// State is the detector's tracking state.
type State string

const (
	// StateIdle means no baseline has been observed yet. The first
	// successful poll sets the baseline without alerting, so pre-existing
	// orders never fire on startup.
	StateIdle State = "idle"
	// StateTracking means a baseline order ID is held and transitions
	// away from it emit events.
	StateTracking State = "tracking"
)

// Detector runs the polling loop.
//
// Only the single latest order is compared: if several orders arrive between
// two polls, one event fires for the most recent. The polled summary does
// not expose a queue, so the skipped orders cannot be individually surfaced.
type Detector struct {
	source   SummarySource
	interval time.Duration
	handler  Handler
	logger   *logger.Logger

	mu        sync.Mutex
	state     State
	baseline  int64
	pollCount int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a detector. It does not start polling.
func New(source SummarySource, interval time.Duration, handler Handler, logger *logger.Logger) *Detector {
	return &Detector{
		source:   source,
		interval: interval,
		handler:  handler,
		logger:   logger.WithComponent("order_detector"),
		state:    StateIdle,
	}
}

// Start spawns the polling goroutine. Calling Start twice is a no-op.
func (d *Detector) Start(ctx context.Context) {
	d.mu.Lock()
	if d.cancel != nil {
		d.mu.Unlock()
		d.logger.Warn("detector already started")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()

	d.logger.Info("order detector started",
		slog.Duration("interval", d.interval))
}

// Stop cancels the polling loop and waits for it to exit.
func (d *Detector) Stop() {
	d.mu.Lock()
	cancel := d.cancel
	d.cancel = nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	d.wg.Wait()

	d.logger.Info("order detector stopped",
		slog.Int("poll_count", d.PollCount()))
}

func (d *Detector) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.pollOnce(ctx)
		}
	}
}

// pollOnce performs a single poll cycle. A transport failure is logged and
// retried at the next natural tick; no backoff, and no state change.
func (d *Detector) pollOnce(ctx context.Context) {
	d.mu.Lock()
	d.pollCount++
	count := d.pollCount
	d.mu.Unlock()

	metrics.PollsTotal.Inc()

	snapshot, err := d.source.PendingOrdersSummary(ctx)
	if err != nil {
		metrics.PollFailuresTotal.Inc()
		d.logger.Error("pending-orders poll failed",
			slog.Int("poll_count", count),
			slog.String("error", err.Error()))
		return
	}

	if snapshot.LatestOrder == nil {
		return
	}
	latest := *snapshot.LatestOrder

	d.mu.Lock()
	switch d.state {
	case StateIdle:
		d.state = StateTracking
		d.baseline = latest.ID
		d.mu.Unlock()

		d.logger.Info("baseline order recorded",
			slog.Int64("order_id", latest.ID),
			slog.Int("pending_count", snapshot.Count))
		return

	case StateTracking:
		if latest.ID == d.baseline {
			d.mu.Unlock()
			return
		}
		d.baseline = latest.ID
		d.mu.Unlock()

		metrics.OrdersDetectedTotal.Inc()
		d.logger.Info("new order detected",
			slog.Int64("order_id", latest.ID),
			slog.String("customer", latest.CustomerName),
			slog.Int("pending_count", snapshot.Count))

		if d.handler != nil {
			d.handler(ctx, latest)
		}

	default:
		d.mu.Unlock()
	}
}

// Status returns the detector's state and current baseline order ID.
func (d *Detector) Status() (State, int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state, d.baseline
}

// PollCount returns the number of polls attempted so far.
func (d *Detector) PollCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pollCount
}
