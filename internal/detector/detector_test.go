package detector

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/tidyhost/engage/internal/backend"
	"github.com/tidyhost/engage/internal/logger"
)

// summarySourceEmulator replays a scripted sequence of snapshots and errors,
// one per poll.
type summarySourceEmulator struct {
	script []func() (*backend.PendingOrdersSnapshot, error)
	calls  int
}

func (e *summarySourceEmulator) PendingOrdersSummary(ctx context.Context) (*backend.PendingOrdersSnapshot, error) {
	if e.calls >= len(e.script) {
		return nil, errors.New("script exhausted")
	}
	step := e.script[e.calls]
	e.calls++
	return step()
}

func snapshot(count int, latestID int64) func() (*backend.PendingOrdersSnapshot, error) {
	return func() (*backend.PendingOrdersSnapshot, error) {
		return &backend.PendingOrdersSnapshot{
			Count: count,
			LatestOrder: &backend.Order{
				ID:           latestID,
				CustomerName: "Dana",
				PackageName:  "Deep Clean",
			},
		}, nil
	}
}

func emptySnapshot() func() (*backend.PendingOrdersSnapshot, error) {
	return func() (*backend.PendingOrdersSnapshot, error) {
		return &backend.PendingOrdersSnapshot{Count: 0, LatestOrder: nil}, nil
	}
}

func transportError() func() (*backend.PendingOrdersSnapshot, error) {
	return func() (*backend.PendingOrdersSnapshot, error) {
		return nil, errors.New("connection refused")
	}
}

func newTestDetector(t *testing.T, source SummarySource) (*Detector, *[]int64) {
	t.Helper()

	var detected []int64
	log := logger.New(logger.Config{Level: slog.LevelError})
	d := New(source, time.Second, func(ctx context.Context, order backend.Order) {
		detected = append(detected, order.ID)
	}, log)
	return d, &detected
}

func TestNoAlertOnFirstLoad(t *testing.T) {
	source := &summarySourceEmulator{script: []func() (*backend.PendingOrdersSnapshot, error){
		snapshot(3, 10),
	}}
	d, detected := newTestDetector(t, source)

	d.pollOnce(context.Background())

	if len(*detected) != 0 {
		t.Errorf("first poll fired %d alerts, want 0", len(*detected))
	}
	state, baseline := d.Status()
	if state != StateTracking {
		t.Errorf("expected tracking state after first poll, got %q", state)
	}
	if baseline != 10 {
		t.Errorf("expected baseline 10, got %d", baseline)
	}
}

func TestSingleAlertPerTransition(t *testing.T) {
	source := &summarySourceEmulator{script: []func() (*backend.PendingOrdersSnapshot, error){
		snapshot(1, 10),
		snapshot(1, 10),
		snapshot(2, 11),
		snapshot(2, 11),
		snapshot(2, 11),
		snapshot(2, 11),
	}}
	d, detected := newTestDetector(t, source)

	for i := 0; i < len(source.script); i++ {
		d.pollOnce(context.Background())
	}

	if len(*detected) != 1 {
		t.Fatalf("expected exactly 1 alert, got %d", len(*detected))
	}
	if (*detected)[0] != 11 {
		t.Errorf("expected alert for order 11, got %d", (*detected)[0])
	}
}

func TestEachTransitionAlertsOnce(t *testing.T) {
	source := &summarySourceEmulator{script: []func() (*backend.PendingOrdersSnapshot, error){
		snapshot(1, 10),
		snapshot(2, 11),
		snapshot(3, 12),
		snapshot(3, 12),
		snapshot(4, 15),
	}}
	d, detected := newTestDetector(t, source)

	for i := 0; i < len(source.script); i++ {
		d.pollOnce(context.Background())
	}

	want := []int64{11, 12, 15}
	if len(*detected) != len(want) {
		t.Fatalf("expected %d alerts, got %d (%v)", len(want), len(*detected), *detected)
	}
	for i, id := range want {
		if (*detected)[i] != id {
			t.Errorf("alert %d: expected order %d, got %d", i, id, (*detected)[i])
		}
	}
}

func TestNilLatestOrderFiresNothing(t *testing.T) {
	source := &summarySourceEmulator{script: []func() (*backend.PendingOrdersSnapshot, error){
		emptySnapshot(),
		emptySnapshot(),
	}}
	d, detected := newTestDetector(t, source)

	d.pollOnce(context.Background())
	d.pollOnce(context.Background())

	if len(*detected) != 0 {
		t.Errorf("empty snapshots fired %d alerts", len(*detected))
	}
	state, _ := d.Status()
	if state != StateIdle {
		t.Errorf("detector left idle state without a latest order, state=%q", state)
	}
}

func TestTransportFailureKeepsState(t *testing.T) {
	source := &summarySourceEmulator{script: []func() (*backend.PendingOrdersSnapshot, error){
		snapshot(1, 10),
		snapshot(2, 11),
		transportError(),
		snapshot(2, 11),
		snapshot(3, 12),
	}}
	d, detected := newTestDetector(t, source)

	for i := 0; i < len(source.script); i++ {
		d.pollOnce(context.Background())
	}

	// Poll 2 alerts for 11; poll 3 fails silently; poll 4 repeats 11 with
	// no new alert; poll 5 alerts for 12.
	want := []int64{11, 12}
	if len(*detected) != len(want) {
		t.Fatalf("expected %d alerts, got %d (%v)", len(want), len(*detected), *detected)
	}
	_, baseline := d.Status()
	if baseline != 12 {
		t.Errorf("expected baseline 12 after recovery, got %d", baseline)
	}
}

func TestFailureBeforeBaselineStaysIdle(t *testing.T) {
	source := &summarySourceEmulator{script: []func() (*backend.PendingOrdersSnapshot, error){
		transportError(),
		snapshot(1, 20),
	}}
	d, detected := newTestDetector(t, source)

	d.pollOnce(context.Background())
	state, _ := d.Status()
	if state != StateIdle {
		t.Fatalf("failed poll must not change state, got %q", state)
	}

	// The first successful poll still counts as first load: no alert.
	d.pollOnce(context.Background())
	if len(*detected) != 0 {
		t.Errorf("baseline poll fired %d alerts", len(*detected))
	}
}

func TestStartStop(t *testing.T) {
	source := &summarySourceEmulator{script: []func() (*backend.PendingOrdersSnapshot, error){
		snapshot(1, 10),
	}}
	log := logger.New(logger.Config{Level: slog.LevelError})
	d := New(source, 10*time.Millisecond, nil, log)

	d.Start(context.Background())
	// Double start is ignored.
	d.Start(context.Background())

	deadline := time.Now().Add(time.Second)
	for d.PollCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if d.PollCount() == 0 {
		t.Fatal("detector never polled")
	}

	d.Stop()
	// Stop after stop is a no-op.
	d.Stop()
}
