package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tidyhost/engage/internal/capability"
	"github.com/tidyhost/engage/internal/clock"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/metrics"
	"github.com/tidyhost/engage/internal/store"
)

// PushState is the push-subscription machine's state.
type PushState string

const (
	PushIdle            PushState = "idle"
	PushPromptScheduled PushState = "prompt_scheduled"
	PushPromptShown     PushState = "prompt_shown"
	// PushCompleted and PushDenied are terminal and persisted; a returning
	// session with either never re-shows the prompt.
	PushCompleted PushState = "completed"
	PushDenied    PushState = "denied"
)

// PushStateKey is the persistence key of the push-subscription machine.
const PushStateKey = "onboarding/push-subscription"

// promptDelay keeps the push prompt from overlapping install-success UI.
const promptDelay = 2200 * time.Millisecond

// KeySource provides the server's push public key.
type KeySource interface {
	PushPublicKey(ctx context.Context) (string, error)
}

// Registrar registers a subscription with the backend.
type Registrar interface {
	RegisterPushSubscription(ctx context.Context, sub *capability.Subscription) error
}

// PushMachine gates the push-notification prompt behind the app-installed
// milestone and drives the subscription flow when the user accepts.
type PushMachine struct {
	mu    sync.Mutex
	state PushState
	timer clock.Handle

	store            store.Store
	sched            clock.Scheduler
	permissions      capability.PermissionPrompter
	push             capability.PushManager
	keys             KeySource
	registrar        Registrar
	defaultPublicKey string
	logger           *logger.Logger
	onPrompt         func()
}

// NewPushMachine loads the persisted record and builds the machine.
func NewPushMachine(
	ctx context.Context,
	st store.Store,
	sched clock.Scheduler,
	permissions capability.PermissionPrompter,
	push capability.PushManager,
	keys KeySource,
	registrar Registrar,
	defaultPublicKey string,
	log *logger.Logger,
) (*PushMachine, error) {
	m := &PushMachine{
		state:            PushIdle,
		store:            st,
		sched:            sched,
		permissions:      permissions,
		push:             push,
		keys:             keys,
		registrar:        registrar,
		defaultPublicKey: defaultPublicKey,
		logger:           log.WithComponent("push_machine"),
	}

	record, ok, err := st.Get(ctx, PushStateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load push state: %w", err)
	}
	if ok {
		switch record {
		case recordCompleted:
			m.state = PushCompleted
		case recordDenied:
			m.state = PushDenied
		}
	}

	return m, nil
}

// SetOnPrompt registers the callback fired when the prompt becomes visible.
func (m *PushMachine) SetOnPrompt(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPrompt = fn
}

// HandleAppInstalled processes the app-installed milestone. The prompt is
// scheduled only when the machine is still Idle and the platform's
// permission status is the neutral "not yet decided" value.
func (m *PushMachine) HandleAppInstalled(ctx context.Context) {
	m.mu.Lock()
	if m.state != PushIdle {
		state := m.state
		m.mu.Unlock()
		m.logger.Debug("install milestone ignored",
			slog.String("state", string(state)))
		return
	}
	m.mu.Unlock()

	status, err := m.permissions.PermissionStatus(ctx)
	if err != nil {
		m.logger.Warn("permission status check failed",
			slog.String("error", err.Error()))
		return
	}
	if status != capability.PermissionDefault {
		m.logger.Info("push prompt skipped, permission already decided",
			slog.String("status", string(status)))
		return
	}

	m.mu.Lock()
	if m.state != PushIdle {
		m.mu.Unlock()
		return
	}
	m.state = PushPromptScheduled
	m.timer = m.sched.Schedule(promptDelay, m.showPrompt)
	m.mu.Unlock()

	m.persist(ctx)
	m.logger.Info("push prompt scheduled",
		slog.Duration("delay", promptDelay))
}

func (m *PushMachine) showPrompt() {
	m.mu.Lock()
	if m.state != PushPromptScheduled {
		m.mu.Unlock()
		return
	}
	m.state = PushPromptShown
	m.timer = nil
	onPrompt := m.onPrompt
	m.mu.Unlock()

	m.logger.Info("push prompt shown")
	if onPrompt != nil {
		onPrompt()
	}
}

// Accept runs the subscription flow after the user accepts the prompt:
// permission, service worker readiness, public key, idempotent subscribe,
// backend registration. Any failure is terminal.
func (m *PushMachine) Accept(ctx context.Context) error {
	m.mu.Lock()
	if m.state != PushPromptShown {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("push prompt not shown (state %s)", state)
	}
	m.mu.Unlock()

	if err := m.subscribe(ctx); err != nil {
		m.deny(ctx, err)
		return err
	}

	// The subscription flow runs unlocked; a dismissal that landed in the
	// meantime already persisted Denied and must not be overwritten.
	m.mu.Lock()
	if m.state != PushPromptShown {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("push prompt resolved during subscription (state %s)", state)
	}
	m.state = PushCompleted
	m.mu.Unlock()
	m.persist(ctx)

	metrics.PushSubscriptionsTotal.Inc()
	m.logger.Info("push subscription completed")
	return nil
}

func (m *PushMachine) subscribe(ctx context.Context) error {
	perm, err := m.permissions.RequestNotificationPermission(ctx)
	if err != nil {
		return fmt.Errorf("permission request failed: %w", err)
	}
	if perm != capability.PermissionGranted {
		return fmt.Errorf("notification permission %s", perm)
	}

	if err := m.push.ServiceWorkerReady(ctx); err != nil {
		return fmt.Errorf("service worker not ready: %w", err)
	}

	key, err := m.keys.PushPublicKey(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch push public key: %w", err)
	}
	if key == "" {
		key = m.defaultPublicKey
	}
	if key == "" {
		return fmt.Errorf("no push public key available")
	}

	// Reuse an existing subscription; only create one when absent.
	sub, err := m.push.Subscription(ctx)
	if err != nil {
		return fmt.Errorf("subscription lookup failed: %w", err)
	}
	if sub == nil {
		sub, err = m.push.Subscribe(ctx, key)
		if err != nil {
			return fmt.Errorf("subscribe failed: %w", err)
		}
	}

	if err := m.registrar.RegisterPushSubscription(ctx, sub); err != nil {
		return fmt.Errorf("backend registration failed: %w", err)
	}

	return nil
}

// Dismiss closes the prompt on explicit user dismissal. Like any other
// failure at this stage, the outcome is the terminal Denied record; there
// is no automatic path back to Idle.
func (m *PushMachine) Dismiss(ctx context.Context) {
	m.mu.Lock()
	if m.state != PushPromptShown {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()

	m.deny(ctx, fmt.Errorf("prompt dismissed"))
}

func (m *PushMachine) deny(ctx context.Context, cause error) {
	m.mu.Lock()
	m.state = PushDenied
	m.mu.Unlock()
	m.persist(ctx)

	m.logger.Info("push subscription denied",
		slog.String("cause", cause.Error()))
}

// Stop cancels a pending prompt timer on teardown.
func (m *PushMachine) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// State returns the machine's current state.
func (m *PushMachine) State() PushState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// persist writes the three-valued onboarding record for the current state.
func (m *PushMachine) persist(ctx context.Context) {
	record := recordIdle
	switch m.State() {
	case PushCompleted:
		record = recordCompleted
	case PushDenied:
		record = recordDenied
	}

	if err := m.store.Set(ctx, PushStateKey, record); err != nil {
		m.logger.Error("failed to persist push state",
			slog.String("record", record),
			slog.String("error", err.Error()))
	}
}
