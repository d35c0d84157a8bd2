// Package onboarding holds the cross-session machines that gate the
// "install this app" banner and the push-notification prompt so each fires
// at most once per meaningful milestone and survives reloads.
package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tidyhost/engage/internal/capability"
	"github.com/tidyhost/engage/internal/logger"
	"github.com/tidyhost/engage/internal/store"
)

// InstallState is the install-prompt machine's state.
type InstallState string

const (
	InstallIneligible  InstallState = "ineligible"
	InstallEligible    InstallState = "eligible"
	InstallBannerShown InstallState = "banner_shown"
	InstallResolved    InstallState = "resolved"
	// InstallInstalled is the persisted terminal marker: the app is
	// installed and the banner is suppressed in every future session.
	InstallInstalled InstallState = "installed"
)

// InstallStateKey is the persistence key of the install-prompt machine.
const InstallStateKey = "onboarding/install-prompt"

const (
	recordIdle      = "idle"
	recordCompleted = "completed"
	recordDenied    = "denied"
)

// InstallMachine gates the install banner. Eligibility needs three signals:
// an unconsumed capture token from the platform, the android-chrome
// classification, and the app not already installed.
type InstallMachine struct {
	mu       sync.Mutex
	state    InstallState
	platform Platform
	captured bool

	store    store.Store
	prompter capability.InstallPrompter
	logger   *logger.Logger
	onBanner func()
}

// NewInstallMachine loads the persisted record and builds the machine.
func NewInstallMachine(ctx context.Context, st store.Store, prompter capability.InstallPrompter, log *logger.Logger) (*InstallMachine, error) {
	m := &InstallMachine{
		state:    InstallIneligible,
		platform: PlatformUnknown,
		store:    st,
		prompter: prompter,
		logger:   log.WithComponent("install_machine"),
	}

	record, ok, err := st.Get(ctx, InstallStateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to load install state: %w", err)
	}
	if ok && record == recordCompleted {
		m.state = InstallInstalled
	}

	return m, nil
}

// SetOnBanner registers the callback fired when the banner becomes visible.
func (m *InstallMachine) SetOnBanner(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onBanner = fn
}

// StartSession records the session's platform classification and resets the
// per-session machine state. The installed marker is durable and survives.
func (m *InstallMachine) StartSession(platform Platform) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.platform = platform
	m.captured = false
	if m.state != InstallInstalled {
		m.state = InstallIneligible
	}

	m.logger.Debug("session started",
		slog.String("platform", string(platform)),
		slog.String("state", string(m.state)))
}

// HandleCapture records a fresh install-prompt capture token from the
// platform and rechecks eligibility.
func (m *InstallMachine) HandleCapture() {
	m.mu.Lock()
	m.captured = true
	banner := m.evaluateLocked()
	m.mu.Unlock()

	if banner != nil {
		banner()
	}
}

// evaluateLocked promotes Ineligible to BannerShown when all eligibility
// signals hold. The Eligible state is passed through automatically; no user
// action is needed to show the banner the first time.
func (m *InstallMachine) evaluateLocked() func() {
	if m.state != InstallIneligible {
		return nil
	}
	if !m.captured || m.platform != PlatformAndroidChrome {
		return nil
	}

	m.state = InstallEligible
	m.state = InstallBannerShown
	m.logger.Info("install banner shown",
		slog.String("platform", string(m.platform)))
	return m.onBanner
}

// RequestInstall consumes the capture token and shows the native prompt.
// The machine resolves regardless of the user's accept/dismiss choice; a
// later recheck needs a fresh token.
func (m *InstallMachine) RequestInstall(ctx context.Context) (capability.InstallChoice, error) {
	m.mu.Lock()
	if m.state != InstallBannerShown {
		state := m.state
		m.mu.Unlock()
		return "", fmt.Errorf("install prompt not available in state %s", state)
	}
	m.captured = false
	m.state = InstallResolved
	m.mu.Unlock()

	choice, err := m.prompter.Prompt(ctx)
	if err != nil {
		m.logger.Warn("install prompt failed",
			slog.String("error", err.Error()))
		return "", err
	}

	m.logger.Info("install prompt resolved",
		slog.String("choice", string(choice)))
	return choice, nil
}

// DismissBanner resolves the banner on explicit user dismissal.
func (m *InstallMachine) DismissBanner() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != InstallBannerShown {
		return
	}
	m.captured = false
	m.state = InstallResolved
	m.logger.Info("install banner dismissed")
}

// HandleInstalled processes the externally observed "app installed"
// milestone. Any state is forced to the terminal installed marker, which is
// persisted so no future session shows the banner.
func (m *InstallMachine) HandleInstalled(ctx context.Context) error {
	m.mu.Lock()
	m.state = InstallInstalled
	m.captured = false
	m.mu.Unlock()

	if err := m.store.Set(ctx, InstallStateKey, recordCompleted); err != nil {
		return fmt.Errorf("failed to persist installed marker: %w", err)
	}

	m.logger.Info("app installed, banner permanently suppressed")
	return nil
}

// State returns the machine's current state.
func (m *InstallMachine) State() InstallState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Installed reports whether the installed marker is set.
func (m *InstallMachine) Installed() bool {
	return m.State() == InstallInstalled
}
