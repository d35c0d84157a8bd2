package onboarding

import (
	"context"
	"log/slog"
	"testing"

	"github.com/tidyhost/engage/internal/capability"
	"github.com/tidyhost/engage/internal/logger"
)

// memStore is an in-memory store for tests.
type memStore struct {
	data map[string]string
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, ok := s.data[key]
	return value, ok, nil
}

func (s *memStore) Set(ctx context.Context, key, value string) error {
	s.data[key] = value
	return nil
}

type installPrompterEmulator struct {
	calls  int
	choice capability.InstallChoice
	err    error
}

func (p *installPrompterEmulator) Prompt(ctx context.Context) (capability.InstallChoice, error) {
	p.calls++
	return p.choice, p.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: slog.LevelError})
}

func TestClassify(t *testing.T) {
	cases := []struct {
		ua   string
		want Platform
	}{
		{"Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Mobile Safari/537.36", PlatformAndroidChrome},
		{"Mozilla/5.0 (Android 14; Mobile; rv:120.0) Gecko/120.0 Firefox/120.0", PlatformUnknown},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1", PlatformIOSSafari},
		{"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) CriOS/120.0 Mobile/15E148 Safari/604.1", PlatformUnknown},
		{"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36", PlatformDesktop},
		{"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Safari/605.1.15", PlatformDesktop},
		{"", PlatformUnknown},
	}

	for _, tc := range cases {
		if got := Classify(tc.ua); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.ua, got, tc.want)
		}
	}
}

func newInstallMachine(t *testing.T, st *memStore, prompter capability.InstallPrompter) *InstallMachine {
	t.Helper()
	m, err := NewInstallMachine(context.Background(), st, prompter, testLogger())
	if err != nil {
		t.Fatalf("NewInstallMachine: %v", err)
	}
	return m
}

func TestInstallBannerRequiresAllSignals(t *testing.T) {
	m := newInstallMachine(t, newMemStore(), &installPrompterEmulator{})

	banners := 0
	m.SetOnBanner(func() { banners++ })

	// Capture on an unsupported platform: no banner.
	m.StartSession(PlatformDesktop)
	m.HandleCapture()
	if banners != 0 || m.State() != InstallIneligible {
		t.Fatalf("desktop capture showed banner, state=%s", m.State())
	}

	// Supported platform but no capture token yet: no banner.
	m.StartSession(PlatformAndroidChrome)
	if banners != 0 {
		t.Fatal("banner shown without a capture token")
	}

	// Token arrives: banner shows automatically, exactly once.
	m.HandleCapture()
	if banners != 1 {
		t.Fatalf("expected 1 banner, got %d", banners)
	}
	if m.State() != InstallBannerShown {
		t.Fatalf("expected banner_shown, got %s", m.State())
	}

	// Redundant captures while shown do not re-fire.
	m.HandleCapture()
	if banners != 1 {
		t.Errorf("repeat capture re-showed the banner")
	}
}

func TestInstallRequestConsumesToken(t *testing.T) {
	prompter := &installPrompterEmulator{choice: capability.InstallDismissed}
	m := newInstallMachine(t, newMemStore(), prompter)

	m.StartSession(PlatformAndroidChrome)
	m.HandleCapture()

	choice, err := m.RequestInstall(context.Background())
	if err != nil {
		t.Fatalf("RequestInstall: %v", err)
	}
	// The machine resolves regardless of the browser's choice.
	if choice != capability.InstallDismissed {
		t.Errorf("unexpected choice %q", choice)
	}
	if m.State() != InstallResolved {
		t.Errorf("expected resolved, got %s", m.State())
	}

	// The consumed token cannot be reused.
	if _, err := m.RequestInstall(context.Background()); err == nil {
		t.Error("second RequestInstall should fail")
	}
	if prompter.calls != 1 {
		t.Errorf("expected 1 prompt, got %d", prompter.calls)
	}
}

func TestInstallDismissResolves(t *testing.T) {
	m := newInstallMachine(t, newMemStore(), &installPrompterEmulator{})

	m.StartSession(PlatformAndroidChrome)
	m.HandleCapture()
	m.DismissBanner()

	if m.State() != InstallResolved {
		t.Fatalf("expected resolved, got %s", m.State())
	}

	// A new session with a fresh token is eligible again.
	banners := 0
	m.SetOnBanner(func() { banners++ })
	m.StartSession(PlatformAndroidChrome)
	m.HandleCapture()
	if banners != 1 {
		t.Errorf("fresh session with new token should re-show banner")
	}
}

func TestInstalledMarkerSuppressesAcrossSessions(t *testing.T) {
	st := newMemStore()
	m := newInstallMachine(t, st, &installPrompterEmulator{})

	m.StartSession(PlatformAndroidChrome)
	m.HandleCapture()
	if err := m.HandleInstalled(context.Background()); err != nil {
		t.Fatalf("HandleInstalled: %v", err)
	}
	if m.State() != InstallInstalled {
		t.Fatalf("expected installed, got %s", m.State())
	}

	// Simulate a fresh session load from the same store.
	restarted := newInstallMachine(t, st, &installPrompterEmulator{})
	if !restarted.Installed() {
		t.Fatal("installed marker did not survive restart")
	}

	banners := 0
	restarted.SetOnBanner(func() { banners++ })
	restarted.StartSession(PlatformAndroidChrome)
	restarted.HandleCapture()
	if banners != 0 {
		t.Error("banner shown after app already installed")
	}
}
