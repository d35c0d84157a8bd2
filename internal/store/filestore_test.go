package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if _, ok, err := s.Get(ctx, "onboarding/push-subscription"); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := s.Set(ctx, "onboarding/push-subscription", "completed"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, ok, err := s.Get(ctx, "onboarding/push-subscription")
	if err != nil || !ok {
		t.Fatalf("Get after Set: ok=%v err=%v", ok, err)
	}
	if value != "completed" {
		t.Errorf("expected %q, got %q", "completed", value)
	}
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set(ctx, "onboarding/install-prompt", "completed"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "onboarding/push-subscription", "denied"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Simulate a fresh session load.
	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	for key, want := range map[string]string{
		"onboarding/install-prompt":    "completed",
		"onboarding/push-subscription": "denied",
	} {
		value, ok, err := reopened.Get(ctx, key)
		if err != nil || !ok {
			t.Fatalf("Get(%s) after reopen: ok=%v err=%v", key, ok, err)
		}
		if value != want {
			t.Errorf("key %s: expected %q, got %q", key, want, value)
		}
	}
}

func TestFileStoreOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	ctx := context.Background()

	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	if err := s.Set(ctx, "k", "idle"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "k", "denied"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	value, _, _ := s.Get(ctx, "k")
	if value != "denied" {
		t.Errorf("last write should win, got %q", value)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := writeFile(path, "{not json"); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileStore(path); err == nil {
		t.Error("expected error opening corrupt state file")
	}
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}
