package capability

import (
	"context"
	"encoding/json"
	"fmt"
)

// Transport delivers a capability request to the connected admin session and
// returns the session's reply payload. The display feed's websocket hub is
// the production implementation.
type Transport interface {
	Request(ctx context.Context, kind string, payload interface{}) (json.RawMessage, error)
}

// Request kinds understood by the admin session.
const (
	KindPermissionStatus   = "permission.status"
	KindPermissionRequest  = "permission.request"
	KindServiceWorkerReady = "push.service_worker_ready"
	KindGetSubscription    = "push.get_subscription"
	KindSubscribe          = "push.subscribe"
	KindInstallPrompt      = "install.prompt"
)

// SessionCapabilities routes the browser-held capabilities (permissions,
// push manager, install prompt) through the connected session.
type SessionCapabilities struct {
	transport Transport
}

// NewSessionCapabilities creates the session-backed capability adapter.
func NewSessionCapabilities(transport Transport) *SessionCapabilities {
	return &SessionCapabilities{transport: transport}
}

type permissionReply struct {
	State PermissionState `json:"state"`
}

func (s *SessionCapabilities) PermissionStatus(ctx context.Context) (PermissionState, error) {
	return s.permission(ctx, KindPermissionStatus)
}

func (s *SessionCapabilities) RequestNotificationPermission(ctx context.Context) (PermissionState, error) {
	return s.permission(ctx, KindPermissionRequest)
}

func (s *SessionCapabilities) permission(ctx context.Context, kind string) (PermissionState, error) {
	raw, err := s.transport.Request(ctx, kind, nil)
	if err != nil {
		return "", fmt.Errorf("permission request failed: %w", err)
	}

	var reply permissionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("invalid permission reply: %w", err)
	}

	switch reply.State {
	case PermissionGranted, PermissionDenied, PermissionDefault:
		return reply.State, nil
	default:
		return "", fmt.Errorf("unknown permission state %q", reply.State)
	}
}

func (s *SessionCapabilities) ServiceWorkerReady(ctx context.Context) error {
	var reply struct {
		Ready bool `json:"ready"`
	}

	raw, err := s.transport.Request(ctx, KindServiceWorkerReady, nil)
	if err != nil {
		return fmt.Errorf("service worker readiness check failed: %w", err)
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return fmt.Errorf("invalid readiness reply: %w", err)
	}
	if !reply.Ready {
		return fmt.Errorf("no service worker available")
	}
	return nil
}

type subscriptionReply struct {
	Subscription *Subscription `json:"subscription"`
}

func (s *SessionCapabilities) Subscription(ctx context.Context) (*Subscription, error) {
	raw, err := s.transport.Request(ctx, KindGetSubscription, nil)
	if err != nil {
		return nil, fmt.Errorf("subscription lookup failed: %w", err)
	}

	var reply subscriptionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("invalid subscription reply: %w", err)
	}
	return reply.Subscription, nil
}

func (s *SessionCapabilities) Subscribe(ctx context.Context, publicKey string) (*Subscription, error) {
	payload := map[string]string{"public_key": publicKey}

	raw, err := s.transport.Request(ctx, KindSubscribe, payload)
	if err != nil {
		return nil, fmt.Errorf("subscribe failed: %w", err)
	}

	var reply subscriptionReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("invalid subscribe reply: %w", err)
	}
	if reply.Subscription == nil {
		return nil, fmt.Errorf("subscribe returned no subscription")
	}
	return reply.Subscription, nil
}

type installReply struct {
	Choice InstallChoice `json:"choice"`
}

func (s *SessionCapabilities) Prompt(ctx context.Context) (InstallChoice, error) {
	raw, err := s.transport.Request(ctx, KindInstallPrompt, nil)
	if err != nil {
		return "", fmt.Errorf("install prompt failed: %w", err)
	}

	var reply installReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("invalid install reply: %w", err)
	}

	switch reply.Choice {
	case InstallAccepted, InstallDismissed:
		return reply.Choice, nil
	default:
		return "", fmt.Errorf("unknown install choice %q", reply.Choice)
	}
}
