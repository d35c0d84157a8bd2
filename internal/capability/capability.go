// Package capability defines the ports through which the engine touches
// platform features: audio playback, speech synthesis, notification
// permissions, push subscriptions, and the install prompt.
//
// Every port reports success or failure through an explicit error return and
// never panics across the boundary. Implementations may be swapped without
// touching the components that call them.
package capability

import (
	"context"
)

// PermissionState is the outcome of a notification-permission query or prompt.
type PermissionState string

const (
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	// PermissionDefault is the platform's neutral "not yet decided" value.
	PermissionDefault PermissionState = "default"
)

// InstallChoice is the user's response to a native install prompt.
type InstallChoice string

const (
	InstallAccepted  InstallChoice = "accepted"
	InstallDismissed InstallChoice = "dismissed"
)

// Subscription is an active push subscription as reported by the platform.
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys holds the client key material of a push subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// AudioPlayer plays the new-order alert cue.
type AudioPlayer interface {
	PlayAlert(ctx context.Context) error
	Available() bool
}

// Speaker performs text-to-speech announcements.
type Speaker interface {
	Speak(ctx context.Context, text, locale string) error
	Available() bool
}

// PermissionPrompter queries and requests notification permission.
type PermissionPrompter interface {
	// PermissionStatus returns the current permission without prompting.
	PermissionStatus(ctx context.Context) (PermissionState, error)
	// RequestNotificationPermission shows the permission prompt and returns
	// the user's decision.
	RequestNotificationPermission(ctx context.Context) (PermissionState, error)
}

// PushManager wraps the platform's push-subscription surface.
type PushManager interface {
	// ServiceWorkerReady blocks until the platform's worker is ready to
	// receive pushes, or fails if there is none.
	ServiceWorkerReady(ctx context.Context) error
	// Subscription returns the existing subscription, or nil when absent.
	Subscription(ctx context.Context) (*Subscription, error)
	// Subscribe creates a new subscription using the given public key.
	Subscribe(ctx context.Context, publicKey string) (*Subscription, error)
}

// InstallPrompter shows the native "install this app" prompt. The prompt is
// backed by a single-use capture token held by the onboarding machine; the
// prompter only performs the platform interaction.
type InstallPrompter interface {
	Prompt(ctx context.Context) (InstallChoice, error)
}
