// Package store provides the durable key-value persistence behind the
// onboarding state machines. Two keys exist, one per machine; each is read
// once at startup and written on every state transition.
package store

import "context"

// Store is the persistence port. Implementations must make Set durable
// before returning; a session's writes are never concurrent, so last write
// wins is sufficient.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set durably writes the value for key.
	Set(ctx context.Context, key, value string) error
}
