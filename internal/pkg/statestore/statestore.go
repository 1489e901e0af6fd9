// Package statestore is the durable key-value state shared by every
// running folioview window of the same profile. It holds the last-known
// identity marker and the persisted recovery-setup records; it is never a
// source of authorization truth.
package statestore

import "context"

// Event notifies a change made to the store, possibly by another
// process. Value is the new value, empty when the key was removed.
type Event struct {
	Key   string
	Value string
}

// Store is the durable state contract. Watch delivers change events
// until the context is cancelled or the store is closed; a slow consumer
// may miss intermediate events but always observes the latest state via
// Get.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Watch(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Well-known keys.
const (
	IdentityMarkerKey = "folioview:last_identity"
	recoveryKeyPrefix = "folioview:recovery:"
)

// RecoveryKey derives the recovery-status record key for an identity.
func RecoveryKey(identity string) string {
	return recoveryKeyPrefix + identity
}
