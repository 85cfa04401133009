// Package localstore is the device-local persistence port. The offline
// queue, scan history snapshot, cooldown snapshot and sync summary are all
// JSON blobs stored under well-known keys; readers ignore unknown fields
// so the layout can grow without migrations.
package localstore

import (
	"context"
	"errors"
)

// Keys under which scanner state is persisted.
const (
	KeyOfflineQueue = "scan:queue"
	KeyHistory      = "scan:history"
	KeyCooldowns    = "scan:cooldowns"
	KeySyncSummary  = "scan:sync"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("localstore: key not found")

// Store is a minimal key/value port over the device's local storage. All
// values are opaque JSON. Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
