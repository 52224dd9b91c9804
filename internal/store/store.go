package store

import (
	"context"
	"time"
)

// Entry is one stored value with its write timestamp. Validity against
// a TTL is the caller's concern; the store only records when the value
// was written.
type Entry struct {
	Data      []byte
	WrittenAt time.Time
}

// KV is a namespaced persistent key-value store. Each cache in the
// system owns one namespace and holds {data, writtenAt} slots in it.
type KV interface {
	// Get returns the entry for key within namespace, or ok=false if
	// no entry exists.
	Get(ctx context.Context, namespace, key string) (Entry, bool, error)

	// Set writes the entry for key within namespace, stamping the
	// current time.
	Set(ctx context.Context, namespace, key string, data []byte) error

	// Remove deletes a single entry. Removing a missing entry is not
	// an error.
	Remove(ctx context.Context, namespace, key string) error

	// Clear deletes every entry in a namespace.
	Clear(ctx context.Context, namespace string) error
}
