// Package cache provides TTL-bounded views over the persistent KV
// store. A read either returns a value written within its TTL or
// behaves as a miss; stale entries are evicted lazily on access, never
// served.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/gh-triage/internal/store"
)

// TTL is a generic cache over one KV namespace. Values are stored as
// JSON; the write timestamp lives in the store entry.
type TTL[T any] struct {
	kv  store.KV
	ns  string
	ttl time.Duration
	now func() time.Time
}

// NewTTL creates a TTL cache over the given namespace.
func NewTTL[T any](kv store.KV, namespace string, ttl time.Duration) *TTL[T] {
	return &TTL[T]{
		kv:  kv,
		ns:  namespace,
		ttl: ttl,
		now: time.Now,
	}
}

// SetClock overrides the cache's time source for tests.
func (c *TTL[T]) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the cached value for key, or ok=false if the entry is
// absent or older than the TTL. Expired entries are evicted on read.
func (c *TTL[T]) Get(ctx context.Context, key string) (T, bool, error) {
	var zero T

	entry, ok, err := c.kv.Get(ctx, c.ns, key)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		return zero, false, nil
	}

	if c.now().Sub(entry.WrittenAt) >= c.ttl {
		// Lazy eviction; a failed delete still reads as a miss.
		_ = c.kv.Remove(ctx, c.ns, key)
		return zero, false, nil
	}

	var value T
	if err := json.Unmarshal(entry.Data, &value); err != nil {
		return zero, false, fmt.Errorf(
			"decoding cache entry %s/%s: %w", c.ns, key, err,
		)
	}
	return value, true, nil
}

// Set writes the value for key, stamping the current time.
func (c *TTL[T]) Set(ctx context.Context, key string, value T) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding cache entry %s/%s: %w", c.ns, key, err)
	}
	return c.kv.Set(ctx, c.ns, key, data)
}

// Remove deletes a single entry.
func (c *TTL[T]) Remove(ctx context.Context, key string) error {
	return c.kv.Remove(ctx, c.ns, key)
}

// Clear deletes every entry in the cache's namespace.
func (c *TTL[T]) Clear(ctx context.Context) error {
	return c.kv.Clear(ctx, c.ns)
}
