package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/gh-triage/internal/store"
)

// itemEntry wraps one collection member with its own write timestamp.
type itemEntry[T any] struct {
	Value     T         `json:"value"`
	WrittenAt time.Time `json:"writtenAt"`
}

// ItemTTL is a cache holding one collection in a single KV slot where
// each item expires independently. Individually written items age out
// without invalidating the whole collection; writes opportunistically
// prune expired siblings.
type ItemTTL[T any] struct {
	kv  store.KV
	ns  string
	key string
	ttl time.Duration
	now func() time.Time
}

// NewItemTTL creates a per-item TTL cache in the given namespace. The
// whole collection lives under a single well-known key.
func NewItemTTL[T any](kv store.KV, namespace string, ttl time.Duration) *ItemTTL[T] {
	return &ItemTTL[T]{
		kv:  kv,
		ns:  namespace,
		key: "entries",
		ttl: ttl,
		now: time.Now,
	}
}

// SetClock overrides the cache's time source for tests.
func (c *ItemTTL[T]) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the item stored under id, or ok=false if it is absent or
// older than the TTL.
func (c *ItemTTL[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T

	items, err := c.load(ctx)
	if err != nil {
		return zero, false, err
	}

	entry, ok := items[id]
	if !ok {
		return zero, false, nil
	}
	if c.now().Sub(entry.WrittenAt) >= c.ttl {
		return zero, false, nil
	}
	return entry.Value, true, nil
}

// Set writes the item under id with its own timestamp and prunes any
// expired siblings in the same pass.
func (c *ItemTTL[T]) Set(ctx context.Context, id string, value T) error {
	items, err := c.load(ctx)
	if err != nil {
		return err
	}

	now := c.now()
	for sibling, entry := range items {
		if now.Sub(entry.WrittenAt) >= c.ttl {
			delete(items, sibling)
		}
	}
	items[id] = itemEntry[T]{Value: value, WrittenAt: now}

	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding cache collection %s: %w", c.ns, err)
	}
	return c.kv.Set(ctx, c.ns, c.key, data)
}

// Clear deletes the whole collection.
func (c *ItemTTL[T]) Clear(ctx context.Context) error {
	return c.kv.Clear(ctx, c.ns)
}

// load reads the collection slot, tolerating an absent or corrupt one.
func (c *ItemTTL[T]) load(ctx context.Context) (map[string]itemEntry[T], error) {
	entry, ok, err := c.kv.Get(ctx, c.ns, c.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return make(map[string]itemEntry[T]), nil
	}

	items := make(map[string]itemEntry[T])
	if err := json.Unmarshal(entry.Data, &items); err != nil {
		// A corrupt collection is discarded rather than failing every
		// subsequent classification pass.
		return make(map[string]itemEntry[T]), nil
	}
	return items, nil
}
