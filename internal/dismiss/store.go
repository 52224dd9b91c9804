// Package dismiss persists which notification groups the user has
// dismissed or visited. Dismissals are durable; visits expire after a
// fixed window.
package dismiss

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nhle/gh-triage/internal/store"
)

const (
	dismissedNamespace = "dismissals"
	dismissedKey       = "groups"

	visitedNamespace = "visited"
	visitedKey       = "groups"

	// visitedWindow is how long a visit marker survives. Entries older
	// than this are pruned whenever the set is touched.
	visitedWindow = 7 * 24 * time.Hour
)

// Store tracks dismissed and visited group keys in the KV store.
type Store struct {
	kv  store.KV
	now func() time.Time
}

// New creates a dismissal store over the KV store.
func New(kv store.KV) *Store {
	return &Store{kv: kv, now: time.Now}
}

// SetClock overrides the store's time source for tests.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Dismiss idempotently adds a group key to the durable dismissed set
// and persists it immediately.
func (s *Store) Dismiss(ctx context.Context, groupKey string) error {
	keys, err := s.loadDismissed(ctx)
	if err != nil {
		return err
	}
	if _, ok := keys[groupKey]; ok {
		return nil
	}
	keys[groupKey] = struct{}{}
	return s.saveDismissed(ctx, keys)
}

// IsDismissed reports whether a group key has been dismissed.
func (s *Store) IsDismissed(ctx context.Context, groupKey string) (bool, error) {
	keys, err := s.loadDismissed(ctx)
	if err != nil {
		return false, err
	}
	_, ok := keys[groupKey]
	return ok, nil
}

// DismissedSet returns all dismissed group keys for O(1) lookup during
// a classification pass.
func (s *Store) DismissedSet(ctx context.Context) (map[string]struct{}, error) {
	return s.loadDismissed(ctx)
}

// ClearDismissed discards the entire dismissed set.
func (s *Store) ClearDismissed(ctx context.Context) error {
	return s.kv.Clear(ctx, dismissedNamespace)
}

// MarkVisited records that a group was opened, pruning entries older
// than the visited window in the same pass.
func (s *Store) MarkVisited(ctx context.Context, groupKey string) error {
	visits, err := s.loadVisited(ctx)
	if err != nil {
		return err
	}
	visits[groupKey] = s.now()
	return s.saveVisited(ctx, s.prune(visits))
}

// IsVisited reports whether a group was opened within the visited
// window. Stale entries found on read are pruned and persisted.
func (s *Store) IsVisited(ctx context.Context, groupKey string) (bool, error) {
	visits, err := s.loadVisited(ctx)
	if err != nil {
		return false, err
	}

	pruned := s.prune(visits)
	if len(pruned) != len(visits) {
		if err := s.saveVisited(ctx, pruned); err != nil {
			return false, err
		}
	}

	_, ok := pruned[groupKey]
	return ok, nil
}

// loadDismissed reads the dismissed set, applying the legacy migration
// rule: a collection containing bare numeric identifiers predates
// group-key dismissal and is discarded wholesale, since numeric event
// ids cannot be mapped back to group keys.
func (s *Store) loadDismissed(ctx context.Context) (map[string]struct{}, error) {
	entry, ok, err := s.kv.Get(ctx, dismissedNamespace, dismissedKey)
	if err != nil {
		return nil, fmt.Errorf("reading dismissed set: %w", err)
	}
	if !ok {
		return make(map[string]struct{}), nil
	}

	var raw []string
	if err := json.Unmarshal(entry.Data, &raw); err != nil {
		return make(map[string]struct{}), nil
	}

	for _, key := range raw {
		if isBareNumeric(key) {
			if err := s.kv.Remove(ctx, dismissedNamespace, dismissedKey); err != nil {
				return nil, fmt.Errorf("discarding legacy dismissed set: %w", err)
			}
			return make(map[string]struct{}), nil
		}
	}

	keys := make(map[string]struct{}, len(raw))
	for _, key := range raw {
		keys[key] = struct{}{}
	}
	return keys, nil
}

func (s *Store) saveDismissed(ctx context.Context, keys map[string]struct{}) error {
	raw := make([]string, 0, len(keys))
	for key := range keys {
		raw = append(raw, key)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("encoding dismissed set: %w", err)
	}
	if err := s.kv.Set(ctx, dismissedNamespace, dismissedKey, data); err != nil {
		return fmt.Errorf("writing dismissed set: %w", err)
	}
	return nil
}

func (s *Store) loadVisited(ctx context.Context) (map[string]time.Time, error) {
	entry, ok, err := s.kv.Get(ctx, visitedNamespace, visitedKey)
	if err != nil {
		return nil, fmt.Errorf("reading visited set: %w", err)
	}
	if !ok {
		return make(map[string]time.Time), nil
	}

	visits := make(map[string]time.Time)
	if err := json.Unmarshal(entry.Data, &visits); err != nil {
		return make(map[string]time.Time), nil
	}
	return visits, nil
}

func (s *Store) saveVisited(ctx context.Context, visits map[string]time.Time) error {
	data, err := json.Marshal(visits)
	if err != nil {
		return fmt.Errorf("encoding visited set: %w", err)
	}
	if err := s.kv.Set(ctx, visitedNamespace, visitedKey, data); err != nil {
		return fmt.Errorf("writing visited set: %w", err)
	}
	return nil
}

// prune returns visits filtered to those within the visited window.
func (s *Store) prune(visits map[string]time.Time) map[string]time.Time {
	kept := make(map[string]time.Time, len(visits))
	now := s.now()
	for key, at := range visits {
		if now.Sub(at) < visitedWindow {
			kept[key] = at
		}
	}
	return kept
}

// isBareNumeric reports whether a stored identifier is a legacy bare
// numeric event id rather than a "repo#url" group key.
func isBareNumeric(key string) bool {
	if key == "" {
		return false
	}
	for _, r := range key {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
