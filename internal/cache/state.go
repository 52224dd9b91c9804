package cache

import (
	"context"
	"time"

	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/store"
)

// stateNamespace is the KV namespace for subject lifecycle states.
const stateNamespace = "subject_states"

// StateCache caches the lifecycle state of each subject URL on a short
// TTL. Fetch failures are recorded as unknown (deleted on not-found) so
// repeated failures are not retried every cycle within the TTL window.
type StateCache struct {
	ttl *TTL[model.SubjectState]
}

// NewStateCache creates a state-resolution cache over the KV store.
func NewStateCache(kv store.KV, ttl time.Duration) *StateCache {
	return &StateCache{ttl: NewTTL[model.SubjectState](kv, stateNamespace, ttl)}
}

// SetClock overrides the cache's time source for tests.
func (c *StateCache) SetClock(now func() time.Time) {
	c.ttl.SetClock(now)
}

// Get returns the cached state for a subject URL, or ok=false on a miss.
func (c *StateCache) Get(
	ctx context.Context,
	subjectURL string,
) (model.SubjectState, bool, error) {
	return c.ttl.Get(ctx, subjectURL)
}

// Set records the state for a subject URL.
func (c *StateCache) Set(
	ctx context.Context,
	subjectURL string,
	state model.SubjectState,
) error {
	return c.ttl.Set(ctx, subjectURL, state)
}

// IsClosedOrMerged reports whether the subject should be hidden. An
// absent entry counts as hidden: the safe default is to hide rather
// than risk showing stale work.
func (c *StateCache) IsClosedOrMerged(
	ctx context.Context,
	subjectURL string,
) (bool, error) {
	state, ok, err := c.Get(ctx, subjectURL)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}
	return state.IsClosedOrMerged(), nil
}
