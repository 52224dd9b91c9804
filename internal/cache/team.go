package cache

import (
	"context"
	"time"

	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/store"
)

// teamNamespace is the current versioned KV namespace for team
// classifications. Bumping the version is the only supported way to
// invalidate all entries after a classification-logic change.
const teamNamespace = "team_classification_v3"

// priorTeamNamespaces lists every namespace a previous classification
// version wrote to, so stale data can be purged on upgrade.
var priorTeamNamespaces = []string{
	"team_classification",
	"team_classification_v1",
	"team_classification_v2",
}

// TeamCache caches team/draft disambiguation results per event id on a
// long TTL. Items expire independently so one slow-to-reclassify
// notification does not invalidate the rest.
type TeamCache struct {
	kv    store.KV
	items *ItemTTL[model.TeamInfo]
}

// NewTeamCache creates a team-classification cache over the KV store.
func NewTeamCache(kv store.KV, ttl time.Duration) *TeamCache {
	return &TeamCache{
		kv:    kv,
		items: NewItemTTL[model.TeamInfo](kv, teamNamespace, ttl),
	}
}

// SetClock overrides the cache's time source for tests.
func (c *TeamCache) SetClock(now func() time.Time) {
	c.items.SetClock(now)
}

// Get returns the cached TeamInfo for an event id, or ok=false on a miss.
func (c *TeamCache) Get(
	ctx context.Context,
	eventID string,
) (model.TeamInfo, bool, error) {
	return c.items.Get(ctx, eventID)
}

// Set records the TeamInfo for an event id.
func (c *TeamCache) Set(
	ctx context.Context,
	eventID string,
	info model.TeamInfo,
) error {
	return c.items.Set(ctx, eventID, info)
}

// Clear discards every entry in the current namespace.
func (c *TeamCache) Clear(ctx context.Context) error {
	return c.items.Clear(ctx)
}

// PurgePriorVersions bulk-clears every known prior namespace version.
func (c *TeamCache) PurgePriorVersions(ctx context.Context) error {
	for _, ns := range priorTeamNamespaces {
		if err := c.kv.Clear(ctx, ns); err != nil {
			return err
		}
	}
	return nil
}
