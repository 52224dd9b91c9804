package cache

import (
	"context"
	"time"

	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/store"
)

const (
	userTeamsNamespace = "user_teams"
	userTeamsKey       = "me"
)

// UserTeamsCache caches the caller's team memberships on a medium TTL.
type UserTeamsCache struct {
	ttl *TTL[[]model.Team]
}

// NewUserTeamsCache creates a user-teams cache over the KV store.
func NewUserTeamsCache(kv store.KV, ttl time.Duration) *UserTeamsCache {
	return &UserTeamsCache{ttl: NewTTL[[]model.Team](kv, userTeamsNamespace, ttl)}
}

// SetClock overrides the cache's time source for tests.
func (c *UserTeamsCache) SetClock(now func() time.Time) {
	c.ttl.SetClock(now)
}

// Get returns the cached team memberships, or ok=false on a miss.
func (c *UserTeamsCache) Get(ctx context.Context) ([]model.Team, bool, error) {
	return c.ttl.Get(ctx, userTeamsKey)
}

// Set records the caller's team memberships.
func (c *UserTeamsCache) Set(ctx context.Context, teams []model.Team) error {
	return c.ttl.Set(ctx, userTeamsKey, teams)
}

// Clear discards the cached memberships.
func (c *UserTeamsCache) Clear(ctx context.Context) error {
	return c.ttl.Clear(ctx)
}
