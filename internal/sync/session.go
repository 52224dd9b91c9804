package sync

import (
	"context"
	"log/slog"

	"github.com/nhle/gh-triage/internal/alert"
	"github.com/nhle/gh-triage/internal/cache"
	"github.com/nhle/gh-triage/internal/dismiss"
	"github.com/nhle/gh-triage/internal/ingest"
	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/pipeline"
	"github.com/nhle/gh-triage/internal/source"
	"github.com/nhle/gh-triage/internal/source/github"
	"github.com/nhle/gh-triage/internal/store"
)

// Session wires the stores, caches, pipeline, and refresher together
// for one authenticated run. Stores are constructed at session start,
// shared by reference, and torn down at logout; nothing is global.
type Session struct {
	client     source.Client
	states     *cache.StateCache
	teams      *cache.TeamCache
	userTeams  *cache.UserTeamsCache
	dismissals *dismiss.Store
	refresher  *Refresher
}

// NewSession builds a session over an already-open KV store. The
// invalidate callback runs when credentials fail and the grace period
// elapses; notifier receives alert requests.
func NewSession(
	cfg *model.AppConfig,
	kv store.KV,
	client source.Client,
	notifier alert.Notifier,
	invalidate func(),
	log *slog.Logger,
) *Session {
	if log == nil {
		log = slog.Default()
	}

	states := cache.NewStateCache(kv, cfg.SubjectStateTTL())
	teams := cache.NewTeamCache(kv, cfg.TeamInfoTTL())
	userTeams := cache.NewUserTeamsCache(kv, cfg.UserTeamsTTL())
	dismissals := dismiss.New(kv)

	controller := ingest.NewController(
		client, cfg.Source.PageSize, cfg.Source.MaxPages,
	)
	pipe := pipeline.New(client, states, teams, pipeline.Limits{
		StateFetches:    cfg.Limits.StateFetches,
		TeamResolutions: cfg.Limits.TeamResolutions,
	}, log)
	dispatcher := alert.NewDispatcher(notifier, func(s model.Subject) string {
		return github.WebURL(s.URL)
	}, log)

	refresher := NewRefresher(
		client, controller, pipe, dismissals, userTeams, dispatcher,
		Options{
			Interval:   cfg.PollInterval(),
			SinceDays:  cfg.Source.SinceDays,
			Invalidate: invalidate,
			Log:        log,
		},
	)

	return &Session{
		client:     client,
		states:     states,
		teams:      teams,
		userTeams:  userTeams,
		dismissals: dismissals,
		refresher:  refresher,
	}
}

// Start begins periodic refreshing.
func (s *Session) Start() {
	s.refresher.Start()
}

// Stop tears the session down: the timer is cancelled and in-flight
// results are discarded.
func (s *Session) Stop() {
	s.refresher.Stop()
}

// Refresh triggers an immediate full refresh.
func (s *Session) Refresh() {
	s.refresher.Refresh()
}

// LoadMore requests the next event page.
func (s *Session) LoadMore() {
	s.refresher.LoadMore()
}

// Results returns the refresh outcome channel.
func (s *Session) Results() <-chan RefreshResult {
	return s.refresher.Results()
}

// Dismiss durably hides a group and triggers a refresh so the view
// reflects it.
func (s *Session) Dismiss(ctx context.Context, groupKey string) error {
	if err := s.dismissals.Dismiss(ctx, groupKey); err != nil {
		return err
	}
	s.refresher.Refresh()
	return nil
}

// MarkVisited records that the user opened a group.
func (s *Session) MarkVisited(ctx context.Context, groupKey string) error {
	return s.dismissals.MarkVisited(ctx, groupKey)
}

// IsVisited reports whether a group was opened within the visited window.
func (s *Session) IsVisited(ctx context.Context, groupKey string) (bool, error) {
	return s.dismissals.IsVisited(ctx, groupKey)
}

// MarkRead acks a single event on the remote source.
func (s *Session) MarkRead(ctx context.Context, eventID string) error {
	return s.client.MarkRead(ctx, eventID)
}

// PurgePriorTeamCacheVersions clears every namespace written by earlier
// versions of the team-classification logic.
func (s *Session) PurgePriorTeamCacheVersions(ctx context.Context) error {
	return s.teams.PurgePriorVersions(ctx)
}
