package sync_test

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/gh-triage/internal/alert"
	"github.com/nhle/gh-triage/internal/cache"
	"github.com/nhle/gh-triage/internal/dismiss"
	"github.com/nhle/gh-triage/internal/ingest"
	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/pipeline"
	"github.com/nhle/gh-triage/internal/source"
	triagesync "github.com/nhle/gh-triage/internal/sync"
	"github.com/nhle/gh-triage/tests/testutil"
)

// scriptedClient serves a mutable event list under a lock so tests can
// change it between cycles.
type scriptedClient struct {
	mu      gosync.Mutex
	events  []model.RawEvent
	userErr error
}

func (c *scriptedClient) setEvents(events []model.RawEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = events
}

func (c *scriptedClient) GetCurrentUser(context.Context) (model.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userErr != nil {
		return model.Identity{}, c.userErr
	}
	return model.Identity{Login: "me"}, nil
}

func (c *scriptedClient) ListEvents(_ context.Context, opts source.ListOptions) ([]model.RawEvent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if opts.Page > 1 {
		return nil, nil
	}
	out := make([]model.RawEvent, len(c.events))
	copy(out, c.events)
	return out, nil
}

func (c *scriptedClient) GetSubjectDetail(context.Context, string) (*source.SubjectDetail, error) {
	return &source.SubjectDetail{State: model.StateOpen}, nil
}

func (c *scriptedClient) GetPullRequestDetail(context.Context, string) (*source.PullRequestDetail, error) {
	return &source.PullRequestDetail{}, nil
}

func (c *scriptedClient) GetUserTeams(context.Context) ([]model.Team, error) {
	return []model.Team{{Slug: "platform", Name: "Platform"}}, nil
}

func (c *scriptedClient) MarkRead(context.Context, string) error {
	return nil
}

type silentNotifier struct{}

func (silentNotifier) Notify(alert.Alert) {}

func mentionEvent(id string) model.RawEvent {
	return model.RawEvent{
		ID:        id,
		Unread:    true,
		Reason:    model.ReasonMention,
		UpdatedAt: time.Now(),
		Subject: model.Subject{
			Title: "subject",
			URL:   "https://api/repos/o/r/issues/1",
			Type:  model.SubjectIssue,
		},
		Repository: model.Repository{FullName: "o/r"},
	}
}

func newRefresher(t *testing.T, client source.Client, dismissals *dismiss.Store) *triagesync.Refresher {
	t.Helper()
	kv := testutil.NewTestStore(t)

	states := cache.NewStateCache(kv, time.Minute)
	teams := cache.NewTeamCache(kv, 24*time.Hour)
	userTeams := cache.NewUserTeamsCache(kv, time.Hour)

	controller := ingest.NewController(client, 50, 10)
	pipe := pipeline.New(client, states, teams, pipeline.DefaultLimits(), nil)
	dispatcher := alert.NewDispatcher(silentNotifier{}, nil, nil)

	r := triagesync.NewRefresher(client, controller, pipe, dismissals, userTeams, dispatcher, triagesync.Options{
		Interval: time.Hour,
	})
	t.Cleanup(r.Stop)
	return r
}

func nextResult(t *testing.T, r *triagesync.Refresher) triagesync.RefreshResult {
	t.Helper()
	select {
	case res := <-r.Results():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("no refresh result within deadline")
		return triagesync.RefreshResult{}
	}
}

func TestFirstCycleClassifiesWithoutAlerting(t *testing.T) {
	client := &scriptedClient{events: []model.RawEvent{mentionEvent("1")}}
	r := newRefresher(t, client, dismiss.New(testutil.NewTestStore(t)))

	r.Start()
	res := nextResult(t, r)

	require.NoError(t, res.Err)
	require.Len(t, res.Groups, 1)
	require.True(t, res.Groups[0].HasMention)
	require.Empty(t, res.Alerts, "the first cycle only primes the alert state")
	require.Equal(t, 1, res.LoadedPages)
}

func TestNewEventOnLaterCycleAlerts(t *testing.T) {
	client := &scriptedClient{events: []model.RawEvent{mentionEvent("1")}}
	r := newRefresher(t, client, dismiss.New(testutil.NewTestStore(t)))

	r.Start()
	res := nextResult(t, r)
	require.NoError(t, res.Err)

	// A second event lands on the same subject between cycles.
	client.setEvents([]model.RawEvent{mentionEvent("1"), mentionEvent("2")})
	r.Refresh()

	res = nextResult(t, r)
	require.NoError(t, res.Err)
	require.Len(t, res.Alerts, 1)
	require.Equal(t, "o/r#https://api/repos/o/r/issues/1", res.Alerts[0].GroupKey)

	// The same state does not alert again.
	r.Refresh()
	res = nextResult(t, r)
	require.NoError(t, res.Err)
	require.Empty(t, res.Alerts)
}

func TestDismissedGroupsAreFilteredFromResults(t *testing.T) {
	client := &scriptedClient{events: []model.RawEvent{mentionEvent("1")}}
	dismissals := dismiss.New(testutil.NewTestStore(t))
	r := newRefresher(t, client, dismissals)

	r.Start()
	res := nextResult(t, r)
	require.Len(t, res.Groups, 1)

	require.NoError(t, dismissals.Dismiss(context.Background(), res.Groups[0].Key))
	r.Refresh()

	res = nextResult(t, r)
	require.NoError(t, res.Err)
	require.Empty(t, res.Groups, "dismissed groups stay out of the view")
}

func TestAuthFailureIsReportedAsUnauthorized(t *testing.T) {
	client := &scriptedClient{userErr: &source.AuthError{Message: "bad token"}}
	r := newRefresher(t, client, dismiss.New(testutil.NewTestStore(t)))

	r.Start()
	res := nextResult(t, r)

	require.Error(t, res.Err)
	require.True(t, res.Unauthorized)
	require.Empty(t, res.Groups)
}
