package alert_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/gh-triage/internal/alert"
	"github.com/nhle/gh-triage/internal/model"
)

type captureNotifier struct {
	alerts []alert.Alert
}

func (c *captureNotifier) Notify(a alert.Alert) {
	c.alerts = append(c.alerts, a)
}

func group(key string, prominent bool, eventIDs ...string) *model.NotificationGroup {
	g := &model.NotificationGroup{
		Key:         key,
		Repository:  model.Repository{FullName: "o/r"},
		Subject:     model.Subject{Title: "title " + key, Type: model.SubjectPullRequest},
		IsProminent: prominent,
	}
	for _, id := range eventIDs {
		g.Events = append(g.Events, model.RawEvent{ID: id, UpdatedAt: time.Now()})
	}
	return g
}

func seen(ids ...string) map[string]struct{} {
	s := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func TestFirstPassPrimesWithoutAlerting(t *testing.T) {
	n := &captureNotifier{}
	d := alert.NewDispatcher(n, nil, nil)

	groups := []*model.NotificationGroup{
		group("g1", true, "1"),
		group("g2", true, "2"),
	}

	emitted := d.Dispatch(groups, nil)
	require.Empty(t, emitted, "session start must not storm over pre-existing notifications")
	require.Empty(t, n.alerts)

	// The same groups with no new events stay silent afterwards too.
	emitted = d.Dispatch(groups, seen("1", "2"))
	require.Empty(t, emitted)
}

func TestNewEventAfterPrimingAlertsOnce(t *testing.T) {
	n := &captureNotifier{}
	d := alert.NewDispatcher(n, nil, nil)

	d.Dispatch([]*model.NotificationGroup{group("g1", true, "1")}, nil)

	// A new member event arrives.
	g := group("g1", true, "1", "2")
	emitted := d.Dispatch([]*model.NotificationGroup{g}, seen("1"))
	require.Len(t, emitted, 1)
	require.Equal(t, "g1", emitted[0].GroupKey)
	require.NotEmpty(t, emitted[0].ID)

	// The same event does not alert again this session.
	emitted = d.Dispatch([]*model.NotificationGroup{g}, seen("1", "2"))
	require.Empty(t, emitted)
	require.Len(t, n.alerts, 1)
}

func TestGenuinelyNewEventReAlertsSameGroup(t *testing.T) {
	n := &captureNotifier{}
	d := alert.NewDispatcher(n, nil, nil)

	d.Dispatch([]*model.NotificationGroup{group("g1", true, "1")}, nil)

	emitted := d.Dispatch([]*model.NotificationGroup{group("g1", true, "1", "2")}, seen("1"))
	require.Len(t, emitted, 1)

	// A third event on the already-alerted group alerts again.
	emitted = d.Dispatch([]*model.NotificationGroup{group("g1", true, "1", "2", "3")}, seen("1", "2"))
	require.Len(t, emitted, 1)
	require.Len(t, n.alerts, 2)
}

func TestNonProminentGroupsNeverAlert(t *testing.T) {
	n := &captureNotifier{}
	d := alert.NewDispatcher(n, nil, nil)

	d.Dispatch(nil, nil)

	emitted := d.Dispatch([]*model.NotificationGroup{group("g1", false, "1")}, seen())
	require.Empty(t, emitted)
	require.Empty(t, n.alerts)
}

func TestKnownEventsDoNotReAlert(t *testing.T) {
	n := &captureNotifier{}
	d := alert.NewDispatcher(n, nil, nil)

	g := group("g1", true, "1", "2")
	d.Dispatch([]*model.NotificationGroup{g}, nil)

	// The events look new against an empty seen set, but the dispatcher
	// already marked them at priming time.
	emitted := d.Dispatch([]*model.NotificationGroup{g}, seen())
	require.Empty(t, emitted)
}

func TestTitlePrecedence(t *testing.T) {
	n := &captureNotifier{}
	d := alert.NewDispatcher(n, nil, nil)
	d.Dispatch(nil, nil)

	dispatchOne := func(g *model.NotificationGroup) alert.Alert {
		t.Helper()
		emitted := d.Dispatch([]*model.NotificationGroup{g}, seen())
		require.Len(t, emitted, 1)
		return emitted[0]
	}

	own := group("own", true, "1")
	own.IsOwnContent = true
	own.HasReviewRequest = true
	own.HasMention = true
	require.Equal(t, "[Your PR] title own", dispatchOne(own).Title)

	ownIssue := group("own-issue", true, "2")
	ownIssue.Subject.Type = model.SubjectIssue
	ownIssue.IsOwnContent = true
	require.Equal(t, "[Your Issue] title own-issue", dispatchOne(ownIssue).Title)

	review := group("review", true, "3")
	review.HasReviewRequest = true
	review.HasMention = true
	require.Equal(t, "[Review Request] title review", dispatchOne(review).Title)

	mention := group("mention", true, "4")
	mention.HasMention = true
	a := dispatchOne(mention)
	require.Equal(t, "[Mention] title mention", a.Title)
	require.Equal(t, "in o/r", a.Body)
}

func TestClickTargetResolvesURL(t *testing.T) {
	n := &captureNotifier{}
	target := func(s model.Subject) string { return "https://web/" + s.Title }
	d := alert.NewDispatcher(n, target, nil)
	d.Dispatch(nil, nil)

	emitted := d.Dispatch([]*model.NotificationGroup{group("g1", true, "1")}, seen())
	require.Len(t, emitted, 1)
	require.Equal(t, "https://web/title g1", emitted[0].URL)
}
