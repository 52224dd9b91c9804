// Package alert decides which classified groups should raise an
// external alert, deduplicating emission per process session.
package alert

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/nhle/gh-triage/internal/model"
)

// Alert is a request for the external notifier collaborator. It does
// not prescribe presentation.
type Alert struct {
	ID       string
	GroupKey string
	Title    string
	Body     string
	URL      string
}

// Notifier receives alert requests. Implementations render or forward
// them; the dispatcher does not care which.
type Notifier interface {
	Notify(a Alert)
}

// ClickTargetFunc resolves the browser-facing target for a subject.
type ClickTargetFunc func(s model.Subject) string

// Dispatcher emits at most one alert per group key per session, unless
// a genuinely new member event arrives for that group. The very first
// pass after session start never alerts; it only primes the marker so
// the next cycle alerts on genuinely new events instead of storming
// over pre-existing notifications.
type Dispatcher struct {
	notifier    Notifier
	clickTarget ClickTargetFunc
	log         *slog.Logger

	// alerted records, per group key, the member event ids known the
	// last time the group alerted (or was primed).
	alerted map[string]map[string]struct{}
	primed  bool
}

// NewDispatcher creates a session-scoped alert dispatcher.
func NewDispatcher(n Notifier, clickTarget ClickTargetFunc, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		notifier:    n,
		clickTarget: clickTarget,
		log:         log,
		alerted:     make(map[string]map[string]struct{}),
	}
}

// Dispatch walks the sorted, dismissal-filtered group list and emits
// alerts for prominent groups with member events that are new relative
// to seenEventIDs. A nil seenEventIDs set means this is the session's
// first classification: everything counts as new, but alerting is
// suppressed and the groups are only marked.
func (d *Dispatcher) Dispatch(
	groups []*model.NotificationGroup,
	seenEventIDs map[string]struct{},
) []Alert {
	var emitted []Alert

	for _, g := range groups {
		if !g.IsProminent {
			continue
		}

		hasNew := false
		for _, e := range g.Events {
			if seenEventIDs == nil {
				hasNew = true
				break
			}
			if _, seen := seenEventIDs[e.ID]; !seen {
				hasNew = true
				break
			}
		}
		if !hasNew {
			continue
		}

		known := d.alerted[g.Key]
		unalerted := false
		for _, e := range g.Events {
			if _, ok := known[e.ID]; !ok {
				unalerted = true
				break
			}
		}
		if !unalerted {
			continue
		}

		d.mark(g)

		if !d.primed {
			continue
		}

		a := Alert{
			ID:       uuid.New().String(),
			GroupKey: g.Key,
			Title:    title(g),
			Body:     fmt.Sprintf("in %s", g.Repository.FullName),
		}
		if d.clickTarget != nil {
			a.URL = d.clickTarget(g.Subject)
		}

		d.log.Debug("raising alert", "group", g.Key, "title", a.Title)
		d.notifier.Notify(a)
		emitted = append(emitted, a)
	}

	d.primed = true
	return emitted
}

// mark records every current member event as alerted for the group.
func (d *Dispatcher) mark(g *model.NotificationGroup) {
	known := d.alerted[g.Key]
	if known == nil {
		known = make(map[string]struct{})
		d.alerted[g.Key] = known
	}
	for _, e := range g.Events {
		known[e.ID] = struct{}{}
	}
}

// title decorates the subject title with a prefix by flag precedence:
// own content, then review request, then mention.
func title(g *model.NotificationGroup) string {
	switch {
	case g.IsOwnContent:
		kind := "Item"
		switch g.Subject.Type {
		case model.SubjectIssue:
			kind = "Issue"
		case model.SubjectPullRequest:
			kind = "PR"
		}
		return fmt.Sprintf("[Your %s] %s", kind, g.Subject.Title)
	case g.HasReviewRequest:
		return fmt.Sprintf("[Review Request] %s", g.Subject.Title)
	case g.HasMention:
		return fmt.Sprintf("[Mention] %s", g.Subject.Title)
	default:
		return g.Subject.Title
	}
}
