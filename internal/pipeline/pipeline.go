// Package pipeline groups raw notification events into logical work
// items and classifies them along independent dimensions: authorship,
// review request, mention, and team ownership.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/nhle/gh-triage/internal/cache"
	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/source"
)

// Limits bounds concurrent remote calls per classification cycle.
// Calls beyond a cap are deferred to the next cycle; their groups keep
// the prior or default classification in the interim.
type Limits struct {
	StateFetches    int
	TeamResolutions int
}

// DefaultLimits returns the standard per-cycle caps.
func DefaultLimits() Limits {
	return Limits{StateFetches: 20, TeamResolutions: 10}
}

// Pipeline performs the grouping and classification pass for one
// refresh cycle. Remote calls run with bounded concurrency; all cache
// writes happen on the calling goroutine.
type Pipeline struct {
	client source.Client
	states *cache.StateCache
	teams  *cache.TeamCache
	limits Limits
	log    *slog.Logger
}

// New creates a classification pipeline.
func New(
	client source.Client,
	states *cache.StateCache,
	teams *cache.TeamCache,
	limits Limits,
	log *slog.Logger,
) *Pipeline {
	if limits.StateFetches < 1 {
		limits.StateFetches = DefaultLimits().StateFetches
	}
	if limits.TeamResolutions < 1 {
		limits.TeamResolutions = DefaultLimits().TeamResolutions
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		client: client,
		states: states,
		teams:  teams,
		limits: limits,
		log:    log,
	}
}

// Classify runs the full pass over the deduplicated event list: subject
// liveness resolution, grouping, reason-code classification, team/draft
// disambiguation, draft suppression, and priority sort. The viewer
// identity and team-slug set may be unresolved on the first run.
//
// Per-item fetch failures are isolated and never abort the batch; only
// an authentication failure terminates the cycle.
func (p *Pipeline) Classify(
	ctx context.Context,
	events []model.RawEvent,
	viewer model.Identity,
	teamSlugs []string,
) ([]*model.NotificationGroup, error) {
	if err := p.resolveLiveness(ctx, events); err != nil {
		return nil, err
	}

	groups, err := p.group(ctx, events)
	if err != nil {
		return nil, err
	}

	for _, g := range groups {
		classifyReasons(g)
	}

	if err := p.disambiguateTeams(ctx, groups, viewer, teamSlugs); err != nil {
		return nil, err
	}

	// Team mentions get the generic bucket; the reason code never
	// identifies which team was mentioned.
	for _, g := range groups {
		if g.HasTeamMention {
			g.IsProminent = false
			if g.Team == nil {
				g.Team = &model.OwningTeam{
					Slug: model.GenericTeamMentionSlug,
					Name: model.GenericTeamMentionName,
				}
			}
		}
	}

	// Drafts are fully suppressed, not merely deprioritized.
	visible := groups[:0]
	for _, g := range groups {
		if g.IsDraftPR {
			continue
		}
		visible = append(visible, g)
	}

	sortGroups(visible)
	return visible, nil
}

// resolveLiveness fetches lifecycle state for distinct Issue/PR subject
// URLs that lack a valid cache entry. Up to the per-cycle cap of URLs
// are fetched concurrently; the rest wait for the next cycle. Fetch
// failures record unknown (deleted on not-found) so repeated failures
// are not retried within the TTL window.
func (p *Pipeline) resolveLiveness(
	ctx context.Context,
	events []model.RawEvent,
) error {
	var pending []string
	seen := make(map[string]bool)
	for _, e := range events {
		if e.Subject.Type != model.SubjectIssue &&
			e.Subject.Type != model.SubjectPullRequest {
			continue
		}
		url := e.Subject.URL
		if url == "" || seen[url] {
			continue
		}
		seen[url] = true

		_, ok, err := p.states.Get(ctx, url)
		if err != nil {
			return err
		}
		if !ok {
			pending = append(pending, url)
		}
	}

	if len(pending) == 0 {
		return nil
	}
	if len(pending) > p.limits.StateFetches {
		p.log.Debug("deferring liveness fetches to next cycle",
			"pending", len(pending), "cap", p.limits.StateFetches)
		pending = pending[:p.limits.StateFetches]
	}

	type stateResult struct {
		url   string
		state model.SubjectState
		err   error
	}

	results := make(chan stateResult, len(pending))
	var wg sync.WaitGroup
	for _, url := range pending {
		wg.Add(1)
		go func(url string) {
			defer wg.Done()
			detail, err := p.client.GetSubjectDetail(ctx, url)
			switch {
			case err == nil:
				results <- stateResult{url: url, state: detail.State}
			case source.IsNotFound(err):
				results <- stateResult{url: url, state: model.StateDeleted}
			case source.IsAuthError(err):
				results <- stateResult{url: url, err: err}
			default:
				p.log.Debug("subject fetch failed", "url", url, "error", err)
				results <- stateResult{url: url, state: model.StateUnknown}
			}
		}(url)
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			return r.err
		}
		if err := p.states.Set(ctx, r.url, r.state); err != nil {
			return err
		}
	}
	return nil
}

// group merges events into NotificationGroups keyed by repository and
// subject URL, preserving first-appearance order and skipping subjects
// that are closed, merged, deleted, or of unknown state.
func (p *Pipeline) group(
	ctx context.Context,
	events []model.RawEvent,
) ([]*model.NotificationGroup, error) {
	byKey := make(map[string]*model.NotificationGroup)
	var ordered []*model.NotificationGroup

	for _, e := range events {
		if e.Subject.Type == model.SubjectIssue ||
			e.Subject.Type == model.SubjectPullRequest {
			hidden, err := p.states.IsClosedOrMerged(ctx, e.Subject.URL)
			if err != nil {
				return nil, err
			}
			if hidden {
				continue
			}
		}

		key := e.GroupKey()
		g, ok := byKey[key]
		if !ok {
			g = &model.NotificationGroup{
				Key:        key,
				Repository: e.Repository,
				Subject:    e.Subject,
			}
			byKey[key] = g
			ordered = append(ordered, g)
		}
		g.Events = append(g.Events, e)
	}

	return ordered, nil
}
