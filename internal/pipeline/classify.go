package pipeline

import (
	"context"
	"sync"

	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/source"
)

// classifyReasons applies the first, purely local classification pass:
// flags derived from reason codes alone, no remote calls.
func classifyReasons(g *model.NotificationGroup) {
	for _, e := range g.Events {
		switch e.Reason {
		case model.ReasonReviewRequested:
			g.HasReviewRequest = true
			g.IsProminent = true
		case model.ReasonMention:
			g.HasMention = true
			g.IsProminent = true
		case model.ReasonTeamMention:
			g.HasTeamMention = true
		case model.ReasonAuthor:
			g.IsOwnContent = true
		case model.ReasonComment:
			// A comment alone is not enough signal without fetching
			// comment bodies.
		case model.ReasonAssign,
			model.ReasonInvitation,
			model.ReasonManual,
			model.ReasonSecurityAlert,
			model.ReasonStateChange,
			model.ReasonSubscribed,
			model.ReasonCIActivity:
			// No classification weight.
		}
	}
}

// disambiguateTeams resolves whether each review-requested PR group is
// team-owned, using the team cache first and the remote PR detail for
// up to the per-cycle cap of misses. Results are cached by the group's
// first event id; a resolution failure defaults to not-a-team-request,
// failing toward visibility rather than hiding a personal request.
func (p *Pipeline) disambiguateTeams(
	ctx context.Context,
	groups []*model.NotificationGroup,
	viewer model.Identity,
	teamSlugs []string,
) error {
	var misses []*model.NotificationGroup

	for _, g := range groups {
		if !g.HasReviewRequest || g.Subject.Type != model.SubjectPullRequest {
			continue
		}
		if len(g.Events) == 0 {
			continue
		}

		info, ok, err := p.teams.Get(ctx, g.Events[0].ID)
		if err != nil {
			return err
		}
		if ok {
			applyTeamInfo(g, info)
			continue
		}
		misses = append(misses, g)
	}

	if len(misses) == 0 {
		return nil
	}
	if len(misses) > p.limits.TeamResolutions {
		p.log.Debug("deferring team resolutions to next cycle",
			"pending", len(misses), "cap", p.limits.TeamResolutions)
		misses = misses[:p.limits.TeamResolutions]
	}

	type teamResult struct {
		group   *model.NotificationGroup
		info    model.TeamInfo
		ok      bool
		authErr error
	}

	results := make(chan teamResult, len(misses))
	var wg sync.WaitGroup
	for _, g := range misses {
		wg.Add(1)
		go func(g *model.NotificationGroup) {
			defer wg.Done()
			detail, err := p.client.GetPullRequestDetail(ctx, g.Subject.URL)
			if err != nil {
				if source.IsAuthError(err) {
					results <- teamResult{group: g, authErr: err}
					return
				}
				p.log.Debug("team resolution failed",
					"group", g.Key, "error", err)
				results <- teamResult{group: g}
				return
			}

			reason := g.Events[0].Reason
			info := resolveTeamRequest(detail, viewer, teamSlugs, reason)
			results <- teamResult{group: g, info: info, ok: true}
		}(g)
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.authErr != nil {
			return r.authErr
		}
		if !r.ok {
			// Conservative default: visible personal review request.
			continue
		}
		applyTeamInfo(r.group, r.info)

		// First-run classification happens before the viewer identity
		// is known; those results would misattribute personal requests,
		// so only settled classifications are cached.
		if viewer.Login != "" {
			if err := p.teams.Set(ctx, r.group.Events[0].ID, r.info); err != nil {
				return err
			}
		}
	}
	return nil
}

// resolveTeamRequest decides team ownership for a review-requested PR.
//
// A team request is inferred when the PR lists requested teams without
// the viewer among its requested reviewers, or when no reviewer of any
// kind remains but the notification reason is still review_requested:
// the remote side can lag, or the team's request may already have been
// consumed by another reviewer, leaving the reason code as the only
// remaining proof that a review was asked of a team ("orphaned" team
// review). The final clause is a catch-all with the same shape; absence
// of personal attribution on a review_requested reason is treated as
// sufficient evidence of team ownership.
func resolveTeamRequest(
	detail *source.PullRequestDetail,
	viewer model.Identity,
	teamSlugs []string,
	reason model.ReasonCode,
) model.TeamInfo {
	hasTeamReviewers := len(detail.RequestedTeams) > 0

	isPersonallyRequested := false
	for _, r := range detail.RequestedReviewers {
		if viewer.Login != "" && r.Login == viewer.Login {
			isPersonallyRequested = true
			break
		}
	}

	noReviewersAtAll := !hasTeamReviewers && len(detail.RequestedReviewers) == 0

	isTeamRequest := (hasTeamReviewers && !isPersonallyRequested) ||
		(noReviewersAtAll && !isPersonallyRequested &&
			reason == model.ReasonReviewRequested) ||
		(reason == model.ReasonReviewRequested && !isPersonallyRequested)

	info := model.TeamInfo{
		IsTeamReviewRequest: isTeamRequest,
		IsDraft:             detail.Draft,
	}
	if !isTeamRequest {
		return info
	}

	if team, ok := matchOwningTeam(detail.RequestedTeams, teamSlugs); ok {
		info.TeamSlug = team.Slug
		info.TeamName = team.Name
	}
	return info
}

// matchOwningTeam identifies which of the viewer's teams matches a
// requested team: first by exact slug, then under hyphen/underscore
// normalization to cover slug-formatting drift between systems.
func matchOwningTeam(
	requested []model.Team,
	viewerSlugs []string,
) (model.Team, bool) {
	for _, team := range requested {
		for _, slug := range viewerSlugs {
			if team.Slug == slug {
				return team, true
			}
		}
	}
	for _, team := range requested {
		for _, slug := range viewerSlugs {
			if model.SlugsEqual(team.Slug, slug) {
				return team, true
			}
		}
	}
	return model.Team{}, false
}

// applyTeamInfo folds a disambiguation result into the group's flags.
// Team-owned work never counts as needing the individual's attention.
func applyTeamInfo(g *model.NotificationGroup, info model.TeamInfo) {
	if info.IsDraft {
		g.IsDraftPR = true
	}
	if !info.IsTeamReviewRequest {
		return
	}

	g.IsTeamReviewRequest = true
	g.IsProminent = false

	if info.TeamSlug != "" {
		g.Team = &model.OwningTeam{Slug: info.TeamSlug, Name: info.TeamName}
		return
	}
	g.Team = &model.OwningTeam{
		Slug: model.GenericTeamReviewSlug,
		Name: model.GenericTeamReviewName,
	}
}
