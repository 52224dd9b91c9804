package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/source"
)

// Adapter implements source.Client for the GitHub REST API.
type Adapter struct {
	client *Client
}

// NewAdapter creates a new GitHub source adapter.
func NewAdapter(baseURL, token string) *Adapter {
	return &Adapter{
		client: NewClient(baseURL, token),
	}
}

// GetCurrentUser fetches the authenticated caller's profile.
func (a *Adapter) GetCurrentUser(ctx context.Context) (model.Identity, error) {
	var u user
	if err := a.client.Get(ctx, "/user", &u); err != nil {
		return model.Identity{}, fmt.Errorf("fetching current user: %w", err)
	}
	return model.Identity{Login: u.Login, ID: u.ID}, nil
}

// ListEvents retrieves one page of notification events updated since
// the given time bound.
func (a *Adapter) ListEvents(
	ctx context.Context,
	opts source.ListOptions,
) ([]model.RawEvent, error) {
	page := opts.Page
	if page < 1 {
		page = 1
	}
	pageSize := opts.PageSize
	if pageSize < 1 {
		pageSize = 50
	}

	q := url.Values{}
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("per_page", fmt.Sprintf("%d", pageSize))
	if !opts.Since.IsZero() {
		q.Set("since", opts.Since.UTC().Format("2006-01-02T15:04:05Z"))
	}

	var threads []notificationThread
	path := "/notifications?" + q.Encode()
	if err := a.client.Get(ctx, path, &threads); err != nil {
		return nil, fmt.Errorf("listing notifications page %d: %w", page, err)
	}

	events := make([]model.RawEvent, 0, len(threads))
	for _, t := range threads {
		events = append(events, threadToEvent(t))
	}
	return events, nil
}

// GetSubjectDetail fetches the lifecycle state of an issue or PR by its
// API URL. A merged pull request reports state "closed" with a merge
// timestamp, which maps to merged here.
func (a *Adapter) GetSubjectDetail(
	ctx context.Context,
	subjectURL string,
) (*source.SubjectDetail, error) {
	var detail subjectDetail
	if err := a.client.GetURL(ctx, subjectURL, &detail); err != nil {
		return nil, err
	}

	state := model.StateUnknown
	switch strings.ToLower(detail.State) {
	case "open":
		state = model.StateOpen
	case "closed":
		state = model.StateClosed
	}
	if detail.Merged || detail.MergedAt != nil {
		state = model.StateMerged
	}

	return &source.SubjectDetail{State: state}, nil
}

// GetPullRequestDetail fetches the review-relevant fields of a pull
// request by its API URL.
func (a *Adapter) GetPullRequestDetail(
	ctx context.Context,
	prURL string,
) (*source.PullRequestDetail, error) {
	var detail pullRequestDetail
	if err := a.client.GetURL(ctx, prURL, &detail); err != nil {
		return nil, err
	}

	reviewers := make([]model.Identity, 0, len(detail.RequestedReviewers))
	for _, r := range detail.RequestedReviewers {
		reviewers = append(reviewers, model.Identity{Login: r.Login, ID: r.ID})
	}
	teams := make([]model.Team, 0, len(detail.RequestedTeams))
	for _, t := range detail.RequestedTeams {
		teams = append(teams, model.Team{Slug: t.Slug, Name: t.Name})
	}

	return &source.PullRequestDetail{
		Draft:              detail.Draft,
		RequestedReviewers: reviewers,
		RequestedTeams:     teams,
	}, nil
}

// GetUserTeams fetches the caller's team memberships.
func (a *Adapter) GetUserTeams(ctx context.Context) ([]model.Team, error) {
	var wire []team
	if err := a.client.Get(ctx, "/user/teams?per_page=100", &wire); err != nil {
		return nil, fmt.Errorf("fetching user teams: %w", err)
	}

	teams := make([]model.Team, 0, len(wire))
	for _, t := range wire {
		teams = append(teams, model.Team{Slug: t.Slug, Name: t.Name})
	}
	return teams, nil
}

// MarkRead marks a single notification thread as read.
func (a *Adapter) MarkRead(ctx context.Context, eventID string) error {
	path := fmt.Sprintf("/notifications/threads/%s", eventID)
	if err := a.client.Patch(ctx, path); err != nil {
		return fmt.Errorf("marking thread %s read: %w", eventID, err)
	}
	return nil
}

// threadToEvent converts a wire notification thread to a model.RawEvent.
func threadToEvent(t notificationThread) model.RawEvent {
	return model.RawEvent{
		ID:        t.ID,
		Unread:    t.Unread,
		Reason:    model.ReasonCode(t.Reason),
		UpdatedAt: t.UpdatedAt,
		Subject: model.Subject{
			Title: t.Subject.Title,
			URL:   t.Subject.URL,
			Type:  model.SubjectType(t.Subject.Type),
		},
		Repository: model.Repository{FullName: t.Repository.FullName},
		ThreadURL:  t.URL,
	}
}

// WebURL converts a subject's API URL to the browser-facing URL, used
// as the click target for alerts.
func WebURL(apiURL string) string {
	u := strings.Replace(apiURL, "api.github.com/repos/", "github.com/", 1)
	u = strings.Replace(u, "/pulls/", "/pull/", 1)
	return u
}
