package ingest_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nhle/gh-triage/internal/ingest"
	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/source"
)

// pagedClient serves scripted pages and records every (page, size)
// request it sees.
type pagedClient struct {
	pages    map[int][]model.RawEvent
	requests []int
	err      error
}

func (p *pagedClient) ListEvents(_ context.Context, opts source.ListOptions) ([]model.RawEvent, error) {
	p.requests = append(p.requests, opts.Page)
	if p.err != nil {
		return nil, p.err
	}
	return p.pages[opts.Page], nil
}

func (p *pagedClient) GetCurrentUser(context.Context) (model.Identity, error) {
	return model.Identity{}, nil
}

func (p *pagedClient) GetSubjectDetail(context.Context, string) (*source.SubjectDetail, error) {
	return nil, errors.New("not scripted")
}

func (p *pagedClient) GetPullRequestDetail(context.Context, string) (*source.PullRequestDetail, error) {
	return nil, errors.New("not scripted")
}

func (p *pagedClient) GetUserTeams(context.Context) ([]model.Team, error) {
	return nil, nil
}

func (p *pagedClient) MarkRead(context.Context, string) error {
	return nil
}

func page(prefix string, n int) []model.RawEvent {
	events := make([]model.RawEvent, 0, n)
	for i := 0; i < n; i++ {
		events = append(events, model.RawEvent{
			ID: fmt.Sprintf("%s-%d", prefix, i),
			Subject: model.Subject{
				URL:  "https://api/issues/" + prefix,
				Type: model.SubjectIssue,
			},
			Repository: model.Repository{FullName: "o/r"},
		})
	}
	return events
}

func TestFirstPageSetsHasMoreOnFullPage(t *testing.T) {
	client := &pagedClient{pages: map[int][]model.RawEvent{
		1: page("a", 3),
		2: page("b", 1),
	}}
	c := ingest.NewController(client, 3, 10)

	require.NoError(t, c.FirstPage(context.Background(), time.Time{}))
	require.True(t, c.HasMore(), "a full page implies more may exist")
	require.Len(t, c.Events(), 3)
	require.Equal(t, 1, c.PageCount())
}

func TestShortPageIsTheLastPage(t *testing.T) {
	client := &pagedClient{pages: map[int][]model.RawEvent{
		1: page("a", 2),
	}}
	c := ingest.NewController(client, 3, 10)

	require.NoError(t, c.FirstPage(context.Background(), time.Time{}))
	require.False(t, c.HasMore())

	loaded, err := c.LoadMore(context.Background(), time.Time{})
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, []int{1}, client.requests, "no request goes out past the last page")
}

func TestLoadMoreAppendsAndDeduplicates(t *testing.T) {
	ctx := context.Background()

	// The last event of page one reappears at the top of page two, as
	// happens when a new event arrives between the two fetches.
	p1 := page("a", 3)
	p2 := append([]model.RawEvent{p1[2]}, page("b", 2)...)

	client := &pagedClient{pages: map[int][]model.RawEvent{1: p1, 2: p2}}
	c := ingest.NewController(client, 3, 10)

	require.NoError(t, c.FirstPage(ctx, time.Time{}))
	loaded, err := c.LoadMore(ctx, time.Time{})
	require.NoError(t, err)
	require.True(t, loaded)

	events := c.Events()
	require.Len(t, events, 5, "the overlapping event appears once")

	seen := make(map[string]bool)
	for _, e := range events {
		require.False(t, seen[e.ID], "duplicate id %s", e.ID)
		seen[e.ID] = true
	}
}

func TestLoadMoreWithoutFirstPageFallsThrough(t *testing.T) {
	client := &pagedClient{pages: map[int][]model.RawEvent{
		1: page("a", 2),
	}}
	c := ingest.NewController(client, 3, 10)

	loaded, err := c.LoadMore(context.Background(), time.Time{})
	require.NoError(t, err)
	require.True(t, loaded)
	require.Equal(t, []int{1}, client.requests)
	require.Len(t, c.Events(), 2)
}

func TestPageCeilingStopsLoading(t *testing.T) {
	ctx := context.Background()

	client := &pagedClient{pages: map[int][]model.RawEvent{
		1: page("a", 2),
		2: page("b", 2),
		3: page("c", 2),
	}}
	c := ingest.NewController(client, 2, 2)

	require.NoError(t, c.FirstPage(ctx, time.Time{}))
	loaded, err := c.LoadMore(ctx, time.Time{})
	require.NoError(t, err)
	require.True(t, loaded)

	require.False(t, c.HasMore(), "ceiling reached")
	loaded, err = c.LoadMore(ctx, time.Time{})
	require.NoError(t, err)
	require.False(t, loaded)
	require.Equal(t, []int{1, 2}, client.requests)
}

func TestRefreshReFetchesLoadedWindow(t *testing.T) {
	ctx := context.Background()

	client := &pagedClient{pages: map[int][]model.RawEvent{
		1: page("a", 2),
		2: page("b", 2),
		3: page("c", 2),
	}}
	c := ingest.NewController(client, 2, 10)

	require.NoError(t, c.FirstPage(ctx, time.Time{}))
	_, err := c.LoadMore(ctx, time.Time{})
	require.NoError(t, err)
	client.requests = nil

	// An event on page two changes between cycles.
	client.pages[2][0].Reason = model.ReasonMention

	require.NoError(t, c.Refresh(ctx, time.Time{}))
	require.Equal(t, []int{1, 2}, client.requests, "refresh covers the loaded window only")
	require.Equal(t, 2, c.PageCount())

	events := c.Events()
	require.Equal(t, model.ReasonMention, events[2].Reason)
}

func TestRefreshStopsEarlyWhenSourceShrinks(t *testing.T) {
	ctx := context.Background()

	client := &pagedClient{pages: map[int][]model.RawEvent{
		1: page("a", 2),
		2: page("b", 2),
		3: page("c", 2),
	}}
	c := ingest.NewController(client, 2, 10)

	require.NoError(t, c.FirstPage(ctx, time.Time{}))
	_, err := c.LoadMore(ctx, time.Time{})
	require.NoError(t, err)
	_, err = c.LoadMore(ctx, time.Time{})
	require.NoError(t, err)
	require.Equal(t, 3, c.PageCount())

	// Events were handled remotely: page two is now short, page three empty.
	client.pages[2] = page("b", 1)
	client.pages[3] = nil
	client.requests = nil

	require.NoError(t, c.Refresh(ctx, time.Time{}))
	require.Equal(t, []int{1, 2}, client.requests, "a short page ends the refresh")
	require.Equal(t, 2, c.PageCount())
	require.False(t, c.HasMore())
}

func TestFetchErrorPreservesNothing(t *testing.T) {
	client := &pagedClient{err: errors.New("network down")}
	c := ingest.NewController(client, 3, 10)

	err := c.FirstPage(context.Background(), time.Time{})
	require.Error(t, err)
	require.Empty(t, c.Events())
	require.False(t, c.HasMore())
}

func TestResetDiscardsPages(t *testing.T) {
	client := &pagedClient{pages: map[int][]model.RawEvent{
		1: page("a", 2),
	}}
	c := ingest.NewController(client, 3, 10)

	require.NoError(t, c.FirstPage(context.Background(), time.Time{}))
	require.NotEmpty(t, c.Events())

	c.Reset()
	require.Empty(t, c.Events())
	require.Equal(t, 0, c.PageCount())
}
