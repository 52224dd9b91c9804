// Package ingest drives paged retrieval of notification events from
// the remote source.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/source"
)

// Controller accumulates raw event pages up to a page ceiling. It
// supports a first-page fetch, incremental load-more, and a full
// refresh that re-fetches every currently loaded page. It is driven by
// a single refresh actor and is not safe for concurrent use.
type Controller struct {
	client   source.Client
	pageSize int
	maxPages int

	pages   [][]model.RawEvent
	hasMore bool
}

// NewController creates a pagination controller. pageSize and maxPages
// must be positive; zero values fall back to 50 and 10.
func NewController(client source.Client, pageSize, maxPages int) *Controller {
	if pageSize < 1 {
		pageSize = 50
	}
	if maxPages < 1 {
		maxPages = 10
	}
	return &Controller{
		client:   client,
		pageSize: pageSize,
		maxPages: maxPages,
	}
}

// FirstPage discards any loaded pages and fetches page one.
func (c *Controller) FirstPage(ctx context.Context, since time.Time) error {
	c.pages = nil
	c.hasMore = false

	events, err := c.fetchPage(ctx, 1, since)
	if err != nil {
		return err
	}
	c.pages = [][]model.RawEvent{events}
	c.hasMore = len(events) == c.pageSize
	return nil
}

// LoadMore fetches the next page and appends it. It returns false when
// no further pages exist or the page ceiling has been reached.
func (c *Controller) LoadMore(ctx context.Context, since time.Time) (bool, error) {
	if len(c.pages) == 0 {
		if err := c.FirstPage(ctx, since); err != nil {
			return false, err
		}
		return true, nil
	}
	if !c.hasMore || len(c.pages) >= c.maxPages {
		return false, nil
	}

	page := len(c.pages) + 1
	events, err := c.fetchPage(ctx, page, since)
	if err != nil {
		return false, err
	}
	c.pages = append(c.pages, events)
	c.hasMore = len(events) == c.pageSize && len(c.pages) < c.maxPages
	return true, nil
}

// Refresh re-fetches every currently loaded page so the periodic timer
// sees updates across the whole loaded window, not just page one.
func (c *Controller) Refresh(ctx context.Context, since time.Time) error {
	loaded := len(c.pages)
	if loaded == 0 {
		loaded = 1
	}

	fresh := make([][]model.RawEvent, 0, loaded)
	for page := 1; page <= loaded; page++ {
		events, err := c.fetchPage(ctx, page, since)
		if err != nil {
			return err
		}
		fresh = append(fresh, events)

		// The source shrank below the loaded window; stop early.
		if len(events) < c.pageSize {
			c.pages = fresh
			c.hasMore = false
			return nil
		}
	}

	c.pages = fresh
	c.hasMore = len(fresh) < c.maxPages
	return nil
}

// Events returns the union of all loaded pages, deduplicated by event
// id in arrival order.
func (c *Controller) Events() []model.RawEvent {
	seen := make(map[string]bool)
	var all []model.RawEvent
	for _, page := range c.pages {
		for _, e := range page {
			if seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			all = append(all, e)
		}
	}
	return all
}

// HasMore reports whether another page can be loaded.
func (c *Controller) HasMore() bool {
	return c.hasMore && len(c.pages) < c.maxPages
}

// PageCount returns how many pages are currently loaded.
func (c *Controller) PageCount() int {
	return len(c.pages)
}

// Reset discards all loaded pages.
func (c *Controller) Reset() {
	c.pages = nil
	c.hasMore = false
}

func (c *Controller) fetchPage(
	ctx context.Context,
	page int,
	since time.Time,
) ([]model.RawEvent, error) {
	events, err := c.client.ListEvents(ctx, source.ListOptions{
		Page:     page,
		PageSize: c.pageSize,
		Since:    since,
	})
	if err != nil {
		return nil, fmt.Errorf("fetching events page %d: %w", page, err)
	}
	return events, nil
}
