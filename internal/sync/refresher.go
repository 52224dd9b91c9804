// Package sync owns the refresh lifecycle: one logical actor that
// periodically re-ingests and re-classifies all loaded pages, plus
// user-triggered refresh and load-more.
package sync

import (
	"context"
	"log/slog"
	gosync "sync"
	"time"

	"github.com/nhle/gh-triage/internal/alert"
	"github.com/nhle/gh-triage/internal/cache"
	"github.com/nhle/gh-triage/internal/dismiss"
	"github.com/nhle/gh-triage/internal/ingest"
	"github.com/nhle/gh-triage/internal/model"
	"github.com/nhle/gh-triage/internal/pipeline"
	"github.com/nhle/gh-triage/internal/source"
)

// cycleTimeout is the maximum time allowed for a single refresh cycle.
const cycleTimeout = 60 * time.Second

// unauthorizedGrace is how long after an authentication failure the
// credential invalidation callback fires, giving the caller a visible
// window before the identity is cleared. A successful cycle cancels it.
const unauthorizedGrace = 5 * time.Second

// RefreshResult is emitted on the result channel after every cycle.
type RefreshResult struct {
	// Groups is the sorted, dismissal-filtered view for this cycle.
	Groups []*model.NotificationGroup

	// Alerts lists the alert requests raised by this cycle. Empty for
	// load-more cycles, which never alert.
	Alerts []alert.Alert

	// LoadedPages and HasMore describe pagination state.
	LoadedPages int
	HasMore     bool

	// Err is the cycle-level failure, if any. It clears on the next
	// successful cycle.
	Err error

	// Unauthorized marks Err as a credential failure requiring
	// re-authentication.
	Unauthorized bool
}

// Refresher drives the ingest → classify → filter → alert chain. One
// goroutine processes one cycle at a time; remote calls inside a cycle
// are bounded by the pipeline's caps.
type Refresher struct {
	client     source.Client
	controller *ingest.Controller
	pipe       *pipeline.Pipeline
	dismissals *dismiss.Store
	userTeams  *cache.UserTeamsCache
	dispatcher *alert.Dispatcher
	log        *slog.Logger

	interval  time.Duration
	sinceDays int

	// invalidate is called once the unauthorized grace period elapses
	// without an intervening successful cycle.
	invalidate func()

	viewer    model.Identity
	teamSlugs []string
	seen      map[string]struct{}

	resultCh   chan RefreshResult
	refreshCh  chan struct{}
	loadMoreCh chan struct{}
	stopCh     chan struct{}

	graceTimer *time.Timer

	mu      gosync.Mutex
	running bool
}

// Options configures a Refresher.
type Options struct {
	Interval   time.Duration
	SinceDays  int
	Invalidate func()
	Log        *slog.Logger
}

// NewRefresher creates a refresher over the given collaborators.
func NewRefresher(
	client source.Client,
	controller *ingest.Controller,
	pipe *pipeline.Pipeline,
	dismissals *dismiss.Store,
	userTeams *cache.UserTeamsCache,
	dispatcher *alert.Dispatcher,
	opts Options,
) *Refresher {
	if opts.Interval <= 0 {
		opts.Interval = 60 * time.Second
	}
	if opts.SinceDays <= 0 {
		opts.SinceDays = 30
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Refresher{
		client:     client,
		controller: controller,
		pipe:       pipe,
		dismissals: dismissals,
		userTeams:  userTeams,
		dispatcher: dispatcher,
		log:        opts.Log,
		interval:   opts.Interval,
		sinceDays:  opts.SinceDays,
		invalidate: opts.Invalidate,
		resultCh:   make(chan RefreshResult, 16),
		refreshCh:  make(chan struct{}, 1),
		loadMoreCh: make(chan struct{}, 1),
		stopCh:     make(chan struct{}),
	}
}

// Start launches the refresh loop. The first cycle runs immediately.
func (r *Refresher) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.run()
}

// Stop halts the refresh loop. Pending timers are cancelled and any
// in-flight cycle's results are discarded without being applied.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	close(r.stopCh)
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	r.running = false
}

// Refresh triggers an immediate full refresh without blocking.
func (r *Refresher) Refresh() {
	select {
	case r.refreshCh <- struct{}{}:
	default:
	}
}

// LoadMore triggers an incremental page load without blocking. Load
// more never raises alerts.
func (r *Refresher) LoadMore() {
	select {
	case r.loadMoreCh <- struct{}{}:
	default:
	}
}

// Results returns the channel refresh outcomes are emitted on.
func (r *Refresher) Results() <-chan RefreshResult {
	return r.resultCh
}

// run is the single refresh actor.
func (r *Refresher) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.fullRefresh()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.fullRefresh()
		case <-r.refreshCh:
			r.fullRefresh()
		case <-r.loadMoreCh:
			r.loadMore()
		}
	}
}

// fullRefresh re-fetches every loaded page, re-classifies, and is the
// only path allowed to raise alerts.
func (r *Refresher) fullRefresh() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	since := time.Now().AddDate(0, 0, -r.sinceDays)

	if err := r.ensureIdentity(ctx); err != nil {
		r.fail(err)
		return
	}

	var err error
	if r.controller.PageCount() == 0 {
		err = r.controller.FirstPage(ctx, since)
	} else {
		err = r.controller.Refresh(ctx, since)
	}
	if err != nil {
		r.fail(err)
		return
	}

	groups, err := r.classifyAndFilter(ctx)
	if err != nil {
		r.fail(err)
		return
	}

	alerts := r.dispatcher.Dispatch(groups, r.seen)
	r.rememberSeen(r.controller.Events())
	r.cycleSucceeded()

	r.sendResult(RefreshResult{
		Groups:      groups,
		Alerts:      alerts,
		LoadedPages: r.controller.PageCount(),
		HasMore:     r.controller.HasMore(),
	})
}

// loadMore appends one page and re-classifies with alerting suppressed.
func (r *Refresher) loadMore() {
	ctx, cancel := context.WithTimeout(context.Background(), cycleTimeout)
	defer cancel()

	since := time.Now().AddDate(0, 0, -r.sinceDays)

	if err := r.ensureIdentity(ctx); err != nil {
		r.fail(err)
		return
	}

	if _, err := r.controller.LoadMore(ctx, since); err != nil {
		r.fail(err)
		return
	}

	groups, err := r.classifyAndFilter(ctx)
	if err != nil {
		r.fail(err)
		return
	}

	// Paged-in events are pre-existing, not new; fold them into the
	// seen set so the next full refresh does not alert on them.
	r.rememberSeen(r.controller.Events())
	r.cycleSucceeded()

	r.sendResult(RefreshResult{
		Groups:      groups,
		LoadedPages: r.controller.PageCount(),
		HasMore:     r.controller.HasMore(),
	})
}

// classifyAndFilter runs the pipeline and drops dismissed groups.
func (r *Refresher) classifyAndFilter(
	ctx context.Context,
) ([]*model.NotificationGroup, error) {
	groups, err := r.pipe.Classify(
		ctx, r.controller.Events(), r.viewer, r.teamSlugs,
	)
	if err != nil {
		return nil, err
	}

	dismissed, err := r.dismissals.DismissedSet(ctx)
	if err != nil {
		return nil, err
	}

	kept := groups[:0]
	for _, g := range groups {
		if _, ok := dismissed[g.Key]; ok {
			continue
		}
		kept = append(kept, g)
	}
	return kept, nil
}

// ensureIdentity resolves the caller's identity and team slugs once,
// refreshing team memberships through the medium-TTL cache. Team
// lookup failures are non-fatal; classification proceeds with the
// slugs it has.
func (r *Refresher) ensureIdentity(ctx context.Context) error {
	if r.viewer.Login == "" {
		viewer, err := r.client.GetCurrentUser(ctx)
		if err != nil {
			return err
		}
		r.viewer = viewer
	}

	teams, ok, err := r.userTeams.Get(ctx)
	if err != nil {
		return err
	}
	if !ok {
		teams, err = r.client.GetUserTeams(ctx)
		if err != nil {
			if source.IsAuthError(err) {
				return err
			}
			r.log.Debug("team membership fetch failed", "error", err)
			return nil
		}
		if err := r.userTeams.Set(ctx, teams); err != nil {
			return err
		}
	}

	slugs := make([]string, 0, len(teams))
	for _, t := range teams {
		slugs = append(slugs, t.Slug)
	}
	r.teamSlugs = slugs
	return nil
}

// rememberSeen replaces the previously-seen event id set.
func (r *Refresher) rememberSeen(events []model.RawEvent) {
	seen := make(map[string]struct{}, len(events))
	for _, e := range events {
		seen[e.ID] = struct{}{}
	}
	if r.seen != nil {
		// Ids that scrolled out of the loaded window stay seen so a
		// later re-appearance does not alert again.
		for id := range r.seen {
			seen[id] = struct{}{}
		}
	}
	r.seen = seen
}

// fail reports a cycle-level error. Unauthorized failures additionally
// arm the credential-invalidation grace timer.
func (r *Refresher) fail(err error) {
	unauthorized := source.IsAuthError(err)
	r.log.Warn("refresh cycle failed", "error", err, "unauthorized", unauthorized)

	if unauthorized && r.invalidate != nil {
		r.mu.Lock()
		if r.graceTimer == nil && r.running {
			r.graceTimer = time.AfterFunc(unauthorizedGrace, r.invalidate)
		}
		r.mu.Unlock()
	}

	r.sendResult(RefreshResult{Err: err, Unauthorized: unauthorized})
}

// cycleSucceeded cancels any pending credential invalidation.
func (r *Refresher) cycleSucceeded() {
	r.mu.Lock()
	if r.graceTimer != nil {
		r.graceTimer.Stop()
		r.graceTimer = nil
	}
	r.mu.Unlock()
}

// sendResult emits a result without blocking, discarding it if the
// session has been stopped.
func (r *Refresher) sendResult(res RefreshResult) {
	select {
	case <-r.stopCh:
		return
	default:
	}

	select {
	case r.resultCh <- res:
	default:
		// Drop if the channel is full to avoid blocking the actor.
	}
}
