// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Sentinel errors returned by Scheduler.RefreshRepo.
var (
	ErrUnknownRepo         = errors.New("repository is not tracked")
	ErrSchedulerNotRunning = errors.New("scheduler is not running")
	ErrRefreshTooSoon      = errors.New("repository was refreshed less than one interval ago")
)

// RepoUpdater runs one update cycle for a repository. UpdateService is the
// production implementation.
type RepoUpdater interface {
	UpdateRepository(ctx context.Context, repo model.Repository)
}

// FeedRebuilder rebuilds the global feed from the stores. FeedService is the
// production implementation.
type FeedRebuilder interface {
	Rebuild(ctx context.Context) error
}

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	repo model.Repository
	done chan error
}

// SchedulerStatus is a point-in-time view of the scheduler for observability.
type SchedulerStatus struct {
	State     model.SchedulerState
	Queue     []model.Repository
	Interval  time.Duration
	LastTick  time.Time
	LastRepo  string
	TickCount int
}

// Scheduler owns the rotating repository queue. After an initial load of
// every repository it processes exactly one repository per tick and rebuilds
// the feed after each cycle. Ticks, manual refreshes and the initial load are
// serialized.
type Scheduler struct {
	repos    []model.Repository
	updater  RepoUpdater
	feed     FeedRebuilder
	info     driven.InfoStore
	gh       driven.GitHubClient
	interval time.Duration

	// cycleMu serializes everything that runs an update cycle.
	cycleMu sync.Mutex

	mu        sync.Mutex
	state     model.SchedulerState
	queue     []model.Repository
	looping   bool
	lastTick  time.Time
	lastRepo  string
	tickCount int
	cancel    context.CancelFunc
	done      chan struct{}

	// lastRefresh holds the acceptance time of each repository's most recent
	// manual refresh.
	lastRefresh map[string]time.Time

	refreshCh chan refreshRequest
}

// NewScheduler creates an idle Scheduler over repos. gh is only consulted for
// rate-limit logging and may be nil.
func NewScheduler(
	repos []model.Repository,
	updater RepoUpdater,
	feed FeedRebuilder,
	info driven.InfoStore,
	gh driven.GitHubClient,
	interval time.Duration,
) *Scheduler {
	return &Scheduler{
		repos:     slices.Clone(repos),
		updater:   updater,
		feed:      feed,
		info:      info,
		gh:        gh,
		interval:  interval,
		state:     model.SchedulerIdle,
		refreshCh: make(chan refreshRequest),

		lastRefresh: make(map[string]time.Time),
	}
}

// InitialLoad updates every repository concurrently, rebuilds the feed once
// all of them have settled, then builds the queue and moves to Running. If
// ctx is canceled during the load the scheduler returns to Idle instead.
func (s *Scheduler) InitialLoad(ctx context.Context) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.setState(model.SchedulerInitialLoading)
	slog.Info("initial load starting", "repos", len(s.repos))
	start := time.Now()

	outcomes := gather(ctx, 0, s.repos, func(ctx context.Context, repo model.Repository) (struct{}, error) {
		s.updater.UpdateRepository(ctx, repo)
		return struct{}{}, nil
	})
	for i, o := range outcomes {
		if o.Err != nil {
			slog.Error("initial repo update failed", "repo", s.repos[i].ID, "error", o.Err)
		}
	}

	s.rebuildFeed(ctx)

	if err := ctx.Err(); err != nil {
		slog.Warn("initial load canceled", "error", err)
		s.setState(model.SchedulerIdle)
		return
	}

	attrs := []any{"repos", len(s.repos), "duration", time.Since(start).Round(time.Millisecond)}
	slog.Info("initial load complete", append(attrs, rateLimitAttrs(s.gh)...)...)

	s.rebuildQueue(ctx)
	s.setState(model.SchedulerRunning)
}

// Start runs the initial load and then ticks every interval, also serving
// manual refresh requests. Start blocks until ctx is canceled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		slog.Warn("scheduler already started")
		return
	}
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.looping = false
		s.mu.Unlock()
		close(done)
	}()

	s.InitialLoad(ctx)
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.looping = true
	s.mu.Unlock()

	slog.Info("scheduler running", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		case req := <-s.refreshCh:
			req.done <- s.refresh(ctx, req.repo)
		}
	}
}

// Stop cancels a running Start and waits for it to return. It is a no-op if
// the scheduler was never started.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Tick dequeues exactly one repository, runs its update cycle and rebuilds
// the feed once the cycle has settled. An empty queue is rebuilt first.
func (s *Scheduler) Tick(ctx context.Context) {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	if s.queueLen() == 0 {
		s.rebuildQueue(ctx)
	}

	s.mu.Lock()
	if len(s.queue) == 0 {
		s.mu.Unlock()
		return
	}
	repo := s.queue[0]
	s.queue = s.queue[1:]
	s.lastTick = time.Now()
	s.lastRepo = repo.ID
	s.tickCount++
	s.mu.Unlock()

	s.runCycle(ctx, repo)
}

// RefreshRepo runs an out-of-band update cycle for repoID through the
// scheduler loop, so it never overlaps a tick. The queue is left untouched.
// Each repository accepts at most one manual refresh per interval; earlier
// requests fail with ErrRefreshTooSoon. It blocks until the refresh
// completes, ctx is canceled or the scheduler stops.
func (s *Scheduler) RefreshRepo(ctx context.Context, repoID string) error {
	idx := slices.IndexFunc(s.repos, func(r model.Repository) bool { return r.ID == repoID })
	if idx < 0 {
		return ErrUnknownRepo
	}

	s.mu.Lock()
	if !s.looping {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	now := time.Now()
	if last, ok := s.lastRefresh[repoID]; ok && now.Sub(last) < s.interval {
		s.mu.Unlock()
		slog.Info("manual refresh rejected", "repo", repoID, "last", last)
		return ErrRefreshTooSoon
	}
	s.lastRefresh[repoID] = now
	done := s.done
	s.mu.Unlock()

	slog.Info("manual refresh requested", "repo", repoID)

	req := refreshRequest{
		repo: s.repos[idx],
		done: make(chan error, 1),
	}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		s.releaseRefresh(repoID, now)
		return ctx.Err()
	case <-done:
		s.releaseRefresh(repoID, now)
		return ErrSchedulerNotRunning
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return ErrSchedulerNotRunning
	}
}

// releaseRefresh forgets a refresh that was never handed to the loop, unless
// a newer one has been accepted since.
func (s *Scheduler) releaseRefresh(repoID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRefresh[repoID].Equal(at) {
		delete(s.lastRefresh, repoID)
	}
}

// State returns the current lifecycle state.
func (s *Scheduler) State() model.SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// QueueSnapshot returns a copy of the remaining queue, head first.
func (s *Scheduler) QueueSnapshot() []model.Repository {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.queue)
}

// Status returns a snapshot of the scheduler's state and queue.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SchedulerStatus{
		State:     s.state,
		Queue:     slices.Clone(s.queue),
		Interval:  s.interval,
		LastTick:  s.lastTick,
		LastRepo:  s.lastRepo,
		TickCount: s.tickCount,
	}
}

// Repositories returns the configured repository set in configured order.
func (s *Scheduler) Repositories() []model.Repository {
	return slices.Clone(s.repos)
}

func (s *Scheduler) refresh(ctx context.Context, repo model.Repository) error {
	s.cycleMu.Lock()
	defer s.cycleMu.Unlock()

	s.runCycle(ctx, repo)
	return ctx.Err()
}

func (s *Scheduler) runCycle(ctx context.Context, repo model.Repository) {
	s.updater.UpdateRepository(ctx, repo)
	s.rebuildFeed(ctx)
}

func (s *Scheduler) rebuildFeed(ctx context.Context) {
	if err := s.feed.Rebuild(ctx); err != nil {
		slog.Error("feed rebuild failed", "error", err)
	}
}

// rebuildQueue replaces the queue with a fresh recency ordering of all
// configured repositories.
func (s *Scheduler) rebuildQueue(ctx context.Context) {
	pushed := make(map[string]time.Time, len(s.repos))
	for _, r := range s.repos {
		info, err := s.info.GetInfo(ctx, r.ID)
		if err != nil {
			slog.Warn("queue rebuild: info lookup failed", "repo", r.ID, "error", err)
			continue
		}
		if info != nil {
			pushed[r.ID] = info.PushedAt
		}
	}

	queue := orderQueue(s.repos, pushed)

	s.mu.Lock()
	s.queue = queue
	s.mu.Unlock()

	top := make([]string, 0, 3)
	for _, r := range queue[:min(3, len(queue))] {
		top = append(top, r.DisplayName)
	}
	slog.Info("queue rebuilt", "size", len(queue), "top", top)
}

// orderQueue sorts repositories with known activity by descending push time.
// Repositories without metadata keep their configured positions; the others
// are sorted into the remaining slots.
func orderQueue(repos []model.Repository, pushed map[string]time.Time) []model.Repository {
	out := slices.Clone(repos)

	var (
		slots []int
		known []model.Repository
	)
	for i, r := range repos {
		if _, ok := pushed[r.ID]; ok {
			slots = append(slots, i)
			known = append(known, r)
		}
	}

	slices.SortStableFunc(known, func(a, b model.Repository) int {
		return pushed[b.ID].Compare(pushed[a.ID])
	})

	for i, slot := range slots {
		out[slot] = known[i]
	}
	return out
}

func (s *Scheduler) queueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Scheduler) setState(state model.SchedulerState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}
