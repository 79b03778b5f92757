package application_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/repopulse/internal/adapter/driven/memory"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// callLog records updater and feed calls in the order they completed.
type callLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *callLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, s)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeUpdater struct {
	log      *callLog
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (u *fakeUpdater) UpdateRepository(_ context.Context, repo model.Repository) {
	n := u.inFlight.Add(1)
	for {
		seen := u.maxSeen.Load()
		if n <= seen || u.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	time.Sleep(u.delay)
	u.log.add("update:" + repo.ID)
	u.inFlight.Add(-1)
}

type fakeFeed struct {
	log *callLog
}

func (f *fakeFeed) Rebuild(context.Context) error {
	f.log.add("rebuild")
	return nil
}

var (
	repoA = model.Repository{ID: "o/a", DisplayName: "A"}
	repoB = model.Repository{ID: "o/b", DisplayName: "B"}
	repoC = model.Repository{ID: "o/c", DisplayName: "C"}
	repoD = model.Repository{ID: "o/d", DisplayName: "D"}
)

func putPushed(t *testing.T, store *memory.Store, repo model.Repository, pushed string) {
	t.Helper()
	require.NoError(t, store.PutInfo(context.Background(), model.RepoInfo{
		RepoID:      repo.ID,
		DisplayName: repo.DisplayName,
		PushedAt:    mustTime(pushed),
	}))
}

func newTestScheduler(repos []model.Repository, store *memory.Store) (*application.Scheduler, *fakeUpdater, *callLog) {
	log := &callLog{}
	updater := &fakeUpdater{log: log, delay: 5 * time.Millisecond}
	s := application.NewScheduler(repos, updater, &fakeFeed{log: log}, store, nil, time.Hour)
	return s, updater, log
}

func ids(repos []model.Repository) []string {
	out := make([]string, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.ID)
	}
	return out
}

func TestScheduler_InitialLoad(t *testing.T) {
	store := memory.NewStore()
	s, updater, log := newTestScheduler([]model.Repository{repoA, repoB, repoC}, store)

	assert.Equal(t, model.SchedulerIdle, s.State())

	s.InitialLoad(context.Background())

	entries := log.snapshot()
	require.Len(t, entries, 4)
	assert.ElementsMatch(t, []string{"update:o/a", "update:o/b", "update:o/c"}, entries[:3])
	assert.Equal(t, "rebuild", entries[3], "feed rebuilt once, after every repo settled")
	assert.Greater(t, updater.maxSeen.Load(), int32(1), "initial load runs repos concurrently")

	assert.Equal(t, model.SchedulerRunning, s.State())
	assert.Len(t, s.QueueSnapshot(), 3)
}

func TestScheduler_QueueOrder(t *testing.T) {
	store := memory.NewStore()
	putPushed(t, store, repoA, "2025-03-01T00:00:00Z")
	putPushed(t, store, repoB, "2025-01-01T00:00:00Z")

	tests := []struct {
		name  string
		repos []model.Repository
		want  []string
	}{
		{
			name:  "known repos sorted newest first",
			repos: []model.Repository{repoB, repoA},
			want:  []string{"o/a", "o/b"},
		},
		{
			name:  "unknown repo keeps its configured slot",
			repos: []model.Repository{repoB, repoC, repoA},
			want:  []string{"o/a", "o/c", "o/b"},
		},
		{
			name:  "unknown repos keep relative order",
			repos: []model.Repository{repoC, repoB, repoD, repoA},
			want:  []string{"o/c", "o/a", "o/d", "o/b"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, _ := newTestScheduler(tt.repos, store)
			s.InitialLoad(context.Background())

			assert.Equal(t, tt.want, ids(s.QueueSnapshot()))
		})
	}
}

func TestScheduler_TickProcessesExactlyOneRepo(t *testing.T) {
	store := memory.NewStore()
	putPushed(t, store, repoA, "2025-03-01T00:00:00Z")
	putPushed(t, store, repoB, "2025-01-01T00:00:00Z")

	s, _, log := newTestScheduler([]model.Repository{repoB, repoA}, store)
	s.InitialLoad(context.Background())
	before := len(log.snapshot())

	s.Tick(context.Background())

	assert.Equal(t, []string{"update:o/a", "rebuild"}, log.snapshot()[before:])
	assert.Equal(t, []string{"o/b"}, ids(s.QueueSnapshot()))

	status := s.Status()
	assert.Equal(t, 1, status.TickCount)
	assert.Equal(t, "o/a", status.LastRepo)
	assert.False(t, status.LastTick.IsZero())
}

func TestScheduler_TickRebuildsEmptyQueue(t *testing.T) {
	store := memory.NewStore()
	putPushed(t, store, repoA, "2025-03-01T00:00:00Z")
	putPushed(t, store, repoB, "2025-01-01T00:00:00Z")

	s, _, log := newTestScheduler([]model.Repository{repoA, repoB}, store)

	// No initial load: the first tick builds the queue itself.
	s.Tick(context.Background())
	s.Tick(context.Background())
	assert.Empty(t, s.QueueSnapshot())

	// Activity changes before the queue runs dry; the rebuild sees it.
	putPushed(t, store, repoB, "2025-04-01T00:00:00Z")
	s.Tick(context.Background())

	assert.Equal(t, []string{
		"update:o/a", "rebuild",
		"update:o/b", "rebuild",
		"update:o/b", "rebuild",
	}, log.snapshot())
	assert.Equal(t, []string{"o/a"}, ids(s.QueueSnapshot()))
}

func TestScheduler_TickWithNoRepos(t *testing.T) {
	s, _, log := newTestScheduler(nil, memory.NewStore())

	s.Tick(context.Background())

	assert.Empty(t, log.snapshot())
}

func TestScheduler_TicksAreSerialized(t *testing.T) {
	s, updater, log := newTestScheduler([]model.Repository{repoA, repoB, repoC}, memory.NewStore())

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Tick(context.Background())
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), updater.maxSeen.Load())
	assert.Len(t, log.snapshot(), 6)
	assert.Empty(t, s.QueueSnapshot())
}

func TestScheduler_RefreshRepoErrors(t *testing.T) {
	s, _, _ := newTestScheduler([]model.Repository{repoA}, memory.NewStore())

	err := s.RefreshRepo(context.Background(), "o/unknown")
	assert.ErrorIs(t, err, application.ErrUnknownRepo)

	err = s.RefreshRepo(context.Background(), repoA.ID)
	assert.ErrorIs(t, err, application.ErrSchedulerNotRunning)
}

func TestScheduler_StartRefreshStop(t *testing.T) {
	s, _, log := newTestScheduler([]model.Repository{repoA, repoB}, memory.NewStore())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return s.RefreshRepo(ctx, repoB.ID) == nil
	}, 5*time.Second, 10*time.Millisecond)

	entries := log.snapshot()
	assert.Equal(t, []string{"update:o/b", "rebuild"}, entries[len(entries)-2:])
	assert.Len(t, s.QueueSnapshot(), 2, "manual refresh leaves the queue alone")

	s.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func startScheduler(t *testing.T, s *application.Scheduler) {
	t.Helper()

	go s.Start(context.Background())
	t.Cleanup(s.Stop)
}

func TestScheduler_RefreshRepoRateLimited(t *testing.T) {
	s, _, log := newTestScheduler([]model.Repository{repoA, repoB}, memory.NewStore())
	startScheduler(t, s)

	require.Eventually(t, func() bool {
		return s.RefreshRepo(context.Background(), repoB.ID) == nil
	}, 5*time.Second, 10*time.Millisecond)
	before := len(log.snapshot())

	err := s.RefreshRepo(context.Background(), repoB.ID)
	require.ErrorIs(t, err, application.ErrRefreshTooSoon)
	assert.Len(t, log.snapshot(), before, "rejected refresh must not run a cycle")

	assert.NoError(t, s.RefreshRepo(context.Background(), repoA.ID), "limit is per repository")
}

func TestScheduler_RefreshRepoAllowedAfterInterval(t *testing.T) {
	log := &callLog{}
	s := application.NewScheduler([]model.Repository{repoA}, &fakeUpdater{log: log}, &fakeFeed{log: log},
		memory.NewStore(), nil, 50*time.Millisecond)
	startScheduler(t, s)

	require.Eventually(t, func() bool {
		return s.RefreshRepo(context.Background(), repoA.ID) == nil
	}, 5*time.Second, 10*time.Millisecond)
	require.ErrorIs(t, s.RefreshRepo(context.Background(), repoA.ID), application.ErrRefreshTooSoon)

	assert.Eventually(t, func() bool {
		return s.RefreshRepo(context.Background(), repoA.ID) == nil
	}, 5*time.Second, 10*time.Millisecond)
}

// blockingUpdater parks each update until ctx is canceled once block is set.
type blockingUpdater struct {
	block   atomic.Bool
	started chan string
}

func (u *blockingUpdater) UpdateRepository(ctx context.Context, repo model.Repository) {
	if !u.block.Load() {
		return
	}
	u.started <- repo.ID
	<-ctx.Done()
}

func TestScheduler_RefreshRepoReturnsWhenStopped(t *testing.T) {
	updater := &blockingUpdater{started: make(chan string, 3)}
	s := application.NewScheduler([]model.Repository{repoA, repoB, repoC}, updater, &fakeFeed{log: &callLog{}},
		memory.NewStore(), nil, time.Hour)
	go s.Start(context.Background())

	require.Eventually(t, func() bool {
		return s.RefreshRepo(context.Background(), repoA.ID) == nil
	}, 5*time.Second, 10*time.Millisecond)

	// Occupy the loop with a refresh that only ends on Stop.
	updater.block.Store(true)
	go func() { _ = s.RefreshRepo(context.Background(), repoB.ID) }()
	select {
	case id := <-updater.started:
		require.Equal(t, repoB.ID, id)
	case <-time.After(5 * time.Second):
		t.Fatal("blocking refresh never started")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- s.RefreshRepo(context.Background(), repoC.ID) }()
	time.Sleep(20 * time.Millisecond)

	s.Stop()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("RefreshRepo still blocked after Stop")
	}
}

func TestScheduler_InitialLoadCanceled(t *testing.T) {
	store := memory.NewStore()
	putPushed(t, store, repoA, "2026-03-01T00:00:00Z")
	s, _, _ := newTestScheduler([]model.Repository{repoA, repoB}, store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.InitialLoad(ctx)

	assert.Equal(t, model.SchedulerIdle, s.State())
	assert.Empty(t, s.QueueSnapshot())
}
