package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Per-cycle fan-out bounds.
const (
	maxStatsPerCycle   = 5
	maxReviewsPerCycle = 2
)

// CommitReviewer is the review step of an update cycle. ReviewGate is the
// production implementation.
type CommitReviewer interface {
	ReviewCommit(ctx context.Context, repoID, sha, messageHint string) *model.CommitReview
}

// UpdateService refreshes a single repository: metadata, event stream, stats
// for newly seen commits and reviews for a few of them. Every sub-step is
// isolated; nothing is retried within a cycle.
type UpdateService struct {
	gh       driven.GitHubClient
	store    driven.Store
	reviewer CommitReviewer
}

// NewUpdateService creates an UpdateService. reviewer may be nil to skip the
// review step entirely.
func NewUpdateService(gh driven.GitHubClient, store driven.Store, reviewer CommitReviewer) *UpdateService {
	return &UpdateService{
		gh:       gh,
		store:    store,
		reviewer: reviewer,
	}
}

// UpdateRepository runs one cycle for repo. It never returns an error or
// panics; failures are logged and leave the previous stored values in place.
func (s *UpdateService) UpdateRepository(ctx context.Context, repo model.Repository) {
	start := time.Now()

	defer func() {
		if v := recover(); v != nil {
			slog.Error("repo update panicked", "repo", repo.ID, "panic", fmt.Sprint(v))
		}
	}()

	var (
		info   *model.RepoInfo
		events []model.Event
	)

	steps := []func(context.Context) error{
		func(ctx context.Context) (err error) {
			info, err = s.gh.FetchRepoInfo(ctx, repo.ID)
			return err
		},
		func(ctx context.Context) (err error) {
			events, err = s.gh.FetchRepoEvents(ctx, repo.ID)
			return err
		},
	}
	fetched := gather(ctx, 0, steps, func(ctx context.Context, step func(context.Context) error) (struct{}, error) {
		return struct{}{}, step(ctx)
	})
	infoErr, eventsErr := fetched[0].Err, fetched[1].Err

	if infoErr != nil {
		slog.Error("repo info fetch failed", "repo", repo.ID, "error", infoErr)
	} else if info != nil {
		s.storeInfo(ctx, repo, *info)
	}

	var batch []string
	var reviewed int

	if eventsErr != nil {
		slog.Error("repo events fetch failed", "repo", repo.ID, "error", eventsErr)
	} else {
		s.storeEvents(ctx, repo.ID, events)

		var hints map[string]string
		batch, hints = s.newCommits(ctx, repo.ID, events)
		s.fetchStats(ctx, repo.ID, batch)
		reviewed = s.reviewCommits(ctx, repo.ID, batch, hints)
	}

	attrs := []any{
		"repo", repo.ID,
		"events", len(events),
		"new_commits", len(batch),
		"reviews", reviewed,
		"duration", time.Since(start).Round(time.Millisecond),
	}
	slog.Info("repo update complete", append(attrs, rateLimitAttrs(s.gh)...)...)
}

// rateLimitAttrs returns log attributes for the last rate limit observed by
// client, or nothing if client does not track one.
func rateLimitAttrs(client any) []any {
	reporter, ok := client.(driven.RateLimitReporter)
	if !ok {
		return nil
	}

	rl := reporter.RateLimit()
	return []any{
		"rate_remaining", rl.Remaining,
		"rate_limit", rl.Limit,
		"rate_reset", rl.Reset.Local().Format(time.TimeOnly),
	}
}

func (s *UpdateService) storeInfo(ctx context.Context, repo model.Repository, info model.RepoInfo) {
	info.RepoID = repo.ID
	info.DisplayName = repo.DisplayName

	if err := s.store.PutInfo(ctx, info); err != nil {
		slog.Error("failed to store repo info", "repo", repo.ID, "error", err)
	}
}

// storeEvents writes events unless the fetch came back empty and something
// was already stored for the repository.
func (s *UpdateService) storeEvents(ctx context.Context, repoID string, events []model.Event) {
	_, found, err := s.store.GetEvents(ctx, repoID)
	if err != nil {
		slog.Error("failed to read stored events", "repo", repoID, "error", err)
		return
	}

	if len(events) == 0 && found {
		slog.Debug("empty event fetch, keeping previous events", "repo", repoID)
		return
	}

	if events == nil {
		events = []model.Event{}
	}
	if err := s.store.PutEvents(ctx, repoID, events); err != nil {
		slog.Error("failed to store repo events", "repo", repoID, "error", err)
	}
}

// newCommits returns up to maxStatsPerCycle pushed commits that have no stats
// yet, in stream order, plus a sha to message lookup for all pushed commits.
// When a sha appears more than once the last non-empty message wins.
func (s *UpdateService) newCommits(ctx context.Context, repoID string, events []model.Event) ([]string, map[string]string) {
	hints := make(map[string]string)
	seen := make(map[string]bool)
	var batch []string

	for _, c := range model.PushCommits(events) {
		if c.SHA == "" {
			continue
		}
		if c.Message != "" {
			hints[c.SHA] = c.Message
		}
		if seen[c.SHA] {
			continue
		}
		seen[c.SHA] = true

		if len(batch) >= maxStatsPerCycle {
			continue
		}

		known, err := s.store.HasCommitStats(ctx, model.CommitKey{RepoID: repoID, SHA: c.SHA})
		if err != nil {
			slog.Warn("stats lookup failed", "repo", repoID, "sha", c.SHA, "error", err)
			continue
		}
		if !known {
			batch = append(batch, c.SHA)
		}
	}

	return batch, hints
}

func (s *UpdateService) fetchStats(ctx context.Context, repoID string, batch []string) {
	outcomes := gather(ctx, maxStatsPerCycle, batch, func(ctx context.Context, sha string) (bool, error) {
		stats, err := s.gh.FetchCommitStats(ctx, repoID, sha)
		if err != nil {
			return false, err
		}
		if stats == nil {
			return false, errors.New("no stats returned")
		}

		stats.SHA = sha
		return s.store.PutCommitStats(ctx, model.CommitKey{RepoID: repoID, SHA: sha}, *stats)
	})

	for i, o := range outcomes {
		if o.Err != nil {
			slog.Error("commit stats fetch failed", "repo", repoID, "sha", batch[i], "error", o.Err)
		}
	}
}

// reviewCommits reviews the first maxReviewsPerCycle commits of batch and
// returns how many reviews came back.
func (s *UpdateService) reviewCommits(ctx context.Context, repoID string, batch []string, hints map[string]string) int {
	if s.reviewer == nil || len(batch) == 0 {
		return 0
	}

	candidates := batch
	if len(candidates) > maxReviewsPerCycle {
		candidates = candidates[:maxReviewsPerCycle]
	}

	outcomes := gather(ctx, maxReviewsPerCycle, candidates, func(ctx context.Context, sha string) (*model.CommitReview, error) {
		return s.reviewer.ReviewCommit(ctx, repoID, sha, hints[sha]), nil
	})

	var reviewed int
	for i, o := range outcomes {
		switch {
		case o.Err != nil:
			slog.Error("commit review failed", "repo", repoID, "sha", candidates[i], "error", o.Err)
		case o.Value != nil:
			reviewed++
		}
	}
	return reviewed
}
