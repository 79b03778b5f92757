package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// ErrCommitNotFound is returned by QueryService.GetCommit when neither stats
// nor a review are known for the commit.
var ErrCommitNotFound = errors.New("commit not found")

// RepoSummary is the read view of one tracked repository.
type RepoSummary struct {
	Repo     model.Repository
	Info     *model.RepoInfo
	Events   int
	Activity ActivityTier
}

// CommitDetail is the read view of one commit's cached enrichment.
type CommitDetail struct {
	Key    model.CommitKey
	Stats  *model.CommitStats
	Review *model.CommitReview
}

// QueryService assembles read views over the stores for the driving adapters.
// It never triggers external calls.
type QueryService struct {
	repos []model.Repository
	store driven.Store
}

// NewQueryService creates a QueryService over the configured repositories.
func NewQueryService(repos []model.Repository, store driven.Store) *QueryService {
	return &QueryService{
		repos: repos,
		store: store,
	}
}

// ListRepos returns a summary per configured repository, in configured order.
func (s *QueryService) ListRepos(ctx context.Context) ([]RepoSummary, error) {
	out := make([]RepoSummary, 0, len(s.repos))

	for _, repo := range s.repos {
		info, err := s.store.GetInfo(ctx, repo.ID)
		if err != nil {
			return nil, fmt.Errorf("reading info for %s: %w", repo.ID, err)
		}

		events, _, err := s.store.GetEvents(ctx, repo.ID)
		if err != nil {
			return nil, fmt.Errorf("reading events for %s: %w", repo.ID, err)
		}

		out = append(out, RepoSummary{
			Repo:     repo,
			Info:     info,
			Events:   len(events),
			Activity: RepoActivity(info),
		})
	}

	return out, nil
}

// Feed returns the current feed, cut to limit items when limit > 0.
func (s *QueryService) Feed(ctx context.Context, limit int) ([]model.FeedItem, error) {
	items, err := s.store.ListFeed(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// GetCommit returns the cached stats and review for repoID@sha.
func (s *QueryService) GetCommit(ctx context.Context, repoID, sha string) (*CommitDetail, error) {
	key := model.CommitKey{RepoID: repoID, SHA: sha}

	stats, err := s.store.GetCommitStats(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading stats for %s: %w", key, err)
	}

	review, err := s.store.GetReview(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading review for %s: %w", key, err)
	}

	if stats == nil && review == nil {
		return nil, ErrCommitNotFound
	}

	return &CommitDetail{Key: key, Stats: stats, Review: review}, nil
}
