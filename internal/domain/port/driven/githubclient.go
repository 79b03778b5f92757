package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// GitHubClient defines the driven port for reading repository activity from
// the GitHub API. Conditional-request caching and rate-limit handling are the
// implementation's concern.
type GitHubClient interface {
	// FetchRepoInfo returns the current metadata snapshot for repoID ("owner/name").
	FetchRepoInfo(ctx context.Context, repoID string) (*model.RepoInfo, error)
	// FetchRepoEvents returns the most recent activity window. An empty slice
	// is a legitimate result.
	FetchRepoEvents(ctx context.Context, repoID string) ([]model.Event, error)
	// FetchCommitStats returns size statistics for a single commit.
	FetchCommitStats(ctx context.Context, repoID, sha string) (*model.CommitStats, error)
	// FetchCommitDiff returns the unified diff of a single commit.
	FetchCommitDiff(ctx context.Context, repoID, sha string) (string, error)
}

// RateLimitReporter is implemented by GitHub clients that track the last
// rate limit reported by the API.
type RateLimitReporter interface {
	RateLimit() model.RateLimit
}
