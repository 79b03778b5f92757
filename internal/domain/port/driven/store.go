package driven

import (
	"context"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// InfoStore holds the latest metadata snapshot per repository.
// GetInfo returns nil, nil when no snapshot exists.
type InfoStore interface {
	GetInfo(ctx context.Context, repoID string) (*model.RepoInfo, error)
	PutInfo(ctx context.Context, info model.RepoInfo) error
}

// EventStore holds the last fetched event stream per repository.
// GetEvents reports found=false when nothing was ever stored for repoID,
// which is distinct from a stored empty stream.
type EventStore interface {
	GetEvents(ctx context.Context, repoID string) (events []model.Event, found bool, err error)
	PutEvents(ctx context.Context, repoID string, events []model.Event) error
}

// CommitStatsStore is a write-once cache of commit statistics.
// PutCommitStats inserts only when key is absent and reports whether it did.
// GetCommitStats returns nil, nil on a miss.
type CommitStatsStore interface {
	GetCommitStats(ctx context.Context, key model.CommitKey) (*model.CommitStats, error)
	HasCommitStats(ctx context.Context, key model.CommitKey) (bool, error)
	PutCommitStats(ctx context.Context, key model.CommitKey, stats model.CommitStats) (bool, error)
}

// ReviewStore is a write-once cache of commit reviews.
// PutReview inserts only when key is absent and reports whether it did.
// GetReview returns nil, nil on a miss.
type ReviewStore interface {
	GetReview(ctx context.Context, key model.CommitKey) (*model.CommitReview, error)
	PutReview(ctx context.Context, key model.CommitKey, review model.CommitReview) (bool, error)
}

// FeedStore holds the most recently built global feed.
type FeedStore interface {
	ReplaceFeed(ctx context.Context, items []model.FeedItem) error
	ListFeed(ctx context.Context) ([]model.FeedItem, error)
}

// Store is the full set of keyed stores. No cross-store transactionality
// is provided; readers must tolerate momentarily inconsistent snapshots.
type Store interface {
	InfoStore
	EventStore
	CommitStatsStore
	ReviewStore
	FeedStore
}
