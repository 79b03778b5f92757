package sqlite

import "github.com/ericfisherdev/repopulse/internal/domain/port/driven"

// Compile-time interface satisfaction check.
var _ driven.Store = (*Store)(nil)

// Store bundles the per-table repositories into a single driven.Store.
type Store struct {
	*InfoRepo
	*EventRepo
	*StatsRepo
	*CommitReviewRepo
	*FeedRepo
}

// NewStore creates a Store over db. Migrations must already have been run.
func NewStore(db *DB) *Store {
	return &Store{
		InfoRepo:         NewInfoRepo(db),
		EventRepo:        NewEventRepo(db),
		StatsRepo:        NewStatsRepo(db),
		CommitReviewRepo: NewCommitReviewRepo(db),
		FeedRepo:         NewFeedRepo(db),
	}
}
