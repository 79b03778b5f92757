// Package memory implements the store ports with process-local maps.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Store = (*Store)(nil)

// Store keeps repository info, events, commit stats, reviews and the feed in
// memory. Each map has its own lock so a slow feed reader never blocks the
// update cycle's writes to the other stores.
type Store struct {
	infoMu sync.RWMutex
	infos  map[string]model.RepoInfo

	eventsMu sync.RWMutex
	events   map[string][]model.Event

	statsMu sync.RWMutex
	stats   map[model.CommitKey]model.CommitStats

	reviewsMu sync.RWMutex
	reviews   map[model.CommitKey]model.CommitReview

	feedMu sync.RWMutex
	feed   []model.FeedItem
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		infos:   make(map[string]model.RepoInfo),
		events:  make(map[string][]model.Event),
		stats:   make(map[model.CommitKey]model.CommitStats),
		reviews: make(map[model.CommitKey]model.CommitReview),
	}
}

// GetInfo returns the stored snapshot for repoID, or nil if there is none.
func (s *Store) GetInfo(_ context.Context, repoID string) (*model.RepoInfo, error) {
	s.infoMu.RLock()
	defer s.infoMu.RUnlock()

	info, ok := s.infos[repoID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// PutInfo overwrites the snapshot for info.RepoID.
func (s *Store) PutInfo(_ context.Context, info model.RepoInfo) error {
	s.infoMu.Lock()
	defer s.infoMu.Unlock()

	s.infos[info.RepoID] = info
	return nil
}

// GetEvents returns a copy of the stored event stream for repoID.
func (s *Store) GetEvents(_ context.Context, repoID string) ([]model.Event, bool, error) {
	s.eventsMu.RLock()
	defer s.eventsMu.RUnlock()

	events, ok := s.events[repoID]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(events), true, nil
}

// PutEvents overwrites the event stream for repoID.
func (s *Store) PutEvents(_ context.Context, repoID string, events []model.Event) error {
	s.eventsMu.Lock()
	defer s.eventsMu.Unlock()

	if events == nil {
		events = []model.Event{}
	}
	s.events[repoID] = slices.Clone(events)
	return nil
}

// GetCommitStats returns the cached stats for key, or nil on a miss.
func (s *Store) GetCommitStats(_ context.Context, key model.CommitKey) (*model.CommitStats, error) {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	stats, ok := s.stats[key]
	if !ok {
		return nil, nil
	}
	return &stats, nil
}

// HasCommitStats reports whether stats are cached for key.
func (s *Store) HasCommitStats(_ context.Context, key model.CommitKey) (bool, error) {
	s.statsMu.RLock()
	defer s.statsMu.RUnlock()

	_, ok := s.stats[key]
	return ok, nil
}

// PutCommitStats stores stats under key unless an entry already exists.
func (s *Store) PutCommitStats(_ context.Context, key model.CommitKey, stats model.CommitStats) (bool, error) {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()

	if _, ok := s.stats[key]; ok {
		return false, nil
	}
	s.stats[key] = stats
	return true, nil
}

// GetReview returns the cached review for key, or nil on a miss.
func (s *Store) GetReview(_ context.Context, key model.CommitKey) (*model.CommitReview, error) {
	s.reviewsMu.RLock()
	defer s.reviewsMu.RUnlock()

	review, ok := s.reviews[key]
	if !ok {
		return nil, nil
	}
	review.Risks = slices.Clone(review.Risks)
	review.Suggestions = slices.Clone(review.Suggestions)
	return &review, nil
}

// PutReview stores review under key unless an entry already exists.
func (s *Store) PutReview(_ context.Context, key model.CommitKey, review model.CommitReview) (bool, error) {
	s.reviewsMu.Lock()
	defer s.reviewsMu.Unlock()

	if _, ok := s.reviews[key]; ok {
		return false, nil
	}
	review.Risks = slices.Clone(review.Risks)
	review.Suggestions = slices.Clone(review.Suggestions)
	s.reviews[key] = review
	return true, nil
}

// ReplaceFeed swaps in a freshly built feed.
func (s *Store) ReplaceFeed(_ context.Context, items []model.FeedItem) error {
	s.feedMu.Lock()
	defer s.feedMu.Unlock()

	s.feed = slices.Clone(items)
	return nil
}

// ListFeed returns a copy of the current feed.
func (s *Store) ListFeed(_ context.Context) ([]model.FeedItem, error) {
	s.feedMu.RLock()
	defer s.feedMu.RUnlock()

	if s.feed == nil {
		return []model.FeedItem{}, nil
	}
	return slices.Clone(s.feed), nil
}
