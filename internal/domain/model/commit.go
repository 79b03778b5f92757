package model

import "time"

// CommitKey identifies a commit within a repository. It keys both the
// commit stats and the commit review caches.
type CommitKey struct {
	RepoID string
	SHA    string
}

// String returns the "repo@sha" form of the key.
func (k CommitKey) String() string {
	return k.RepoID + "@" + k.SHA
}

// CommitStats holds the size of a single commit.
type CommitStats struct {
	SHA          string
	Additions    int
	Deletions    int
	FilesChanged int
}

// Changes returns additions plus deletions.
func (s CommitStats) Changes() int {
	return s.Additions + s.Deletions
}

// CommitReview is the normalized result of an automated commit review.
type CommitReview struct {
	RepoID      string
	SHA         string
	Grade       Grade
	Score       int // 3 = good, 2 = mixed, 1 = questionable.
	Summary     string
	Risks       []string
	Suggestions []string
	CreatedAt   time.Time
	Model       string
}
