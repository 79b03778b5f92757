package model

import "time"

// FeedItem is one rendered entry of the global activity feed.
type FeedItem struct {
	Type        string
	Icon        string
	When        time.Time
	RepoID      string
	DisplayName string
	Actor       string
	Title       string
	URL         string
	Extra       string
	SHA         string
	Stats       *CommitStats
	Review      *CommitReview
}
