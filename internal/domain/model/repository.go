package model

import "time"

// Repository identifies a tracked GitHub repository. ID is the "owner/name"
// full name; DisplayName is the label shown in the feed.
type Repository struct {
	ID          string
	DisplayName string
}

// RepoInfo is the latest metadata snapshot for a repository. It is replaced
// wholesale on every successful fetch.
type RepoInfo struct {
	RepoID        string
	DisplayName   string
	FullName      string
	HTMLURL       string
	Description   string
	Stars         int
	Forks         int
	OpenIssues    int
	DefaultBranch string
	PushedAt      time.Time
}

// RateLimit is the last GitHub API rate limit observed by the client.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}
