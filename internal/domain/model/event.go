package model

import "time"

// GitHub event type tags handled by the feed.
const (
	EventTypePush         = "PushEvent"
	EventTypePullRequest  = "PullRequestEvent"
	EventTypeIssues       = "IssuesEvent"
	EventTypeIssueComment = "IssueCommentEvent"
	EventTypeRelease      = "ReleaseEvent"
	EventTypeCreate       = "CreateEvent"
	EventTypeFork         = "ForkEvent"
	EventTypeWatch        = "WatchEvent"
)

// Event is one entry of a repository's public activity stream.
type Event struct {
	ID        string
	Type      string
	Actor     string
	CreatedAt time.Time
	Payload   EventPayload
}

// EventPayload holds the type-specific fields the feed cares about. Only the
// fields relevant to Type are populated.
type EventPayload struct {
	Action  string
	Ref     string
	RefType string
	Number  int
	Title   string
	URL     string
	Commits []CommitStub
}

// CommitStub is a commit embedded in a push event.
type CommitStub struct {
	SHA     string
	Message string
	Author  string
}

// PushCommits returns the commit stubs of every push event, in stream order.
func PushCommits(events []Event) []CommitStub {
	var commits []CommitStub
	for _, ev := range events {
		if ev.Type != EventTypePush {
			continue
		}
		commits = append(commits, ev.Payload.Commits...)
	}
	return commits
}
