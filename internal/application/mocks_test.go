package application_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// --- Mock implementations ---

var errNotFound = errors.New("not found")

// mockGitHubClient serves canned data per repository and counts calls.
// Any function field left nil falls back to an empty, successful answer.
type mockGitHubClient struct {
	mu sync.Mutex

	fetchInfo   func(ctx context.Context, repoID string) (*model.RepoInfo, error)
	fetchEvents func(ctx context.Context, repoID string) ([]model.Event, error)
	fetchStats  func(ctx context.Context, repoID, sha string) (*model.CommitStats, error)
	fetchDiff   func(ctx context.Context, repoID, sha string) (string, error)

	infoCalls  []string
	eventCalls []string
	statsCalls []string
	diffCalls  []string
}

func (m *mockGitHubClient) record(calls *[]string, v string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	*calls = append(*calls, v)
}

func (m *mockGitHubClient) count(calls *[]string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(*calls)
}

func (m *mockGitHubClient) FetchRepoInfo(ctx context.Context, repoID string) (*model.RepoInfo, error) {
	m.record(&m.infoCalls, repoID)
	if m.fetchInfo == nil {
		return &model.RepoInfo{RepoID: repoID, FullName: repoID}, nil
	}
	return m.fetchInfo(ctx, repoID)
}

func (m *mockGitHubClient) FetchRepoEvents(ctx context.Context, repoID string) ([]model.Event, error) {
	m.record(&m.eventCalls, repoID)
	if m.fetchEvents == nil {
		return []model.Event{}, nil
	}
	return m.fetchEvents(ctx, repoID)
}

func (m *mockGitHubClient) FetchCommitStats(ctx context.Context, repoID, sha string) (*model.CommitStats, error) {
	m.record(&m.statsCalls, repoID+"@"+sha)
	if m.fetchStats == nil {
		return &model.CommitStats{SHA: sha, Additions: 1, Deletions: 1, FilesChanged: 1}, nil
	}
	return m.fetchStats(ctx, repoID, sha)
}

func (m *mockGitHubClient) FetchCommitDiff(ctx context.Context, repoID, sha string) (string, error) {
	m.record(&m.diffCalls, repoID+"@"+sha)
	if m.fetchDiff == nil {
		return "diff --git a/x b/x\n+change\n", nil
	}
	return m.fetchDiff(ctx, repoID, sha)
}

// mockChatCompleter is a testify mock of driven.ChatCompleter.
type mockChatCompleter struct {
	mock.Mock
}

func (m *mockChatCompleter) Complete(ctx context.Context, req model.ChatRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// pushEvent builds a push event carrying the given commit SHAs.
func pushEvent(id string, at string, shas ...string) model.Event {
	commits := make([]model.CommitStub, 0, len(shas))
	for _, sha := range shas {
		commits = append(commits, model.CommitStub{SHA: sha, Message: "commit " + sha, Author: "dev"})
	}
	return model.Event{
		ID:        id,
		Type:      model.EventTypePush,
		Actor:     "dev",
		CreatedAt: mustTime(at),
		Payload:   model.EventPayload{Ref: "refs/heads/main", Commits: commits},
	}
}

func mustTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
