// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.GitHubClient      = (*Client)(nil)
	_ driven.RateLimitReporter = (*Client)(nil)
)

// eventsPerPage bounds the activity window fetched per repository.
const eventsPerPage = 100

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client

	mu   sync.Mutex
	rate model.RateLimit
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// An empty token yields an unauthenticated client.
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient)
	if token != "" {
		client = client.WithAuthToken(token)
	}

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base URL.
// This constructor is intended for testing, allowing injection of an httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// RateLimit returns the rate limit reported by the most recent API response.
func (c *Client) RateLimit() model.RateLimit {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// FetchRepoInfo retrieves the metadata snapshot for a repository.
func (c *Client) FetchRepoInfo(ctx context.Context, repoID string) (*model.RepoInfo, error) {
	owner, repo, err := splitRepo(repoID)
	if err != nil {
		return nil, err
	}

	r, resp, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("fetching repository %s: %w", repoID, err)
	}

	c.logRateLimit(resp, repoID, 1)

	info := mapRepository(r, repoID)
	return &info, nil
}

// FetchRepoEvents retrieves the most recent page of public events for a
// repository. Payloads are decoded into the fields the feed needs.
func (c *Client) FetchRepoEvents(ctx context.Context, repoID string) ([]model.Event, error) {
	owner, repo, err := splitRepo(repoID)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: eventsPerPage}
	events, resp, err := c.gh.Activity.ListRepositoryEvents(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("listing events for %s: %w", repoID, err)
	}

	c.logRateLimit(resp, repoID+"/events", len(events))

	result := make([]model.Event, 0, len(events))
	for _, e := range events {
		ev, err := mapEvent(e)
		if err != nil {
			slog.Warn("skipping undecodable event",
				"repo", repoID,
				"event_id", e.GetID(),
				"type", e.GetType(),
				"error", err,
			)
			continue
		}
		result = append(result, ev)
	}

	return result, nil
}

// FetchCommitStats retrieves addition/deletion counts and the number of files
// touched by a single commit.
func (c *Client) FetchCommitStats(ctx context.Context, repoID, sha string) (*model.CommitStats, error) {
	owner, repo, err := splitRepo(repoID)
	if err != nil {
		return nil, err
	}

	commit, resp, err := c.gh.Repositories.GetCommit(ctx, owner, repo, sha, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching commit %s@%s: %w", repoID, sha, err)
	}

	c.logRateLimit(resp, repoID+"/commit", 1)

	stats := commit.GetStats()
	resolvedSHA := commit.GetSHA()
	if resolvedSHA == "" {
		resolvedSHA = sha
	}

	return &model.CommitStats{
		SHA:          resolvedSHA,
		Additions:    stats.GetAdditions(),
		Deletions:    stats.GetDeletions(),
		FilesChanged: len(commit.Files),
	}, nil
}

// FetchCommitDiff retrieves the unified diff of a single commit. Repeated
// requests for the same commit are served from the ETag cache.
func (c *Client) FetchCommitDiff(ctx context.Context, repoID, sha string) (string, error) {
	owner, repo, err := splitRepo(repoID)
	if err != nil {
		return "", err
	}

	diff, resp, err := c.gh.Repositories.GetCommitRaw(ctx, owner, repo, sha, gh.RawOptions{Type: gh.Diff})
	if err != nil {
		return "", fmt.Errorf("fetching diff %s@%s: %w", repoID, sha, err)
	}

	c.logRateLimit(resp, repoID+"/diff", 1)

	return diff, nil
}

// logRateLimit records and logs the GitHub API rate limit status after each call.
func (c *Client) logRateLimit(resp *gh.Response, endpoint string, count int) {
	if resp == nil {
		return
	}

	c.mu.Lock()
	c.rate = model.RateLimit{
		Limit:     resp.Rate.Limit,
		Remaining: resp.Rate.Remaining,
		Reset:     resp.Rate.Reset.Time,
	}
	c.mu.Unlock()

	slog.Debug("github api call",
		"endpoint", endpoint,
		"count", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_limit", resp.Rate.Limit,
	)

	if resp.Rate.Limit > 0 && resp.Rate.Remaining < 100 {
		slog.Warn("github rate limit low",
			"remaining", resp.Rate.Remaining,
			"reset_in", time.Until(resp.Rate.Reset.Time).Round(time.Second),
		)
	}
}

// mapRepository converts a go-github Repository to a domain model RepoInfo.
// DisplayName is left for the caller to assign from configuration.
func mapRepository(r *gh.Repository, repoID string) model.RepoInfo {
	return model.RepoInfo{
		RepoID:        repoID,
		FullName:      r.GetFullName(),
		HTMLURL:       r.GetHTMLURL(),
		Description:   r.GetDescription(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		DefaultBranch: r.GetDefaultBranch(),
		PushedAt:      r.GetPushedAt().Time,
	}
}

// eventPayload is the subset of the GitHub event payload shapes read by mapEvent.
type eventPayload struct {
	Action  string `json:"action"`
	Ref     string `json:"ref"`
	RefType string `json:"ref_type"`
	Number  int    `json:"number"`
	Commits []struct {
		SHA     string `json:"sha"`
		Message string `json:"message"`
		Author  struct {
			Name string `json:"name"`
		} `json:"author"`
	} `json:"commits"`
	PullRequest *linkedItem `json:"pull_request"`
	Issue       *linkedItem `json:"issue"`
	Comment     *linkedItem `json:"comment"`
	Release     *struct {
		TagName string `json:"tag_name"`
		Name    string `json:"name"`
		HTMLURL string `json:"html_url"`
	} `json:"release"`
	Forkee *struct {
		FullName string `json:"full_name"`
		HTMLURL  string `json:"html_url"`
	} `json:"forkee"`
}

type linkedItem struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

// mapEvent converts a go-github Event to a domain model Event, decoding the
// raw payload into an EventPayload.
func mapEvent(e *gh.Event) (model.Event, error) {
	ev := model.Event{
		ID:        e.GetID(),
		Type:      e.GetType(),
		Actor:     e.GetActor().GetLogin(),
		CreatedAt: e.GetCreatedAt().Time,
	}

	if e.RawPayload == nil {
		return ev, nil
	}

	var p eventPayload
	if err := json.Unmarshal(*e.RawPayload, &p); err != nil {
		return model.Event{}, fmt.Errorf("decoding %s payload: %w", ev.Type, err)
	}

	ev.Payload = model.EventPayload{
		Action:  p.Action,
		Ref:     p.Ref,
		RefType: p.RefType,
		Number:  p.Number,
	}

	for _, c := range p.Commits {
		if c.SHA == "" {
			continue
		}
		ev.Payload.Commits = append(ev.Payload.Commits, model.CommitStub{
			SHA:     c.SHA,
			Message: c.Message,
			Author:  c.Author.Name,
		})
	}

	switch {
	case p.PullRequest != nil:
		ev.Payload.Number = p.PullRequest.Number
		ev.Payload.Title = p.PullRequest.Title
		ev.Payload.URL = p.PullRequest.HTMLURL
	case p.Issue != nil:
		ev.Payload.Number = p.Issue.Number
		ev.Payload.Title = p.Issue.Title
		ev.Payload.URL = p.Issue.HTMLURL
	case p.Release != nil:
		ev.Payload.Title = p.Release.Name
		if ev.Payload.Title == "" {
			ev.Payload.Title = p.Release.TagName
		}
		ev.Payload.Ref = p.Release.TagName
		ev.Payload.URL = p.Release.HTMLURL
	case p.Forkee != nil:
		ev.Payload.Title = p.Forkee.FullName
		ev.Payload.URL = p.Forkee.HTMLURL
	}

	// Issue comments link to the comment rather than the issue.
	if p.Comment != nil && p.Comment.HTMLURL != "" {
		ev.Payload.URL = p.Comment.HTMLURL
	}

	return ev, nil
}

// splitRepo splits a "owner/repo" string into its two components.
func splitRepo(fullName string) (string, string, error) {
	parts := strings.SplitN(fullName, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repo name %q: expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}
