package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

// Feed item types.
const (
	FeedTypeCommit       = "commit"
	FeedTypePullRequest  = "pull_request"
	FeedTypeIssue        = "issue"
	FeedTypeIssueComment = "issue_comment"
	FeedTypeRelease      = "release"
	FeedTypeCreate       = "create"
	FeedTypeFork         = "fork"
	FeedTypeWatch        = "watch"
)

var feedIcons = map[string]string{
	FeedTypeCommit:       "📝",
	FeedTypePullRequest:  "🔀",
	FeedTypeIssue:        "🐛",
	FeedTypeIssueComment: "💬",
	FeedTypeRelease:      "🏷️",
	FeedTypeCreate:       "✨",
	FeedTypeFork:         "🍴",
	FeedTypeWatch:        "⭐",
}

// FeedService builds the global activity feed from the stored events of every
// tracked repository.
type FeedService struct {
	repos []model.Repository
	store driven.Store
	limit int
}

// NewFeedService creates a FeedService that keeps at most limit items.
func NewFeedService(repos []model.Repository, store driven.Store, limit int) *FeedService {
	return &FeedService{
		repos: repos,
		store: store,
		limit: limit,
	}
}

// Rebuild replaces the stored feed with a fresh one, newest first. Reads of
// individual repositories that fail are logged and that repository is left
// out of this build.
func (s *FeedService) Rebuild(ctx context.Context) error {
	var items []model.FeedItem

	for _, repo := range s.repos {
		repoItems, err := s.repoItems(ctx, repo)
		if err != nil {
			slog.Error("feed build failed for repo", "repo", repo.ID, "error", err)
			continue
		}
		items = append(items, repoItems...)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].When.After(items[j].When)
	})

	if s.limit > 0 && len(items) > s.limit {
		items = items[:s.limit]
	}
	if items == nil {
		items = []model.FeedItem{}
	}

	if err := s.store.ReplaceFeed(ctx, items); err != nil {
		return fmt.Errorf("replacing feed: %w", err)
	}

	slog.Debug("feed rebuilt", "items", len(items))
	return nil
}

func (s *FeedService) repoItems(ctx context.Context, repo model.Repository) ([]model.FeedItem, error) {
	events, _, err := s.store.GetEvents(ctx, repo.ID)
	if err != nil {
		return nil, fmt.Errorf("reading events: %w", err)
	}

	displayName := repo.DisplayName
	repoURL := "https://github.com/" + repo.ID

	info, err := s.store.GetInfo(ctx, repo.ID)
	if err != nil {
		return nil, fmt.Errorf("reading info: %w", err)
	}
	if info != nil {
		if info.DisplayName != "" {
			displayName = info.DisplayName
		}
		if info.HTMLURL != "" {
			repoURL = info.HTMLURL
		}
	}

	var items []model.FeedItem
	for _, ev := range events {
		base := model.FeedItem{
			When:        ev.CreatedAt,
			RepoID:      repo.ID,
			DisplayName: displayName,
			Actor:       ev.Actor,
			URL:         ev.Payload.URL,
		}

		if ev.Type == model.EventTypePush {
			commits, err := s.commitItems(ctx, base, ev, repoURL)
			if err != nil {
				return nil, err
			}
			items = append(items, commits...)
			continue
		}

		item, ok := eventItem(base, ev, repoURL)
		if ok {
			items = append(items, item)
		}
	}

	return items, nil
}

func (s *FeedService) commitItems(ctx context.Context, base model.FeedItem, ev model.Event, repoURL string) ([]model.FeedItem, error) {
	branch := strings.TrimPrefix(ev.Payload.Ref, "refs/heads/")
	items := make([]model.FeedItem, 0, len(ev.Payload.Commits))

	for _, c := range ev.Payload.Commits {
		key := model.CommitKey{RepoID: base.RepoID, SHA: c.SHA}

		stats, err := s.store.GetCommitStats(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading stats for %s: %w", key, err)
		}
		review, err := s.store.GetReview(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("reading review for %s: %w", key, err)
		}

		item := base
		item.Type = FeedTypeCommit
		item.Icon = feedIcons[FeedTypeCommit]
		item.Title = firstLine(c.Message)
		item.URL = repoURL + "/commit/" + c.SHA
		item.Extra = branch
		item.SHA = c.SHA
		item.Stats = stats
		item.Review = review
		if c.Author != "" {
			item.Actor = c.Author
		}
		items = append(items, item)
	}

	return items, nil
}

// eventItem maps a non-push event to a feed item. Unsupported event types
// report false.
func eventItem(item model.FeedItem, ev model.Event, repoURL string) (model.FeedItem, bool) {
	p := ev.Payload

	switch ev.Type {
	case model.EventTypePullRequest:
		item.Type = FeedTypePullRequest
		item.Title = fmt.Sprintf("PR #%d: %s", p.Number, p.Title)
		item.Extra = p.Action
	case model.EventTypeIssues:
		item.Type = FeedTypeIssue
		item.Title = fmt.Sprintf("Issue #%d: %s", p.Number, p.Title)
		item.Extra = p.Action
	case model.EventTypeIssueComment:
		item.Type = FeedTypeIssueComment
		item.Title = fmt.Sprintf("Comment on #%d: %s", p.Number, p.Title)
		item.Extra = p.Action
	case model.EventTypeRelease:
		item.Type = FeedTypeRelease
		item.Title = "Release " + p.Title
		item.Extra = p.Ref
	case model.EventTypeCreate:
		item.Type = FeedTypeCreate
		item.Title = strings.TrimSpace(fmt.Sprintf("Created %s %s", p.RefType, p.Ref))
		item.Extra = p.RefType
	case model.EventTypeFork:
		item.Type = FeedTypeFork
		item.Title = "Forked to " + p.Title
	case model.EventTypeWatch:
		item.Type = FeedTypeWatch
		item.Title = "Starred"
	default:
		return model.FeedItem{}, false
	}

	item.Icon = feedIcons[item.Type]
	if item.URL == "" {
		item.URL = repoURL
	}
	return item, true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
