package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

const reviewTemperature = 0.2

const reviewSystemPrompt = `You are a senior code reviewer. Review the commit diff you are given.
Respond with a single JSON object and nothing else, using exactly these keys:
{"grade": "good" | "mixed" | "bad", "score": 1 | 2 | 3, "summary": string, "risks": [string], "suggestions": [string]}
Score 3 means good, 2 means mixed, 1 means questionable. Keep the summary under 280 characters
and list at most 8 risks and 8 suggestions. Answer in English.`

// ReviewGateConfig controls whether and when commits are sent for review.
type ReviewGateConfig struct {
	Enabled      bool
	APIURL       string
	APIKey       string
	Model        string
	MaxFiles     int
	MaxChanges   int
	DiffMaxChars int
	Timeout      time.Duration
}

// Configured reports whether review is switched on and has an endpoint,
// credential and model to talk to.
func (c ReviewGateConfig) Configured() bool {
	return c.Enabled && c.APIURL != "" && c.APIKey != "" && c.Model != ""
}

// ReviewGate decides whether a commit is small enough to review, obtains a
// review from the chat-completion endpoint and caches it. Every failure path
// produces no review and leaves the cache untouched.
type ReviewGate struct {
	cfg     ReviewGateConfig
	gh      driven.GitHubClient
	chat    driven.ChatCompleter
	stats   driven.CommitStatsStore
	reviews driven.ReviewStore
	now     func() time.Time
}

// NewReviewGate creates a ReviewGate. chat may be nil when review is disabled.
func NewReviewGate(
	cfg ReviewGateConfig,
	gh driven.GitHubClient,
	chat driven.ChatCompleter,
	stats driven.CommitStatsStore,
	reviews driven.ReviewStore,
) *ReviewGate {
	return &ReviewGate{
		cfg:     cfg,
		gh:      gh,
		chat:    chat,
		stats:   stats,
		reviews: reviews,
		now:     time.Now,
	}
}

// ReviewCommit returns the review for repoID@sha, or nil when the commit is
// not eligible or the review could not be obtained. A cached review is
// returned without calling the endpoint again.
func (g *ReviewGate) ReviewCommit(ctx context.Context, repoID, sha, messageHint string) *model.CommitReview {
	if !g.cfg.Configured() || g.chat == nil {
		return nil
	}

	key := model.CommitKey{RepoID: repoID, SHA: sha}

	stats, err := g.stats.GetCommitStats(ctx, key)
	if err != nil {
		slog.Warn("review skipped: stats lookup failed", "commit", key.String(), "error", err)
		return nil
	}
	if stats == nil {
		return nil
	}

	if stats.FilesChanged > g.cfg.MaxFiles || stats.Changes() > g.cfg.MaxChanges {
		slog.Debug("review skipped: commit too large",
			"commit", key.String(),
			"files", stats.FilesChanged,
			"changes", stats.Changes(),
		)
		return nil
	}

	if existing, err := g.reviews.GetReview(ctx, key); err != nil {
		slog.Warn("review cache lookup failed", "commit", key.String(), "error", err)
		return nil
	} else if existing != nil {
		return existing
	}

	diff, err := g.gh.FetchCommitDiff(ctx, repoID, sha)
	if err != nil {
		slog.Warn("review skipped: diff fetch failed", "commit", key.String(), "error", err)
		return nil
	}
	if diff == "" {
		return nil
	}

	reqCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	content, err := g.chat.Complete(reqCtx, model.ChatRequest{
		Model:       g.cfg.Model,
		Temperature: reviewTemperature,
		Messages: []model.ChatMessage{
			{Role: "system", Content: reviewSystemPrompt},
			{Role: "user", Content: buildReviewPrompt(repoID, sha, messageHint, diff, g.cfg.DiffMaxChars)},
		},
	})
	if err != nil {
		slog.Warn("review request failed", "commit", key.String(), "error", err)
		return nil
	}

	raw, err := extractJSONObject(content)
	if err != nil {
		slog.Warn("review response unusable", "commit", key.String(), "error", err)
		return nil
	}

	review := normalizeReview(raw, key, g.cfg.Model, g.now())

	inserted, err := g.reviews.PutReview(ctx, key, review)
	if err != nil {
		slog.Error("failed to cache review", "commit", key.String(), "error", err)
		return &review
	}
	if !inserted {
		// Another writer got there first; the stored entry is authoritative.
		if existing, err := g.reviews.GetReview(ctx, key); err == nil && existing != nil {
			return existing
		}
	}

	slog.Info("commit reviewed", "commit", key.String(), "grade", review.Grade, "score", review.Score)
	return &review
}

// buildReviewPrompt assembles the user message. The header always survives;
// only the diff is cut so the whole prompt fits in maxChars runes.
func buildReviewPrompt(repoID, sha, messageHint, diff string, maxChars int) string {
	header := fmt.Sprintf("Repository: %s\nCommit: %s\nMessage: %s\n\nDiff:\n", repoID, sha, messageHint)
	if maxChars <= 0 {
		return header + diff
	}

	budget := maxChars - utf8.RuneCountInString(header)
	return header + truncateRunes(diff, budget)
}
