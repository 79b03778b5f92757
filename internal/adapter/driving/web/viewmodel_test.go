package web

import (
	"testing"
	"time"

	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHumanizeAgo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"seconds", now.Add(-30 * time.Second), "just now"},
		{"minutes", now.Add(-5 * time.Minute), "5m ago"},
		{"hours", now.Add(-3 * time.Hour), "3h ago"},
		{"days", now.Add(-50 * time.Hour), "2d ago"},
		{"future", now.Add(time.Minute), "just now"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, humanizeAgo(now, tt.at))
		})
	}
}

func TestReviewBadge(t *testing.T) {
	badge, class := reviewBadge(3)
	assert.Equal(t, "🟢", badge)
	assert.Equal(t, "review-good", class)

	badge, class = reviewBadge(2)
	assert.Equal(t, "🟡", badge)
	assert.Equal(t, "review-mixed", class)

	badge, class = reviewBadge(1)
	assert.Equal(t, "🔴", badge)
	assert.Equal(t, "review-bad", class)
}

func TestToFeedItemViewModel_NonCommit(t *testing.T) {
	item := model.FeedItem{Type: "watch", Icon: "⭐", Title: "starred", SHA: "abc"}

	got := toFeedItemViewModel(item, time.Now())

	assert.Equal(t, "abc", got.ShortSHA)
	assert.Empty(t, got.When)
	assert.Nil(t, got.Stats)
	assert.Nil(t, got.Review)
}

func TestToRepoViewModel(t *testing.T) {
	s := application.RepoSummary{
		Repo:     model.Repository{ID: "acme/api", DisplayName: "API"},
		Events:   4,
		Activity: application.TierWarm,
	}

	got := toRepoViewModel(s)
	assert.Equal(t, "https://github.com/acme/api", got.URL)
	assert.Equal(t, "warm", got.Activity)
	assert.Equal(t, "/repos/acme/api/refresh", got.RefreshPath)

	s.Info = &model.RepoInfo{HTMLURL: "https://ghe.example.com/acme/api", Stars: 9}
	got = toRepoViewModel(s)
	require.Equal(t, 9, got.Stars)
	assert.Equal(t, "https://ghe.example.com/acme/api", got.URL)
}

func TestToReviewViewModel_RendersMarkdown(t *testing.T) {
	got := toReviewViewModel(model.CommitReview{
		Grade:       model.GradeGood,
		Score:       3,
		Summary:     "Looks **good**.",
		Risks:       []string{"`nil` map"},
		Suggestions: []string{"<script>x</script>add test"},
	})

	assert.Equal(t, "🟢", got.Badge)
	assert.Contains(t, got.SummaryHTML, "<strong>good</strong>")
	require.Len(t, got.RisksHTML, 1)
	assert.Equal(t, "<code>nil</code> map", got.RisksHTML[0])
	require.Len(t, got.SuggestionsHTML, 1)
	assert.NotContains(t, got.SuggestionsHTML[0], "<script>")
}
