package web

import (
	"fmt"
	"time"

	vm "github.com/ericfisherdev/repopulse/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

const shortSHALength = 7

// toFeedItemViewModel converts a domain FeedItem to a FeedItemViewModel.
// now anchors the relative "ago" label.
func toFeedItemViewModel(item model.FeedItem, now time.Time) vm.FeedItemViewModel {
	out := vm.FeedItemViewModel{
		Type:        item.Type,
		Icon:        item.Icon,
		RepoID:      item.RepoID,
		DisplayName: item.DisplayName,
		Actor:       item.Actor,
		TitleHTML:   RenderInlineMarkdown(item.Title),
		URL:         item.URL,
		Extra:       item.Extra,
		ShortSHA:    shortSHA(item.SHA),
	}

	if !item.When.IsZero() {
		out.When = item.When.UTC().Format("2006-01-02 15:04 UTC")
		out.Ago = humanizeAgo(now, item.When)
	}

	if s := item.Stats; s != nil {
		out.Stats = &vm.StatsViewModel{
			Additions:    s.Additions,
			Deletions:    s.Deletions,
			FilesChanged: s.FilesChanged,
		}
	}

	if r := item.Review; r != nil {
		out.Review = toReviewViewModel(*r)
	}

	return out
}

func toReviewViewModel(r model.CommitReview) *vm.ReviewViewModel {
	badge, class := reviewBadge(r.Score)

	return &vm.ReviewViewModel{
		Grade:           string(r.Grade),
		Badge:           badge,
		BadgeClass:      class,
		Score:           r.Score,
		SummaryHTML:     RenderMarkdown(r.Summary),
		RisksHTML:       renderInlineAll(r.Risks),
		SuggestionsHTML: renderInlineAll(r.Suggestions),
		Model:           r.Model,
	}
}

func renderInlineAll(entries []string) []string {
	if len(entries) == 0 {
		return nil
	}
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = RenderInlineMarkdown(e)
	}
	return out
}

// toRepoViewModel converts a repository summary for the sidebar.
func toRepoViewModel(s application.RepoSummary) vm.RepoViewModel {
	out := vm.RepoViewModel{
		ID:          s.Repo.ID,
		DisplayName: s.Repo.DisplayName,
		URL:         "https://github.com/" + s.Repo.ID,
		Events:      s.Events,
		Activity:    s.Activity.String(),
		RefreshPath: "/repos/" + s.Repo.ID + "/refresh",
	}

	if s.Info != nil {
		out.Stars = s.Info.Stars
		if s.Info.HTMLURL != "" {
			out.URL = s.Info.HTMLURL
		}
	}

	return out
}

func reviewBadge(score int) (badge, class string) {
	switch score {
	case 3:
		return "🟢", "review-good"
	case 2:
		return "🟡", "review-mixed"
	default:
		return "🔴", "review-bad"
	}
}

func shortSHA(sha string) string {
	if len(sha) > shortSHALength {
		return sha[:shortSHALength]
	}
	return sha
}

// humanizeAgo renders the distance between t and now in the coarsest unit
// that fits.
func humanizeAgo(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
