package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of the health check.
type HealthResponse struct {
	Status    string `json:"status"`
	Time      string `json:"time"`
	Scheduler string `json:"scheduler"`
}

// StatsResponse is the JSON representation of commit statistics.
type StatsResponse struct {
	Additions    int `json:"additions"`
	Deletions    int `json:"deletions"`
	FilesChanged int `json:"files_changed"`
}

// CommitReviewResponse is the JSON representation of an automated review.
type CommitReviewResponse struct {
	Grade       string   `json:"grade"`
	Score       int      `json:"score"`
	Summary     string   `json:"summary"`
	Risks       []string `json:"risks"`
	Suggestions []string `json:"suggestions"`
	Model       string   `json:"model"`
	CreatedAt   string   `json:"created_at"`
}

// FeedItemResponse is the JSON representation of one feed entry.
type FeedItemResponse struct {
	Type        string                `json:"type"`
	Icon        string                `json:"icon"`
	When        string                `json:"when"`
	Repo        string                `json:"repo"`
	DisplayName string                `json:"display_name"`
	Actor       string                `json:"actor,omitempty"`
	Title       string                `json:"title"`
	URL         string                `json:"url"`
	Extra       string                `json:"extra,omitempty"`
	SHA         string                `json:"sha,omitempty"`
	Stats       *StatsResponse        `json:"stats,omitempty"`
	Review      *CommitReviewResponse `json:"review,omitempty"`
}

// RepoResponse is the JSON representation of a tracked repository.
type RepoResponse struct {
	ID                      string `json:"id"`
	DisplayName             string `json:"display_name"`
	HTMLURL                 string `json:"html_url,omitempty"`
	Description             string `json:"description,omitempty"`
	Stars                   int    `json:"stars"`
	Forks                   int    `json:"forks"`
	OpenIssues              int    `json:"open_issues"`
	DefaultBranch           string `json:"default_branch,omitempty"`
	PushedAt                string `json:"pushed_at,omitempty"`
	Events                  int    `json:"events"`
	Activity                string `json:"activity"`
	SuggestedRefreshSeconds int    `json:"suggested_refresh_seconds"`
	HasInfo                 bool   `json:"has_info"`
}

// CommitResponse is the JSON representation of a commit's cached enrichment.
type CommitResponse struct {
	Repo   string                `json:"repo"`
	SHA    string                `json:"sha"`
	Stats  *StatsResponse        `json:"stats"`
	Review *CommitReviewResponse `json:"review"`
}

// SchedulerResponse is the JSON representation of the scheduler status.
type SchedulerResponse struct {
	State           string   `json:"state"`
	IntervalSeconds int      `json:"interval_seconds"`
	Queue           []string `json:"queue"`
	LastTick        string   `json:"last_tick,omitempty"`
	LastRepo        string   `json:"last_repo,omitempty"`
	TickCount       int      `json:"tick_count"`
}

// RefreshResponse is returned after a manual refresh completes.
type RefreshResponse struct {
	Repo   string `json:"repo"`
	Status string `json:"status"`
}

// formatTime renders t as RFC 3339 in UTC, or "" for the zero time.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func toStatsResponse(s *model.CommitStats) *StatsResponse {
	if s == nil {
		return nil
	}
	return &StatsResponse{
		Additions:    s.Additions,
		Deletions:    s.Deletions,
		FilesChanged: s.FilesChanged,
	}
}

func toCommitReviewResponse(r *model.CommitReview) *CommitReviewResponse {
	if r == nil {
		return nil
	}

	risks := r.Risks
	if risks == nil {
		risks = []string{}
	}
	suggestions := r.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}

	return &CommitReviewResponse{
		Grade:       string(r.Grade),
		Score:       r.Score,
		Summary:     r.Summary,
		Risks:       risks,
		Suggestions: suggestions,
		Model:       r.Model,
		CreatedAt:   formatTime(r.CreatedAt),
	}
}

func toFeedItemResponse(item model.FeedItem) FeedItemResponse {
	return FeedItemResponse{
		Type:        item.Type,
		Icon:        item.Icon,
		When:        formatTime(item.When),
		Repo:        item.RepoID,
		DisplayName: item.DisplayName,
		Actor:       item.Actor,
		Title:       item.Title,
		URL:         item.URL,
		Extra:       item.Extra,
		SHA:         item.SHA,
		Stats:       toStatsResponse(item.Stats),
		Review:      toCommitReviewResponse(item.Review),
	}
}

func toRepoResponse(s application.RepoSummary) RepoResponse {
	resp := RepoResponse{
		ID:                      s.Repo.ID,
		DisplayName:             s.Repo.DisplayName,
		Events:                  s.Events,
		Activity:                s.Activity.String(),
		SuggestedRefreshSeconds: int(s.Activity.SuggestedInterval().Seconds()),
	}

	if info := s.Info; info != nil {
		resp.HasInfo = true
		resp.HTMLURL = info.HTMLURL
		resp.Description = info.Description
		resp.Stars = info.Stars
		resp.Forks = info.Forks
		resp.OpenIssues = info.OpenIssues
		resp.DefaultBranch = info.DefaultBranch
		resp.PushedAt = formatTime(info.PushedAt)
	}

	return resp
}

func toCommitResponse(d application.CommitDetail) CommitResponse {
	return CommitResponse{
		Repo:   d.Key.RepoID,
		SHA:    d.Key.SHA,
		Stats:  toStatsResponse(d.Stats),
		Review: toCommitReviewResponse(d.Review),
	}
}

func toSchedulerResponse(s application.SchedulerStatus) SchedulerResponse {
	queue := make([]string, 0, len(s.Queue))
	for _, r := range s.Queue {
		queue = append(queue, r.ID)
	}

	return SchedulerResponse{
		State:           string(s.State),
		IntervalSeconds: int(s.Interval.Seconds()),
		Queue:           queue,
		LastTick:        formatTime(s.LastTick),
		LastRepo:        s.LastRepo,
		TickCount:       s.TickCount,
	}
}
