// Package web implements the HTML driving adapter. Markup lives in the templ
// files under templates/; this package builds view models and handles forms.
package web

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ericfisherdev/repopulse/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/repopulse/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/repopulse/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/repopulse/internal/application"
)

const pageTitle = "RepoPulse"

// Handler is the web driving adapter that serves the feed page.
type Handler struct {
	query          *application.QueryService
	scheduler      *application.Scheduler
	refreshSeconds int
	feedLimit      int
	logger         *slog.Logger
	now            func() time.Time
}

// NewHandler creates a Handler. refreshSeconds drives the page's meta
// refresh; feedLimit caps the rendered rows (0 renders the whole feed).
func NewHandler(
	query *application.QueryService,
	scheduler *application.Scheduler,
	refreshSeconds int,
	feedLimit int,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		query:          query,
		scheduler:      scheduler,
		refreshSeconds: refreshSeconds,
		feedLimit:      feedLimit,
		logger:         logger,
		now:            time.Now,
	}
}

// Feed renders the global feed page with the full HTML layout.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	items, err := h.query.Feed(ctx, h.feedLimit)
	if err != nil {
		h.logger.Error("failed to read feed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	repos, err := h.query.ListRepos(ctx)
	if err != nil {
		h.logger.Error("failed to list repos", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	page := vm.FeedPageViewModel{
		Title:          pageTitle,
		RefreshSeconds: h.refreshSeconds,
		SchedulerState: string(h.scheduler.State()),
		CSRFToken:      ensureCSRFToken(w, r),
		Flash:          r.URL.Query().Get("flash"),
		Items:          make([]vm.FeedItemViewModel, 0, len(items)),
		Repos:          make([]vm.RepoViewModel, 0, len(repos)),
	}

	now := h.now()
	for _, item := range items {
		page.Items = append(page.Items, toFeedItemViewModel(item, now))
	}
	for _, s := range repos {
		page.Repos = append(page.Repos, toRepoViewModel(s))
	}

	component := pages.FeedPage(page)
	layout := templates.Layout(pageTitle, h.refreshSeconds, component)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := layout.Render(ctx, w); err != nil {
		h.logger.Error("failed to render feed", "error", err)
	}
}

// RefreshRepo handles the sidebar refresh form. It runs the refresh
// synchronously and redirects back to the feed with a flash message.
func (h *Handler) RefreshRepo(w http.ResponseWriter, r *http.Request) {
	if !validateCSRF(r) {
		http.Error(w, "invalid CSRF token", http.StatusForbidden)
		return
	}

	repoID := r.PathValue("owner") + "/" + r.PathValue("repo")

	var flash string
	err := h.scheduler.RefreshRepo(r.Context(), repoID)
	switch {
	case errors.Is(err, application.ErrUnknownRepo):
		http.Error(w, "repository not tracked", http.StatusNotFound)
		return
	case errors.Is(err, application.ErrSchedulerNotRunning):
		flash = "Initial load still running, try again shortly."
	case errors.Is(err, application.ErrRefreshTooSoon):
		flash = repoID + " was refreshed recently, try again later."
	case err != nil:
		h.logger.Error("manual refresh failed", "repo", repoID, "error", err)
		flash = "Refresh of " + repoID + " failed."
	default:
		flash = "Refreshed " + repoID + "."
	}

	http.Redirect(w, r, "/?flash="+url.QueryEscape(flash), http.StatusSeeOther)
}
