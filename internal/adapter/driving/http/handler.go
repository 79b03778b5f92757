package httphandler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ericfisherdev/repopulse/internal/application"
)

// maxFeedLimit caps the ?limit= query parameter on the feed endpoint.
const maxFeedLimit = 500

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	query     *application.QueryService
	scheduler *application.Scheduler
	logger    *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(
	query *application.QueryService,
	scheduler *application.Scheduler,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		query:     query,
		scheduler: scheduler,
		logger:    logger,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/feed", h.Feed)
	mux.HandleFunc("GET /api/v1/repos", h.ListRepos)
	mux.HandleFunc("GET /api/v1/repos/{owner}/{repo}/commits/{sha}", h.GetCommit)
	mux.HandleFunc("POST /api/v1/repos/{owner}/{repo}/refresh", h.RefreshRepo)
	mux.HandleFunc("GET /api/v1/scheduler", h.SchedulerStatus)
}

// NewServeMux creates an http.Handler with the API routes plus any extra
// registrations, wrapped with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger, extra ...func(*http.ServeMux)) http.Handler {
	mux := http.NewServeMux()
	h.Register(mux)
	for _, register := range extra {
		register(mux)
	}

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// Health reports liveness plus the scheduler lifecycle state.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Time:      time.Now().UTC().Format(time.RFC3339),
		Scheduler: string(h.scheduler.State()),
	})
}

// Feed returns the current global feed, newest first.
func (h *Handler) Feed(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxFeedLimit {
			writeError(w, http.StatusBadRequest, "invalid limit: expected 1-"+strconv.Itoa(maxFeedLimit))
			return
		}
		limit = n
	}

	items, err := h.query.Feed(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read feed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]FeedItemResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, toFeedItemResponse(item))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListRepos returns every configured repository with its cached metadata.
func (h *Handler) ListRepos(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.query.ListRepos(r.Context())
	if err != nil {
		h.logger.Error("failed to list repos", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]RepoResponse, 0, len(summaries))
	for _, s := range summaries {
		resp = append(resp, toRepoResponse(s))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetCommit returns the cached stats and review for one commit.
func (h *Handler) GetCommit(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("owner") + "/" + r.PathValue("repo")
	sha := r.PathValue("sha")

	detail, err := h.query.GetCommit(r.Context(), repoID, sha)
	if errors.Is(err, application.ErrCommitNotFound) {
		writeError(w, http.StatusNotFound, "commit not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to get commit", "repo", repoID, "sha", sha, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toCommitResponse(*detail))
}

// RefreshRepo runs an immediate update cycle for one repository and waits
// for it to finish. A second refresh within one scheduler interval gets 429.
func (h *Handler) RefreshRepo(w http.ResponseWriter, r *http.Request) {
	repoID := r.PathValue("owner") + "/" + r.PathValue("repo")

	err := h.scheduler.RefreshRepo(r.Context(), repoID)
	switch {
	case errors.Is(err, application.ErrUnknownRepo):
		writeError(w, http.StatusNotFound, "repository not tracked")
		return
	case errors.Is(err, application.ErrSchedulerNotRunning):
		writeError(w, http.StatusServiceUnavailable, "scheduler is not running")
		return
	case errors.Is(err, application.ErrRefreshTooSoon):
		writeError(w, http.StatusTooManyRequests, "repository was refreshed recently")
		return
	case err != nil:
		h.logger.Error("manual refresh failed", "repo", repoID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, RefreshResponse{Repo: repoID, Status: "refreshed"})
}

// SchedulerStatus returns the scheduler state and the remaining queue.
func (h *Handler) SchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toSchedulerResponse(h.scheduler.Status()))
}
