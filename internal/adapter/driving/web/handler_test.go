package web

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ericfisherdev/repopulse/internal/adapter/driven/memory"
	"github.com/ericfisherdev/repopulse/internal/adapter/driving/web/templates/pages"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopUpdater struct{}

func (nopUpdater) UpdateRepository(context.Context, model.Repository) {}

type nopFeed struct{}

func (nopFeed) Rebuild(context.Context) error { return nil }

var webRepos = []model.Repository{
	{ID: "acme/api", DisplayName: "API"},
}

func newTestHandler(t *testing.T) (*Handler, *memory.Store, *application.Scheduler, *http.ServeMux) {
	t.Helper()

	store := memory.NewStore()
	scheduler := application.NewScheduler(webRepos, nopUpdater{}, nopFeed{}, store, nil, time.Hour)
	query := application.NewQueryService(webRepos, store)

	h := NewHandler(query, scheduler, 60, 0, slog.New(slog.DiscardHandler))
	h.now = func() time.Time { return time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC) }

	mux := http.NewServeMux()
	RegisterRoutes(mux, h)
	return h, store, scheduler, mux
}

func TestFeedPage_RendersItems(t *testing.T) {
	_, store, _, mux := newTestHandler(t)

	require.NoError(t, store.ReplaceFeed(context.Background(), []model.FeedItem{
		{
			Type:        "commit",
			Icon:        "📝",
			When:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			RepoID:      "acme/api",
			DisplayName: "API",
			Actor:       "dev",
			Title:       "fix `nil` deref",
			URL:         "https://github.com/acme/api/commit/abcdef1234",
			Extra:       "main",
			SHA:         "abcdef1234",
			Stats:       &model.CommitStats{Additions: 12, Deletions: 3, FilesChanged: 2},
			Review: &model.CommitReview{
				Grade:   model.GradeMixed,
				Score:   2,
				Summary: "Mostly **fine**.",
				Risks:   []string{"no tests"},
				Model:   "test-model",
			},
		},
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))

	body := rec.Body.String()
	assert.Contains(t, body, `<meta http-equiv="refresh" content="60">`)
	assert.Contains(t, body, "<title>RepoPulse</title>")
	assert.Contains(t, body, "scheduler: idle")
	assert.Contains(t, body, "fix <code>nil</code> deref")
	assert.Contains(t, body, `<span class="sha">abcdef1</span>`)
	assert.Contains(t, body, `<span class="add">+12</span>`)
	assert.Contains(t, body, "(2 files)")
	assert.Contains(t, body, "🟡")
	assert.Contains(t, body, "<strong>fine</strong>")
	assert.Contains(t, body, "<li>no tests</li>")
	assert.Contains(t, body, "1h ago")
	assert.Contains(t, body, `action="/repos/acme/api/refresh"`)
}

func TestFeedPage_EscapesContent(t *testing.T) {
	_, store, _, mux := newTestHandler(t)

	require.NoError(t, store.ReplaceFeed(context.Background(), []model.FeedItem{
		{
			Type:        "issue",
			DisplayName: `<b>evil</b>`,
			Title:       `<script>alert(1)</script>`,
			URL:         "javascript:alert(1)",
		},
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := rec.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.NotContains(t, body, "<b>evil</b>")
	assert.NotContains(t, body, `href="javascript:`)
}

func TestFeedPage_Empty(t *testing.T) {
	_, _, _, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "No activity yet.")
}

func TestFeedPage_SetsCSRFCookie(t *testing.T) {
	_, _, _, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, csrfCookieName, cookies[0].Name)
	assert.Contains(t, rec.Body.String(), `value="`+cookies[0].Value+`"`)
}

func TestRefreshRepo_RejectsMissingCSRF(t *testing.T) {
	_, _, _, mux := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/repos/acme/api/refresh", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func refreshRequest(path, token string) *http.Request {
	form := url.Values{pages.CSRFFormField: {token}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
	return req
}

func TestRefreshRepo_NotRunningRedirectsWithFlash(t *testing.T) {
	_, _, _, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, refreshRequest("/repos/acme/api/refresh", "tok"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/", loc.Path)
	assert.Contains(t, loc.Query().Get("flash"), "Initial load")
}

func TestRefreshRepo_UnknownRepo(t *testing.T) {
	_, _, _, mux := newTestHandler(t)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, refreshRequest("/repos/acme/other/refresh", "tok"))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRefreshRepo_Running(t *testing.T) {
	_, _, scheduler, mux := newTestHandler(t)

	go scheduler.Start(context.Background())
	t.Cleanup(scheduler.Stop)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, refreshRequest("/repos/acme/api/refresh", "tok"))
		loc, err := url.Parse(rec.Header().Get("Location"))
		return err == nil && loc.Query().Get("flash") == "Refreshed acme/api."
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRefreshRepo_TooSoonRedirectsWithFlash(t *testing.T) {
	_, _, scheduler, mux := newTestHandler(t)

	go scheduler.Start(context.Background())
	t.Cleanup(scheduler.Stop)

	require.Eventually(t, func() bool {
		return scheduler.RefreshRepo(context.Background(), "acme/api") == nil
	}, 2*time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, refreshRequest("/repos/acme/api/refresh", "tok"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "acme/api was refreshed recently, try again later.", loc.Query().Get("flash"))
}
