package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// allConfigKeys lists every REPOPULSE_ env var that Load() reads.
var allConfigKeys = []string{
	"REPOPULSE_GITHUB_TOKEN",
	"REPOPULSE_REPOS",
	"REPOPULSE_REPOS_FILE",
	"REPOPULSE_GLOBAL_REFRESH_SECONDS",
	"REPOPULSE_REPO_UPDATE_INTERVAL_SECONDS",
	"REPOPULSE_FEED_LIMIT",
	"REPOPULSE_LISTEN_ADDR",
	"REPOPULSE_STORE",
	"REPOPULSE_DB_PATH",
	"REPOPULSE_LOG_LEVEL",
	"REPOPULSE_ENV_FILE",
	"REPOPULSE_AI_REVIEW_ENABLED",
	"REPOPULSE_AI_REVIEW_API_URL",
	"REPOPULSE_AI_REVIEW_API_KEY",
	"REPOPULSE_AI_REVIEW_MODEL",
	"REPOPULSE_AI_REVIEW_MAX_FILES",
	"REPOPULSE_AI_REVIEW_MAX_CHANGES",
	"REPOPULSE_AI_REVIEW_DIFF_MAX_CHARS",
	"REPOPULSE_AI_REVIEW_TIMEOUT_MS",
}

// isolateConfigEnv saves and unsets all REPOPULSE_ env vars so tests don't
// inherit values from the host environment. t.Cleanup restores original
// values after the test.
func isolateConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range allConfigKeys {
		if orig, ok := os.LookupEnv(key); ok {
			t.Cleanup(func() { os.Setenv(key, orig) })
		} else {
			t.Cleanup(func() { os.Unsetenv(key) })
		}
		os.Unsetenv(key)
	}
}

func TestLoad_Success(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOPULSE_GITHUB_TOKEN", "ghp_test123")
	t.Setenv("REPOPULSE_REPOS", "octo/widgets=Widgets, octo/gadgets")
	t.Setenv("REPOPULSE_GLOBAL_REFRESH_SECONDS", "90")
	t.Setenv("REPOPULSE_REPO_UPDATE_INTERVAL_SECONDS", "15")
	t.Setenv("REPOPULSE_FEED_LIMIT", "50")
	t.Setenv("REPOPULSE_LISTEN_ADDR", "0.0.0.0:9090")
	t.Setenv("REPOPULSE_STORE", "SQLite")
	t.Setenv("REPOPULSE_DB_PATH", "/tmp/test.db")
	t.Setenv("REPOPULSE_LOG_LEVEL", "DEBUG")
	t.Setenv("REPOPULSE_AI_REVIEW_ENABLED", "true")
	t.Setenv("REPOPULSE_AI_REVIEW_API_URL", "https://llm.example")
	t.Setenv("REPOPULSE_AI_REVIEW_API_KEY", "sk-test")
	t.Setenv("REPOPULSE_AI_REVIEW_MODEL", "gpt-test")
	t.Setenv("REPOPULSE_AI_REVIEW_MAX_FILES", "5")
	t.Setenv("REPOPULSE_AI_REVIEW_MAX_CHANGES", "100")
	t.Setenv("REPOPULSE_AI_REVIEW_DIFF_MAX_CHARS", "8000")
	t.Setenv("REPOPULSE_AI_REVIEW_TIMEOUT_MS", "2500")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "ghp_test123", cfg.GitHubToken)
	assert.Equal(t, []Repo{
		{ID: "octo/widgets", Name: "Widgets"},
		{ID: "octo/gadgets", Name: "octo/gadgets"},
	}, cfg.Repos)
	assert.Equal(t, 90*time.Second, cfg.GlobalRefresh)
	assert.Equal(t, 15*time.Second, cfg.RepoUpdateInterval)
	assert.Equal(t, 50, cfg.FeedLimit)
	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddr)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "/tmp/test.db", cfg.DBPath)
	assert.Equal(t, "debug", cfg.LogLevel)

	assert.True(t, cfg.Review.Usable())
	assert.Equal(t, ReviewConfig{
		Enabled:      true,
		APIURL:       "https://llm.example",
		APIKey:       "sk-test",
		Model:        "gpt-test",
		MaxFiles:     5,
		MaxChanges:   100,
		DiffMaxChars: 8000,
		Timeout:      2500 * time.Millisecond,
	}, cfg.Review)
}

func TestLoad_Defaults(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOPULSE_REPOS", "octo/widgets")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, "", cfg.GitHubToken)
	assert.Equal(t, 60*time.Second, cfg.GlobalRefresh)
	assert.Equal(t, 30*time.Second, cfg.RepoUpdateInterval)
	assert.Equal(t, 200, cfg.FeedLimit)
	assert.Equal(t, "127.0.0.1:8080", cfg.ListenAddr)
	assert.Equal(t, StoreMemory, cfg.Store)
	assert.Equal(t, "repopulse.db", cfg.DBPath)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.False(t, cfg.Review.Enabled)
	assert.False(t, cfg.Review.Usable())
	assert.Equal(t, 10, cfg.Review.MaxFiles)
	assert.Equal(t, 400, cfg.Review.MaxChanges)
	assert.Equal(t, 16000, cfg.Review.DiffMaxChars)
	assert.Equal(t, 30*time.Second, cfg.Review.Timeout)
}

func TestLoad_ReviewEnabledWithoutEndpointIsUnusable(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOPULSE_REPOS", "octo/widgets")
	t.Setenv("REPOPULSE_AI_REVIEW_ENABLED", "1")
	t.Setenv("REPOPULSE_AI_REVIEW_MODEL", "gpt-test")

	cfg, err := Load()

	require.NoError(t, err)
	assert.True(t, cfg.Review.Enabled)
	assert.False(t, cfg.Review.Usable())
}

func TestLoad_ReposFile(t *testing.T) {
	isolateConfigEnv(t)

	path := filepath.Join(t.TempDir(), "repos.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[[repos]]
id = "octo/widgets"
name = "Widgets"

[[repos]]
id = "octo/gadgets"
`), 0o600))

	t.Setenv("REPOPULSE_REPOS_FILE", path)
	t.Setenv("REPOPULSE_REPOS", "octo/gadgets=Gadgets,octo/gizmos")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []Repo{
		{ID: "octo/widgets", Name: "Widgets"},
		{ID: "octo/gadgets", Name: "Gadgets"},
		{ID: "octo/gizmos", Name: "octo/gizmos"},
	}, cfg.Repos)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "no repos", env: map[string]string{}},
		{name: "bad interval", env: map[string]string{"REPOPULSE_REPOS": "a/b", "REPOPULSE_REPO_UPDATE_INTERVAL_SECONDS": "soon"}},
		{name: "zero interval", env: map[string]string{"REPOPULSE_REPOS": "a/b", "REPOPULSE_REPO_UPDATE_INTERVAL_SECONDS": "0"}},
		{name: "zero feed limit", env: map[string]string{"REPOPULSE_REPOS": "a/b", "REPOPULSE_FEED_LIMIT": "0"}},
		{name: "bad bool", env: map[string]string{"REPOPULSE_REPOS": "a/b", "REPOPULSE_AI_REVIEW_ENABLED": "maybe"}},
		{name: "unknown store", env: map[string]string{"REPOPULSE_REPOS": "a/b", "REPOPULSE_STORE": "redis"}},
		{name: "missing repos file", env: map[string]string{"REPOPULSE_REPOS_FILE": "/nonexistent/repos.toml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateConfigEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()

			require.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}

func TestLoad_InvalidRepo(t *testing.T) {
	isolateConfigEnv(t)
	t.Setenv("REPOPULSE_REPOS", "octo/widgets,not-a-repo")

	_, err := Load()

	var repoErr *InvalidRepoError
	require.ErrorAs(t, err, &repoErr)
	assert.Equal(t, "not-a-repo", repoErr.Repo)
}

func TestParseRepos(t *testing.T) {
	tests := []struct {
		input   string
		want    []Repo
		wantErr bool
	}{
		{input: "", want: nil},
		{input: " , ", want: nil},
		{input: "a/b", want: []Repo{{ID: "a/b", Name: "a/b"}}},
		{input: "a/b = Alpha Beta ", want: []Repo{{ID: "a/b", Name: "Alpha Beta"}}},
		{input: "a/b=", want: []Repo{{ID: "a/b", Name: "a/b"}}},
		{input: "a/b=x=y", want: []Repo{{ID: "a/b", Name: "x=y"}}},
		{input: "a/b/c", wantErr: true},
		{input: "/b", wantErr: true},
		{input: "a/", wantErr: true},
		{input: "a b/c", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRepos(tt.input)
			if tt.wantErr {
				var repoErr *InvalidRepoError
				assert.ErrorAs(t, err, &repoErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadDotEnv(t *testing.T) {
	isolateConfigEnv(t)

	t.Run("missing file is ignored", func(t *testing.T) {
		assert.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env")))
	})

	t.Run("does not override existing env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ".env")
		require.NoError(t, os.WriteFile(path, []byte("REPOPULSE_REPOS=from/file\nREPOPULSE_FEED_LIMIT=7\n"), 0o600))
		t.Setenv("REPOPULSE_REPOS", "from/env")

		require.NoError(t, LoadDotEnv(path))

		assert.Equal(t, "from/env", os.Getenv("REPOPULSE_REPOS"))
		assert.Equal(t, "7", os.Getenv("REPOPULSE_FEED_LIMIT"))
	})
}

func TestEnvFilePath(t *testing.T) {
	isolateConfigEnv(t)
	assert.Equal(t, ".env", EnvFilePath())

	t.Setenv("REPOPULSE_ENV_FILE", "/etc/repopulse.env")
	assert.Equal(t, "/etc/repopulse.env", EnvFilePath())
}
