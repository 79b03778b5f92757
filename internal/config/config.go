// Package config loads application configuration from environment variables,
// an optional .env file and an optional TOML repository list.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const envPrefix = "REPOPULSE_"

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// InvalidRepoError is returned when a configured repository id is not in
// "owner/name" form.
type InvalidRepoError struct {
	Repo string
}

func (e *InvalidRepoError) Error() string {
	return fmt.Sprintf("invalid repository %q: expected 'owner/name'", e.Repo)
}

// Repo is one tracked repository as configured.
type Repo struct {
	ID   string `toml:"id"`
	Name string `toml:"name"`
}

// ReviewConfig holds the automated commit review settings.
type ReviewConfig struct {
	Enabled      bool
	APIURL       string
	APIKey       string
	Model        string
	MaxFiles     int
	MaxChanges   int
	DiffMaxChars int
	Timeout      time.Duration
}

// Usable reports whether review is enabled and fully configured.
func (r ReviewConfig) Usable() bool {
	return r.Enabled && r.APIURL != "" && r.APIKey != "" && r.Model != ""
}

// Config holds the application configuration.
type Config struct {
	GitHubToken        string
	Repos              []Repo
	GlobalRefresh      time.Duration
	RepoUpdateInterval time.Duration
	FeedLimit          int
	ListenAddr         string
	Store              string
	DBPath             string
	LogLevel           string
	Review             ReviewConfig
}

// reposFile is the layout of the REPOPULSE_REPOS_FILE TOML document.
type reposFile struct {
	Repos []Repo `toml:"repos"`
}

// EnvFilePath returns the .env file to load, REPOPULSE_ENV_FILE or ".env".
func EnvFilePath() string {
	if v, ok := os.LookupEnv(envPrefix + "ENV_FILE"); ok && v != "" {
		return v
	}
	return ".env"
}

// LoadDotEnv loads variables from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from REPOPULSE_ environment variables and returns a
// validated Config. At least one repository must be configured through
// REPOPULSE_REPOS or REPOPULSE_REPOS_FILE.
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken: os.Getenv(envPrefix + "GITHUB_TOKEN"),
		ListenAddr:  envString("LISTEN_ADDR", "127.0.0.1:8080"),
		Store:       strings.ToLower(envString("STORE", StoreMemory)),
		DBPath:      envString("DB_PATH", "repopulse.db"),
		LogLevel:    strings.ToLower(envString("LOG_LEVEL", "info")),
	}

	var err error
	if cfg.GlobalRefresh, err = envSeconds("GLOBAL_REFRESH_SECONDS", 60); err != nil {
		return nil, err
	}
	if cfg.RepoUpdateInterval, err = envSeconds("REPO_UPDATE_INTERVAL_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.FeedLimit, err = envInt("FEED_LIMIT", 200); err != nil {
		return nil, err
	}

	if cfg.Review, err = loadReview(); err != nil {
		return nil, err
	}

	if cfg.Repos, err = loadRepos(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadReview() (ReviewConfig, error) {
	r := ReviewConfig{
		APIURL: os.Getenv(envPrefix + "AI_REVIEW_API_URL"),
		APIKey: os.Getenv(envPrefix + "AI_REVIEW_API_KEY"),
		Model:  os.Getenv(envPrefix + "AI_REVIEW_MODEL"),
	}

	var err error
	if r.Enabled, err = envBool("AI_REVIEW_ENABLED", false); err != nil {
		return r, err
	}
	if r.MaxFiles, err = envInt("AI_REVIEW_MAX_FILES", 10); err != nil {
		return r, err
	}
	if r.MaxChanges, err = envInt("AI_REVIEW_MAX_CHANGES", 400); err != nil {
		return r, err
	}
	if r.DiffMaxChars, err = envInt("AI_REVIEW_DIFF_MAX_CHARS", 16000); err != nil {
		return r, err
	}

	timeoutMS, err := envInt("AI_REVIEW_TIMEOUT_MS", 30000)
	if err != nil {
		return r, err
	}
	r.Timeout = time.Duration(timeoutMS) * time.Millisecond

	return r, nil
}

// loadRepos merges the TOML file list with REPOPULSE_REPOS. Entries from the
// environment override the display name of a file entry with the same id.
func loadRepos() ([]Repo, error) {
	var repos []Repo

	if path := os.Getenv(envPrefix + "REPOS_FILE"); path != "" {
		var f reposFile
		if _, err := toml.DecodeFile(path, &f); err != nil {
			return nil, fmt.Errorf("%sREPOS_FILE %s: %w", envPrefix, path, err)
		}
		repos = append(repos, f.Repos...)
	}

	envRepos, err := ParseRepos(os.Getenv(envPrefix + "REPOS"))
	if err != nil {
		return nil, err
	}

	index := make(map[string]int, len(repos))
	var merged []Repo
	for _, r := range append(repos, envRepos...) {
		r.ID = strings.TrimSpace(r.ID)
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			r.Name = r.ID
		}

		if i, ok := index[r.ID]; ok {
			merged[i].Name = r.Name
			continue
		}
		index[r.ID] = len(merged)
		merged = append(merged, r)
	}

	return merged, nil
}

// ParseRepos parses a comma-separated "owner/name[=Display Name]" list.
func ParseRepos(s string) ([]Repo, error) {
	var repos []Repo

	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, name, _ := strings.Cut(entry, "=")
		id = strings.TrimSpace(id)
		if !validRepoID(id) {
			return nil, &InvalidRepoError{Repo: id}
		}

		name = strings.TrimSpace(name)
		if name == "" {
			name = id
		}
		repos = append(repos, Repo{ID: id, Name: name})
	}

	return repos, nil
}

func (c *Config) validate() error {
	if len(c.Repos) == 0 {
		return fmt.Errorf("no repositories configured: set %sREPOS or %sREPOS_FILE", envPrefix, envPrefix)
	}
	for _, r := range c.Repos {
		if !validRepoID(r.ID) {
			return &InvalidRepoError{Repo: r.ID}
		}
	}

	if c.GlobalRefresh <= 0 {
		return fmt.Errorf("%sGLOBAL_REFRESH_SECONDS must be positive", envPrefix)
	}
	if c.RepoUpdateInterval <= 0 {
		return fmt.Errorf("%sREPO_UPDATE_INTERVAL_SECONDS must be positive", envPrefix)
	}
	if c.FeedLimit <= 0 {
		return fmt.Errorf("%sFEED_LIMIT must be positive", envPrefix)
	}

	switch c.Store {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("%sSTORE has unknown backend %q", envPrefix, c.Store)
	}

	if c.Review.Enabled && (c.Review.MaxFiles < 0 || c.Review.MaxChanges < 0 || c.Review.DiffMaxChars < 0) {
		return fmt.Errorf("%sAI_REVIEW_* limits must not be negative", envPrefix)
	}

	return nil
}

func validRepoID(id string) bool {
	owner, name, ok := strings.Cut(id, "/")
	return ok && owner != "" && name != "" &&
		!strings.Contains(name, "/") && !strings.ContainsAny(id, " \t")
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%s%s has invalid integer %q: %w", envPrefix, key, v, err)
	}
	return n, nil
}

func envSeconds(key string, def int) (time.Duration, error) {
	n, err := envInt(key, def)
	if err != nil {
		return 0, err
	}
	return time.Duration(n) * time.Second, nil
}

func envBool(key string, def bool) (bool, error) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok || v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		return false, fmt.Errorf("%s%s has invalid boolean %q: %w", envPrefix, key, v, err)
	}
	return b, nil
}
