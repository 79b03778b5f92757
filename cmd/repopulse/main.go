package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	githubadapter "github.com/ericfisherdev/repopulse/internal/adapter/driven/github"
	"github.com/ericfisherdev/repopulse/internal/adapter/driven/llm"
	"github.com/ericfisherdev/repopulse/internal/adapter/driven/memory"
	sqliteadapter "github.com/ericfisherdev/repopulse/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/repopulse/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/repopulse/internal/adapter/driving/web"
	"github.com/ericfisherdev/repopulse/internal/application"
	"github.com/ericfisherdev/repopulse/internal/config"
	"github.com/ericfisherdev/repopulse/internal/domain/model"
	"github.com/ericfisherdev/repopulse/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Structured logger; level is adjusted once config is loaded.
	logLevel := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	// 2. Load configuration (.env first, then env vars and the repos file).
	if err := config.LoadDotEnv(config.EnvFilePath()); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setLogLevel(cfg.LogLevel, logLevel)
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"repos", len(cfg.Repos),
		"repo_update_interval", cfg.RepoUpdateInterval,
		"global_refresh", cfg.GlobalRefresh,
		"store", cfg.Store,
		"review_enabled", cfg.Review.Usable(),
	)

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Open the store.
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 5. Wire adapters.
	ghClient := githubadapter.NewClient(cfg.GitHubToken)

	var chat driven.ChatCompleter
	if cfg.Review.Usable() {
		chat = llm.NewClient(cfg.Review.APIURL, cfg.Review.APIKey, nil)
		slog.Info("commit review enabled", "model", cfg.Review.Model)
	}

	// 6. Wire application services.
	repos := toRepositories(cfg.Repos)

	gate := application.NewReviewGate(application.ReviewGateConfig{
		Enabled:      cfg.Review.Enabled,
		APIURL:       cfg.Review.APIURL,
		APIKey:       cfg.Review.APIKey,
		Model:        cfg.Review.Model,
		MaxFiles:     cfg.Review.MaxFiles,
		MaxChanges:   cfg.Review.MaxChanges,
		DiffMaxChars: cfg.Review.DiffMaxChars,
		Timeout:      cfg.Review.Timeout,
	}, ghClient, chat, store, store)

	updateSvc := application.NewUpdateService(ghClient, store, gate)
	feedSvc := application.NewFeedService(repos, store, cfg.FeedLimit)
	scheduler := application.NewScheduler(repos, updateSvc, feedSvc, store, ghClient, cfg.RepoUpdateInterval)
	querySvc := application.NewQueryService(repos, store)

	// 7. HTTP API and web GUI on one mux.
	apiHandler := httphandler.NewHandler(querySvc, scheduler, slog.Default())
	webHandler := webhandler.NewHandler(
		querySvc,
		scheduler,
		int(cfg.GlobalRefresh.Seconds()),
		cfg.FeedLimit,
		slog.Default(),
	)
	handler := httphandler.NewServeMux(apiHandler, slog.Default(), func(mux *http.ServeMux) {
		webhandler.RegisterRoutes(mux, webHandler)
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      2 * time.Minute, // manual refresh waits for a full cycle
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	// 8. Start the scheduler: initial load, then one repository per tick.
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Start(ctx)
	}()

	slog.Info("repopulse started",
		"listen_addr", cfg.ListenAddr,
		"repos", len(repos),
	)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown: stop ticking, then drain HTTP.
	scheduler.Stop()
	<-schedulerDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

// openStore returns the configured store and a func that releases it.
func openStore(ctx context.Context, cfg *config.Config) (driven.Store, func(), error) {
	switch cfg.Store {
	case config.StoreSQLite:
		db, err := sqliteadapter.Open(ctx, cfg.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		slog.Info("database opened", "path", db.Path())

		closeFn := func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}
		return sqliteadapter.NewStore(db), closeFn, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}

func toRepositories(repos []config.Repo) []model.Repository {
	out := make([]model.Repository, 0, len(repos))
	for _, r := range repos {
		out = append(out, model.Repository{ID: r.ID, DisplayName: r.Name})
	}
	return out
}

func setLogLevel(level string, v *slog.LevelVar) {
	switch strings.ToLower(level) {
	case "debug":
		v.Set(slog.LevelDebug)
	case "warn":
		v.Set(slog.LevelWarn)
	case "error":
		v.Set(slog.LevelError)
	default:
		v.Set(slog.LevelInfo)
	}
}
