package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/kurihiro0119/syscope/internal/api"
	"github.com/kurihiro0119/syscope/internal/auth"
	"github.com/kurihiro0119/syscope/internal/cache"
	"github.com/kurihiro0119/syscope/internal/collector"
	"github.com/kurihiro0119/syscope/internal/config"
	"github.com/kurihiro0119/syscope/internal/dashboard"
	"github.com/kurihiro0119/syscope/internal/jobs"
	"github.com/kurihiro0119/syscope/internal/logging"
	"github.com/kurihiro0119/syscope/internal/storage"
	"github.com/kurihiro0119/syscope/internal/storage/postgres"
	"github.com/kurihiro0119/syscope/internal/storage/sqlite"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}

	logger := logging.New(cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize storage
	store, err := newStorage(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", cfg.StorageType, err)
	}
	defer store.Close()

	collectors, err := collector.NewFactory(logger.WithPrefix("github"))
	if err != nil {
		return err
	}

	oauth := auth.NewGitHubOAuth(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.GitHubRedirectURL)
	svc := dashboard.NewService(
		store,
		collectors,
		cache.New(cfg.CacheSize, cfg.CacheTTL),
		oauth,
		auth.NewSessions(cfg.SessionSecret, cfg.SessionTTL),
		dashboard.WithLogger(logger.WithPrefix("dashboard")),
	)

	// Background collaborator sync
	if cfg.MemberSyncSchedule != "" {
		scheduler := jobs.NewScheduler(logger)
		memberSync := jobs.NewMemberSync(store, svc, logger.WithPrefix("member-sync"))
		if err := scheduler.AddFunc(cfg.MemberSyncSchedule, memberSync.Func(ctx)); err != nil {
			return fmt.Errorf("invalid MEMBER_SYNC_SCHEDULE: %w", err)
		}
		scheduler.Start()
		defer scheduler.Shutdown()
		logger.Info("member sync scheduled", "schedule", cfg.MemberSyncSchedule)
	}

	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := api.NewHandler(svc, oauth, strings.HasPrefix(cfg.GitHubRedirectURL, "https://"))
	router := api.SetupRoutes(handler, logger.WithPrefix("http"))

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", "addr", addr, "storage", cfg.StorageType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStorage(cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageType {
	case "postgres":
		return postgres.NewPostgresStorage(cfg.PostgresURL)
	default:
		return sqlite.NewSQLiteStorage(cfg.SQLitePath)
	}
}
