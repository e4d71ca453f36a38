// Package app はアプリケーションの起動と依存の組み立てを提供する。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/runquest/internal/auth"
	"github.com/hitoshi/runquest/internal/config"
	"github.com/hitoshi/runquest/internal/database"
	"github.com/hitoshi/runquest/internal/handler"
	"github.com/hitoshi/runquest/internal/logger"
	"github.com/hitoshi/runquest/internal/metrics"
	"github.com/hitoshi/runquest/internal/middleware"
	"github.com/hitoshi/runquest/internal/news"
	"github.com/hitoshi/runquest/internal/notify"
	"github.com/hitoshi/runquest/internal/questapi"
	"github.com/hitoshi/runquest/internal/repository"
	"github.com/hitoshi/runquest/internal/security"
	"github.com/hitoshi/runquest/internal/session"
	"github.com/hitoshi/runquest/internal/workflow"
)

// 期限切れセッションの削除間隔。
const sessionCleanupInterval = time.Hour

// Run はサブコマンドを解析してアプリケーションを実行する。
func Run(stdout io.Writer, args []string) error {
	logger.SetupDefault(stdout)

	switch ParseCommand(args) {
	case CommandMigrate:
		return runMigrate()
	case CommandHealthcheck:
		return runHealthcheck()
	default:
		return runServe(stdout)
	}
}

// runMigrate はデータベースマイグレーションを適用して終了する。
func runMigrate() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	slog.Info("migrations applied")
	return nil
}

// runHealthcheck はローカルのAPIサーバーに対してヘルスチェックを行う。
// distrolessコンテナにはcurlがないため、自前でHTTPリクエストを送る。
func runHealthcheck() error {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost:" + port + "/healthz")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// runServe はAPIサーバーを起動する。
// SIGINT/SIGTERMでグレースフルシャットダウンする。
func runServe(stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	appLogger := logger.Setup(stdout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// データベース
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return err
	}

	// メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// セッション
	sessionRepo := repository.NewPostgresSessionRepo(db)
	sessions := session.NewStore(sessionRepo, session.StoreConfig{MaxAge: cfg.SessionMaxAge})
	sessions.StartCleanup(ctx, sessionCleanupInterval)

	// ワークフローと通知
	workflows := workflow.NewRegistry(workflow.DefaultRegistryConfig())
	defer workflows.Stop()

	notifications := notify.NewCenter(notify.CenterConfig{
		TTL:             cfg.NotificationTTL,
		CleanupInterval: time.Minute,
	})
	defer notifications.Stop()

	// 上流APIクライアント
	questClient := questapi.NewClient(cfg.QuestAPIURL, cfg.QuestAPITimeout, collector)

	// ニュース
	fetchGuard := security.NewFetchGuard()
	sanitizer := security.NewNewsSanitizer()
	newsService := news.NewService(news.ServiceConfig{
		FeedURLs:     cfg.NewsFeedURLs,
		FetchTimeout: cfg.NewsFetchTimeout,
		MaxItems:     cfg.NewsMaxItems,
	}, fetchGuard, sanitizer, collector)
	if len(cfg.NewsFeedURLs) > 0 {
		newsService.StartRefresher(ctx, cfg.NewsRefreshInterval)
	}

	// OIDC（設定がある場合のみ有効化）
	var oidc auth.OIDCProvider
	if cfg.OIDCEnabled() {
		oidc = auth.NewGoogleOIDCProvider(auth.GoogleOIDCConfig{
			ClientID:     cfg.OIDCClientID,
			ClientSecret: cfg.OIDCClientSecret,
			RedirectURL:  cfg.OIDCRedirectURL,
		})
		slog.Info("OIDC sign-in enabled")
	}

	// レート制限
	rateLimiterConfig := middleware.DefaultRateLimiterConfig()
	rateLimiterConfig.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterConfig.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterConfig.SignInRate = rate.Limit(float64(cfg.RateLimitSignIn) / 60.0)
	rateLimiterConfig.SignInBurst = cfg.RateLimitSignIn
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig)
	defer rateLimiter.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		Config:        cfg,
		Logger:        appLogger,
		DB:            db,
		Sessions:      sessions,
		QuestAPI:      questClient,
		Registry:      workflows,
		Notifications: notifications,
		News:          newsService,
		OIDC:          oidc,
		RateLimiter:   rateLimiter,
		Gatherer:      registry,
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", slog.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
