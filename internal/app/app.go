package app

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/lastseen/internal/activity"
	"github.com/hitoshi/lastseen/internal/cache"
	"github.com/hitoshi/lastseen/internal/clock"
	"github.com/hitoshi/lastseen/internal/config"
	"github.com/hitoshi/lastseen/internal/database"
	"github.com/hitoshi/lastseen/internal/handler"
	"github.com/hitoshi/lastseen/internal/logger"
	"github.com/hitoshi/lastseen/internal/metrics"
	"github.com/hitoshi/lastseen/internal/middleware"
	"github.com/hitoshi/lastseen/internal/model"
	"github.com/hitoshi/lastseen/internal/repository"
	"github.com/hitoshi/lastseen/internal/security"
	"github.com/hitoshi/lastseen/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg, args[1:], w)
	default:
		return runServe(cfg)
	}
}

// newSuppressionCache は設定に応じた書き込み抑制キャッシュを生成する。
// 不要になったらstopを呼び出すこと。
func newSuppressionCache(cfg *config.Config, clk clock.Clock) (suppression cache.SuppressionCache, stop func()) {
	if !cfg.CacheEnabled {
		return cache.Disabled{}, func() {}
	}
	mem := cache.NewMemory(clk)
	return mem, mem.Stop
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	activityRepo := repository.NewPostgresActivityRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. コアサービスの初期化
	clk := clock.System()

	suppression, stopCache := newSuppressionCache(cfg, clk)
	defer stopCache()

	sanitizer := security.NewFieldSanitizer()

	tracker := activity.NewTracker(
		activityRepo, suppression, clk, sanitizer,
		slog.Default(), collector,
		activity.TrackerConfig{
			CacheTTL:  cfg.CacheTTL,
			KeyPrefix: cfg.CacheKeyPrefix,
		},
	)

	presenceService := activity.NewService(activityRepo, clk, cfg.OnlineThreshold)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitQuery))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder: sessionRepo,
		SessionCookie: middleware.SessionCookieConfig{
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		},
		Tracker: tracker,
		TrackConfig: middleware.TrackConfig{
			TrackAnonymous: cfg.TrackAnonymous,
			IgnoredRoutes:  cfg.IgnoredRoutes,
		},
		RateLimiter:       rateLimiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		PresenceService: presenceService,

		HealthChecker: db,
		Logger:        slog.Default(),
		Metrics:       collector,
		Gatherer:      registry,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、日次クリーンアップジョブを実行し続ける。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	activityRepo := repository.NewPostgresActivityRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	sweeper := cleanup.NewSweeper(
		activityRepo, clock.System(), slog.Default(), collector,
		cfg.CleanupAfterDays,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Int("cleanup_after_days", cfg.CleanupAfterDays),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	sweeper.RunDaily(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCleanup はクリーンアップを1回実行して終了する。
// --days=<N>で設定の保持日数を上書きでき、--dry-runで削除せずに件数のみ確認できる。
// 保持日数が設定にも--daysにも指定されていない場合はエラーを返す
// （定期実行のワーカーモードと異なり、オペレーターの明示的な操作のため黙殺しない）。
func runCleanup(cfg *config.Config, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("cleanup", flag.ContinueOnError)
	fs.SetOutput(w)
	days := fs.Int("days", 0, "保持日数（設定のCLEANUP_AFTER_DAYSを上書き）")
	dryRun := fs.Bool("dry-run", false, "削除対象の件数のみ表示し、削除は行わない")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("failed to parse cleanup flags: %w", err)
	}

	retentionDays := cfg.CleanupAfterDays
	if *days > 0 {
		retentionDays = *days
	}
	if retentionDays <= 0 {
		return model.NewCleanupDisabledError()
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	activityRepo := repository.NewPostgresActivityRepo(db)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	sweeper := cleanup.NewSweeper(
		activityRepo, clock.System(), slog.Default(), collector,
		retentionDays,
	)

	ctx := context.Background()

	if *dryRun {
		count, err := sweeper.DryRun(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "dry run: would delete %d activity records (retention %d days)\n", count, retentionDays)
		return nil
	}

	deleted, err := sweeper.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "deleted %d activity records (retention %d days)\n", deleted, retentionDays)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
