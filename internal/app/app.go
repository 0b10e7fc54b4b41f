package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/wearly/wearly/internal/auth"
	"github.com/wearly/wearly/internal/closet"
	"github.com/wearly/wearly/internal/config"
	"github.com/wearly/wearly/internal/database"
	"github.com/wearly/wearly/internal/handler"
	"github.com/wearly/wearly/internal/inference"
	"github.com/wearly/wearly/internal/logger"
	"github.com/wearly/wearly/internal/metrics"
	"github.com/wearly/wearly/internal/middleware"
	"github.com/wearly/wearly/internal/model"
	"github.com/wearly/wearly/internal/preference"
	"github.com/wearly/wearly/internal/realtime"
	"github.com/wearly/wearly/internal/recommend"
	"github.com/wearly/wearly/internal/repository"
	"github.com/wearly/wearly/internal/security"
	"github.com/wearly/wearly/internal/user"
	"github.com/wearly/wearly/internal/weather"
	"github.com/wearly/wearly/internal/worker/reconcile"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg, false)
	case CommandReconcile:
		return runWorker(cfg, true)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config, pool database.PoolConfig) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, pool)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, 5*time.Second); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// headProvider はHubとおすすめサービスの相互参照を解くためのアダプタ。
// Hubの生成後にサービスを設定する。
type headProvider struct {
	svc *recommend.Service
}

func (p *headProvider) Current(ctx context.Context, userID string) (*model.Garment, error) {
	return p.svc.Current(ctx, userID)
}

// server はAPIサーバーモードで動作するコンポーネント一式。
type server struct {
	handler         http.Handler
	hub             *realtime.Hub
	recommendations *recommend.Service
	limiter         *middleware.RateLimiter
	bus             realtime.Bus
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// busがnilの場合、端末への通知はこのインスタンス内でのみ配信される。
func newServer(cfg *config.Config, db *sql.DB, bus realtime.Bus, reg *prometheus.Registry, logger *slog.Logger) (*server, error) {
	mc := metrics.NewCollector(reg)

	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	garmentRepo := repository.NewPostgresGarmentRepo(db)
	prefRepo := repository.NewPostgresStylePreferenceRepo(db)
	feedbackStore := repository.NewPostgresFeedbackStore(db)

	// 2. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewLabelSanitizer()

	// 3. 外部サービスクライアントの初期化
	// 推論サービスは内部ネットワークにあるため、SSRFガードを通さない
	resolver := inference.NewCategoryResolver(&http.Client{}, inference.ResolverConfig{
		Endpoint: cfg.ResolverURL,
		Timeout:  cfg.ResolverTimeout,
		Breaker:  inference.DefaultBreakerConfig(),
	}, logger, mc)

	var predictor closet.Predictor
	if cfg.PredictorURL != "" {
		predictor = inference.NewPredictor(&http.Client{}, inference.PredictorConfig{
			Endpoint: cfg.PredictorURL,
			Timeout:  cfg.PredictorTimeout,
			Breaker:  inference.DefaultBreakerConfig(),
		}, logger, mc)
	}

	var weatherProvider recommend.WeatherProvider
	if cfg.WeatherAPIKey != "" {
		weatherProvider = weather.NewClient(ssrfGuard.NewSafeClient(cfg.WeatherTimeout), weather.Config{
			APIKey:   cfg.WeatherAPIKey,
			Endpoint: cfg.WeatherEndpoint,
			Timeout:  cfg.WeatherTimeout,
		}, logger)
	} else {
		logger.Warn("WEATHER_API_KEY is not set; location based recommendations are disabled")
	}

	// 4. ドメインサービスの初期化
	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create token manager: %w", err)
	}
	authService := auth.NewService(userRepo, tokens, logger)

	sessions := recommend.NewSessionStore(mc.SetActiveSessions)
	updater := preference.NewUpdater(feedbackStore, logger)

	heads := &headProvider{}
	hub := realtime.NewHub(heads, bus, cfg.BaseURL, logger)

	recService := recommend.NewService(
		garmentRepo,
		recommend.NewEligibilityFilter(resolver),
		updater,
		weatherProvider,
		sessions,
		hub,
		mc,
		logger,
	)
	heads.svc = recService

	closetService := closet.NewService(
		garmentRepo, ssrfGuard, sanitizer, predictor, updater, recService, cfg.BaseURL, logger,
	)
	userService := user.NewService(userRepo, recService)

	// 5. ルーターの構築
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralPerMinute:    cfg.RateLimitGeneral,
		GarmentRegPerMinute: cfg.RateLimitGarmentReg,
		CleanupInterval:     5 * time.Minute,
	})

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            logger,
		Metrics:           mc,
		MetricsGatherer:   reg,
		HealthChecker:     db,
		Authenticator:     authService,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		BaseURL:           cfg.BaseURL,

		AuthService:    authService,
		UserService:    userService,
		ProfileService: authService,

		GarmentService: closetService,

		RecommendationService: recService,
		StylePreferences:      prefRepo,

		Devices: hub,
	})

	return &server{
		handler:         router,
		hub:             hub,
		recommendations: recService,
		limiter:         limiter,
		bus:             bus,
	}, nil
}

// newRegistry はGo・プロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	logger := slog.Default()

	// 1. DB接続
	db, err := openDatabase(cfg, database.DefaultPoolConfig())
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. 端末通知のBus（REDIS_ADDRが設定されている場合のみ）
	var bus realtime.Bus
	if cfg.RedisAddr != "" {
		redisBus, err := realtime.NewRedisBus(ctx, cfg.RedisAddr, cfg.RedisChannel, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		bus = redisBus
		slog.Info("device bus connected", slog.String("channel", cfg.RedisChannel))
	}

	srv, err := newServer(cfg, db, bus, newRegistry(), logger)
	if err != nil {
		return err
	}
	defer srv.limiter.Stop()
	if srv.bus != nil {
		defer srv.bus.Close()
	}

	// 3. バックグラウンド処理の起動
	go func() {
		if err := srv.hub.Run(ctx); err != nil {
			slog.Error("device hub stopped", slog.String("error", err.Error()))
		}
	}()
	go srv.recommendations.StartSweeper(ctx, cfg.SessionSweepInterval, cfg.SessionIdleTTL)

	// 4. HTTPサーバーの起動
	// WebSocket接続を切らないよう、WriteTimeoutは設定しない
	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	// 端末接続を先に閉じる（Shutdownはハイジャック済み接続を待たない）
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、スタイル別集計の整合ジョブを定期実行する。
// onceがtrueの場合は1回だけ実行し、失敗したユーザーがいればエラーを返す。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config, once bool) error {
	// 1. DB接続
	db, err := openDatabase(cfg, database.PoolConfig{
		MaxOpenConns: cfg.ReconcileMaxConcurrent + 1,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. 整合ジョブの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	updater := preference.NewUpdater(repository.NewPostgresFeedbackStore(db), slog.Default())
	worker := reconcile.NewWorker(userRepo, updater, slog.Default(), metrics.NopCollector{}, cfg.ReconcileMaxConcurrent)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if once {
		summary, err := worker.RunOnce(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}
		if summary.Failed > 0 {
			return fmt.Errorf("reconcile failed for %d of %d users", summary.Failed, summary.Users)
		}
		return nil
	}

	slog.Info("worker starting",
		slog.Duration("reconcile_interval", cfg.ReconcileInterval),
		slog.Int("max_concurrent", cfg.ReconcileMaxConcurrent),
	)

	// 整合ジョブをメインgoroutineで実行（ブロッキング）
	worker.Start(ctx, cfg.ReconcileInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	status, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(status.Version)),
		slog.Bool("dirty", status.Dirty),
	)
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
