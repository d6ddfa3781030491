package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/mail"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/learnhub/internal/analytics"
	"github.com/hitoshi/learnhub/internal/auth"
	"github.com/hitoshi/learnhub/internal/cache"
	"github.com/hitoshi/learnhub/internal/catalog"
	"github.com/hitoshi/learnhub/internal/certification"
	"github.com/hitoshi/learnhub/internal/config"
	"github.com/hitoshi/learnhub/internal/contact"
	"github.com/hitoshi/learnhub/internal/database"
	"github.com/hitoshi/learnhub/internal/enrollment"
	"github.com/hitoshi/learnhub/internal/handler"
	"github.com/hitoshi/learnhub/internal/logger"
	"github.com/hitoshi/learnhub/internal/metrics"
	"github.com/hitoshi/learnhub/internal/middleware"
	"github.com/hitoshi/learnhub/internal/notify"
	"github.com/hitoshi/learnhub/internal/profile"
	"github.com/hitoshi/learnhub/internal/repository"
	"github.com/hitoshi/learnhub/internal/role"
	"github.com/hitoshi/learnhub/internal/security"
	"github.com/hitoshi/learnhub/internal/user"
	"github.com/hitoshi/learnhub/internal/validation"
	"github.com/hitoshi/learnhub/internal/worker"
	"github.com/hitoshi/learnhub/internal/worker/cleanup"
	"github.com/hitoshi/learnhub/internal/worker/digest"
)

const (
	appName         = "LearnHub"
	shutdownTimeout = 30 * time.Second
	jwtLeeway       = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, slog.LevelInfo)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。ctxがキャンセルされるとserve/workerは停止する。
func Run(ctx context.Context, w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(ctx, port)
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
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newMailer はSendGridのAPIキーがあればSendGridMailerを、なければログ出力のみのMailerを返す。
func newMailer(cfg *config.Config) notify.Mailer {
	if cfg.SendGridAPIKey == "" {
		slog.Warn("SENDGRID_API_KEY is not set; emails will only be logged")
		return notify.NewLogMailer(slog.Default())
	}
	from := mail.Address{Name: cfg.MailFromName, Address: cfg.MailFromAddress}
	return notify.NewSendGridMailer(cfg.SendGridAPIKey, from, appName)
}

// newProfileCache はREDIS_URLが設定されていればRedisキャッシュを返す。
// 接続に失敗した場合はキャッシュなしで続行する。closeは常に非nil。
func newProfileCache(ctx context.Context, cfg *config.Config) (pc cache.ProfileCache, closeFn func()) {
	if !cfg.ProfileCacheEnabled() {
		return cache.NopProfileCache{}, func() {}
	}

	rc, err := cache.NewRedisProfileCache(ctx, cfg.RedisURL, cfg.ProfileCacheTTL)
	if err != nil {
		slog.Warn("profile cache disabled",
			slog.String("error", err.Error()),
		)
		return cache.NopProfileCache{}, func() {}
	}

	slog.Info("profile cache enabled", slog.Duration("ttl", cfg.ProfileCacheTTL))
	return rc, func() {
		if err := rc.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリ
	profileRepo := repository.NewPostgresProfileRepo(db)
	courseRepo := repository.NewPostgresCourseRepo(db)
	enrollmentRepo := repository.NewPostgresEnrollmentRepo(db)
	roleRepo := repository.NewPostgresRoleRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)

	// 3. 周辺サービス
	profileCache, closeCache := newProfileCache(ctx, cfg)
	defer closeCache()

	notifier := notify.NewNotifier(newMailer(cfg), cfg.BaseURL)
	validator := validation.New()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービス
	roleService := role.NewService(roleRepo)
	profileService := profile.NewService(profileRepo, profileCache, roleService, validator)
	catalogService := catalog.NewService(courseRepo)
	enrollmentService := enrollment.NewService(enrollmentRepo, profileService, catalogService, roleService, collector)
	certificationService := certification.NewService(enrollmentRepo, roleService, profileService, catalogService, notifier, collector)
	contactService := contact.NewService(contactRepo, roleService, security.NewTextSanitizer(), validator, notifier, collector)
	userService := user.NewService(profileRepo, roleRepo, roleService)
	analyticsService := analytics.NewService(profileRepo, courseRepo, enrollmentRepo, contactRepo, roleService, cfg.AnalyticsWindow())

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(
		cfg.RateLimitGeneral, cfg.RateLimitEnroll, cfg.RateLimitContact,
	))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier: auth.NewVerifier(auth.VerifierConfig{
			Secret:   cfg.JWTSecret,
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
			Leeway:   jwtLeeway,
		}),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		TrustProxyHeaders: cfg.TrustProxyHeaders,

		HealthChecker:     db,
		MetricsHandler:    metrics.Handler(registry),
		MetricsMiddleware: collector.HTTPMiddleware,

		CatalogService: catalogService,
		ContactService: contactService,

		ProfileService:    profileService,
		RoleService:       roleService,
		EnrollmentService: enrollmentService,

		CertificationService: certificationService,
		UserService:          userService,
		AnalyticsService:     analyticsService,
	})

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、問い合わせクリーンアップと認定待ちダイジェストをcronで実行する。
// ctxがキャンセルされると実行中のジョブの終了を待って戻る。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	scheduler := worker.NewScheduler(slog.Default(), time.UTC, 0)

	cleanupJob := cleanup.NewJob(db, slog.Default(), cfg.ContactRetentionDays)
	if err := scheduler.Register(cfg.CleanupSchedule, cleanupJob); err != nil {
		return err
	}

	notifier := notify.NewNotifier(newMailer(cfg), cfg.BaseURL)
	digestJob := digest.NewJob(repository.NewPostgresEnrollmentRepo(db), notifier, slog.Default(), cfg.AdminNotifyEmail)
	if digestJob.Enabled() {
		if err := scheduler.Register(cfg.DigestSchedule, digestJob); err != nil {
			return err
		}
	} else {
		slog.Info("pending certificate digest disabled (ADMIN_NOTIFY_EMAIL is not set)")
	}

	slog.Info("worker starting",
		slog.Int("jobs", scheduler.JobCount()),
		slog.String("cleanup_schedule", cfg.CleanupSchedule),
		slog.Int("contact_retention_days", cfg.ContactRetentionDays),
	)

	// 起動直後に1回クリーンアップを実行する
	scheduler.RunJob(ctx, cleanupJob)

	scheduler.Start(ctx)

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

	version, dirty, err := database.MigrationVersion(cfg.DatabaseURL)
	if err != nil {
		slog.Warn("failed to read migration version", slog.String("error", err.Error()))
	} else {
		slog.Info("database migrations completed successfully",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(ctx context.Context, port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
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
