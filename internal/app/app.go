// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/choretracker/internal/auth"
	"github.com/hitoshi/choretracker/internal/config"
	"github.com/hitoshi/choretracker/internal/database"
	"github.com/hitoshi/choretracker/internal/handler"
	"github.com/hitoshi/choretracker/internal/logger"
	"github.com/hitoshi/choretracker/internal/metrics"
	"github.com/hitoshi/choretracker/internal/middleware"
	"github.com/hitoshi/choretracker/internal/repository"
)

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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
		slog.Bool("development", cfg.Development),
		slog.String("auth_mode", string(cfg.AuthMode)),
	)

	switch cmd {
	case CommandMigrate:
		action, ok := ParseMigrateAction(args)
		if !ok {
			return fmt.Errorf("unknown migrate action: %q (allowed: up, down, version)", args[1])
		}
		return runMigrate(cfg, action)
	case CommandInstallFixture:
		return runInstallFixture(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sqlx.DB, error) {
	db, err := database.Open(cfg.DatabaseURL(), database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Ping(context.Background(), db, cfg.DBQueryTimeout); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL())),
	)
	return db, nil
}

// NewPolicy は設定された認証方式のauth.Policyを生成する。
func NewPolicy(cfg *config.Config) (auth.Policy, error) {
	switch cfg.AuthMode {
	case config.AuthModeInsecureQuery:
		return auth.NewInsecureQueryPolicy(), nil
	case config.AuthModeTicket:
		signer, err := auth.NewTicketSigner(cfg.CookieSecret, cfg.TicketDigest)
		if err != nil {
			return nil, fmt.Errorf("failed to create ticket signer: %w", err)
		}
		return auth.NewTicketPolicy(signer, auth.TicketPolicyConfig{
			CookieName:   cfg.CookieName,
			Domain:       cfg.CookieDomain,
			Path:         cfg.CookiePath,
			Secure:       cfg.CookieSecure(),
			ReauthPeriod: cfg.ReauthPeriod,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %q", cfg.AuthMode)
	}
}

// Server はHTTPハンドラーと停止時に解放するリソースをまとめたもの。
type Server struct {
	Handler     http.Handler
	RateLimiter *middleware.RateLimiter
}

// Close はバックグラウンドのリソースを解放する。
func (s *Server) Close() {
	s.RateLimiter.Stop()
}

// NewServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// regにはアプリケーションメトリクスとプロセスメトリクスを登録する。
func NewServer(cfg *config.Config, db *sqlx.DB, reg *prometheus.Registry) (*Server, error) {
	// 1. メトリクス
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, "choretracker"),
	)
	collector := metrics.NewCollector(reg)

	// 2. リポジトリの初期化
	taskRepo := repository.NewPostgresTaskRepo(db, cfg.DBQueryTimeout)
	taskGroupRepo := repository.NewPostgresTaskGroupRepo(db, cfg.DBQueryTimeout)
	userRepo := repository.NewPostgresUserRepo(db, cfg.DBQueryTimeout)

	// 3. 認証
	policy, err := NewPolicy(cfg)
	if err != nil {
		return nil, err
	}
	var signInService handler.SignInService
	if cfg.GoogleSignInEnabled() {
		validator := auth.NewGoogleSignInValidator(auth.GoogleValidatorConfig{
			ClientID: cfg.GoogleClientID,
			CertsURL: cfg.GoogleCertsURL,
			MaxAge:   cfg.GoogleCertsMaxAge,
			Observer: collector,
		})
		signInService = auth.NewService(validator, userRepo)
	} else {
		slog.Warn("GOOGLE_CLIENT_ID is not set; google sign-in is disabled")
	}

	// 4. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSignIn),
	)

	router := handler.NewRouter(&handler.RouterDeps{
		APIPrefix:         cfg.APIPrefix(),
		Resolver:          policy,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFProtection:    cfg.CSRFProtection,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure(),
			CookieDomain: cfg.CookieDomain,
			CookiePath:   cfg.CookiePath,
		},
		Logger:            slog.Default(),
		TrustProxyHeaders: cfg.TrustProxyHeaders,

		HealthChecker: db,
		Metrics:       collector,
		Gatherer:      reg,

		TaskRepo:      taskRepo,
		TaskGroupRepo: taskGroupRepo,
		UserRepo:      userRepo,
		SignIn:        signInService,
		Tickets:       policy,
	})

	return &Server{Handler: router, RateLimiter: rateLimiter}, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	srv, err := NewServer(cfg, db, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer srv.Close()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("api_prefix", cfg.APIPrefix()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	dbURL := cfg.DatabaseURL()
	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(dbURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.MigrateDown(dbURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.MigrationVersion(dbURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database migration version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(dbURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runInstallFixture は開発用のユーザー、タスクグループ、サンプルタスクを投入する。
func runInstallFixture(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := database.InstallFixture(ctx, db, time.Now())
	if err != nil {
		return fmt.Errorf("failed to install fixture: %w", err)
	}

	slog.Info("fixture installed",
		slog.Int64("user_id", result.UserID),
		slog.Int64("task_group_id", result.TaskGroupID),
		slog.Any("task_ids", result.TaskIDs),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
