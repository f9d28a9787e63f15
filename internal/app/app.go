// Package app はアプリケーションの初期化、依存関係のワイヤリング、起動モードの切り替えを行う。
package app

import (
	"context"
	"database/sql"
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/TGlide/sawit-server/internal/auth"
	"github.com/TGlide/sawit-server/internal/config"
	"github.com/TGlide/sawit-server/internal/database"
	"github.com/TGlide/sawit-server/internal/graph"
	"github.com/TGlide/sawit-server/internal/handler"
	"github.com/TGlide/sawit-server/internal/logger"
	"github.com/TGlide/sawit-server/internal/mailer"
	"github.com/TGlide/sawit-server/internal/metrics"
	"github.com/TGlide/sawit-server/internal/middleware"
	"github.com/TGlide/sawit-server/internal/password"
	"github.com/TGlide/sawit-server/internal/post"
	"github.com/TGlide/sawit-server/internal/repository"
	"github.com/TGlide/sawit-server/internal/security"
	"github.com/TGlide/sawit-server/internal/session"
	"github.com/TGlide/sawit-server/internal/user"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込んでログレベルを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, using info", slog.String("log_level", cfg.LogLevel))
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
			port = "4000"
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
		slog.String("frontend_url", cfg.FrontendURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// server はHTTPハンドラーと停止時に解放するリソースをまとめたもの。
type server struct {
	handler     http.Handler
	rateLimiter *middleware.RateLimiter
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーを構築する。
// 接続確認は呼び出し側で行うため、dbとrdbへの通信は発生しない。
func newServer(cfg *config.Config, db *sql.DB, rdb *redis.Client, registry *prometheus.Registry) (*server, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	postRepo := repository.NewPostgresPostRepo(db)
	sessionRepo := repository.NewRedisSessionRepo(rdb, repository.DefaultSessionPrefix)
	tokenRepo := repository.NewRedisResetTokenRepo(rdb, repository.DefaultResetTokenPrefix)

	// 2. 横断的なコンポーネント
	collector := metrics.NewCollector(registry)

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create password hasher: %w", err)
	}

	mail, err := mailer.New(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.MailFrom,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create mailer: %w", err)
	}

	sessions, err := session.NewManager(sessionRepo, session.Config{
		Secret: cfg.SessionSecret,
		MaxAge: cfg.SessionMaxAge,
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	// 3. ドメインサービスの初期化
	authService := auth.NewService(userRepo, tokenRepo, hasher, mail, collector, auth.ServiceConfig{
		FrontendURL:   cfg.FrontendURL,
		ResetTokenTTL: cfg.ResetTokenTTL,
	})
	postService := post.NewService(postRepo, userRepo, security.NewTextSanitizer(), collector)
	userService := user.NewService(userRepo)

	// 4. GraphQLスキーマ
	schema, err := graph.NewSchema(&graph.Resolver{
		Auth:  authService,
		Posts: postService,
		Users: userService,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build graphql schema: %w", err)
	}

	// 5. ルーターの構築
	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}
	limiterConfig := middleware.PerMinute(cfg.RateLimitGeneral)
	limiterConfig.TrustedProxies = trustedProxies
	rateLimiter := middleware.NewRateLimiter(limiterConfig)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionLoader:     sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HTTPS:             cfg.CookieSecure,
		RateLimiter:       rateLimiter,
		Metrics:           collector,
		GraphQL:           graph.NewHandler(schema),
		HealthCheckers: []handler.HealthChecker{
			handler.PingFunc{Label: "postgres", Fn: db.PingContext},
			handler.PingFunc{Label: "redis", Fn: func(ctx context.Context) error {
				return database.PingRedis(ctx, rdb)
			}},
		},
		MetricsHandler: metrics.Handler(registry),
	})

	return &server{handler: router, rateLimiter: rateLimiter}, nil
}

// newRegistry はGoランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

// runServe はAPIサーバーモードで起動する。
// PostgreSQLとRedisに接続し、全依存関係をワイヤリングしてHTTPサーバーを起動する。
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

	// 2. Redis接続
	rdb, err := database.OpenRedis(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("failed to open redis: %w", err)
	}
	defer rdb.Close()

	if err := database.PingRedis(context.Background(), rdb); err != nil {
		return err
	}
	slog.Info("redis connection established")

	// 3. ワイヤリング
	srv, err := newServer(cfg, db, rdb, newRegistry())
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	// 4. HTTPサーバーの起動
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
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

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
