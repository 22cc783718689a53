package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/touristguide/internal/booking"
	"github.com/hitoshi/touristguide/internal/config"
	"github.com/hitoshi/touristguide/internal/database"
	"github.com/hitoshi/touristguide/internal/events"
	"github.com/hitoshi/touristguide/internal/guide"
	"github.com/hitoshi/touristguide/internal/handler"
	"github.com/hitoshi/touristguide/internal/logger"
	"github.com/hitoshi/touristguide/internal/metrics"
	"github.com/hitoshi/touristguide/internal/middleware"
	"github.com/hitoshi/touristguide/internal/model"
	"github.com/hitoshi/touristguide/internal/security"
	"github.com/hitoshi/touristguide/internal/store"
	"github.com/hitoshi/touristguide/internal/store/memstore"
	"github.com/hitoshi/touristguide/internal/store/mongostore"
	"github.com/hitoshi/touristguide/internal/store/pgstore"
	"github.com/hitoshi/touristguide/internal/story"
	"github.com/hitoshi/touristguide/internal/token"
	"github.com/hitoshi/touristguide/internal/tourpackage"
	"github.com/hitoshi/touristguide/internal/user"
	"github.com/hitoshi/touristguide/internal/wishlist"
)

// Init はアプリケーションの初期化を行う。
// .envがあれば環境変数に読み込み、JSON構造化ログをセットアップしてConfigを返す。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envの読み込み（既に設定済みの環境変数は上書きしない）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
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
		port := os.Getenv("PORT")
		if port == "" {
			port = "5000"
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
		slog.String("store_driver", cfg.StoreDriver),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openStore はSTORE_DRIVERに応じたストアを開く。
func openStore(ctx context.Context, cfg *config.Config) (store.Database, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		s, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		db, err := database.OpenAndPing(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return pgstore.New(db), nil
	default:
		slog.Warn("using in-memory store; data is lost on restart")
		return memstore.New(model.UniqueKeys), nil
	}
}

// openPublisher はイベントの発行先を返す。AMQP_URLが未設定ならNopPublisher。
func openPublisher(cfg *config.Config) (events.Publisher, error) {
	if !cfg.EventsEnabled() {
		return events.NopPublisher{}, nil
	}
	p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, err
	}
	slog.Info("event publishing enabled", slog.String("exchange", cfg.AMQPExchange))
	return p, nil
}

// buildRouter は全依存関係をワイヤリングしてルーターを構築する。
// 返されるcleanupでレートリミッターを停止する。
func buildRouter(cfg *config.Config, db store.Database, publisher events.Publisher, reg *prometheus.Registry) (http.Handler, func(), error) {
	log := slog.Default()

	trustedProxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}

	// 1. メトリクス
	collector := metrics.NewCollector(reg)
	instrumented := metrics.InstrumentDatabase(db, collector)

	// 2. イベント・トークン
	emitter := events.NewEmitter(publisher, log)
	tokenService := token.NewService(cfg.JWTSecret, cfg.JWTTTL)

	// 3. ドメインサービス
	userService := user.NewService(instrumented.Collection(model.CollectionUsers))
	guideService := guide.NewService(instrumented.Collection(model.CollectionTourGuides), security.NewTextSanitizer(), emitter)
	packageService := tourpackage.NewService(instrumented.Collection(model.CollectionPackages))
	wishlistService := wishlist.NewService(instrumented.Collection(model.CollectionWishlist), emitter)
	bookingService := booking.NewService(instrumented.Collection(model.CollectionBookings), emitter)
	storyService := story.NewService(instrumented.Collection(model.CollectionStories), security.NewContentSanitizer())

	// 4. ミドルウェア
	limiterCfg := middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral)
	limiterCfg.TrustedProxies = trustedProxies
	rateLimiter := middleware.NewRateLimiter(limiterCfg)
	gate := middleware.NewGate(tokenService, userService, collector, log)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:             log,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		RateLimiter:        rateLimiter,
		Gate:               gate,
		HTTPMetrics:        collector,
		MetricsHandler:     metrics.Handler(reg),
		HealthChecker:      db,

		TokenIssuer: tokenService,

		UserService:     userService,
		GuideService:    guideService,
		PackageService:  packageService,
		WishlistService: wishlistService,
		BookingService:  bookingService,
		StoryService:    storyService,
	})

	return router, rateLimiter.Stop, nil
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. ストア接続
	openCtx, cancelOpen := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := openStore(openCtx, cfg)
	cancelOpen()
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := db.Close(context.Background()); err != nil {
			slog.Error("failed to close store", slog.String("error", err.Error()))
		}
	}()

	slog.Info("store connection established", slog.String("driver", cfg.StoreDriver))

	// 2. ユニークインデックス（重複判定の前提）
	if err := ensureIndexes(context.Background(), db); err != nil {
		return err
	}

	// 3. イベント発行先
	publisher, err := openPublisher(cfg)
	if err != nil {
		return fmt.Errorf("failed to open event publisher: %w", err)
	}
	defer publisher.Close()

	// 4. ルーターの構築
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	router, stopRouter, err := buildRouter(cfg, db, publisher, reg)
	if err != nil {
		return err
	}
	defer stopRouter()

	// 5. HTTPサーバーの起動
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

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// ensureIndexes はストアがユニークインデックスに対応していれば作成する。
func ensureIndexes(ctx context.Context, db store.Database) error {
	ensurer, ok := db.(store.IndexEnsurer)
	if !ok {
		return nil
	}
	if err := ensurer.EnsureUniqueIndexes(ctx, model.UniqueKeys); err != nil {
		return fmt.Errorf("failed to ensure unique indexes: %w", err)
	}
	return nil
}

// runMigrate はストアのスキーマを適用する。
// PostgreSQLではすべての未適用マイグレーションを順番に適用し、
// MongoDBではユニークインデックスを作成する。
func runMigrate(cfg *config.Config) error {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		slog.Info("running database migrations",
			slog.String("database_url", maskURL(cfg.DatabaseURL)),
		)
		version, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database schema is up to date", slog.Uint64("version", uint64(version)))

	case config.DriverMongo:
		slog.Info("creating unique indexes",
			slog.String("mongodb_uri", maskURL(cfg.MongoURI)),
			slog.String("database", cfg.MongoDatabase),
		)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		s, err := mongostore.Open(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer s.Close(context.Background())

		if err := ensureIndexes(ctx, s); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

	default:
		slog.Info("nothing to migrate", slog.String("store_driver", cfg.StoreDriver))
		return nil
	}

	slog.Info("migrations completed successfully")
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

// maskURL は接続URLのパスワードとクエリをマスクする。
func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	u.RawQuery = ""
	return u.Redacted()
}
