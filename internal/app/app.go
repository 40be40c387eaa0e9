package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/config"
	"github.com/MrSnakeDoc/shelf/internal/httpserver"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/live"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/redis"
	"github.com/MrSnakeDoc/shelf/internal/scheduler"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
	"github.com/MrSnakeDoc/shelf/internal/utils"
	"github.com/MrSnakeDoc/shelf/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	hub         *live.Hub
	seed        *scheduler.SeedImporter
	sweeper     *scheduler.IndexSweeper
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// Initialize Redis early - fail fast if unavailable
	loggerClient.Infof("Connecting to Redis at %s", cfg.RedisAddr)
	redisClient, err := redis.Connect(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		DB:             cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	if err != nil {
		loggerClient.Errorf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	loggerClient.Info("Redis initialized successfully")

	bookmarks := redisstore.NewBookmarkStore(redisClient)
	users := redisstore.NewUserStore(redisClient)
	authService := auth.NewService(
		redisstore.NewSessionStore(redisClient),
		users,
		[]byte(cfg.TokenSecret),
		cfg.SessionTTL,
		loggerClient,
	)

	hub := live.NewHub(bookmarks, authService, loggerClient, live.Options{
		OriginPatterns: cfg.AllowedOrigins,
		WriteTimeout:   cfg.LiveWriteTimeout,
	})

	// Seed importer (if a seed file is configured)
	var seed *scheduler.SeedImporter
	if cfg.SeedFile != "" {
		loggerClient.Info("seed file configured, initializing seed importer",
			logger.String("file", cfg.SeedFile),
			logger.String("owner", cfg.SeedOwnerEmail))
		seed = scheduler.NewSeedImporter(
			cfg.SeedFile,
			cfg.SeedOwnerEmail,
			bookmarks,
			users,
			loggerClient,
			cfg.ReloadInterval,
		)
	} else {
		loggerClient.Info("seed file not configured, seed import disabled")
	}

	sweeper := scheduler.NewIndexSweeper(bookmarks, loggerClient, cfg.SweepInterval)

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		RedisClient:  redisClient,
		Bookmarks:    bookmarks,
		Auth:         authService,
		Live:         hub,
		Seed:         seed,
		CookieName:   cfg.CookieName,
		CookieSecure: cfg.CookieSecure,
		SignInBurst:  cfg.SignInBurst,
		SignInPerMin: cfg.SignInPerMin,
	}

	server := httpserver.New(cfg, loggerClient, d)

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      server,
		redisClient: redisClient,
		hub:         hub,
		seed:        seed,
		sweeper:     sweeper,
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting Shelf v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.seed != nil {
		a.seed.Start(ctx)
		a.logger.Info("seed importer started",
			logger.Duration("interval", a.cfg.ReloadInterval))
	}

	a.sweeper.Start(ctx)
	a.logger.Info("index sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	if a.seed != nil {
		a.seed.Stop()
	}
	a.sweeper.Stop()

	// Live connections are hijacked; Shutdown does not wait for them.
	a.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, "redis", a.logger)
	}

	a.logger.Info("✅ Shelf stopped cleanly")
	return nil
}
