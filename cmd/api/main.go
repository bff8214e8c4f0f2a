package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/authkit/session-auth/internal/api/http"
	"github.com/authkit/session-auth/internal/api/http/handlers"
	"github.com/authkit/session-auth/internal/auth"
	"github.com/authkit/session-auth/internal/config"
	"github.com/authkit/session-auth/internal/events"
	"github.com/authkit/session-auth/internal/observability"
	"github.com/authkit/session-auth/internal/persistence"
	"github.com/authkit/session-auth/internal/ratelimit"
	"github.com/authkit/session-auth/internal/repository"
	"github.com/authkit/session-auth/internal/service"
	"github.com/authkit/session-auth/internal/validation"
	"github.com/authkit/session-auth/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(cfg.Postgres.DSN, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	var userRepo repository.UserRepository
	if pg.Enabled() {
		userRepo = repository.NewUserRepository(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory credential store; users are lost on restart")
		userRepo = repository.NewMemoryUserRepository()
	}
	sessionRepo := repository.NewSessionRepository(redis.Client)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		SessionRepo: sessionRepo,
		Hasher:      auth.NewBcryptHasher(cfg.Auth.BcryptCost),
		Validator:   validation.New(),
		Dispatcher:  dispatcher,
		Logger:      logger,
	})

	cookies := auth.NewCookieManager(auth.CookieConfig{
		Name:       cfg.Session.CookieName,
		MaxAge:     cfg.Session.TTL(),
		Production: cfg.IsProduction(),
	}, auth.NewTokenManager(cfg.Session.Secret))

	app := httptransport.NewApp(cfg.App.Name, logger, metrics,
		httptransport.MiddlewareConfig{
			AllowedOrigin: cfg.CORS.AllowedOrigin,
			Timeout:       cfg.App.RequestTimeout(),
		},
		httptransport.RouteConfig{
			Health:  handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics, logger),
			Auth:    handlers.NewAuthHandler(authService, cookies),
			Session: auth.NewSessionMiddleware(cookies, authService),
			Limiter: ratelimit.New(ratelimit.Config{
				Counter:   ratelimit.NewRedisCounter(redis.Client),
				Max:       cfg.RateLimit.Max,
				Window:    cfg.RateLimit.Window(),
				KeyPrefix: "ratelimit:auth:",
				Logger:    logger,
			}),
		})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
