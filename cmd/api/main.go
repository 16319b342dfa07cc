package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/trust-core/internal/api/http"
	"github.com/spec-kit/trust-core/internal/api/http/handlers"
	"github.com/spec-kit/trust-core/internal/audit"
	"github.com/spec-kit/trust-core/internal/auth"
	"github.com/spec-kit/trust-core/internal/config"
	"github.com/spec-kit/trust-core/internal/crypto"
	"github.com/spec-kit/trust-core/internal/mfa"
	"github.com/spec-kit/trust-core/internal/observability"
	"github.com/spec-kit/trust-core/internal/persistence"
	"github.com/spec-kit/trust-core/internal/rate"
	"github.com/spec-kit/trust-core/internal/rbac"
	"github.com/spec-kit/trust-core/internal/token"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
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

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	cryptoSvc, err := crypto.New(cfg.Crypto.MasterKey)
	if err != nil {
		logger.Fatal("failed to init encryption service", zap.Error(err))
	}
	tokenSvc := token.NewService(cfg.Token, logger)

	dispatcher := audit.NewInMemoryDispatcher()
	audit.RegisterLogSink(dispatcher, logger)

	var permStore rbac.PermissionStore
	var mfaStore mfa.EnrollmentStore
	if pg.Available() {
		permStore = rbac.NewPostgresStore(pg.Pool)
		mfaStore = mfa.NewPostgresStore(pg.Pool)
	} else {
		permStore = rbac.NewMemoryStore()
		mfaStore = mfa.NewMemoryStore()
	}

	resolver := rbac.NewResolver(permStore, logger)
	guard := rbac.NewGuard(resolver, dispatcher)
	mfaSvc := mfa.NewService(cfg.MFA, mfaStore, cryptoSvc, dispatcher, logger)

	limiter := rate.NewLimiter(limiterStore(ctx, redis), logger)
	go limiter.StartCleanupLoop(ctx, time.Duration(cfg.Rate.CleanupMinutes)*time.Minute)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	strategies := []auth.Strategy{auth.NewBearerTokenStrategy(tokenSvc)}
	if cfg.Auth.TrustProxyHeaders {
		strategies = append(strategies, auth.NewTrustedHeaderStrategy())
	}
	authMiddleware := auth.NewMiddleware(logger, strategies...)

	app := fiber.New(fiber.Config{DisableStartupMessage: cfg.App.Env == "production"})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:          handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:            handlers.NewAuthHandler(tokenSvc, dispatcher),
		MFA:             handlers.NewMFAHandler(mfaSvc, metrics),
		Permissions:     handlers.NewPermissionsHandler(resolver, dispatcher),
		AuthMiddleware:  authMiddleware,
		Guard:           guard,
		MetricsGatherer: registry,
		RefreshLimit:    httptransport.RateLimitMiddleware(limiter, "login", cfg.Rate.Login, metrics, dispatcher, logger),
		EnrollLimit:     httptransport.RateLimitMiddleware(limiter, "registration", cfg.Rate.Registration, metrics, dispatcher, logger),
		MFAVerifyLimit:  httptransport.RateLimitMiddleware(limiter, "mfa_verify", cfg.Rate.MFAVerify, metrics, dispatcher, logger),
		AdminLimit:      httptransport.RateLimitMiddleware(limiter, "sensitive_write", cfg.Rate.SensitiveWrite, metrics, dispatcher, logger),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

// limiterStore prefers the shared Redis counters and falls back to the
// in-process store when Redis is unreachable at startup.
func limiterStore(ctx context.Context, redis *persistence.Redis) rate.CounterStore {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := redis.Ping(pingCtx); err != nil {
		return rate.NewMemoryStore()
	}
	return rate.NewRedisStore(redis.Client, "ratelimit")
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
