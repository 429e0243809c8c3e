package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"saas-billing/config"
	"saas-billing/database"
	adminapi "saas-billing/internal/api/admin"
	billingapi "saas-billing/internal/api/billing"
	plansapi "saas-billing/internal/api/plans"
	stripewebhooks "saas-billing/internal/api/stripewebhook"
	usersapi "saas-billing/internal/api/users"
	routes "saas-billing/internal/app/http"
	"saas-billing/internal/app/http/middleware"
	"saas-billing/internal/cache"
	"saas-billing/internal/infra/stripegw"
	"saas-billing/internal/jobs"
	"saas-billing/internal/logger"
	"saas-billing/internal/metrics"
	"saas-billing/internal/repository"
	"saas-billing/internal/service/catalog"
	"saas-billing/internal/service/subscription"
	"saas-billing/internal/service/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			zl.Warn("sentry disabled", zap.Error(err))
		}
		defer sentry.Flush(2 * time.Second)
	}

	db, err := database.Open(cfg.DBURL, zl)
	if err != nil {
		return err
	}

	var redisCache *cache.Client
	if cfg.RedisURL != "" {
		redisCache, err = cache.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			zl.Warn("redis unavailable, plan catalog cache disabled", zap.Error(err))
			redisCache = nil
		} else {
			defer redisCache.Close()
		}
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	stripeClient := stripegw.New(cfg.StripeSecretKey, cfg.StripeWebhookSecret, zl)

	subs := repository.NewSubscriptionRepository(db)
	users := repository.NewUserRepository(db)
	payments := repository.NewPaymentRepository(db)
	events := repository.NewWebhookEventRepository(db)
	snapshot := repository.NewPlanCatalogRepository(db)

	resolver := catalog.New(stripeClient, snapshot, redisCache, cfg.CatalogCacheTTL, zl, m)
	processor := webhook.NewProcessor(stripeClient, subs, payments, events, users, zl, m)
	svc := subscription.NewService(stripeClient, resolver, subs, payments, users, cfg.AppURL, zl, m)

	reconciler := jobs.NewReconciler(stripeClient, subs, users, zl, m)
	scheduler := jobs.NewScheduler(zl)
	if cfg.ReconcileSchedule != "" {
		if err := scheduler.AddReconciler(cfg.ReconcileSchedule, reconciler, cfg.ReconcileTimeout); err != nil {
			return err
		}
	}

	if err := middleware.RegisterValidators(); err != nil {
		return err
	}
	if cfg.Production() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), sentrygin.New(sentrygin.Options{Repanic: true}))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Deps{
		Auth:           middleware.NewAuthenticator(ctx, cfg.JWTSecret, cfg.SupabaseJWKSURL),
		Billing:        billingapi.NewHandler(svc),
		Plans:          plansapi.NewHandler(resolver, zl),
		Webhook:        stripewebhooks.NewHandler(processor, zl),
		Users:          usersapi.NewHandler(users, subs),
		Admin:          adminapi.NewHandler(repository.NewStatsRepository(db), reconciler),
		Metrics:        m,
		MetricsHandler: promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("billing service listening", zap.String("addr", srv.Addr), zap.String("env", cfg.AppEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	scheduler.Start()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	scheduler.Stop(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
