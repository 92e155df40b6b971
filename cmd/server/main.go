package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/reseller/crosslist/internal/application/publishing"
	"github.com/reseller/crosslist/internal/application/reconciliation"
	"github.com/reseller/crosslist/internal/infrastructure/cache"
	"github.com/reseller/crosslist/internal/infrastructure/config"
	"github.com/reseller/crosslist/internal/infrastructure/logger"
	"github.com/reseller/crosslist/internal/infrastructure/marketplace"
	"github.com/reseller/crosslist/internal/infrastructure/migration"
	"github.com/reseller/crosslist/internal/infrastructure/persistence"
	"github.com/reseller/crosslist/internal/infrastructure/scheduler"
	"github.com/reseller/crosslist/internal/infrastructure/secrets"
	"github.com/reseller/crosslist/internal/infrastructure/storage"
	"github.com/reseller/crosslist/internal/infrastructure/telemetry"
	"github.com/reseller/crosslist/internal/interfaces/http/handler"
	"github.com/reseller/crosslist/internal/interfaces/http/middleware"
	"github.com/reseller/crosslist/internal/interfaces/http/router"
	"github.com/reseller/crosslist/migrations"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const (
	shutdownTimeout          = 30 * time.Second
	rateLimitCleanupInterval = 5 * time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// ---------------------------------------------------------------------
	// Telemetry
	// ---------------------------------------------------------------------

	otelProviders, err := telemetry.Setup(ctx, telemetry.Settings{
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Environment:       cfg.App.Env,
		Traces:            cfg.Telemetry.Enabled,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Metrics:           cfg.Telemetry.Enabled,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		Logs:              cfg.Telemetry.ExportLogs,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = otelProviders.Bridge(log, zapcore.InfoLevel)
	zap.ReplaceGlobals(log)

	log.Info("Starting crosslist",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// ---------------------------------------------------------------------
	// Storage
	// ---------------------------------------------------------------------

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, logger.ParseGormLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := migrateSchema(db, cfg, log); err != nil {
		log.Fatal("Failed to migrate database", zap.Error(err))
	}
	if cfg.Telemetry.TraceDatabase {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.Enabled = true
		if db.Driver() == "sqlite" {
			dbTracing.DBSystem = "sqlite"
		}
		if err := telemetry.RegisterDBTracing(db.DB, dbTracing, log); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected", zap.String("driver", db.Driver()))

	repos := persistence.NewRepositories(db.DB)

	secretStore, err := secrets.NewStore(cfg.Secrets, log)
	if err != nil {
		log.Fatal("Failed to open secret store", zap.Error(err))
	}
	sink, err := storage.NewSink(ctx, cfg.Storage, secretStore, log)
	if err != nil {
		log.Fatal("Failed to open export storage", zap.Error(err))
	}

	cacheFactory := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	)
	defer func() {
		if err := cacheFactory.Close(); err != nil {
			log.Error("Error closing Redis client", zap.Error(err))
		}
	}()
	locker, err := cacheFactory.CreateLocker(cfg.Reconciliation.LockTTL)
	if err != nil {
		log.Fatal("Failed to create listing locker", zap.Error(err))
	}
	signals, err := cacheFactory.CreateIdempotencyStore()
	if err != nil {
		log.Fatal("Failed to create sale signal store", zap.Error(err))
	}

	// ---------------------------------------------------------------------
	// Marketplaces and services
	// ---------------------------------------------------------------------

	platforms, err := enabledPlatforms(cfg.Publish.EnabledPlatforms)
	if err != nil {
		log.Fatal("Invalid platform configuration", zap.Error(err))
	}
	registry, err := marketplace.NewRegistry(platforms, marketplace.Dependencies{
		Secrets:       secretStore,
		Sink:          sink,
		Logger:        log,
		Ebay:          ebayConfig(cfg.Ebay),
		Mercari:       mercariConfig(cfg.Mercari),
		StorefrontURL: cfg.Publish.StorefrontURL,
	})
	if err != nil {
		log.Fatal("Failed to configure marketplaces", zap.Error(err))
	}
	log.Info("Marketplaces configured", zap.Stringers("platforms", registry.Platforms()))

	listingMetrics, err := telemetry.NewListingMetrics(otelProviders.Meter("crosslist"), log)
	if err != nil {
		log.Fatal("Failed to create listing metrics", zap.Error(err))
	}

	publisher := publishing.NewPublisher(registry, repos.History,
		publishing.WithTimeout(cfg.Publish.Timeout),
		publishing.WithMetrics(listingMetrics),
		publishing.WithLogger(log),
	)

	recCfg, err := reconciliationConfig(cfg.Reconciliation)
	if err != nil {
		log.Fatal("Invalid reconciliation configuration", zap.Error(err))
	}
	reconciler := reconciliation.NewReconciler(reconciliation.Stores{
		Listings:      repos.Listings,
		Links:         repos.Links,
		Sales:         repos.Sales,
		SyncLogs:      repos.SyncLogs,
		Notifications: repos.Notifications,
	}, registry, locker, recCfg,
		reconciliation.WithIdempotencyStore(signals),
		reconciliation.WithMetrics(listingMetrics),
		reconciliation.WithLogger(log),
	)
	listingService := publishing.NewListingService(repos.Listings, repos.Links, repos.SyncLogs, repos.Notifications, publisher,
		publishing.WithMaxPublishRetries(cfg.Reconciliation.MaxPublishRetries),
		publishing.WithActivationFollower(reconciler),
		publishing.WithServiceLogger(log),
	)

	// ---------------------------------------------------------------------
	// Background tasks
	// ---------------------------------------------------------------------

	var limiter *middleware.RateLimiter
	if cfg.HTTP.RateLimitEnabled {
		limiter = middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
	}

	runners, err := backgroundTasks(cfg, listingService, reconciler, limiter, log)
	if err != nil {
		log.Fatal("Failed to configure background tasks", zap.Error(err))
	}
	for _, r := range runners {
		if err := r.Start(ctx); err != nil {
			log.Fatal("Failed to start background task", zap.Error(err))
		}
	}

	// ---------------------------------------------------------------------
	// HTTP
	// ---------------------------------------------------------------------

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	jobRunners := make([]handler.JobRunner, 0, len(runners))
	for _, r := range runners {
		jobRunners = append(jobRunners, r)
	}
	engine, err := router.New(router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: otelProviders.TracingEnabled(),
		TracerProvider: otelProviders.TracerProvider(),
		Meter:          otelProviders.Meter("crosslist/http"),
		CORS:           corsConfig(cfg.HTTP),
		MaxBodyBytes:   cfg.HTTP.MaxBodySize,
		RateLimiter:    limiter,
	}, router.Handlers{
		Listings: handler.NewListingHandler(listingService),
		Sales:    handler.NewSaleHandler(reconciler),
		Jobs:     handler.NewJobHandler(jobRunners...),
		System:   handler.NewSystemHandler(version, db),
	}, log)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	for _, r := range runners {
		if err := r.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping background task", zap.Error(err))
		}
	}
	_ = otelProviders.Shutdown(shutdownCtx)

	log.Info("Server exited gracefully")
}

// runner is a started background scheduler
type runner interface {
	handler.JobRunner
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// backgroundTasks builds the cancellation sweep, the failed post retry and,
// when rate limiting is on, the limiter cleanup
func backgroundTasks(cfg *config.Config, listings *publishing.ListingService, rec *reconciliation.Reconciler,
	limiter *middleware.RateLimiter, log *zap.Logger) ([]runner, error) {
	sweep, err := scheduler.NewIntervalRunner(scheduler.Task{
		Name:    "sweep-cancellations",
		Timeout: cfg.Reconciliation.SweepInterval,
		Run: func(ctx context.Context) error {
			report, err := rec.SweepDueCancellations(ctx, time.Now())
			if err != nil {
				return err
			}
			if report.Due > 0 {
				log.Info("Cancellation sweep finished",
					zap.Int("due", report.Due),
					zap.Int("canceled", report.Canceled),
					zap.Int("retrying", report.Retrying),
					zap.Int("manual_action", report.ManualAction),
				)
			}
			return nil
		},
	}, cfg.Reconciliation.SweepInterval, scheduler.WithLogger(log))
	if err != nil {
		return nil, err
	}

	cron := scheduler.NewCronRunner(scheduler.WithLogger(log))
	if err := cron.Add(cfg.Reconciliation.RetrySchedule, scheduler.Task{
		Name: "retry-failed-posts",
		Run: func(ctx context.Context) error {
			report, err := listings.RetryFailedPosts(ctx)
			if err != nil {
				return err
			}
			if report.Attempted > 0 {
				log.Info("Retried failed posts",
					zap.Int("attempted", report.Attempted),
					zap.Int("succeeded", report.Succeeded),
					zap.Int("failed", report.Failed),
				)
			}
			return nil
		},
	}); err != nil {
		return nil, err
	}

	runners := []runner{sweep, cron}
	if limiter != nil {
		cleanup, err := scheduler.NewIntervalRunner(scheduler.Task{
			Name: "rate-limit-cleanup",
			Run: func(context.Context) error {
				limiter.Cleanup()
				return nil
			},
		}, rateLimitCleanupInterval, scheduler.WithLogger(log))
		if err != nil {
			return nil, err
		}
		runners = append(runners, cleanup)
	}
	return runners, nil
}

// migrateSchema brings the schema up to date. PostgreSQL runs the versioned
// migrations; SQLite, or auto_migrate, uses the gorm models.
func migrateSchema(db *persistence.Database, cfg *config.Config, log *zap.Logger) error {
	if db.Driver() == "sqlite" || cfg.Database.AutoMigrate {
		return db.AutoMigrate()
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}
