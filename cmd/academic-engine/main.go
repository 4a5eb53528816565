package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	_ "github.com/noah-isme/academic-engine/api/swagger"
	"github.com/noah-isme/academic-engine/internal/handler"
	"github.com/noah-isme/academic-engine/internal/middleware"
	"github.com/noah-isme/academic-engine/internal/repository"
	"github.com/noah-isme/academic-engine/internal/repository/memory"
	"github.com/noah-isme/academic-engine/internal/service"
	"github.com/noah-isme/academic-engine/internal/store"
	"github.com/noah-isme/academic-engine/internal/trigger"
	"github.com/noah-isme/academic-engine/pkg/cache"
	"github.com/noah-isme/academic-engine/pkg/config"
	"github.com/noah-isme/academic-engine/pkg/database"
	"github.com/noah-isme/academic-engine/pkg/feed"
	"github.com/noah-isme/academic-engine/pkg/jobs"
	"github.com/noah-isme/academic-engine/pkg/logger"
	corsmiddleware "github.com/noah-isme/academic-engine/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/academic-engine/pkg/middleware/requestid"
	"github.com/noah-isme/academic-engine/pkg/policy"
	"github.com/noah-isme/academic-engine/pkg/tracing"
)

// @title Academic Records Engine API
// @version 1.0.0
// @description Transactional enrollment, grading and graduation workflows with change-feed driven academic rules and reports.
// @BasePath /api/v1
// @schemes http

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("engine stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(flushCtx)
	}()

	pol, err := policy.Load(cfg.Academic.PolicyFile, cfg.Academic.DefaultCapacity)
	if err != nil {
		return err
	}

	probes := map[string]handler.Probe{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	var bus feed.Bus = feed.NewLocalBus()
	if redisClient != nil {
		bus = feed.NewRedisBus(redisClient, cfg.Trigger.Channel, logr)
	}
	defer bus.Close()

	st, closeStore, err := openStore(ctx, cfg, bus, logr, probes)
	if err != nil {
		return err
	}
	defer closeStore()

	metrics := service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	probes["cache"] = cacheRepo.Ping
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Reports.CacheTTL, logr, cfg.Reports.CacheEnabled && redisClient != nil)
	invalidations := jobs.NewQueue("cache-invalidation", cacheSvc.HandleJob, jobs.QueueConfig{Workers: 1, Logger: logr})
	cacheSvc.UseQueue(invalidations)
	invalidations.Start(ctx)
	defer invalidations.Stop()

	validate := validator.New()
	coordinator := service.NewCoordinator(st, pol, service.CoordinatorConfig{
		PassingGrade:         cfg.Academic.PassingGrade,
		GraduationMinAverage: cfg.Academic.GraduationMinAverage,
		DefaultCapacity:      cfg.Academic.DefaultCapacity,
		TxTimeout:            cfg.Tx.Timeout,
		MaxRetries:           cfg.Tx.MaxRetries,
		RetryDelay:           cfg.Tx.RetryDelay,
	}, validate, metrics, cacheSvc, logr)
	catalog := service.NewCourseCatalog(coordinator, validate, logr)
	reports := service.NewReportService(st, cacheSvc, metrics, service.ReportServiceConfig{
		PageSize:          cfg.Reports.PageSize,
		RiskThreshold:     cfg.Academic.RiskThreshold,
		RiskHighThreshold: cfg.Academic.RiskHighThreshold,
		CacheTTL:          cfg.Reports.CacheTTL,
	}, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))
	r.Use(middleware.Actor())
	r.Use(middleware.WithResponseMeta())

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Academic: handler.NewAcademicHandler(coordinator, catalog),
		Reports:  handler.NewReportHandler(reports, validate),
		Metrics:  handler.NewMetricsHandler(metrics, probes),
	})
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("store", cfg.Database.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if cfg.Trigger.Enabled {
		engine := trigger.NewEngine(st, bus, trigger.DefaultHandlers(trigger.Rules{
			RiskThreshold:     cfg.Academic.RiskThreshold,
			RiskHighThreshold: cfg.Academic.RiskHighThreshold,
			Policy:            pol,
		}), trigger.Config{
			PollInterval: cfg.Trigger.PollInterval,
			BatchSize:    cfg.Trigger.BatchSize,
			MaxRetries:   cfg.Trigger.MaxRetries,
			RetryDelay:   cfg.Trigger.RetryDelay,
		}, metrics, logr)
		engine.UseReportInvalidator(cacheSvc)
		g.Go(func() error { return engine.Run(gctx) })
	}

	err = g.Wait()
	logr.Info("engine shut down")
	return err
}

// openStore selects the persistence backend. Commits publish change signals on bus.
func openStore(ctx context.Context, cfg *config.Config, bus feed.Bus, logr *zap.Logger, probes map[string]handler.Probe) (store.Store, func(), error) {
	switch cfg.Database.Driver {
	case config.StoreDriverMemory:
		logr.Warn("using in-memory store, state is lost on exit")
		st := memory.New(memory.WithNotifier(bus), memory.WithLogger(logr))
		probes["store"] = func(ctx context.Context) error {
			return st.View(ctx, func(store.Reader) error { return nil })
		}
		return st, func() {}, nil
	case config.StoreDriverPostgres:
		db, err := database.NewPostgres(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(ctx, db, logr); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		probes["store"] = pingFunc(db)
		return repository.NewPostgresStore(db, bus, logr), func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Database.Driver)
	}
}

func pingFunc(db *sqlx.DB) handler.Probe {
	return func(ctx context.Context) error { return db.PingContext(ctx) }
}
