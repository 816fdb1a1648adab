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
	"github.com/robfig/cron/v3"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-timetable-api/api/swagger"
	"github.com/noah-isme/sma-timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/cache"
	"github.com/noah-isme/sma-timetable-api/pkg/config"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
	"github.com/noah-isme/sma-timetable-api/pkg/generation"
	"github.com/noah-isme/sma-timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-timetable-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-timetable-api/pkg/notify"
)

// @title SMA Timetable API
// @version 1.0.0
// @description Weekly timetable editing, persistence and publishing
// @BasePath /
// @schemes http

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close()

	if err := database.EnsureSchema(ctx, db); err != nil {
		logr.Fatal("failed to prepare schema", zap.Error(err))
	}

	calendar, err := timetable.LoadCalendar(cfg.Timetable.CalendarFile)
	if err != nil {
		logr.Fatal("failed to load calendar", zap.Error(err))
	}

	metricsSvc := service.NewMetricsService()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect redis", zap.Error(err))
	}

	cacheSvc := service.NewCacheService(nil, metricsSvc, cfg.Timetable.RosterCacheTTL, logr)
	saveGuard := service.NewSaveGuard(nil, cfg.Timetable.SaveLockTTL, logr)
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		defer cacheRepo.Close() //nolint:errcheck
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Timetable.RosterCacheTTL, logr)
		saveGuard = service.NewSaveGuard(cacheRepo, cfg.Timetable.SaveLockTTL, logr)
	}

	teacherRepo := repository.NewTeacherRepository(db)
	entryRepo := repository.NewTimetableEntryRepository(db)
	lifecycleRepo := repository.NewTimetableLifecycleRepository(db)

	resolver := timetable.Resolver{Policy: timetable.ParseResolvePolicy(cfg.Timetable.ResolverPolicy)}

	rosterSvc := service.NewRosterService(teacherRepo, cacheSvc, cfg.Timetable.RosterCacheTTL, logr)
	syncSvc := service.NewTimetableSyncService(db, entryRepo, lifecycleRepo, rosterSvc, saveGuard, resolver, metricsSvc, logr)

	notifier, err := buildNotifier(cfg.Notify, logr)
	if err != nil {
		logr.Fatal("failed to init notifier", zap.Error(err))
	}
	dispatcher := notify.NewDispatcher(notifier, notify.DispatcherConfig{
		Workers: cfg.Notify.Workers,
		Retries: cfg.Notify.Retries,
		Logger:  logr,
		Outcome: func(msg notify.Message, delivered bool) {
			metricsSvc.RecordNotification(delivered)
		},
	})
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	svcCfg := service.TimetableServiceConfig{
		Calendar: calendar,
		Grid: timetable.GridOptions{
			Resolver:          resolver,
			PreserveOverrides: cfg.Timetable.PreserveOverrides,
		},
		SessionTTL: cfg.Timetable.SessionTTL,
	}
	var timetableSvc *service.TimetableService
	if cfg.Generator.URL != "" {
		client := generation.NewClient(generation.Config{
			URL:     cfg.Generator.URL,
			APIKey:  cfg.Generator.APIKey,
			Timeout: cfg.Generator.Timeout,
		}, nil, logr)
		generatorSvc := service.NewTimetableGeneratorService(client, resolver, metricsSvc, logr)
		timetableSvc = service.NewTimetableService(rosterSvc, syncSvc, generatorSvc, dispatcher, metricsSvc, logr, svcCfg)
	} else {
		logr.Warn("GENERATOR_URL not set; timetable generation disabled")
		timetableSvc = service.NewTimetableService(rosterSvc, syncSvc, nil, dispatcher, metricsSvc, logr, svcCfg)
	}
	exportSvc := service.NewTimetableExportService(rosterSvc, syncSvc, calendar)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Timetable.SessionSweepSpec, func() { timetableSvc.SweepSessions() }); err != nil {
		logr.Fatal("invalid session sweep schedule", zap.String("spec", cfg.Timetable.SessionSweepSpec), zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(internalmiddleware.RequireFeature("timetable", cfg.Timetable.Enabled))
	handler.RegisterTimetableRoutes(api, handler.NewTimetableHandler(timetableSvc, exportSvc))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func buildNotifier(cfg config.NotifyConfig, logr *zap.Logger) (notify.Notifier, error) {
	switch cfg.Driver {
	case "telegram":
		return notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChat)
	case "", "log":
		return notify.NewLogNotifier(logr), nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}
