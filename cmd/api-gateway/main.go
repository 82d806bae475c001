package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/timetable-api/api/swagger"
	"github.com/noah-isme/timetable-api/internal/handler"
	internalmiddleware "github.com/noah-isme/timetable-api/internal/middleware"
	"github.com/noah-isme/timetable-api/internal/repository"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/cache"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/database"
	"github.com/noah-isme/timetable-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/timetable-api/pkg/middleware/requestid"
)

// @title Timetable API
// @version 1.0.0
// @description Timetable slot assignment: placements, conflict detection, split/merge and automatic scheduling.
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	metrics := service.NewMetricsService()
	checks := map[string]handler.Pinger{"postgres": db.PingContext}

	var cacheRepo service.CacheRepository
	if cfg.Timetable.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, timetable cache disabled", zap.Error(err))
		} else {
			repo := repository.NewCacheRepository(client, logr)
			defer repo.Close() //nolint:errcheck
			cacheRepo = repo
			checks["redis"] = repo.Ping
		}
	}
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Timetable.CacheTTL, logr, cacheRepo != nil)

	validate := validator.New()
	txManager := repository.NewTxManager(db)
	planRepo := repository.NewPlanRepository(db)
	timetableRepo := repository.NewTimetableRepository(db)
	coTeachingRepo := repository.NewCoTeachingRepository(db)

	linkSvc := service.NewLinkService(planRepo, coTeachingRepo, timetableRepo, txManager, cacheSvc, validate, logr)
	conflictSvc := service.NewConflictService(timetableRepo, planRepo, linkSvc, logr)
	timetableSvc := service.NewTimetableService(planRepo, timetableRepo, linkSvc, conflictSvc, txManager, cacheSvc, cfg.Timetable.CacheTTL, metrics, validate, logr)
	partSvc := service.NewSubjectPartService(planRepo, timetableRepo, linkSvc, txManager, cacheSvc, validate, logr)
	schedulerSvc := service.NewAutoSchedulerService(planRepo, timetableRepo, timetableSvc, metrics, validate, logr, service.AutoSchedulerConfig{
		Enabled:       cfg.Scheduler.Enabled,
		MinGapPeriods: cfg.Scheduler.MinGapPeriods,
		RelaxGap:      cfg.Scheduler.RelaxGap,
		Workers:       cfg.Scheduler.AsyncWorkers,
		Retries:       cfg.Scheduler.JobRetries,
		RunTTL:        cfg.Scheduler.RunTTL,
	})
	schedulerSvc.Start(ctx)
	defer schedulerSvc.Stop()

	tokens := service.NewTokenService(service.TokenConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))

	handler.Register(r, cfg.APIPrefix, handler.Handlers{
		Timetable: handler.NewTimetableHandler(timetableSvc),
		Subject:   handler.NewSubjectHandler(partSvc, linkSvc),
		Scheduler: handler.NewSchedulerHandler(schedulerSvc),
		Metrics:   handler.NewMetricsHandler(metrics, checks),
	}, tokens, logr, cfg.Metrics.Enabled)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
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
