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
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/campus-timetable/api/swagger"
	"github.com/noah-isme/campus-timetable/internal/handler"
	internalmiddleware "github.com/noah-isme/campus-timetable/internal/middleware"
	"github.com/noah-isme/campus-timetable/internal/repository"
	"github.com/noah-isme/campus-timetable/internal/service"
	"github.com/noah-isme/campus-timetable/pkg/cache"
	"github.com/noah-isme/campus-timetable/pkg/config"
	"github.com/noah-isme/campus-timetable/pkg/database"
	"github.com/noah-isme/campus-timetable/pkg/logger"
	corsmiddleware "github.com/noah-isme/campus-timetable/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/campus-timetable/pkg/middleware/requestid"
	"github.com/noah-isme/campus-timetable/pkg/retry"
)

// @title Campus Timetable API
// @version 1.0.0
// @description Weekly timetable generation, conflict checking and export for academic departments
// @BasePath /api/v1
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, history cache and session locks disabled", "error", err)
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	metricsSvc := service.NewMetricsService()
	validate := validator.New()

	timetableRepo := repository.NewTimetableRepository(db)
	roomRepo := repository.NewRoomRepository(db)
	lockRepo := repository.NewLockRepository(redisClient)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Cache.HistoryTTL, logr, cfg.Cache.HistoryEnabled && redisClient != nil)
	generator := service.NewTimetableGenerator(cfg.Scheduler.RandomSeed, cfg.Scheduler.MaxAttemptsPerClass, logr)
	timetableSvc := service.NewTimetableService(timetableRepo, roomRepo, lockRepo, cacheSvc, generator, metricsSvc, validate, logr, service.TimetableServiceConfig{
		ProposalTTL:          cfg.Scheduler.ProposalTTL,
		AvoidFridayAfternoon: cfg.Scheduler.AvoidFridayAfternoon,
		Retry: retry.Policy{
			Attempts:  cfg.Persistence.RetryAttempts,
			BaseDelay: cfg.Persistence.RetryBaseDelay,
			Logger:    logr,
		},
		LockEnabled: cfg.Lock.Enabled && redisClient != nil,
		LockTTL:     cfg.Lock.TTL,
	})
	exportSvc := service.NewExportService(timetableSvc, logr, nil, nil, nil)

	checks := map[string]handler.Pinger{"database": db}
	if redisClient != nil {
		checks["redis"] = redisPinger{client: redisClient}
	}

	timetableHandler := handler.NewTimetableHandler(timetableSvc, exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc, checks)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	timetables := api.Group("/timetables")
	timetables.GET("", timetableHandler.List)
	timetables.POST("/generate", timetableHandler.Generate)
	timetables.POST("/save", timetableHandler.Save)
	timetables.POST("/clean", timetableHandler.Clean)
	timetables.GET("/:id/slots", timetableHandler.Slots)
	timetables.GET("/:id/export", timetableHandler.ExportTimetable)

	proposals := api.Group("/proposals")
	proposals.GET("/:id", timetableHandler.Proposal)
	proposals.GET("/:id/export", timetableHandler.ExportProposal)

	api.GET("/faculty/:facultyId/schedule", timetableHandler.FacultySchedule)

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logr.Info("shutting down", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) PingContext(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
