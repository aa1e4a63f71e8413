package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/jeovahfialho/grid-analyzer/internal/api"
	"github.com/jeovahfialho/grid-analyzer/internal/config"
	"github.com/jeovahfialho/grid-analyzer/internal/grid"
	"github.com/jeovahfialho/grid-analyzer/internal/ingestion"
	"github.com/jeovahfialho/grid-analyzer/internal/scheduler"
	"github.com/jeovahfialho/grid-analyzer/internal/service"
	"github.com/jeovahfialho/grid-analyzer/internal/storage/cache"
	"github.com/jeovahfialho/grid-analyzer/internal/storage/postgres"
	"github.com/jeovahfialho/grid-analyzer/pkg/logger"
)

// @title Grid Trade Analyzer API
// @version 1.0
// @description Reconciles broker trade fills into matched buy/sell pairs and realized profit

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("error loading config: ", err)
	}

	if err := logger.Init(logger.Options{
		Level:       cfg.LogLevel,
		Development: cfg.Development() || cfg.LogFormat == "console",
		File:        cfg.LogFile,
	}); err != nil {
		log.Fatal("error initializing logger: ", err)
	}
	defer logger.Close()

	analyzer := grid.NewAnalyzer(grid.NewNormalizer(cfg.Location()), cfg.Workers)
	analysisService := service.NewAnalysisService(analyzer, ingestion.NewFileReader(cfg.Workers))
	checks := map[string]api.HealthChecker{}

	db := connectPostgres(cfg)
	if db != nil {
		defer db.Close()
		analysisService.WithStore(postgres.NewFillRepository(db, cfg.Location()), postgres.NewNameRepository(db))
		checks["database"] = db
	}

	redisCache := connectRedis(cfg)
	if redisCache != nil {
		defer redisCache.Close()
		analysisService.WithCache(redisCache)
		checks["redis"] = redisCache
	}

	var syncService *service.SyncService
	if db != nil && cfg.BrokerConfigured() {
		syncCfg := service.SyncConfig{
			Broker:     ingestion.NewBrokerClient(cfg),
			Normalizer: grid.NewNormalizer(cfg.Location()),
			Loader:     ingestion.NewBulkLoader(cfg.BatchSize),
			Fills:      postgres.NewFillRepository(db, cfg.Location()),
			Names:      postgres.NewNameRepository(db),
			NamesFile:  cfg.NamesFile,
			Location:   cfg.Location(),
		}
		if redisCache != nil {
			syncCfg.Cache = redisCache
		}
		syncService = service.NewSyncService(syncCfg)
	}

	var handlerSync api.SyncService
	if syncService != nil {
		handlerSync = syncService
	}
	handler := api.NewHandler(analysisService, handlerSync, db, checks, cfg.Location())

	if syncService != nil && cfg.SyncSchedule != "" {
		jobs := scheduler.New(cfg.Location(), 10*time.Minute)
		err := jobs.Add("broker-sync", cfg.SyncSchedule, func(ctx context.Context) error {
			result, err := syncService.SyncCurrentMonth(ctx)
			if err != nil {
				return err
			}
			logger.Info("scheduled sync finished",
				zap.Int64("stored", result.Stored),
				zap.Int("names", result.Names))
			return nil
		})
		if err != nil {
			logger.Fatal("error scheduling sync", zap.Error(err))
		}
		jobs.Start()
		defer jobs.Stop()
	}

	// Fiber app
	app := fiber.New(fiber.Config{
		Prefork:                 false,
		ServerHeader:            "Grid-Analyzer",
		DisableStartupMessage:   false,
		AppName:                 "Grid Trade Analyzer v1.0.0",
		ReadTimeout:             cfg.APIReadTimeout,
		WriteTimeout:            cfg.APIWriteTimeout,
		IdleTimeout:             120 * time.Second,
		ReadBufferSize:          8192,
		WriteBufferSize:         8192,
		CompressedFileSuffix:    ".gz",
		ProxyHeader:             "X-Forwarded-For",
		EnableTrustedProxyCheck: true,
		BodyLimit:               cfg.APIBodyLimit,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-Request-ID",
	}))

	api.SetupRoutes(app, handler, api.RouteConfig{
		AdminUser:      cfg.APIAdminUser,
		AdminPassword:  cfg.APIAdminPassword,
		MetricsEnabled: cfg.MetricsEnabled,
	})

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		logger.Info("shutting down server")
		if err := app.Shutdown(); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info("starting server", zap.String("addr", addr))

	if err := app.Listen(addr); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

// connectPostgres returns nil when the database is unreachable; the API then
// serves document analysis only.
func connectPostgres(cfg *config.Config) *postgres.DB {
	db, err := postgres.NewDB(cfg)
	if err != nil {
		logger.Warn("postgres not available, stored analysis disabled", zap.Error(err))
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Warn("error preparing schema, stored analysis disabled", zap.Error(err))
		db.Close()
		return nil
	}

	logger.Info("connected to postgres")
	return db
}

func connectRedis(cfg *config.Config) *cache.RedisCache {
	redisCache, err := cache.NewRedisCache(cfg)
	if err != nil {
		logger.Warn("redis not available, continuing without cache", zap.Error(err))
		return nil
	}

	logger.Info("connected to redis")
	return redisCache
}
