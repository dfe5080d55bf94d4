package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskboard/taskboard-api/internal/api"
	"github.com/taskboard/taskboard-api/internal/core/service"
	"github.com/taskboard/taskboard-api/internal/infrastructure/config"
	"github.com/taskboard/taskboard-api/internal/infrastructure/db/mongo"
	"github.com/taskboard/taskboard-api/internal/infrastructure/db/postgres"
	redisdb "github.com/taskboard/taskboard-api/internal/infrastructure/db/redis"
	"github.com/taskboard/taskboard-api/internal/infrastructure/queue"
	"github.com/taskboard/taskboard-api/internal/realtime"
	"github.com/taskboard/taskboard-api/pkg/logger"
)

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Infrastructure ---
	pool, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN})
	if err != nil {
		log.Fatal().Err(err).Msg("postgres connection failed")
	}
	defer pool.Close()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer func() { _ = rdb.Close() }()

	mongoClient, mongoDB, err := mongo.Connect(ctx, mongo.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connection failed")
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()

	// --- Wiring (explicit constructor injection, no container) ---
	taskRepo := postgres.NewTaskRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	cache := redisdb.NewCache(rdb)

	auditRepo := mongo.NewAuditRepository(mongoDB, log)
	auditDispatcher := queue.NewAuditDispatcher(0, auditRepo, log)
	auditDispatcher.Start(ctx)
	notificationRepo := mongo.NewNotificationRepository(mongoDB)

	hub := realtime.NewHub(log)
	broadcaster := realtime.NewBroadcaster(hub, auditDispatcher, log)

	authService := service.NewAuthService(userRepo, cache, cfg.JWTSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL, log)
	taskService := service.NewTaskService(taskRepo, userRepo, cache, broadcaster,
		notificationRepo, log)

	e := api.NewRouter(api.Deps{
		TaskService: taskService,
		AuthService: authService,
		Hub:         hub,
		Pool:        pool,
		Redis:       rdb,
		Mongo:       mongoDB,
		Logger:      log,
	})

	// --- Serve ---
	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server stopped")
		}
	}()
	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("taskboard api started")

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	log.Info().Msg("taskboard api stopped")
}
