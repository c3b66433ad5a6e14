package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"bossfit/internal/cache"
	"bossfit/internal/catalog"
	"bossfit/internal/config"
	"bossfit/internal/database"
	"bossfit/internal/handlers"
	"bossfit/internal/jobs"
	"bossfit/internal/log"
	"bossfit/internal/repository"
	"bossfit/internal/repository/memory"
	"bossfit/internal/server"
	"bossfit/internal/service"
	"bossfit/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	ctx := context.Background()

	store, dbPool := openStore(ctx, cfg, logger)

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	exercises, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load exercise catalog")
	}
	logger.Info().Int("exercises", exercises.Len()).Msg("exercise catalog loaded")

	opts := service.Options{Catalog: exercises}
	if redisClient != nil {
		opts.TokenCache = cache.NewTokenCache(redisClient)
		opts.Board = cache.NewLeaderboard(redisClient)
	}
	services := service.New(store, cfg, opts, logger)

	deps := handlers.Deps{
		Services: services,
		Store:    store,
		Cache:    redisClient,
	}
	if cfg.Storage.Enabled() {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure avatar bucket failed")
		}
		deps.Avatars = objectStore
	}

	reaper := jobs.NewReaper(store, services.Games.Rules().Lifetime(), nil, logger.With().Str("component", "reaper").Logger())
	deps.Reaper = reaper

	handlerSet := handlers.NewHandlerSet(logger, cfg, deps)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(cfg.Reaper, reaper, redisClient, cfg.Redis.Stream, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func openStore(ctx context.Context, cfg *config.AppConfig, logger zerolog.Logger) (repository.Store, *pgxpool.Pool) {
	if cfg.Store.Driver == "memory" {
		logger.Warn().Msg("using in-memory store; state is lost on restart")
		return memory.New(), nil
	}

	pool, err := database.Open(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	return repository.NewPostgresStore(pool, cfg.Store.Timeout), pool
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	if db != nil {
		db.Close()
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
