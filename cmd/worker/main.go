package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"bossfit/internal/cache"
	"bossfit/internal/config"
	"bossfit/internal/database"
	"bossfit/internal/jobs"
	"bossfit/internal/log"
	"bossfit/internal/queue"
	"bossfit/internal/repository"
	"bossfit/internal/service"
	"bossfit/internal/tasks"
)

// The worker consumes reap tasks published by the API scheduler in queue
// mode. It needs the shared postgres store; a memory store would sweep
// nothing the API can see.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)

	if cfg.Store.Driver != "postgres" {
		logger.Fatal().Str("driver", cfg.Store.Driver).Msg("worker requires the postgres store")
	}
	if !cfg.Redis.Enabled {
		logger.Fatal().Msg("worker requires redis")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := database.Open(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	store := repository.NewPostgresStore(pool, cfg.Store.Timeout)
	lifetime := service.RulesFromConfig(cfg.Game).Lifetime()
	reaper := jobs.NewReaper(store, lifetime, nil, logger.With().Str("component", "reaper").Logger())

	processor := tasks.NewProcessor(reaper, logger)
	consumer := queue.NewConsumer(client, cfg.Redis, logger, processor)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("consumer stopped unexpectedly")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		logger.Warn().Msg("consumer did not stop in time")
	}
}
