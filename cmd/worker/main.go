package main

import (
	"context"
	"time"

	"montage/internal/app"
	"montage/internal/config"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/shutdown"
	"montage/internal/worker"
)

func main() {
	log := logger.New(logger.Config{
		Level:       config.Env("LOG_LEVEL", "info"),
		Format:      config.Env("LOG_FORMAT", "json"),
		ServiceName: "montage-worker",
		AddSource:   config.BoolEnv("LOG_SOURCE", false),
	})

	cfg := config.Load()
	cfg.RedisAddr = config.MustEnv("REDIS_ADDR")
	cfg.SubmitMode = config.SubmitLocal

	ctx, cancel := context.WithCancel(context.Background())
	shutdownMgr := shutdown.NewManager(log, cfg.ShutdownTimeout)

	a, err := app.New(ctx, cfg, log, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to initialize", err)
	}

	stopped := make(chan struct{})
	// Registered last so the queue stops before the pool drains.
	shutdownMgr.Register("queue-consumer", func(ctx context.Context) error {
		cancel()
		select {
		case <-stopped:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	go func() {
		defer close(stopped)
		log.Info("montage worker started", "queue", cfg.QueueName, "max_concurrent_jobs", cfg.MaxConcurrentJobs)
		_ = worker.Run(ctx, worker.Deps{
			Queue:      a.Queue,
			Jobs:       a.Processor,
			Log:        log,
			PopTimeout: 5 * time.Second,
			Backoff:    time.Second,
		})
	}()

	shutdownMgr.Wait()
}
