package main

import (
	"context"
	"net/http"
	"time"

	"montage/internal/app"
	"montage/internal/config"
	"montage/internal/httpapi"
	"montage/internal/httpapi/handlers"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/shutdown"
)

func main() {
	log := logger.New(logger.Config{
		Level:       config.Env("LOG_LEVEL", "info"),
		Format:      config.Env("LOG_FORMAT", "json"),
		ServiceName: "montage-api",
		AddSource:   config.BoolEnv("LOG_SOURCE", false),
	})

	cfg := config.Load()
	log.Info("starting montage API", "port", cfg.HTTPPort, "submit_mode", cfg.SubmitMode)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, cfg.ShutdownTimeout)

	a, err := app.New(ctx, cfg, log, shutdownMgr)
	if err != nil {
		shutdownMgr.Shutdown()
		log.LogFatal("failed to initialize", err)
	}

	hd := handlers.Deps{
		SP:  a.Storage,
		RDB: a.RDB,
		Log: log,
	}
	if a.Remote != nil {
		hd.Jobs = a.Remote
		followCtx, stopFollowing := context.WithCancel(ctx)
		go func() {
			if err := a.Remote.Follow(followCtx, a.RDB, cfg.EventsChannel); err != nil && followCtx.Err() == nil {
				log.Error("job event subscription ended, statuses will go stale", "error", err.Error())
			}
		}()
		shutdownMgr.RegisterSimple("event-follower", stopFollowing)
	} else {
		hd.Jobs = a.Processor
		hd.Binaries = []string{cfg.FFmpegBin, cfg.FFprobeBin}
	}
	if a.Queue != nil {
		hd.Queue = a.Queue
	}
	if a.History != nil {
		hd.History = a.History
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Handlers:       hd,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Log:            log,
	})

	// No WriteTimeout: the content endpoint streams whole videos.
	server := &http.Server{
		Addr:              "0.0.0.0:" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
