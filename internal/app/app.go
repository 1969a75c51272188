// Package app assembles the job pipeline shared by cmd/api and cmd/worker.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"montage/internal/config"
	"montage/internal/fetch"
	"montage/internal/ffmpeg"
	"montage/internal/jobs"
	"montage/internal/media"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/shutdown"
	"montage/internal/repositories"
	"montage/internal/storage"
	"montage/internal/worker/processor"
	"montage/internal/worker/queue"
)

// App holds the long-lived dependencies of a montage process.
type App struct {
	Config    config.Config
	Log       *logger.Logger
	Processor *processor.Processor
	Storage   storage.Provider

	// Nil when the integration is not configured.
	RDB     *redis.Client
	Queue   *queue.RedisQueue
	History *repositories.JobHistoryRepository

	// Remote replaces Processor when the API runs in queue submit mode.
	Remote *queue.Remote
}

// New connects the configured integrations and builds the processor, or in
// queue submit mode the queue producer. Every
// resource it opens is registered with mgr, so the caller only has to wait
// on mgr. Resources are registered before the processor so that running
// jobs are drained while Redis and Postgres are still open.
func New(ctx context.Context, cfg config.Config, log *logger.Logger, mgr *shutdown.Manager) (*App, error) {
	a := &App{Config: cfg, Log: log}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Unavailable("postgres", err)
		}
		mgr.RegisterSimple("postgres", pool.Close)

		if err := pool.Ping(ctx); err != nil {
			return nil, errors.Unavailable("postgres", err)
		}
		a.History = repositories.NewJobHistoryRepository(pool)
		if err := a.History.EnsureSchema(ctx); err != nil {
			return nil, errors.Wrap(err, "app.postgres", "failed to prepare job history table")
		}
		log.Info("PostgreSQL connected, job history enabled")
	}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		mgr.Register("redis", func(context.Context) error { return rdb.Close() })

		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, errors.Unavailable("redis", err)
		}
		a.RDB = rdb
		a.Queue = queue.NewRedisQueue(rdb, cfg.QueueName)
		log.Info("Redis connected", "addr", cfg.RedisAddr)
	}

	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInternal, "app.storage", "failed to initialize storage provider")
	}
	a.Storage = sp
	log.Info("storage provider initialized", "provider", sp.Provider())

	switch cfg.SubmitMode {
	case "", config.SubmitLocal:
	case config.SubmitQueue:
		if a.Queue == nil {
			return nil, errors.ValidationField("SUBMIT_MODE", "queue submit mode requires REDIS_ADDR")
		}
		a.Remote = queue.NewRemote(a.Queue, jobs.NewRegistry(), log)
		log.Info("jobs will be queued for the worker", "queue", cfg.QueueName, "events", cfg.EventsChannel)
		return a, nil
	default:
		return nil, errors.Validationf("unknown submit mode %q", cfg.SubmitMode).WithField("field", "SUBMIT_MODE")
	}

	deps := processor.Deps{
		Registry:          jobs.NewRegistry(),
		Fetcher:           fetch.New(&http.Client{}, cfg.FetchTimeout, cfg.UserAgent),
		Prober:            media.NewFFProbe(cfg.FFprobeBin),
		Runner:            ffmpeg.NewExecutor(cfg.FFmpegBin, cfg.StageTimeout, log),
		SP:                sp,
		WorkRoot:          cfg.WorkRoot,
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		Log:               log,
	}
	if cfg.VerifyOutput {
		v, err := media.NewVidioVerifier()
		if err != nil {
			log.Warn("output verification disabled", "error", err.Error())
		} else {
			deps.Verifier = v
		}
	}
	if a.RDB != nil {
		deps.Events = queue.NewRedisEvents(a.RDB, cfg.EventsChannel)
	}
	if a.History != nil {
		deps.History = a.History
	}

	p, err := processor.New(deps)
	if err != nil {
		return nil, err
	}
	a.Processor = p
	mgr.Register("job-pool", func(ctx context.Context) error {
		return p.Release(drainTimeout(ctx))
	})

	log.Info("job processor ready",
		"max_concurrent_jobs", cfg.MaxConcurrentJobs,
		"work_root", cfg.WorkRoot,
		"stage_timeout", cfg.StageTimeout.String(),
	)
	return a, nil
}

// drainTimeout leaves a little of the shutdown budget for the handlers that
// run after the pool.
func drainTimeout(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 20 * time.Second
	}
	d := time.Until(deadline) - 2*time.Second
	if d < time.Second {
		d = time.Second
	}
	return d
}
