// Package handlers implements the HTTP endpoints of the montage API.
package handlers

import (
	"context"

	"github.com/redis/go-redis/v9"

	"montage/internal/jobs"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/worker/processor"
)

// Jobs is the part of the processor the handlers use.
type Jobs interface {
	Submit(ctx context.Context, req jobs.Request) (string, error)
	Job(id string) (jobs.Job, bool)
	Stats() processor.Stats
}

// QueueDepth reports how many jobs wait on the job queue.
type QueueDepth interface {
	Len(ctx context.Context) (int64, error)
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Jobs Jobs
	SP   ports.StorageProvider

	// Optional. Nil dependencies are reported as "disabled" by the deep
	// health check.
	RDB     *redis.Client
	Queue   QueueDepth
	History Pinger

	// Binaries are looked up on PATH by the deep health check.
	Binaries []string

	Log *logger.Logger
}

type Handler struct {
	jobs     Jobs
	sp       ports.StorageProvider
	rdb      *redis.Client
	queue    QueueDepth
	history  Pinger
	binaries []string
	log      *logger.Logger
}

func New(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{
		jobs:     d.Jobs,
		sp:       d.SP,
		rdb:      d.RDB,
		queue:    d.Queue,
		history:  d.History,
		binaries: d.Binaries,
		log:      log.WithComponent("api"),
	}
}
