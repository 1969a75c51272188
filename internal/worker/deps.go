package worker

import (
	"context"
	"time"

	"montage/internal/jobs"
	"montage/internal/pkg/logger"
	"montage/internal/worker/processor"
)

// Source yields queued submission bodies.
type Source interface {
	Pop(ctx context.Context, timeout time.Duration) ([]byte, error)
}

// Submitter accepts jobs under a producer-chosen handle and reports pool
// capacity. An empty id asks for a fresh handle.
type Submitter interface {
	SubmitWithID(ctx context.Context, id string, req jobs.Request) (string, error)
	Stats() processor.Stats
}

type Deps struct {
	Queue Source
	Jobs  Submitter
	Log   *logger.Logger

	// PopTimeout bounds one BRPOP; Backoff is the pause after a queue error
	// or while the pool is full.
	PopTimeout time.Duration
	Backoff    time.Duration
}
