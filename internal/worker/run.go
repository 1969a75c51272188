package worker

import (
	"context"
	"time"

	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/worker/processor"
)

// Run consumes the job queue until ctx is canceled. A message is only
// popped when the pool has a free slot, so queued jobs wait in Redis rather
// than being rejected.
func Run(ctx context.Context, d Deps) error {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("worker")

	popTimeout := d.PopTimeout
	if popTimeout <= 0 {
		popTimeout = 5 * time.Second
	}
	backoff := d.Backoff
	if backoff <= 0 {
		backoff = time.Second
	}

	for {
		select {
		case <-ctx.Done():
			log.Info("worker context canceled, stopping")
			return ctx.Err()
		default:
		}

		if d.Jobs.Stats().Free == 0 {
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			continue
		}

		body, err := d.Queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker stopping due to context cancellation")
				return ctx.Err()
			}

			log.Warn("queue pop error, retrying", "error", err.Error())
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			continue
		}

		if body == nil {
			continue
		}

		queuedID, req, err := processor.ParseQueued(body)
		if err != nil {
			log.Warn("dropping invalid queue message", "error", err.Error(), "size", len(body))
			continue
		}

		id, err := d.Jobs.SubmitWithID(ctx, queuedID, req)
		if err != nil {
			log.Error("job submission failed",
				"job_id", id,
				"code", string(errors.GetCode(err)),
				"error", err.Error(),
			)
			continue
		}
		log.Info("job dequeued", "job_id", id)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
