package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	v1 "montage/internal/contracts/video/v1"
	"montage/internal/jobs"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/worker/processor"
)

// Pusher enqueues job messages.
type Pusher interface {
	Push(ctx context.Context, msg v1.QueuedJob) error
}

// Remote accepts jobs on behalf of a separate worker process. It validates
// and registers each job locally, pushes it on the job queue, and learns
// about later transitions only from the worker's events.
type Remote struct {
	queue    Pusher
	registry *jobs.Registry
	log      *logger.Logger
	newID    func() string
}

func NewRemote(q Pusher, registry *jobs.Registry, log *logger.Logger) *Remote {
	if registry == nil {
		registry = jobs.NewRegistry()
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Remote{
		queue:    q,
		registry: registry,
		log:      log.WithComponent("queue-submit"),
		newID:    uuid.NewString,
	}
}

// Submit validates req and enqueues it under a fresh handle. When the push
// fails the job is recorded as failed and the handle is returned with an
// UNAVAILABLE error.
func (r *Remote) Submit(ctx context.Context, req jobs.Request) (string, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}

	id := r.newID()
	job, _ := r.registry.Reserve(id)
	r.registry.Set(job.Advance(jobs.StageQueued, r.registry.Now()))

	msg := v1.QueuedJob{JobID: id, SubmitRequest: v1.FromRequest(req)}
	if err := r.queue.Push(ctx, msg); err != nil {
		r.registry.Update(id, func(j jobs.Job, _ bool) jobs.Job {
			return j.Failed("job queue unavailable", r.registry.Now())
		})
		r.log.Error("enqueue failed", "job_id", id, "error", err.Error())
		return id, errors.Unavailable("job queue", err).
			WithField("job_id", id).
			WithField("status", string(jobs.StatusError))
	}

	r.log.Info("job enqueued", "job_id", id)
	return id, nil
}

func (r *Remote) Job(id string) (jobs.Job, bool) {
	return r.registry.Get(id)
}

// Stats reports the registry size. The pool lives in the worker.
func (r *Remote) Stats() processor.Stats {
	return processor.Stats{Jobs: r.registry.Len()}
}

// Apply folds one event payload into the registry. Jobs submitted through
// another producer are registered on their first event.
func (r *Remote) Apply(payload []byte) error {
	var ev v1.Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return errors.WrapWithCode(err, errors.CodeValidation, "queue.apply", "invalid event payload")
	}
	if ev.JobID == "" {
		return errors.ValidationField("job_id", "event without job id")
	}

	r.registry.Update(ev.JobID, func(j jobs.Job, ok bool) jobs.Job {
		if !ok {
			at := ev.At
			if at.IsZero() {
				at = r.registry.Now()
			}
			j = jobs.New(ev.JobID, at)
		}
		return ev.Apply(j)
	})
	return nil
}

// Follow subscribes to the event channel and applies every event until ctx
// is canceled. Events published while the subscription is down are lost.
func (r *Remote) Follow(ctx context.Context, rdb *redis.Client, channel string) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Unavailable("redis", err)
	}
	r.log.Info("following job events", "channel", channel)

	msgs := sub.Channel(redis.WithChannelHealthCheckInterval(30 * time.Second))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if err := r.Apply([]byte(msg.Payload)); err != nil {
				r.log.Warn("dropping job event", "error", err.Error())
			}
		}
	}
}
