package processor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"montage/internal/jobs"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
)

const maxErrorText = 2000

type Deps struct {
	Registry *jobs.Registry
	Fetcher  Fetcher
	Prober   Prober
	Runner   StageRunner
	SP       ports.StorageProvider

	// Optional.
	Verifier OutputVerifier
	Events   EventPublisher
	History  HistoryRecorder

	WorkRoot          string
	MaxConcurrentJobs int
	Log               *logger.Logger

	// NewID overrides the handle generator; defaults to uuid.NewString.
	NewID func() string
}

// Processor accepts video jobs and runs each one on a bounded worker pool.
type Processor struct {
	registry *jobs.Registry
	fetcher  Fetcher
	prober   Prober
	runner   StageRunner
	sp       ports.StorageProvider
	verifier OutputVerifier
	events   EventPublisher
	history  HistoryRecorder
	workRoot string
	newID    func() string
	log      *logger.Logger

	pool *ants.Pool
	wg   sync.WaitGroup
}

func New(d Deps) (*Processor, error) {
	log := d.Log
	if log == nil {
		log = logger.NewDefault()
	}
	log = log.WithComponent("processor")

	if d.Registry == nil || d.Fetcher == nil || d.Prober == nil || d.Runner == nil || d.SP == nil {
		return nil, errors.Internal("processor requires registry, fetcher, prober, runner and storage")
	}

	size := d.MaxConcurrentJobs
	if size <= 0 {
		size = 4
	}
	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			log.Error("job worker panicked", "panic", fmt.Sprint(v))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "processor.new", "failed to create job pool")
	}

	newID := d.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Processor{
		registry: d.Registry,
		fetcher:  d.Fetcher,
		prober:   d.Prober,
		runner:   d.Runner,
		sp:       d.SP,
		verifier: d.Verifier,
		events:   d.Events,
		history:  d.History,
		workRoot: d.WorkRoot,
		newID:    newID,
		log:      log,
		pool:     pool,
	}, nil
}

// Submit validates req, registers a new job and hands it to the pool. It
// never waits for pipeline work. An invalid request is rejected before any
// state is created. When the pool is full the job is recorded as failed and
// a RESOURCE_EXHAUSTED error is returned together with its handle.
func (p *Processor) Submit(ctx context.Context, req jobs.Request) (string, error) {
	return p.SubmitWithID(ctx, "", req)
}

// SubmitWithID is Submit with a handle chosen by the caller, as the queue
// producer does. An empty id gets a fresh handle; an id that is already
// registered is rejected without touching the existing job.
func (p *Processor) SubmitWithID(ctx context.Context, id string, req jobs.Request) (string, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return "", err
	}

	if id == "" {
		id = p.newID()
	}
	job, created := p.registry.Reserve(id)
	if !created {
		return id, errors.ValidationField("job_id", "job id already in use").WithField("job_id", id)
	}
	p.publish(ctx, job)

	jobCtx := logger.ContextWithJobID(context.WithoutCancel(ctx), id)
	started := job.CreatedAt

	p.wg.Add(1)
	err := p.pool.Submit(func() {
		defer p.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				_ = p.failJob(jobCtx, id, req, started, errors.Newf(errors.CodeInternal, "job panicked: %v", rec))
			}
		}()
		_ = p.ProcessJob(jobCtx, id, req)
	})
	if err != nil {
		p.wg.Done()
		code := errors.CodeInternal
		if errors.Is(err, ants.ErrPoolOverload) {
			code = errors.CodeResourceExhaust
		}
		cause := errors.WrapWithCode(err, code, "processor.submit", "too many jobs in progress").
			WithField("job_id", id).
			WithField("status", string(jobs.StatusError))
		return id, p.failJob(ctx, id, req, started, cause)
	}

	p.log.FromContext(ctx).WithJobID(id).Info("job accepted", "images", len(req.ImageURLs))
	return id, nil
}

// ProcessJob runs the whole pipeline for one job on the calling goroutine.
// The working directory is released on every return path.
func (p *Processor) ProcessJob(ctx context.Context, id string, req jobs.Request) error {
	log := p.log.FromContext(ctx).WithJobID(id)
	start := time.Now()

	if _, ok := p.registry.Get(id); !ok {
		p.publish(ctx, p.registry.Create(id))
	}

	p.advance(ctx, id, jobs.StageValidating)
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return p.failJob(ctx, id, req, start, err)
	}

	ws, err := AcquireWorkspace(p.workRoot, id)
	if err != nil {
		return p.failJob(ctx, id, req, start, err)
	}
	defer func() {
		if err := ws.Release(); err != nil {
			log.Warn("failed to remove working directory", "dir", ws.Dir, "error", err.Error())
		}
	}()

	r := newRun(id, req, ws)
	for _, s := range p.plan(req) {
		p.advance(ctx, id, s.stage)
		if err := s.run(ctx, r); err != nil {
			return p.failJob(ctx, id, req, start, err)
		}
	}

	p.advance(ctx, id, jobs.StageFinalizing)
	key, err := p.finalize(ctx, r)
	if err != nil {
		return p.failJob(ctx, id, req, start, err)
	}

	job, _ := p.registry.Get(id)
	job = job.Done(key, p.registry.Now())
	p.set(ctx, job)
	p.record(ctx, job, req, start)

	log.Info("job completed",
		"video", key,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Processor) advance(ctx context.Context, id string, stage jobs.Stage) {
	job, _ := p.registry.Get(id)
	p.set(ctx, job.Advance(stage, p.registry.Now()))
	p.log.FromContext(ctx).WithJobID(id).Debug("stage started", "stage", string(stage))
}

func (p *Processor) set(ctx context.Context, job jobs.Job) {
	p.registry.Set(job)
	p.publish(ctx, job)
}

func (p *Processor) publish(ctx context.Context, job jobs.Job) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, job); err != nil {
		p.log.FromContext(ctx).WithJobID(job.ID).Warn("failed to publish job event",
			"stage", string(job.Stage),
			"error", err.Error(),
		)
	}
}

func (p *Processor) failJob(ctx context.Context, id string, req jobs.Request, start time.Time, cause error) error {
	log := p.log.FromContext(ctx).WithJobID(id)

	msg := truncateMessage(cause.Error(), maxErrorText)

	var appErr *errors.Error
	if errors.As(cause, &appErr) {
		log.Error("job failed",
			"code", string(appErr.Code),
			"op", appErr.Op,
			"message", appErr.Message,
			"error", msg,
		)
	} else {
		log.Error("job failed", "error", msg)
	}

	job, ok := p.registry.Get(id)
	if !ok {
		job = p.registry.Create(id)
	}
	job = job.Failed(msg, p.registry.Now())
	p.set(ctx, job)
	p.record(ctx, job, req, start)

	return cause
}

// Wait blocks until every submitted job has returned.
func (p *Processor) Wait() {
	p.wg.Wait()
}

// Release stops accepting jobs and waits up to timeout for running ones.
func (p *Processor) Release(timeout time.Duration) error {
	return p.pool.ReleaseTimeout(timeout)
}

// Stats is a snapshot of pool usage.
type Stats struct {
	Running  int `json:"running"`
	Free     int `json:"free"`
	Capacity int `json:"capacity"`
	Jobs     int `json:"jobs"`
}

func (p *Processor) Stats() Stats {
	return Stats{
		Running:  p.pool.Running(),
		Free:     p.pool.Free(),
		Capacity: p.pool.Cap(),
		Jobs:     p.registry.Len(),
	}
}

// Job returns the current snapshot of a job.
func (p *Processor) Job(id string) (jobs.Job, bool) {
	return p.registry.Get(id)
}

// Storage is the provider finished videos are kept in.
func (p *Processor) Storage() ports.StorageProvider {
	return p.sp
}
