package jobs

import (
	"sync"
	"time"
)

// Registry maps job handles to their latest snapshot. Entries live for the
// process lifetime; nothing is persisted.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]Job
	now  func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs: make(map[string]Job),
		now:  time.Now,
	}
}

// Create registers a new job in the processing state and returns it.
func (r *Registry) Create(id string) Job {
	job := New(id, r.now().UTC())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[id] = job
	return job
}

// Reserve registers a new job unless id is already taken. It reports
// whether the job was created.
func (r *Registry) Reserve(id string) (Job, bool) {
	job := New(id, r.now().UTC())

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.jobs[id]; ok {
		return existing, false
	}
	r.jobs[id] = job
	return job, true
}

// Get returns a copy of the job's current state.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// Set replaces the job's state as a whole.
func (r *Registry) Set(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
}

// Update replaces the job's state with fn's result under the registry lock.
// fn receives the zero Job and false when id is unknown.
func (r *Registry) Update(id string, fn func(job Job, ok bool) Job) Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	job = fn(job, ok)
	r.jobs[id] = job
	return job
}

// Len reports how many jobs have been registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Now is the registry clock, shared with the orchestrator so timestamps
// stay consistent in tests.
func (r *Registry) Now() time.Time {
	return r.now().UTC()
}
