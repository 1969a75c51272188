// Package jobs holds the job model, submission request and the in-memory
// registry that pollers read while the orchestrator writes.
package jobs

import "time"

// Status is what a poller sees.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Stage is the pipeline step a job is in. Optional stages only appear when
// the matching input was supplied.
type Stage string

const (
	StageSubmitted        Stage = "submitted"
	StageQueued           Stage = "queued"
	StageValidating       Stage = "validating"
	StageFetchingImages   Stage = "fetching-images"
	StageFetchingAudio    Stage = "fetching-audio"
	StageMixingBGM        Stage = "mixing-bgm"
	StageComposingVideo   Stage = "composing-image-video"
	StagePrependingIntro  Stage = "prepending-intro"
	StageMergingAudio     Stage = "merging-audio-video"
	StageOverlayingLogo   Stage = "overlaying-logo"
	StageBurningSubtitles Stage = "burning-subtitles"
	StageFinalizing       Stage = "finalizing"
	StageDone             Stage = "done"
	StageError            Stage = "error"
)

// Job is an immutable snapshot of one job. Transitions return a new value
// so a stored Job is never mutated in place.
type Job struct {
	ID        string
	Status    Status
	Stage     Stage
	Video     string
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns the initial state of an accepted job.
func New(id string, now time.Time) Job {
	return Job{
		ID:        id,
		Status:    StatusProcessing,
		Stage:     StageSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves a processing job to stage.
func (j Job) Advance(stage Stage, now time.Time) Job {
	j.Stage = stage
	j.UpdatedAt = now
	return j
}

// Done marks the job finished with its artifact reference.
func (j Job) Done(video string, now time.Time) Job {
	j.Status = StatusDone
	j.Stage = StageDone
	j.Video = video
	j.Error = ""
	j.UpdatedAt = now
	return j
}

// Failed marks the job as errored with a readable message.
func (j Job) Failed(msg string, now time.Time) Job {
	j.Status = StatusError
	j.Stage = StageError
	j.Video = ""
	j.Error = msg
	j.UpdatedAt = now
	return j
}

// Terminal reports whether no further transitions will happen.
func (j Job) Terminal() bool {
	return j.Status == StatusDone || j.Status == StatusError
}
