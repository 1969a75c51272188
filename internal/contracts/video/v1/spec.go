// Package v1 is the JSON contract for video jobs, shared by the HTTP API,
// the Redis job queue and the job event channel.
package v1

import (
	"time"

	"montage/internal/jobs"
)

// SubmitRequest is the body of POST /videos and of a queued job message.
// Only image_urls and audio_url are required.
type SubmitRequest struct {
	ImageURLs    []string `json:"image_urls"`
	AudioURL     string   `json:"audio_url"`
	BGMURL       string   `json:"bgm_url,omitempty"`
	SubtitleText string   `json:"subtitle_text,omitempty"`
	AspectRatio  string   `json:"aspect_ratio,omitempty"`
	LogoURL      string   `json:"logo_url,omitempty"`
	LogoPosition string   `json:"logo_position,omitempty"`
	IntroURL     string   `json:"intro_url,omitempty"`
}

// Request converts the wire form into a job request.
func (s SubmitRequest) Request() jobs.Request {
	return jobs.Request{
		ImageURLs:    s.ImageURLs,
		AudioURL:     s.AudioURL,
		BGMURL:       s.BGMURL,
		SubtitleText: s.SubtitleText,
		AspectRatio:  jobs.AspectRatio(s.AspectRatio),
		LogoURL:      s.LogoURL,
		LogoPosition: jobs.LogoPosition(s.LogoPosition),
		IntroURL:     s.IntroURL,
	}
}

// FromRequest is the inverse of SubmitRequest.Request.
func FromRequest(r jobs.Request) SubmitRequest {
	return SubmitRequest{
		ImageURLs:    r.ImageURLs,
		AudioURL:     r.AudioURL,
		BGMURL:       r.BGMURL,
		SubtitleText: r.SubtitleText,
		AspectRatio:  string(r.AspectRatio),
		LogoURL:      r.LogoURL,
		LogoPosition: string(r.LogoPosition),
		IntroURL:     r.IntroURL,
	}
}

// QueuedJob is a message on the Redis job queue. The producer picks the
// handle so it can follow the job through events; a message without one
// gets a handle from the worker.
type QueuedJob struct {
	JobID string `json:"job_id,omitempty"`
	SubmitRequest
}

type SubmitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// StatusResponse is returned by GET /videos/{jobId}. Video is set only when
// status is done, Error only when status is error.
type StatusResponse struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Stage     string    `json:"stage"`
	Video     string    `json:"video,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewStatus(job jobs.Job) StatusResponse {
	return StatusResponse{
		JobID:     job.ID,
		Status:    string(job.Status),
		Stage:     string(job.Stage),
		Video:     job.Video,
		Error:     job.Error,
		CreatedAt: job.CreatedAt,
		UpdatedAt: job.UpdatedAt,
	}
}

// Event is published on every job transition.
type Event struct {
	JobID  string    `json:"job_id"`
	Status string    `json:"status"`
	Stage  string    `json:"stage"`
	Video  string    `json:"video,omitempty"`
	Error  string    `json:"error,omitempty"`
	At     time.Time `json:"at"`
}

func NewEvent(job jobs.Job) Event {
	return Event{
		JobID:  job.ID,
		Status: string(job.Status),
		Stage:  string(job.Stage),
		Video:  job.Video,
		Error:  job.Error,
		At:     job.UpdatedAt,
	}
}

// Apply folds the event into job. Events for another job, and events that
// arrive after job has finished, leave it unchanged.
func (e Event) Apply(job jobs.Job) jobs.Job {
	if e.JobID != job.ID || job.Terminal() {
		return job
	}
	job.Status = jobs.Status(e.Status)
	job.Stage = jobs.Stage(e.Stage)
	job.Video = e.Video
	job.Error = e.Error
	if !e.At.IsZero() {
		job.UpdatedAt = e.At
	}
	return job
}
