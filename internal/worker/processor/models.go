package processor

import (
	"context"

	"montage/internal/ffmpeg"
	"montage/internal/jobs"
	"montage/internal/models"
)

// Fetcher downloads a remote asset to a local path.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// Prober reports a media duration in seconds, or 0 when unknown.
type Prober interface {
	Duration(ctx context.Context, path string) float64
}

// StageRunner executes one ffmpeg stage to completion.
type StageRunner interface {
	Run(ctx context.Context, st ffmpeg.Stage) error
}

// OutputVerifier checks the final video before it is stored.
type OutputVerifier interface {
	Verify(path string, width, height int) error
}

// EventPublisher is told about every job transition.
type EventPublisher interface {
	Publish(ctx context.Context, job jobs.Job) error
}

// HistoryRecorder receives one record per finished job.
type HistoryRecorder interface {
	Record(ctx context.Context, rec models.JobRecord) error
}
