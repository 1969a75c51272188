package processor

import (
	"context"
	"os"
	"time"

	"montage/internal/jobs"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/ports"
)

// finalize verifies the last artifact and moves it to storage under
// <id>.mp4. It returns the key the video can be read back with.
func (p *Processor) finalize(ctx context.Context, r *run) (string, error) {
	if r.video == "" {
		return "", errors.Internal("pipeline produced no video")
	}

	if p.verifier != nil {
		if err := p.verifier.Verify(r.video, r.width, r.height); err != nil {
			return "", errors.Wrap(err, "processor.verify", "output verification failed")
		}
	}

	f, err := os.Open(r.video)
	if err != nil {
		return "", errors.Filesystem("processor.finalize", err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return "", errors.Filesystem("processor.finalize", err)
	}

	out, err := p.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   ObjectKey(r.id),
		ContentType: "video/mp4",
		Reader:      f,
		Size:        st.Size(),
	})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.CodeFilesystem, "processor.finalize", "failed to store video")
	}
	return out.ObjectKey, nil
}

// record writes the history row for a finished job. Failures are logged.
func (p *Processor) record(ctx context.Context, job jobs.Job, req jobs.Request, start time.Time) {
	if p.history == nil || !job.Terminal() {
		return
	}

	finished := job.UpdatedAt
	rec := models.JobRecord{
		ID:           job.ID,
		Status:       string(job.Status),
		ErrorText:    job.Error,
		VideoKey:     job.Video,
		ImageCount:   len(req.ImageURLs),
		HasBGM:       req.HasBGM(),
		HasLogo:      req.HasLogo(),
		HasIntro:     req.HasIntro(),
		HasSubtitles: req.HasSubtitles(),
		AspectRatio:  string(req.AspectRatio),
		StartedAt:    start.UTC(),
		FinishedAt:   &finished,
	}
	if err := p.history.Record(ctx, rec); err != nil {
		p.log.FromContext(ctx).WithJobID(job.ID).Warn("failed to record job history", "error", err.Error())
	}
}
