package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	v1 "montage/internal/contracts/video/v1"
	"montage/internal/httpkit"
	"montage/internal/jobs"
	"montage/internal/pkg/errors"
)

const signedURLTTL = 15 * time.Minute

// PostVideo accepts a job and returns its handle without waiting for it. A
// rejected admission still names the job, whose status is error.
func (h *Handler) PostVideo(w http.ResponseWriter, r *http.Request) error {
	var body v1.SubmitRequest
	if err := httpkit.DecodeJSON(w, r, &body); err != nil {
		return err
	}

	id, err := h.jobs.Submit(r.Context(), body.Request())
	if err != nil {
		return err
	}

	w.Header().Set("Location", "/videos/"+id)
	httpkit.WriteJSON(w, http.StatusAccepted, v1.SubmitResponse{
		JobID:  id,
		Status: string(jobs.StatusProcessing),
	})
	return nil
}

// GetVideo reports the state of a job.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) error {
	job, err := h.lookup(r)
	if err != nil {
		return err
	}
	httpkit.WriteJSON(w, http.StatusOK, v1.NewStatus(job))
	return nil
}

// StreamVideo serves the finished artifact. Nothing is served before the
// job is done.
func (h *Handler) StreamVideo(w http.ResponseWriter, r *http.Request) error {
	job, err := h.doneJob(r)
	if err != nil {
		return err
	}

	rc, ct, size, err := h.sp.GetObject(r.Context(), job.Video)
	if err != nil {
		return errors.Wrap(err, "api.videos.content", "failed to open video").WithField("job_id", job.ID)
	}
	defer rc.Close()

	if ct == "" {
		ct = "video/mp4"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="%s.mp4"`, job.ID))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	w.WriteHeader(http.StatusOK)

	// Headers are gone by now, so a broken stream can only be logged.
	if _, err := io.Copy(w, rc); err != nil {
		h.log.FromContext(r.Context()).WithJobID(job.ID).Warn("video stream interrupted", "error", err.Error())
	}
	return nil
}

// GetVideoURL returns a short-lived download URL for a finished job. Backends
// that cannot sign fall back to the content endpoint.
func (h *Handler) GetVideoURL(w http.ResponseWriter, r *http.Request) error {
	job, err := h.doneJob(r)
	if err != nil {
		return err
	}

	out, err := h.sp.GetSignedURL(r.Context(), job.Video, signedURLTTL)
	if err != nil {
		return errors.Wrap(err, "api.videos.url", "failed to sign video url").WithField("job_id", job.ID)
	}
	if out.URL == "" {
		httpkit.WriteJSON(w, http.StatusOK, map[string]any{
			"job_id": job.ID,
			"url":    "/videos/" + job.ID + "/content",
		})
		return nil
	}
	httpkit.WriteJSON(w, http.StatusOK, map[string]any{
		"job_id":     job.ID,
		"url":        out.URL,
		"expires_at": out.ExpiresAt,
	})
	return nil
}

func (h *Handler) lookup(r *http.Request) (jobs.Job, error) {
	id := chi.URLParam(r, "jobId")
	job, ok := h.jobs.Job(id)
	if !ok {
		return jobs.Job{}, errors.NotFound("job", id)
	}
	return job, nil
}

func (h *Handler) doneJob(r *http.Request) (jobs.Job, error) {
	job, err := h.lookup(r)
	if err != nil {
		return jobs.Job{}, err
	}
	if job.Status != jobs.StatusDone {
		return jobs.Job{}, errors.NotReady("video", job.ID).
			WithField("job_id", job.ID).
			WithField("status", string(job.Status))
	}
	return job, nil
}
