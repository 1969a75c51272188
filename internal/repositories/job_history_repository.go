package repositories

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"montage/internal/models"
)

const createVideoJobs = `
CREATE TABLE IF NOT EXISTS video_jobs (
	id            TEXT PRIMARY KEY,
	status        TEXT NOT NULL,
	error_text    TEXT,
	video_key     TEXT,
	image_count   INTEGER NOT NULL,
	has_bgm       BOOLEAN NOT NULL DEFAULT FALSE,
	has_logo      BOOLEAN NOT NULL DEFAULT FALSE,
	has_intro     BOOLEAN NOT NULL DEFAULT FALSE,
	has_subtitles BOOLEAN NOT NULL DEFAULT FALSE,
	aspect_ratio  TEXT NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ
)`

// JobHistoryRepository appends finished jobs to video_jobs.
type JobHistoryRepository struct {
	db *pgxpool.Pool
}

func NewJobHistoryRepository(db *pgxpool.Pool) *JobHistoryRepository {
	return &JobHistoryRepository{db: db}
}

// EnsureSchema creates video_jobs when it does not exist.
func (r *JobHistoryRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, createVideoJobs)
	return err
}

const insertVideoJob = `
INSERT INTO video_jobs (id, status, error_text, video_key, image_count,
	has_bgm, has_logo, has_intro, has_subtitles, aspect_ratio, started_at, finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`

// Record inserts rec. A row that already exists is left untouched.
func (r *JobHistoryRepository) Record(ctx context.Context, rec models.JobRecord) error {
	_, err := r.db.Exec(ctx, insertVideoJob, recordArgs(rec)...)
	return historyInsertErr(rec.ID, err)
}

// recordArgs orders rec for insertVideoJob. Empty error and video columns
// are stored as NULL.
func recordArgs(rec models.JobRecord) []any {
	return []any{
		rec.ID, rec.Status, nullIfEmpty(rec.ErrorText), nullIfEmpty(rec.VideoKey), rec.ImageCount,
		rec.HasBGM, rec.HasLogo, rec.HasIntro, rec.HasSubtitles, rec.AspectRatio, rec.StartedAt, rec.FinishedAt,
	}
}

// Ping checks the pool can reach Postgres.
func (r *JobHistoryRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
