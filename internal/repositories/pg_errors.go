package repositories

import (
	"github.com/jackc/pgx/v5/pgconn"

	"montage/internal/pkg/errors"
)

const (
	pgUniqueViolation = "23505"
	pgUndefinedTable  = "42P01"
)

// pgCode is the SQLSTATE of err, or "" when err did not come from Postgres.
func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// historyInsertErr maps an INSERT failure on video_jobs. A duplicate row
// means the job was already recorded and is not an error.
func historyInsertErr(jobID string, err error) error {
	if err == nil {
		return nil
	}
	switch pgCode(err) {
	case pgUniqueViolation:
		return nil
	case pgUndefinedTable:
		return errors.WrapWithCode(err, errors.CodeInternal, "history.record", "video_jobs table missing").WithField("job_id", jobID)
	default:
		return errors.Wrap(err, "history.record", "failed to record job").WithField("job_id", jobID)
	}
}
