package processor

import (
	"bytes"
	"encoding/json"

	v1 "montage/internal/contracts/video/v1"
	"montage/internal/jobs"
	"montage/internal/pkg/errors"
)

// ParseQueued decodes a job queue message into its handle and request.
// The handle is empty when the producer did not choose one. Unknown fields
// are rejected so a typo does not silently drop an optional stage.
func ParseQueued(data []byte) (string, jobs.Request, error) {
	var msg v1.QueuedJob
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&msg); err != nil {
		return "", jobs.Request{}, errors.WrapWithCode(err, errors.CodeValidation, "processor.parse", "invalid job payload")
	}
	if msg.JobID != "" && SanitizeFilename(msg.JobID) != msg.JobID {
		return "", jobs.Request{}, errors.ValidationField("job_id", "job id must be a plain file name")
	}
	return msg.JobID, msg.Request().Normalize(), nil
}
