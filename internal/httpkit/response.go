// Package httpkit holds the JSON and CORS plumbing of the montage API.
package httpkit

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"montage/internal/pkg/errors"
)

// JobIDHeader names the job an error response is about, so clients can
// poll a job whose admission was rejected without parsing the body.
const JobIDHeader = "X-Job-ID"

// MaxBodyBytes bounds a submission body. A request carries URLs and
// subtitle text, never media.
const MaxBodyBytes = 1 << 20

// ErrorBody is the error object of a non-2xx response. JobID and Status are
// set when the error concerns a known job.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	JobID   string         `json:"job_id,omitempty"`
	Status  string         `json:"status,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// NewErrorEnvelope lifts the job_id and status fields out of details.
func NewErrorEnvelope(code, msg string, fields map[string]any) ErrorEnvelope {
	body := ErrorBody{Code: code, Message: msg}
	for k, v := range fields {
		switch s, _ := v.(string); k {
		case "job_id":
			body.JobID = s
		case "status":
			body.Status = s
		default:
			if body.Details == nil {
				body.Details = make(map[string]any, len(fields))
			}
			body.Details[k] = v
		}
	}
	return ErrorEnvelope{Error: body}
}

// WriteErr writes env with the given status and mirrors its job id into
// the X-Job-ID header.
func WriteErr(w http.ResponseWriter, status int, env ErrorEnvelope) {
	if env.Error.JobID != "" {
		w.Header().Set(JobIDHeader, env.Error.JobID)
	}
	WriteJSON(w, status, env)
}

func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// DecodeJSON decodes one JSON object from the request body into v. Unknown
// fields, oversized bodies and type mismatches come back as validation
// errors naming the offending field.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()

	err := dec.Decode(v)
	if err == nil {
		return nil
	}

	var (
		typeErr *json.UnmarshalTypeError
		sizeErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &typeErr):
		return errors.Validationf("%s must be %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value).WithField("field", typeErr.Field)
	case errors.As(err, &sizeErr):
		return errors.Validationf("request body exceeds %d bytes", sizeErr.Limit)
	case errors.Is(err, io.EOF):
		return errors.Validation("request body is empty")
	case unknownField(err) != "":
		field := unknownField(err)
		return errors.Validationf("unknown field %s", field).WithField("field", field)
	default:
		return errors.WrapWithCode(err, errors.CodeValidation, "httpkit.decode", "invalid JSON body")
	}
}

// unknownField extracts the name from encoding/json's unknown field error,
// which has no exported type.
func unknownField(err error) string {
	name, ok := strings.CutPrefix(err.Error(), `json: unknown field "`)
	if !ok {
		return ""
	}
	return strings.TrimSuffix(name, `"`)
}
