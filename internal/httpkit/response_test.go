package httpkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	v1 "montage/internal/contracts/video/v1"
	"montage/internal/pkg/errors"
)

func TestWriteErrPromotesJobFields(t *testing.T) {
	rec := httptest.NewRecorder()
	env := NewErrorEnvelope("NOT_READY", "video not ready: j1", map[string]any{
		"job_id":   "j1",
		"status":   "processing",
		"resource": "video",
	})
	WriteErr(rec, http.StatusConflict, env)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if got := rec.Header().Get(JobIDHeader); got != "j1" {
		t.Errorf("X-Job-ID = %q, want j1", got)
	}

	var out struct {
		Error struct {
			Code    string         `json:"code"`
			JobID   string         `json:"job_id"`
			Status  string         `json:"status"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Error.JobID != "j1" || out.Error.Status != "processing" {
		t.Errorf("job fields not promoted: %+v", out.Error)
	}
	if _, dup := out.Error.Details["job_id"]; dup {
		t.Error("job_id must not be repeated in details")
	}
	if out.Error.Details["resource"] != "video" {
		t.Errorf("details = %v", out.Error.Details)
	}
}

func TestWriteErrWithoutJob(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErr(rec, http.StatusBadRequest, NewErrorEnvelope("VALIDATION_ERROR", "bad", nil))

	if rec.Header().Get(JobIDHeader) != "" {
		t.Error("X-Job-ID must be absent when no job is involved")
	}
	if strings.Contains(rec.Body.String(), "details") {
		t.Errorf("empty details must be omitted: %s", rec.Body.String())
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
		msg   string
	}{
		{name: "ok", body: `{"image_urls":["http://x/a.jpg"],"audio_url":"http://x/v.mp3"}`},
		{name: "empty", body: ``, msg: "request body is empty"},
		{name: "unknown field", body: `{"image_url":"x"}`, field: "image_url", msg: "unknown field image_url"},
		{name: "wrong type", body: `{"image_urls":"http://x/a.jpg"}`, field: "image_urls", msg: "image_urls must be []string"},
		{name: "malformed", body: `{"image_urls":`, msg: "invalid JSON body"},
		{name: "too large", body: `{"subtitle_text":"` + strings.Repeat("a", MaxBodyBytes) + `"}`, msg: "request body exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/videos", strings.NewReader(tt.body))
			var req v1.SubmitRequest
			err := DecodeJSON(httptest.NewRecorder(), r, &req)

			if tt.msg == "" {
				if err != nil {
					t.Fatalf("DecodeJSON: %v", err)
				}
				if len(req.ImageURLs) != 1 {
					t.Errorf("decoded = %+v", req)
				}
				return
			}
			if !errors.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.msg) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.msg)
			}
			if tt.field != "" && errors.GetFields(err)["field"] != tt.field {
				t.Errorf("fields = %v, want field=%s", errors.GetFields(err), tt.field)
			}
		})
	}
}
