package models

import "time"

// JobRecord is the history row written once a job reaches done or error.
// It is never read back by the pipeline.
type JobRecord struct {
	ID           string     `json:"id"`
	Status       string     `json:"status"`
	ErrorText    string     `json:"error_text,omitempty"`
	VideoKey     string     `json:"video_key,omitempty"`
	ImageCount   int        `json:"image_count"`
	HasBGM       bool       `json:"has_bgm"`
	HasLogo      bool       `json:"has_logo"`
	HasIntro     bool       `json:"has_intro"`
	HasSubtitles bool       `json:"has_subtitles"`
	AspectRatio  string     `json:"aspect_ratio"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}
