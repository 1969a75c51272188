// Package config loads montage settings from the environment.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultUserAgent is sent on asset downloads. Some image hosts reject
// requests that do not look like a browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Submit modes for the API process.
const (
	// SubmitLocal runs jobs on the API's own pool.
	SubmitLocal = "local"
	// SubmitQueue pushes jobs on the Redis queue for cmd/worker and follows
	// their progress through the event channel.
	SubmitQueue = "queue"
)

// Config is the full process configuration shared by cmd/api and cmd/worker.
type Config struct {
	HTTPPort   string
	SubmitMode string

	// WorkRoot holds one scratch directory per running job.
	WorkRoot string
	// MaxConcurrentJobs bounds the job worker pool.
	MaxConcurrentJobs int

	FetchTimeout time.Duration
	UserAgent    string

	// StageTimeout bounds a single ffmpeg invocation.
	StageTimeout time.Duration
	FFmpegBin    string
	FFprobeBin   string
	// VerifyOutput checks the final video with Vidio. It is skipped when
	// ffmpeg or ffprobe is not on PATH, since Vidio ignores the *_BIN paths.
	VerifyOutput bool

	Storage Storage

	// Optional integrations; empty disables them.
	RedisAddr     string
	QueueName     string
	EventsChannel string
	DatabaseURL   string

	CORSAllowedOrigins []string
	ShutdownTimeout    time.Duration
}

// Storage selects where finished videos are kept.
type Storage struct {
	Provider  string
	LocalRoot string

	GDriveClientID     string
	GDriveClientSecret string
	GDriveRefreshToken string
	GDriveFolderID     string

	S3Region string
	S3Bucket string
	S3Prefix string
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		HTTPPort:          Env("HTTP_PORT", "8080"),
		SubmitMode:        Env("SUBMIT_MODE", SubmitLocal),
		WorkRoot:          Env("WORK_ROOT", filepath.Join(os.TempDir(), "montage")),
		MaxConcurrentJobs: IntEnv("MAX_CONCURRENT_JOBS", 4),
		FetchTimeout:      DurationEnv("FETCH_TIMEOUT", 30*time.Second),
		UserAgent:         Env("FETCH_USER_AGENT", DefaultUserAgent),
		StageTimeout:      DurationEnv("STAGE_TIMEOUT", 10*time.Minute),
		FFmpegBin:         Env("FFMPEG_BIN", "ffmpeg"),
		FFprobeBin:        Env("FFPROBE_BIN", "ffprobe"),
		VerifyOutput:      BoolEnv("VERIFY_OUTPUT", true),
		Storage: Storage{
			Provider:           Env("STORAGE_PROVIDER", "localfs"),
			LocalRoot:          Env("STORAGE_LOCAL_ROOT", "./results"),
			GDriveClientID:     Env("GDRIVE_CLIENT_ID", ""),
			GDriveClientSecret: Env("GDRIVE_CLIENT_SECRET", ""),
			GDriveRefreshToken: Env("GDRIVE_REFRESH_TOKEN", ""),
			GDriveFolderID:     Env("GDRIVE_FOLDER_ID", ""),
			S3Region:           Env("S3_REGION", "us-east-1"),
			S3Bucket:           Env("S3_BUCKET", ""),
			S3Prefix:           Env("S3_PREFIX", ""),
		},
		RedisAddr:     Env("REDIS_ADDR", ""),
		QueueName:     Env("JOB_QUEUE_NAME", "montage:jobs"),
		EventsChannel: Env("JOB_EVENTS_CHANNEL", "montage:events"),
		DatabaseURL:   Env("DATABASE_URL", ""),
		CORSAllowedOrigins: CSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:8081",
			"http://localhost:5173",
		}),
		ShutdownTimeout: DurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}
