package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_PORT", "MAX_CONCURRENT_JOBS", "FETCH_TIMEOUT", "STAGE_TIMEOUT", "STORAGE_PROVIDER", "REDIS_ADDR", "SUBMIT_MODE"} {
		t.Setenv(k, "")
	}

	cfg := Load()

	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.MaxConcurrentJobs != 4 {
		t.Errorf("MaxConcurrentJobs = %d, want 4", cfg.MaxConcurrentJobs)
	}
	if cfg.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout = %v, want 30s", cfg.FetchTimeout)
	}
	if cfg.StageTimeout != 10*time.Minute {
		t.Errorf("StageTimeout = %v, want 10m", cfg.StageTimeout)
	}
	if cfg.Storage.Provider != "localfs" {
		t.Errorf("Storage.Provider = %q, want localfs", cfg.Storage.Provider)
	}
	if cfg.RedisAddr != "" {
		t.Errorf("RedisAddr = %q, want empty", cfg.RedisAddr)
	}
	if cfg.SubmitMode != SubmitLocal {
		t.Errorf("SubmitMode = %q, want local", cfg.SubmitMode)
	}
	if cfg.UserAgent != DefaultUserAgent {
		t.Errorf("UserAgent = %q, want default", cfg.UserAgent)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("MAX_CONCURRENT_JOBS", "12")
	t.Setenv("STAGE_TIMEOUT", "90s")
	t.Setenv("VERIFY_OUTPUT", "false")
	t.Setenv("STORAGE_PROVIDER", "s3")
	t.Setenv("S3_BUCKET", "videos")
	t.Setenv("SUBMIT_MODE", "queue")

	cfg := Load()

	if cfg.SubmitMode != SubmitQueue {
		t.Errorf("SubmitMode = %q, want queue", cfg.SubmitMode)
	}

	if cfg.MaxConcurrentJobs != 12 {
		t.Errorf("MaxConcurrentJobs = %d, want 12", cfg.MaxConcurrentJobs)
	}
	if cfg.StageTimeout != 90*time.Second {
		t.Errorf("StageTimeout = %v, want 90s", cfg.StageTimeout)
	}
	if cfg.VerifyOutput {
		t.Error("VerifyOutput = true, want false")
	}
	if cfg.Storage.Provider != "s3" || cfg.Storage.S3Bucket != "videos" {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
}

func TestEnvHelpers(t *testing.T) {
	t.Run("IntEnv rejects garbage", func(t *testing.T) {
		t.Setenv("X_INT", "abc")
		if got := IntEnv("X_INT", 3); got != 3 {
			t.Errorf("got %d, want 3", got)
		}
		t.Setenv("X_INT", "-2")
		if got := IntEnv("X_INT", 3); got != 3 {
			t.Errorf("got %d, want 3", got)
		}
	})

	t.Run("DurationEnv rejects garbage", func(t *testing.T) {
		t.Setenv("X_DUR", "soon")
		if got := DurationEnv("X_DUR", time.Second); got != time.Second {
			t.Errorf("got %v, want 1s", got)
		}
	})

	t.Run("BoolEnv", func(t *testing.T) {
		t.Setenv("X_BOOL", "TRUE")
		if !BoolEnv("X_BOOL", false) {
			t.Error("expected true")
		}
		t.Setenv("X_BOOL", "maybe")
		if BoolEnv("X_BOOL", false) {
			t.Error("expected default for invalid value")
		}
	})

	t.Run("CSVEnv drops blanks", func(t *testing.T) {
		t.Setenv("X_CSV", " a, ,b ,")
		got := CSVEnv("X_CSV", nil)
		if len(got) != 2 || got[0] != "a" || got[1] != "b" {
			t.Errorf("got %v, want [a b]", got)
		}
	})

	t.Run("MustEnv panics", func(t *testing.T) {
		t.Setenv("X_REQ", "")
		defer func() {
			if recover() == nil {
				t.Error("expected panic for missing env")
			}
		}()
		MustEnv("X_REQ")
	})
}
