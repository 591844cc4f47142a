package config

import (
	"testing"
	"time"
)

func TestLoadIncludesPipelineDefaults(t *testing.T) {
	t.Setenv("MODEL_TIMEOUT_IMAGE_SECONDS", "")
	t.Setenv("MODEL_TIMEOUT_AV_SECONDS", "")
	t.Setenv("MODEL_MAX_CONCURRENT", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")

	cfg := Load()
	if cfg.ModelTimeoutImage != 45*time.Second {
		t.Fatalf("expected default image timeout 45s, got %v", cfg.ModelTimeoutImage)
	}
	if cfg.ModelTimeoutAV != 90*time.Second {
		t.Fatalf("expected default av timeout 90s, got %v", cfg.ModelTimeoutAV)
	}
	if cfg.ModelMaxConcurrent != 4 {
		t.Fatalf("expected default model concurrency 4, got %d", cfg.ModelMaxConcurrent)
	}
	if cfg.MaxUploadBytes != 50*1024*1024 {
		t.Fatalf("expected default upload ceiling 50 MiB, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("MODEL_TIMEOUT_AV_SECONDS", "120")
	t.Setenv("MODEL_MAX_CONCURRENT", "8")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("MODEL_RATE_PER_SECOND", "0.5")

	cfg := Load()
	if cfg.ModelTimeoutAV != 120*time.Second {
		t.Fatalf("expected av timeout override, got %v", cfg.ModelTimeoutAV)
	}
	if cfg.ModelMaxConcurrent != 8 {
		t.Fatalf("expected model concurrency 8, got %d", cfg.ModelMaxConcurrent)
	}
	if cfg.MaxUploadBytes != 1024 {
		t.Fatalf("expected upload ceiling 1024, got %d", cfg.MaxUploadBytes)
	}
	if cfg.ModelRatePerSecond != 0.5 {
		t.Fatalf("expected model rate 0.5, got %v", cfg.ModelRatePerSecond)
	}
}

func TestLoadFallsBackOnUnparsableNumbers(t *testing.T) {
	t.Setenv("MODEL_MAX_CONCURRENT", "not-a-number")

	cfg := Load()
	if cfg.ModelMaxConcurrent != 4 {
		t.Fatalf("expected fallback concurrency 4, got %d", cfg.ModelMaxConcurrent)
	}
}
