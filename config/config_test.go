package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	if err == nil {
		t.Fatal("expected error when JWT_SECRET is missing")
	}
	if !strings.Contains(err.Error(), "JWT_SECRET is required") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Database.Enabled() {
		t.Error("expected primary store disabled without DB_HOST")
	}
	if cfg.Upload.MaxFileSize != 5*1024*1024 {
		t.Errorf("expected 5MB upload ceiling, got %d", cfg.Upload.MaxFileSize)
	}
	if cfg.Upload.MaxRetries != 3 {
		t.Errorf("expected 3 retries, got %d", cfg.Upload.MaxRetries)
	}
	if cfg.Upload.StaleInFlightAge != 30*time.Minute {
		t.Errorf("expected 30m in-flight age, got %s", cfg.Upload.StaleInFlightAge)
	}
	if cfg.Upload.StaleTrackedAge != 24*time.Hour {
		t.Errorf("expected 24h tracked age, got %s", cfg.Upload.StaleTrackedAge)
	}
	if cfg.ObjectStore.Driver != "memory" {
		t.Errorf("expected memory object store, got %s", cfg.ObjectStore.Driver)
	}
	if len(cfg.CORS.AllowedMethods) != 6 {
		t.Errorf("expected 6 CORS methods, got %v", cfg.CORS.AllowedMethods)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("UPLOAD_RETRY_BASE_DELAY", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Database.Enabled() {
		t.Error("expected primary store enabled")
	}
	if cfg.Upload.RetryBaseDelay != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %s", cfg.Upload.RetryBaseDelay)
	}
}

func TestLoad_ProductionRules(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	t.Setenv("SEED_ENABLED", "true")

	_, err := Load()
	if err == nil {
		t.Fatal("expected production validation errors")
	}
	for _, want := range []string{"at least 32 characters", "SEED_ENABLED"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %q, got %v", want, err)
		}
	}
}

func TestLoad_RejectsUnknownObjectStore(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("OBJECT_STORE_DRIVER", "ftp")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown object store driver")
	}
}

func TestLoad_S3RequiresPublicURL(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("OBJECT_STORE_DRIVER", "s3")
	t.Setenv("OBJECT_STORE_BUCKET", "clinic-photos")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "OBJECT_STORE_PUBLIC_URL") {
		t.Fatalf("expected a missing public url error, got %v", err)
	}

	t.Setenv("OBJECT_STORE_PUBLIC_URL", "https://photos.clinic.test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ObjectStore.PublicBaseURL != "https://photos.clinic.test" {
		t.Errorf("unexpected public url %q", cfg.ObjectStore.PublicBaseURL)
	}
}
