package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/config"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/storage"
)

func memoryConfig() *config.Config {
	return &config.Config{
		App:      config.AppConfig{Name: "clinicdesk-test", Environment: "test", Version: "test"},
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0, ShutdownTimeout: time.Second},
		Database: config.DatabaseConfig{ProbeTimeout: time.Second},
		JWT: config.JWTConfig{
			Secret:          "app-test-secret",
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
			Issuer:          "clinicdesk-test",
		},
		Log:         config.LogConfig{Level: "error", Format: "json"},
		ObjectStore: config.ObjectStoreConfig{Driver: "memory"},
		Upload: config.UploadConfig{
			Folder:           "patient-photos",
			MaxFileSize:      5 << 20,
			RetryBaseDelay:   time.Millisecond,
			StaleInFlightAge: 10 * time.Minute,
			StaleTrackedAge:  24 * time.Hour,
		},
	}
}

func TestNew_WithoutDatabaseRunsOnMemory(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, memoryConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if got := a.Store.Backend(); got != storage.BackendMemory {
		t.Fatalf("backend = %q, want %q", got, storage.BackendMemory)
	}

	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health status = %d (%s)", w.Code, w.Body.String())
	}

	seeded, err := a.Seed(ctx)
	if err != nil || !seeded {
		t.Fatalf("first seed = %v, %v", seeded, err)
	}
	seeded, err = a.Seed(ctx)
	if err != nil || seeded {
		t.Fatalf("second seed should be a no-op, got %v, %v", seeded, err)
	}

	inFlight, tracked, err := a.SweepUploads(ctx, 0)
	if err != nil || inFlight != 0 || tracked != 0 {
		t.Fatalf("sweep = %d, %d, %v", inFlight, tracked, err)
	}
}

func TestClose_IsIdempotent(t *testing.T) {
	a, err := New(context.Background(), memoryConfig())
	if err != nil {
		t.Fatal(err)
	}
	a.Close()
	a.Close()
}

func TestSeedOnStart_RequiresExplicitFlag(t *testing.T) {
	cfg := memoryConfig()
	cfg.App.Environment = "development"
	a, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if a.SeedOnStart() {
		t.Error("development environment alone must not seed")
	}
	cfg.Seed.Enabled = true
	if !a.SeedOnStart() {
		t.Error("SEED_ENABLED should seed on start")
	}
}
