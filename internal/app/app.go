package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/config"
	v1 "github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/service"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/upload"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/tracer"
)

// App owns every long-lived dependency of the process.
type App struct {
	Config   *config.Config
	Log      *zap.Logger
	Store    *storage.Hybrid
	Metrics  *metrics.Collector
	Services v1.Services
	Router   *gin.Engine

	db     *gorm.DB
	tp     *sdktrace.TracerProvider
	rdb    *redis.Client
	closed bool
}

// New wires the application. It returns once the storage backend is settled.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	a := &App{Config: cfg, Log: log}

	a.tp, err = tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return nil, fmt.Errorf("initialising tracer: %w", err)
	}

	a.Metrics = metrics.NewCollector(cfg.App.Name, prometheus.NewRegistry())

	a.Store = storage.NewHybrid(a.openPrimary(ctx), func() storage.Store { return storage.NewMemory() }, storage.HybridOptions{
		Logger:       logger.Named(log, "storage"),
		Observer:     a.Metrics,
		Tracer:       otel.Tracer("clinicdesk/storage"),
		ProbeTimeout: cfg.Database.ProbeTimeout,
	})

	readyCtx, cancel := context.WithTimeout(ctx, cfg.Database.ProbeTimeout+time.Second)
	defer cancel()
	if err := a.Store.Ready(readyCtx); err != nil {
		log.Warn("storage probe did not settle in time", zap.Error(err))
	}
	log.Info("storage ready", zap.String("backend", a.Store.Backend()))

	objects, err := a.objectStore(ctx)
	if err != nil {
		return nil, err
	}

	audit := service.NewAuditService(a.Store, logger.Named(log, "audit"), a.Metrics)
	photos := service.NewPhotoService(a.Store, a.Store, objects, audit, logger.Named(log, "photos"), a.Metrics)
	uploads := upload.NewManager(objects, a.uploadGuard(ctx), upload.Config{
		Folder:         cfg.Upload.Folder,
		MaxFileSize:    cfg.Upload.MaxFileSize,
		MaxRetries:     cfg.Upload.MaxRetries,
		RetryBaseDelay: cfg.Upload.RetryBaseDelay,
	}, logger.Named(log, "upload"), upload.WithTracker(photos), upload.WithObserver(a.Metrics))

	jwtManager := auth.NewJWTManager(cfg.JWT)

	a.Services = v1.Services{
		Patients:     service.NewPatientService(a.Store, photos, audit, logger.Named(log, "patients"), a.Metrics),
		Appointments: service.NewAppointmentService(a.Store, a.Store, a.Store, audit, logger.Named(log, "appointments"), a.Metrics),
		Clinical:     service.NewClinicalService(a.Store, a.Store, a.Store, audit, logger.Named(log, "clinical"), a.Metrics),
		Users:        service.NewUserService(a.Store, audit, logger.Named(log, "users")),
		Audit:        audit,
		Photos:       photos,
		Auth:         service.NewAuthService(a.Store, jwtManager, logger.Named(log, "auth")),
		Uploads:      uploads,
	}

	if !cfg.App.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := v1.NewHandler(a.Services, logger.Named(log, "http"), cfg.Upload)
	a.Router = v1.NewRouter(handler, v1.RouterConfig{
		Logger:    logger.Named(log, "http"),
		Metrics:   a.Metrics,
		Tokens:    jwtManager,
		Health:    a.Store,
		CORS:      cfg.CORS,
		RateLimit: cfg.RateLimit,
		Version:   cfg.App.Version,
	})

	return a, nil
}

// openPrimary returns nil when no database is configured. A connection that
// cannot be opened is not fatal; the façade falls back to memory.
func (a *App) openPrimary(ctx context.Context) storage.Store {
	cfg := a.Config.Database
	if !cfg.Enabled() {
		a.Log.Info("no database configured, using in-memory storage")
		return nil
	}

	db, err := database.Open(cfg, logger.Named(a.Log, "gorm"))
	if err != nil {
		a.Log.Warn("could not open database", zap.Error(err))
		return nil
	}
	a.db = db

	if cfg.AutoMigrate {
		migrateCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
		defer cancel()
		if err := database.Migrate(migrateCtx, db, a.Log); err != nil {
			a.Log.Warn("auto-migration failed", zap.Error(err))
		}
	}
	return storage.NewPostgres(db)
}

func (a *App) objectStore(ctx context.Context) (upload.ObjectStore, error) {
	cfg := a.Config.ObjectStore
	switch cfg.Driver {
	case "s3":
		s, err := upload.NewS3ObjectStore(ctx, upload.S3Options{
			Bucket:        cfg.Bucket,
			Region:        cfg.Region,
			Endpoint:      cfg.Endpoint,
			UsePathStyle:  cfg.UsePathStyle,
			PublicBaseURL: cfg.PublicBaseURL,
			URLTTL:        cfg.URLTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating s3 object store: %w", err)
		}
		a.Log.Info("photo objects stored in s3", zap.String("bucket", cfg.Bucket))
		return s, nil
	default:
		a.Log.Info("photo objects stored in memory")
		return upload.NewMemoryObjectStore(cfg.PublicBaseURL), nil
	}
}

// uploadGuard shares the per-patient guard through Redis when configured
// and reachable; otherwise the guard is process-local.
func (a *App) uploadGuard(ctx context.Context) upload.Guard {
	cfg := a.Config.Redis
	if cfg.Addr == "" {
		return upload.NewMemoryGuard()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		a.Log.Warn("redis unreachable, using in-process upload guard", zap.String("addr", cfg.Addr), zap.Error(err))
		_ = rdb.Close()
		return upload.NewMemoryGuard()
	}
	a.rdb = rdb
	return upload.NewRedisGuard(rdb, cfg.GuardTTL)
}

// SeedOnStart reports whether serve loads demo data before listening. Only
// SEED_ENABLED turns it on; the environment name never does.
func (a *App) SeedOnStart() bool {
	return a.Config.Seed.Enabled
}

// Seed loads demo data into the active backend.
func (a *App) Seed(ctx context.Context) (bool, error) {
	return storage.Seed(ctx, a.Store, logger.Named(a.Log, "seed"))
}

// SweepUploads cancels in-flight uploads older than the configured age and
// cleans up tracked uploads that were never confirmed.
func (a *App) SweepUploads(ctx context.Context, trackedAge time.Duration) (int, int, error) {
	if trackedAge <= 0 {
		trackedAge = a.Config.Upload.StaleTrackedAge
	}
	inFlight := a.Services.Uploads.SweepStale(ctx, a.Config.Upload.StaleInFlightAge)
	tracked, err := a.Services.Photos.CleanupStale(ctx, trackedAge, service.SystemCaller)
	return inFlight, tracked, err
}

func (a *App) runJanitor(ctx context.Context) {
	interval := a.Config.Upload.SweepInterval
	if interval <= 0 {
		return
	}
	log := logger.Named(a.Log, "janitor")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			inFlight, tracked, err := a.SweepUploads(ctx, 0)
			if err != nil {
				log.Warn("upload sweep failed", zap.Error(err))
				continue
			}
			if inFlight > 0 || tracked > 0 {
				log.Info("upload sweep finished", zap.Int("in_flight_cancelled", inFlight), zap.Int("tracked_cleaned", tracked))
			}
		}
	}
}

// Serve runs the HTTP server and the upload janitor until ctx is cancelled,
// then drains in-flight requests.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config.Server
	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      a.Router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go a.runJanitor(janitorCtx)

	errCh := make(chan error, 1)
	go func() {
		a.Log.Info("http server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", a.Config.App.Environment),
			zap.String("storage", a.Store.Backend()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.Log.Info("http server stopped")
	return nil
}

// Close flushes the audit queue and releases external resources. It is safe
// to call more than once.
func (a *App) Close() {
	if a.closed {
		return
	}
	a.closed = true

	if a.Services.Audit != nil {
		a.Services.Audit.Shutdown(5 * time.Second)
	}
	if a.tp != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.tp.Shutdown(ctx); err != nil {
			a.Log.Warn("tracer shutdown failed", zap.Error(err))
		}
		cancel()
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.Log.Warn("redis close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := database.Close(a.db); err != nil {
			a.Log.Warn("database close failed", zap.Error(err))
		}
	}
	_ = a.Log.Sync()
}
