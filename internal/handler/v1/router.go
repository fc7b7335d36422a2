package v1

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/config"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/service"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/upload"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/metrics"
)

type Services struct {
	Patients     *service.PatientService
	Appointments *service.AppointmentService
	Clinical     *service.ClinicalService
	Users        *service.UserService
	Audit        *service.AuditService
	Photos       *service.PhotoService
	Auth         *service.AuthService
	Uploads      *upload.Manager
}

type Handler struct {
	svc            Services
	log            *zap.Logger
	maxUploadBytes int64
	staleUploadAge time.Duration
}

func NewHandler(svc Services, log *zap.Logger, uploadCfg config.UploadConfig) *Handler {
	maxBytes := uploadCfg.MaxFileSize
	if maxBytes <= 0 {
		maxBytes = upload.DefaultMaxFileSize
	}
	staleAge := uploadCfg.StaleTrackedAge
	if staleAge <= 0 {
		staleAge = 24 * time.Hour
	}
	return &Handler{svc: svc, log: log, maxUploadBytes: maxBytes, staleUploadAge: staleAge}
}

// HealthChecker reports which storage backend is serving.
type HealthChecker interface {
	Backend() string
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Logger    *zap.Logger
	Metrics   *metrics.Collector
	Tokens    middleware.TokenValidator
	Health    HealthChecker
	CORS      config.CORSConfig
	RateLimit config.RateLimitConfig
	Version   string
}

func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	// Headroom over the photo ceiling so oversized files reach validation
	// and fail with FILE_TOO_LARGE rather than a multipart error.
	r.MaxMultipartMemory = h.maxUploadBytes + 1<<20

	r.Use(
		middleware.RequestID(),
		middleware.Recovery(cfg.Logger),
		middleware.Tracing(),
		middleware.Logger(cfg.Logger),
		middleware.CORS(cfg.CORS),
	)
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.NewRateLimiter(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.BurstSize).Middleware())
	}

	r.GET("/health", healthHandler(cfg.Health, cfg.Version))

	api := r.Group("/api/v1")
	api.POST("/auth/refresh", h.refreshToken)

	authed := api.Group("")
	authed.Use(middleware.Authenticate(cfg.Tokens))

	authed.GET("/me", h.me)

	users := authed.Group("/users", middleware.RequirePermission(domain.PermManageUsers))
	users.GET("", h.listUsers)
	users.POST("", h.createUser)
	users.GET("/:id", h.getUser)
	users.PATCH("/:id", h.updateUser)

	patients := authed.Group("/patients")
	patients.GET("", middleware.RequirePermission(domain.PermReadPatients), h.listPatients)
	patients.GET("/search", middleware.RequirePermission(domain.PermReadPatients), h.searchPatients)
	patients.GET("/:id", middleware.RequirePermission(domain.PermReadPatients), h.getPatient)
	patients.POST("", middleware.RequirePermission(domain.PermWritePatients), h.createPatient)
	patients.PATCH("/:id", middleware.RequirePermission(domain.PermWritePatients), h.updatePatient)

	appts := authed.Group("/appointments", middleware.RequirePermission(domain.PermManageAppointments))
	appts.GET("", h.listAppointments)
	appts.POST("", h.scheduleAppointment)
	appts.GET("/:id", h.getAppointment)
	appts.PATCH("/:id", h.updateAppointment)

	encounters := authed.Group("/encounters")
	encounters.GET("", middleware.RequirePermission(domain.PermReadClinical), h.listEncounters)
	encounters.GET("/:id", middleware.RequirePermission(domain.PermReadClinical), h.getEncounter)
	encounters.POST("", middleware.RequirePermission(domain.PermWriteClinical), h.createEncounter)
	encounters.PATCH("/:id", middleware.RequirePermission(domain.PermWriteClinical), h.updateEncounter)

	rx := authed.Group("/prescriptions")
	rx.GET("", middleware.RequirePermission(domain.PermReadClinical), h.listPrescriptions)
	rx.GET("/:id", middleware.RequirePermission(domain.PermReadClinical), h.getPrescription)
	rx.POST("", middleware.RequirePermission(domain.PermWriteClinical), h.issuePrescription)
	rx.PATCH("/:id", middleware.RequirePermission(domain.PermWriteClinical), h.updatePrescription)
	rx.POST("/:id/sent", middleware.RequirePermission(domain.PermWriteClinical), h.markPrescriptionSent)

	authed.GET("/audit-logs", middleware.RequirePermission(domain.PermReadAudit), h.listAuditLogs)

	photos := authed.Group("/uploads/photos", middleware.RequirePermission(domain.PermUploadPhotos))
	if cfg.RateLimit.UploadRequestsPerMinute > 0 {
		photos.Use(middleware.PerMinute(cfg.RateLimit.UploadRequestsPerMinute).Middleware())
	}
	photos.POST("", h.uploadPhoto)
	photos.GET("/active", h.listActiveUploads)
	photos.DELETE("/active/:patientId", h.cancelUpload)
	photos.POST("/track", h.trackPhoto)
	photos.POST("/repath", h.repathPhoto)
	photos.GET("/status/:patientId", h.photoStatus)
	photos.DELETE("/:uploadId", h.cleanupPhoto)
	photos.POST("/cleanup-stale", middleware.RequirePermission(domain.PermCleanupUploads), h.cleanupStalePhotos)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "route not found", nil)
	})

	return r
}

func healthHandler(hc HealthChecker, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{"status": "ok", "version": version}
		if hc == nil {
			c.JSON(http.StatusOK, body)
			return
		}
		body["storage"] = hc.Backend()
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := hc.Ping(ctx); err != nil {
			body["status"] = "degraded"
			body["error"] = err.Error()
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		c.JSON(http.StatusOK, body)
	}
}

func (h *Handler) me(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)
	u, err := h.svc.Users.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, u)
}
