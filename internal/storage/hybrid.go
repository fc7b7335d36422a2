package storage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
)

const (
	stateUnverified int32 = iota
	statePrimary
	stateFallback
)

// BackendObserver is notified when the façade settles on a backend.
type BackendObserver interface {
	SetStorageBackend(backend string)
	StorageFallback(op string)
}

type HybridOptions struct {
	Logger       *zap.Logger
	Observer     BackendObserver
	Tracer       trace.Tracer
	ProbeTimeout time.Duration
}

// Hybrid routes every call to the primary store until the primary fails
// once, then routes everything to the fallback for the rest of the process
// lifetime. The primary is never retried.
type Hybrid struct {
	primary     Store
	newFallback func() Store

	fallbackOnce sync.Once
	fallback     Store

	state  atomic.Int32
	probed chan struct{}

	log      *zap.Logger
	observer BackendObserver
	tracer   trace.Tracer
}

// NewHybrid returns immediately; the primary is probed in the background.
// A nil primary starts the façade in fallback mode.
func NewHybrid(primary Store, newFallback func() Store, opts HybridOptions) *Hybrid {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("clinicdesk/storage")
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	if newFallback == nil {
		newFallback = func() Store { return NewMemory() }
	}

	h := &Hybrid{
		primary:     primary,
		newFallback: newFallback,
		probed:      make(chan struct{}),
		log:         opts.Logger,
		observer:    opts.Observer,
		tracer:      opts.Tracer,
	}

	if primary == nil {
		h.switchToFallback("init", errors.New("no primary store configured"))
		close(h.probed)
		return h
	}

	go h.probe(opts.ProbeTimeout)
	return h
}

func (h *Hybrid) probe(timeout time.Duration) {
	defer close(h.probed)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.primary.Ping(ctx); err != nil {
		if IsPermissionDenied(err) {
			h.log.Warn("primary store rejected credentials during probe", zap.Error(err))
		}
		h.switchToFallback("probe", err)
		return
	}

	if h.state.CompareAndSwap(stateUnverified, statePrimary) {
		h.log.Info("storage backend selected", zap.String("backend", BackendPostgres))
		if h.observer != nil {
			h.observer.SetStorageBackend(BackendPostgres)
		}
	}
}

// Ready blocks until the probe has settled the backend or ctx ends.
func (h *Hybrid) Ready(ctx context.Context) error {
	select {
	case <-h.probed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Backend reports the backend currently serving calls.
func (h *Hybrid) Backend() string {
	switch h.state.Load() {
	case statePrimary:
		return BackendPostgres
	case stateFallback:
		return BackendMemory
	default:
		return "unverified"
	}
}

func (h *Hybrid) fallbackStore() Store {
	h.fallbackOnce.Do(func() {
		h.fallback = h.newFallback()
	})
	return h.fallback
}

func (h *Hybrid) switchToFallback(op string, cause error) {
	h.fallbackStore()
	if h.state.Swap(stateFallback) == stateFallback {
		return
	}
	h.log.Warn("switching to in-memory storage",
		zap.String("op", op),
		zap.Error(cause),
	)
	if h.observer != nil {
		h.observer.StorageFallback(op)
		h.observer.SetStorageBackend(BackendMemory)
	}
}

// do runs fn against the active backend, failing over on the first primary
// error. A caller-cancelled context is returned as is without failing over.
func do[T any](ctx context.Context, h *Hybrid, op string, fn func(context.Context, Store) (T, error)) (T, error) {
	ctx, span := h.tracer.Start(ctx, "storage."+op)
	defer span.End()

	var zero T
	select {
	case <-h.probed:
	default:
		// Only wait on the caller while the probe is still running; once it
		// has settled the backend decides how a cancelled context is handled.
		select {
		case <-h.probed:
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	if h.state.Load() == statePrimary {
		v, err := fn(ctx, h.primary)
		if err == nil {
			span.SetAttributes(attribute.String("storage.backend", BackendPostgres))
			return v, nil
		}
		if ctx.Err() != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return zero, err
		}
		span.RecordError(err)
		h.switchToFallback(op, err)
	}

	span.SetAttributes(attribute.String("storage.backend", BackendMemory))
	v, err := fn(ctx, h.fallbackStore())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return v, err
}

func (h *Hybrid) Ping(ctx context.Context) error {
	_, err := do(ctx, h, "Ping", func(ctx context.Context, s Store) (struct{}, error) {
		return struct{}{}, s.Ping(ctx)
	})
	return err
}

// ── Users ───────────────────────────────────────────────────────────────────

func (h *Hybrid) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return do(ctx, h, "GetUser", func(ctx context.Context, s Store) (*domain.User, error) {
		return s.GetUser(ctx, id)
	})
}

func (h *Hybrid) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return do(ctx, h, "GetUserByExternalID", func(ctx context.Context, s Store) (*domain.User, error) {
		return s.GetUserByExternalID(ctx, externalID)
	})
}

func (h *Hybrid) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return do(ctx, h, "GetUserByEmail", func(ctx context.Context, s Store) (*domain.User, error) {
		return s.GetUserByEmail(ctx, email)
	})
}

func (h *Hybrid) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	return do(ctx, h, "CreateUser", func(ctx context.Context, s Store) (*domain.User, error) {
		return s.CreateUser(ctx, u)
	})
}

func (h *Hybrid) UpdateUser(ctx context.Context, id string, cmd *domain.UpdateUserCommand) (*domain.User, error) {
	return do(ctx, h, "UpdateUser", func(ctx context.Context, s Store) (*domain.User, error) {
		return s.UpdateUser(ctx, id, cmd)
	})
}

func (h *Hybrid) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return do(ctx, h, "ListUsers", func(ctx context.Context, s Store) ([]*domain.User, error) {
		return s.ListUsers(ctx)
	})
}

func (h *Hybrid) ListUsersByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return do(ctx, h, "ListUsersByRole", func(ctx context.Context, s Store) ([]*domain.User, error) {
		return s.ListUsersByRole(ctx, role)
	})
}

func (h *Hybrid) HasUsers(ctx context.Context) (bool, error) {
	return do(ctx, h, "HasUsers", func(ctx context.Context, s Store) (bool, error) {
		return s.HasUsers(ctx)
	})
}

// ── Patients ────────────────────────────────────────────────────────────────

func (h *Hybrid) GetPatient(ctx context.Context, id string) (*patient.Patient, error) {
	return do(ctx, h, "GetPatient", func(ctx context.Context, s Store) (*patient.Patient, error) {
		return s.GetPatient(ctx, id)
	})
}

func (h *Hybrid) CreatePatient(ctx context.Context, p *patient.Patient) (*patient.Patient, error) {
	return do(ctx, h, "CreatePatient", func(ctx context.Context, s Store) (*patient.Patient, error) {
		return s.CreatePatient(ctx, p)
	})
}

func (h *Hybrid) UpdatePatient(ctx context.Context, id string, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	return do(ctx, h, "UpdatePatient", func(ctx context.Context, s Store) (*patient.Patient, error) {
		return s.UpdatePatient(ctx, id, cmd)
	})
}

func (h *Hybrid) ListPatients(ctx context.Context, limit int) ([]*patient.Patient, error) {
	return do(ctx, h, "ListPatients", func(ctx context.Context, s Store) ([]*patient.Patient, error) {
		return s.ListPatients(ctx, limit)
	})
}

func (h *Hybrid) SearchPatients(ctx context.Context, query string) ([]*patient.Patient, error) {
	return do(ctx, h, "SearchPatients", func(ctx context.Context, s Store) ([]*patient.Patient, error) {
		return s.SearchPatients(ctx, query)
	})
}

// ── Appointments ────────────────────────────────────────────────────────────

func (h *Hybrid) GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	return do(ctx, h, "GetAppointment", func(ctx context.Context, s Store) (*appointment.Appointment, error) {
		return s.GetAppointment(ctx, id)
	})
}

func (h *Hybrid) CreateAppointment(ctx context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	return do(ctx, h, "CreateAppointment", func(ctx context.Context, s Store) (*appointment.Appointment, error) {
		return s.CreateAppointment(ctx, a)
	})
}

func (h *Hybrid) UpdateAppointment(ctx context.Context, id string, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	return do(ctx, h, "UpdateAppointment", func(ctx context.Context, s Store) (*appointment.Appointment, error) {
		return s.UpdateAppointment(ctx, id, cmd)
	})
}

func (h *Hybrid) ListAppointments(ctx context.Context) ([]*appointment.Appointment, error) {
	return do(ctx, h, "ListAppointments", func(ctx context.Context, s Store) ([]*appointment.Appointment, error) {
		return s.ListAppointments(ctx)
	})
}

func (h *Hybrid) ListAppointmentsByDate(ctx context.Context, date string) ([]*appointment.Appointment, error) {
	return do(ctx, h, "ListAppointmentsByDate", func(ctx context.Context, s Store) ([]*appointment.Appointment, error) {
		return s.ListAppointmentsByDate(ctx, date)
	})
}

func (h *Hybrid) ListAppointmentsByDoctor(ctx context.Context, doctorID, date string) ([]*appointment.Appointment, error) {
	return do(ctx, h, "ListAppointmentsByDoctor", func(ctx context.Context, s Store) ([]*appointment.Appointment, error) {
		return s.ListAppointmentsByDoctor(ctx, doctorID, date)
	})
}

func (h *Hybrid) ListAppointmentsByPatient(ctx context.Context, patientID string) ([]*appointment.Appointment, error) {
	return do(ctx, h, "ListAppointmentsByPatient", func(ctx context.Context, s Store) ([]*appointment.Appointment, error) {
		return s.ListAppointmentsByPatient(ctx, patientID)
	})
}

// ── Encounters ──────────────────────────────────────────────────────────────

func (h *Hybrid) GetEncounter(ctx context.Context, id string) (*encounter.Encounter, error) {
	return do(ctx, h, "GetEncounter", func(ctx context.Context, s Store) (*encounter.Encounter, error) {
		return s.GetEncounter(ctx, id)
	})
}

func (h *Hybrid) GetEncounterByAppointment(ctx context.Context, appointmentID string) (*encounter.Encounter, error) {
	return do(ctx, h, "GetEncounterByAppointment", func(ctx context.Context, s Store) (*encounter.Encounter, error) {
		return s.GetEncounterByAppointment(ctx, appointmentID)
	})
}

func (h *Hybrid) CreateEncounter(ctx context.Context, e *encounter.Encounter) (*encounter.Encounter, error) {
	return do(ctx, h, "CreateEncounter", func(ctx context.Context, s Store) (*encounter.Encounter, error) {
		return s.CreateEncounter(ctx, e)
	})
}

func (h *Hybrid) UpdateEncounter(ctx context.Context, id string, cmd *encounter.UpdateEncounterCommand) (*encounter.Encounter, error) {
	return do(ctx, h, "UpdateEncounter", func(ctx context.Context, s Store) (*encounter.Encounter, error) {
		return s.UpdateEncounter(ctx, id, cmd)
	})
}

func (h *Hybrid) ListEncountersByPatient(ctx context.Context, patientID string) ([]*encounter.Encounter, error) {
	return do(ctx, h, "ListEncountersByPatient", func(ctx context.Context, s Store) ([]*encounter.Encounter, error) {
		return s.ListEncountersByPatient(ctx, patientID)
	})
}

// ── Prescriptions ───────────────────────────────────────────────────────────

func (h *Hybrid) GetPrescription(ctx context.Context, id string) (*prescription.Prescription, error) {
	return do(ctx, h, "GetPrescription", func(ctx context.Context, s Store) (*prescription.Prescription, error) {
		return s.GetPrescription(ctx, id)
	})
}

func (h *Hybrid) CreatePrescription(ctx context.Context, p *prescription.Prescription) (*prescription.Prescription, error) {
	return do(ctx, h, "CreatePrescription", func(ctx context.Context, s Store) (*prescription.Prescription, error) {
		return s.CreatePrescription(ctx, p)
	})
}

func (h *Hybrid) UpdatePrescription(ctx context.Context, id string, cmd *prescription.UpdatePrescriptionCommand) (*prescription.Prescription, error) {
	return do(ctx, h, "UpdatePrescription", func(ctx context.Context, s Store) (*prescription.Prescription, error) {
		return s.UpdatePrescription(ctx, id, cmd)
	})
}

func (h *Hybrid) ListPrescriptionsByPatient(ctx context.Context, patientID string) ([]*prescription.Prescription, error) {
	return do(ctx, h, "ListPrescriptionsByPatient", func(ctx context.Context, s Store) ([]*prescription.Prescription, error) {
		return s.ListPrescriptionsByPatient(ctx, patientID)
	})
}

func (h *Hybrid) ListPrescriptionsByEncounter(ctx context.Context, encounterID string) ([]*prescription.Prescription, error) {
	return do(ctx, h, "ListPrescriptionsByEncounter", func(ctx context.Context, s Store) ([]*prescription.Prescription, error) {
		return s.ListPrescriptionsByEncounter(ctx, encounterID)
	})
}

// ── Audit logs ──────────────────────────────────────────────────────────────

func (h *Hybrid) CreateAuditLog(ctx context.Context, entry *domain.AuditLog) (*domain.AuditLog, error) {
	return do(ctx, h, "CreateAuditLog", func(ctx context.Context, s Store) (*domain.AuditLog, error) {
		return s.CreateAuditLog(ctx, entry)
	})
}

func (h *Hybrid) ListAuditLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	return do(ctx, h, "ListAuditLogs", func(ctx context.Context, s Store) ([]*domain.AuditLog, error) {
		return s.ListAuditLogs(ctx, limit)
	})
}

func (h *Hybrid) ListAuditLogsForEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	return do(ctx, h, "ListAuditLogsForEntity", func(ctx context.Context, s Store) ([]*domain.AuditLog, error) {
		return s.ListAuditLogsForEntity(ctx, entityType, entityID)
	})
}

// ── Photo uploads ───────────────────────────────────────────────────────────

func (h *Hybrid) TrackPhotoUpload(ctx context.Context, u *photo.PhotoUpload) (*photo.PhotoUpload, error) {
	return do(ctx, h, "TrackPhotoUpload", func(ctx context.Context, s Store) (*photo.PhotoUpload, error) {
		return s.TrackPhotoUpload(ctx, u)
	})
}

func (h *Hybrid) GetPhotoUpload(ctx context.Context, id string) (*photo.PhotoUpload, error) {
	return do(ctx, h, "GetPhotoUpload", func(ctx context.Context, s Store) (*photo.PhotoUpload, error) {
		return s.GetPhotoUpload(ctx, id)
	})
}

func (h *Hybrid) FindPendingPhotoUpload(ctx context.Context, patientID string) (*photo.PhotoUpload, error) {
	return do(ctx, h, "FindPendingPhotoUpload", func(ctx context.Context, s Store) (*photo.PhotoUpload, error) {
		return s.FindPendingPhotoUpload(ctx, patientID)
	})
}

func (h *Hybrid) UpdatePhotoUploadByTempPath(ctx context.Context, tempPath string, cmd *photo.UpdateCommand) (*photo.PhotoUpload, error) {
	return do(ctx, h, "UpdatePhotoUploadByTempPath", func(ctx context.Context, s Store) (*photo.PhotoUpload, error) {
		return s.UpdatePhotoUploadByTempPath(ctx, tempPath, cmd)
	})
}

func (h *Hybrid) CleanupPhotoUpload(ctx context.Context, id, by string) (*photo.PhotoUpload, error) {
	return do(ctx, h, "CleanupPhotoUpload", func(ctx context.Context, s Store) (*photo.PhotoUpload, error) {
		return s.CleanupPhotoUpload(ctx, id, by)
	})
}

func (h *Hybrid) ListPhotoUploadsForPatient(ctx context.Context, patientID string) ([]*photo.PhotoUpload, error) {
	return do(ctx, h, "ListPhotoUploadsForPatient", func(ctx context.Context, s Store) ([]*photo.PhotoUpload, error) {
		return s.ListPhotoUploadsForPatient(ctx, patientID)
	})
}

func (h *Hybrid) CleanupStalePhotoUploads(ctx context.Context, olderThan time.Time, by string) (int, error) {
	return do(ctx, h, "CleanupStalePhotoUploads", func(ctx context.Context, s Store) (int, error) {
		return s.CleanupStalePhotoUploads(ctx, olderThan, by)
	})
}
