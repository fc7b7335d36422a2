package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
)

type AppointmentService struct {
	repo        appointment.Repository
	patientRepo patient.Repository
	userRepo    domain.UserRepository
	auditSvc    *AuditService
	log         *zap.Logger
	obs         Observer
	now         func() time.Time
}

func NewAppointmentService(
	repo appointment.Repository,
	patientRepo patient.Repository,
	userRepo domain.UserRepository,
	auditSvc *AuditService,
	log *zap.Logger,
	obs Observer,
) *AppointmentService {
	return &AppointmentService{
		repo:        repo,
		patientRepo: patientRepo,
		userRepo:    userRepo,
		auditSvc:    auditSvc,
		log:         log,
		obs:         observerOrNop(obs),
		now:         time.Now,
	}
}

func (s *AppointmentService) ScheduleAppointment(ctx context.Context, cmd *appointment.CreateAppointmentCommand, caller Caller) (*appointment.Appointment, error) {
	if cmd.ScheduledAt.IsZero() {
		return nil, &ValidationError{Fields: []string{"scheduledAt is required"}}
	}
	if cmd.ScheduledAt.Before(s.now()) {
		return nil, appointment.ErrScheduledInPast
	}
	if err := validateDuration(cmd.DurationMins); err != nil {
		return nil, err
	}
	if !cmd.Type.IsValid() {
		return nil, appointment.ErrInvalidAppointmentType
	}

	p, err := s.patientRepo.GetPatient(ctx, cmd.PatientID)
	if err != nil {
		return nil, fmt.Errorf("verifying patient: %w", err)
	}
	if p == nil {
		return nil, patient.ErrPatientNotFound
	}
	if err := s.verifyDoctor(ctx, cmd.DoctorID); err != nil {
		return nil, err
	}

	a, err := s.repo.CreateAppointment(ctx, &appointment.Appointment{
		PatientID:    cmd.PatientID,
		DoctorID:     cmd.DoctorID,
		ScheduledAt:  cmd.ScheduledAt,
		DurationMins: cmd.DurationMins,
		Type:         cmd.Type,
		Status:       appointment.StatusScheduled,
		Notes:        cmd.Notes,
	})
	if err != nil {
		s.log.Error("failed to create appointment", zap.Error(err))
		return nil, fmt.Errorf("creating appointment: %w", err)
	}
	s.obs.AppointmentWritten(string(a.Status))

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionCreate,
		EntityType: "appointment",
		EntityID:   a.ID,
	})

	return a, nil
}

func (s *AppointmentService) GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	a, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading appointment: %w", err)
	}
	if a == nil {
		return nil, appointment.ErrAppointmentNotFound
	}
	return a, nil
}

func (s *AppointmentService) UpdateAppointment(ctx context.Context, id string, cmd *appointment.UpdateAppointmentCommand, caller Caller) (*appointment.Appointment, error) {
	current, err := s.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}

	if cmd.Status != nil {
		if !cmd.Status.IsValid() || !current.CanTransitionTo(*cmd.Status) {
			return nil, appointment.ErrInvalidStatusTransition
		}
	}
	if cmd.DurationMins != nil {
		if err := validateDuration(*cmd.DurationMins); err != nil {
			return nil, err
		}
	}
	if cmd.Type != nil && !cmd.Type.IsValid() {
		return nil, appointment.ErrInvalidAppointmentType
	}
	if cmd.DoctorID != nil && *cmd.DoctorID != current.DoctorID {
		if err := s.verifyDoctor(ctx, *cmd.DoctorID); err != nil {
			return nil, err
		}
	}

	a, err := s.repo.UpdateAppointment(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("updating appointment: %w", err)
	}
	if a == nil {
		return nil, appointment.ErrAppointmentNotFound
	}
	s.obs.AppointmentWritten(string(a.Status))

	changes := map[string]any{}
	if cmd.Status != nil {
		changes["status"] = string(*cmd.Status)
	}
	if cmd.ScheduledAt != nil {
		changes["scheduledAt"] = *cmd.ScheduledAt
	}
	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionUpdate,
		EntityType: "appointment",
		EntityID:   id,
		Changes:    changes,
	})

	return a, nil
}

type AppointmentFilter struct {
	Date      string
	DoctorID  string
	PatientID string
}

// ListAppointments picks the narrowest index for the filter: patient, then
// doctor (optionally on one date), then date, then everything. Filters the
// chosen index does not cover are applied to its result.
func (s *AppointmentService) ListAppointments(ctx context.Context, f AppointmentFilter) ([]*appointment.Appointment, error) {
	if f.Date != "" {
		if _, err := time.Parse(appointment.DateLayout, f.Date); err != nil {
			return nil, appointment.ErrInvalidDate
		}
	}

	switch {
	case f.PatientID != "":
		list, err := s.repo.ListAppointmentsByPatient(ctx, f.PatientID)
		if err != nil {
			return nil, err
		}
		out := list[:0]
		for _, a := range list {
			if (f.Date == "" || a.Date == f.Date) && (f.DoctorID == "" || a.DoctorID == f.DoctorID) {
				out = append(out, a)
			}
		}
		return out, nil
	case f.DoctorID != "":
		return s.repo.ListAppointmentsByDoctor(ctx, f.DoctorID, f.Date)
	case f.Date != "":
		return s.repo.ListAppointmentsByDate(ctx, f.Date)
	default:
		return s.repo.ListAppointments(ctx)
	}
}

func (s *AppointmentService) verifyDoctor(ctx context.Context, doctorID string) error {
	if doctorID == "" {
		return &ValidationError{Fields: []string{"doctorId is required"}}
	}
	doc, err := s.userRepo.GetUser(ctx, doctorID)
	if err != nil {
		return fmt.Errorf("verifying doctor: %w", err)
	}
	if doc == nil || doc.Role != domain.RoleDoctor || !doc.IsActive {
		return &ValidationError{Fields: []string{"doctorId must reference an active doctor"}}
	}
	return nil
}

func validateDuration(mins int) error {
	// Zero means the default duration.
	if mins == 0 {
		return nil
	}
	if mins < 5 || mins > 480 {
		return appointment.ErrInvalidDuration
	}
	return nil
}
