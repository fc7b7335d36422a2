package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
)

type PatientService struct {
	repo     patient.Repository
	photos   *PhotoService
	auditSvc *AuditService
	log      *zap.Logger
	obs      Observer
}

func NewPatientService(repo patient.Repository, photos *PhotoService, auditSvc *AuditService, log *zap.Logger, obs Observer) *PatientService {
	return &PatientService{
		repo:     repo,
		photos:   photos,
		auditSvc: auditSvc,
		log:      log,
		obs:      observerOrNop(obs),
	}
}

// CreatePatient registers a patient. When the profile photo URL still points
// at a placeholder upload, the photo is moved to the new patient; a failed
// move is logged and never undoes the registration.
func (s *PatientService) CreatePatient(ctx context.Context, cmd *patient.CreatePatientCommand, caller Caller) (*patient.Patient, error) {
	if err := validateCreatePatient(cmd); err != nil {
		return nil, err
	}

	p, err := s.repo.CreatePatient(ctx, cmd.ToPatient())
	if err != nil {
		s.log.Error("failed to create patient", zap.Error(err))
		return nil, fmt.Errorf("creating patient: %w", err)
	}
	s.obs.PatientCreated()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionCreate,
		EntityType: "patient",
		EntityID:   p.ID,
	})

	s.log.Info("patient created",
		zap.String("patient_id", p.ID),
		zap.String("created_by", caller.actor()),
	)

	if placeholder := photo.FindPlaceholder(p.ProfilePhotoURL); placeholder != "" && s.photos != nil {
		res, err := s.photos.Repath(ctx, placeholder, p.ID, caller)
		if err != nil {
			s.log.Warn("photo re-pathing failed after patient creation",
				zap.String("patient_id", p.ID),
				zap.String("placeholder_id", placeholder),
				zap.Error(err),
			)
			return p, nil
		}
		if res.Patient != nil {
			return res.Patient, nil
		}
	}

	return p, nil
}

func (s *PatientService) GetPatient(ctx context.Context, id string) (*patient.Patient, error) {
	p, err := s.repo.GetPatient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading patient: %w", err)
	}
	if p == nil {
		return nil, patient.ErrPatientNotFound
	}
	return p, nil
}

func (s *PatientService) UpdatePatient(ctx context.Context, id string, cmd *patient.UpdatePatientCommand, caller Caller) (*patient.Patient, error) {
	if err := validateUpdatePatient(cmd); err != nil {
		return nil, err
	}

	p, err := s.repo.UpdatePatient(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("updating patient: %w", err)
	}
	if p == nil {
		return nil, patient.ErrPatientNotFound
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionUpdate,
		EntityType: "patient",
		EntityID:   id,
	})

	return p, nil
}

func (s *PatientService) ListPatients(ctx context.Context, limit int) ([]*patient.Patient, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.ListPatients(ctx, limit)
}

func (s *PatientService) SearchPatients(ctx context.Context, query string) ([]*patient.Patient, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, &ValidationError{Fields: []string{"q is required"}}
	}
	return s.repo.SearchPatients(ctx, q)
}

func validateCreatePatient(cmd *patient.CreatePatientCommand) error {
	var errs []string

	if strings.TrimSpace(cmd.FirstName) == "" {
		errs = append(errs, "firstName is required")
	}
	if strings.TrimSpace(cmd.LastName) == "" {
		errs = append(errs, "lastName is required")
	}
	if strings.TrimSpace(cmd.Phone) == "" {
		errs = append(errs, "phone is required")
	}
	if cmd.DateOfBirth.IsZero() {
		errs = append(errs, "dateOfBirth is required")
	} else if cmd.DateOfBirth.After(time.Now()) {
		errs = append(errs, patient.ErrInvalidDateOfBirth.Error())
	}
	if cmd.Gender != "" && !cmd.Gender.IsValid() {
		errs = append(errs, patient.ErrInvalidGender.Error())
	}

	return validationError(errs)
}

func validateUpdatePatient(cmd *patient.UpdatePatientCommand) error {
	var errs []string

	if cmd.FirstName != nil && strings.TrimSpace(*cmd.FirstName) == "" {
		errs = append(errs, "firstName cannot be empty")
	}
	if cmd.LastName != nil && strings.TrimSpace(*cmd.LastName) == "" {
		errs = append(errs, "lastName cannot be empty")
	}
	if cmd.Phone != nil && strings.TrimSpace(*cmd.Phone) == "" {
		errs = append(errs, "phone cannot be empty")
	}
	if cmd.DateOfBirth != nil && cmd.DateOfBirth.After(time.Now()) {
		errs = append(errs, patient.ErrInvalidDateOfBirth.Error())
	}
	if cmd.Gender != nil && !cmd.Gender.IsValid() {
		errs = append(errs, patient.ErrInvalidGender.Error())
	}

	return validationError(errs)
}
