package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
)

// ClinicalService owns encounters and the prescriptions issued from them.
type ClinicalService struct {
	encounters    encounter.Repository
	prescriptions prescription.Repository
	appointments  appointment.Repository
	auditSvc      *AuditService
	log           *zap.Logger
	obs           Observer
}

func NewClinicalService(
	encounters encounter.Repository,
	prescriptions prescription.Repository,
	appointments appointment.Repository,
	auditSvc *AuditService,
	log *zap.Logger,
	obs Observer,
) *ClinicalService {
	return &ClinicalService{
		encounters:    encounters,
		prescriptions: prescriptions,
		appointments:  appointments,
		auditSvc:      auditSvc,
		log:           log,
		obs:           observerOrNop(obs),
	}
}

// CreateEncounter opens the clinical record of an appointment. Patient and
// doctor default to the appointment's.
func (s *ClinicalService) CreateEncounter(ctx context.Context, cmd *encounter.CreateEncounterCommand, caller Caller) (*encounter.Encounter, error) {
	if strings.TrimSpace(cmd.AppointmentID) == "" {
		return nil, &ValidationError{Fields: []string{"appointmentId is required"}}
	}

	a, err := s.appointments.GetAppointment(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("loading appointment: %w", err)
	}
	if a == nil {
		return nil, appointment.ErrAppointmentNotFound
	}

	existing, err := s.encounters.GetEncounterByAppointment(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, fmt.Errorf("checking existing encounter: %w", err)
	}
	if existing != nil {
		return nil, encounter.ErrEncounterExists
	}

	if cmd.PatientID == "" {
		cmd.PatientID = a.PatientID
	}
	if cmd.DoctorID == "" {
		cmd.DoctorID = a.DoctorID
	}
	if cmd.PatientID != a.PatientID {
		return nil, &ValidationError{Fields: []string{"patientId does not match the appointment"}}
	}

	e, err := s.encounters.CreateEncounter(ctx, cmd.ToEncounter())
	if err != nil {
		s.log.Error("failed to create encounter", zap.String("appointment_id", cmd.AppointmentID), zap.Error(err))
		return nil, fmt.Errorf("creating encounter: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionCreate,
		EntityType: "encounter",
		EntityID:   e.ID,
		Changes:    map[string]any{"appointmentId": e.AppointmentID},
	})

	return e, nil
}

func (s *ClinicalService) GetEncounter(ctx context.Context, id string) (*encounter.Encounter, error) {
	e, err := s.encounters.GetEncounter(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading encounter: %w", err)
	}
	if e == nil {
		return nil, encounter.ErrEncounterNotFound
	}
	return e, nil
}

func (s *ClinicalService) GetEncounterByAppointment(ctx context.Context, appointmentID string) (*encounter.Encounter, error) {
	e, err := s.encounters.GetEncounterByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("loading encounter: %w", err)
	}
	if e == nil {
		return nil, encounter.ErrEncounterNotFound
	}
	return e, nil
}

func (s *ClinicalService) UpdateEncounter(ctx context.Context, id string, cmd *encounter.UpdateEncounterCommand, caller Caller) (*encounter.Encounter, error) {
	e, err := s.encounters.UpdateEncounter(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("updating encounter: %w", err)
	}
	if e == nil {
		return nil, encounter.ErrEncounterNotFound
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionUpdate,
		EntityType: "encounter",
		EntityID:   id,
	})

	return e, nil
}

func (s *ClinicalService) ListEncountersByPatient(ctx context.Context, patientID string) ([]*encounter.Encounter, error) {
	if patientID == "" {
		return nil, &ValidationError{Fields: []string{"patientId is required"}}
	}
	return s.encounters.ListEncountersByPatient(ctx, patientID)
}

func (s *ClinicalService) IssuePrescription(ctx context.Context, cmd *prescription.CreatePrescriptionCommand, caller Caller) (*prescription.Prescription, error) {
	if len(cmd.Medications) == 0 {
		return nil, prescription.ErrNoMedications
	}
	if err := validateMedications(cmd.Medications); err != nil {
		return nil, err
	}

	e, err := s.GetEncounter(ctx, cmd.EncounterID)
	if err != nil {
		return nil, err
	}
	if cmd.PatientID == "" {
		cmd.PatientID = e.PatientID
	}
	if cmd.DoctorID == "" {
		cmd.DoctorID = e.DoctorID
	}

	p, err := s.prescriptions.CreatePrescription(ctx, cmd.ToPrescription())
	if err != nil {
		s.log.Error("failed to create prescription", zap.String("encounter_id", cmd.EncounterID), zap.Error(err))
		return nil, fmt.Errorf("creating prescription: %w", err)
	}
	s.obs.PrescriptionIssued()

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionCreate,
		EntityType: "prescription",
		EntityID:   p.ID,
		Changes:    map[string]any{"encounterId": p.EncounterID, "medications": len(p.Medications)},
	})

	return p, nil
}

func (s *ClinicalService) GetPrescription(ctx context.Context, id string) (*prescription.Prescription, error) {
	p, err := s.prescriptions.GetPrescription(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading prescription: %w", err)
	}
	if p == nil {
		return nil, prescription.ErrPrescriptionNotFound
	}
	return p, nil
}

func (s *ClinicalService) UpdatePrescription(ctx context.Context, id string, cmd *prescription.UpdatePrescriptionCommand, caller Caller) (*prescription.Prescription, error) {
	if cmd.Medications != nil {
		if len(cmd.Medications) == 0 {
			return nil, prescription.ErrNoMedications
		}
		if err := validateMedications(cmd.Medications); err != nil {
			return nil, err
		}
	}

	p, err := s.prescriptions.UpdatePrescription(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("updating prescription: %w", err)
	}
	if p == nil {
		return nil, prescription.ErrPrescriptionNotFound
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionUpdate,
		EntityType: "prescription",
		EntityID:   id,
	})

	return p, nil
}

// MarkSent records that the prescription document went out over ch.
func (s *ClinicalService) MarkSent(ctx context.Context, id string, ch prescription.Channel, caller Caller) (*prescription.Prescription, error) {
	cmd, err := prescription.MarkSentCommand(ch)
	if err != nil {
		return nil, err
	}

	p, err := s.prescriptions.UpdatePrescription(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("marking prescription sent: %w", err)
	}
	if p == nil {
		return nil, prescription.ErrPrescriptionNotFound
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionUpdate,
		EntityType: "prescription",
		EntityID:   id,
		Changes:    map[string]any{"sent": string(ch)},
	})

	return p, nil
}

type PrescriptionFilter struct {
	PatientID   string
	EncounterID string
}

func (s *ClinicalService) ListPrescriptions(ctx context.Context, f PrescriptionFilter) ([]*prescription.Prescription, error) {
	switch {
	case f.EncounterID != "":
		return s.prescriptions.ListPrescriptionsByEncounter(ctx, f.EncounterID)
	case f.PatientID != "":
		return s.prescriptions.ListPrescriptionsByPatient(ctx, f.PatientID)
	}
	return nil, &ValidationError{Fields: []string{"patientId or encounterId is required"}}
}

func validateMedications(meds []prescription.Medication) error {
	var errs []string
	for i, m := range meds {
		if strings.TrimSpace(m.Name) == "" {
			errs = append(errs, fmt.Sprintf("medications[%d].name is required", i))
		}
		if strings.TrimSpace(m.Dosage) == "" {
			errs = append(errs, fmt.Sprintf("medications[%d].dosage is required", i))
		}
	}
	return validationError(errs)
}
