package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/config"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/storage"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/auth"
)

type clinicFixture struct {
	store        *storage.Memory
	audit        *AuditService
	users        *UserService
	appointments *AppointmentService
	clinical     *ClinicalService
	doctor       *domain.User
	patient      *patient.Patient
}

func newClinicFixture(t *testing.T) *clinicFixture {
	t.Helper()
	ctx := context.Background()
	log := zaptest.NewLogger(t)
	store := storage.NewMemory()

	audit := NewAuditService(store, log, nil)
	t.Cleanup(func() { audit.Shutdown(time.Second) })

	doctor, err := store.CreateUser(ctx, &domain.User{
		ExternalAuthID: "ext-doc", Email: "doc@clinic.test", Name: "Dr. Rao", Role: domain.RoleDoctor, IsActive: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	p, err := store.CreatePatient(ctx, newPatientCommand("").ToPatient())
	if err != nil {
		t.Fatal(err)
	}

	return &clinicFixture{
		store:        store,
		audit:        audit,
		users:        NewUserService(store, audit, log),
		appointments: NewAppointmentService(store, store, store, audit, log, nil),
		clinical:     NewClinicalService(store, store, store, audit, log, nil),
		doctor:       doctor,
		patient:      p,
	}
}

func (f *clinicFixture) schedule(t *testing.T) *appointment.Appointment {
	t.Helper()
	a, err := f.appointments.ScheduleAppointment(context.Background(), &appointment.CreateAppointmentCommand{
		PatientID:   f.patient.ID,
		DoctorID:    f.doctor.ID,
		ScheduledAt: time.Now().Add(24 * time.Hour),
		Type:        appointment.TypeCheckup,
	}, SystemCaller)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	return a
}

func TestAppointmentService_Schedule(t *testing.T) {
	f := newClinicFixture(t)
	a := f.schedule(t)

	if a.Status != appointment.StatusScheduled || a.DurationMins != appointment.DefaultDurationMins {
		t.Errorf("unexpected defaults %+v", a)
	}
	if a.Date != a.ScheduledAt.UTC().Format(appointment.DateLayout) {
		t.Errorf("date %q not derived from scheduledAt", a.Date)
	}

	ctx := context.Background()
	tests := []struct {
		name string
		cmd  appointment.CreateAppointmentCommand
		want error
	}{
		{"past", appointment.CreateAppointmentCommand{PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledAt: time.Now().Add(-time.Hour), Type: appointment.TypeCheckup}, appointment.ErrScheduledInPast},
		{"duration", appointment.CreateAppointmentCommand{PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledAt: time.Now().Add(time.Hour), DurationMins: 2, Type: appointment.TypeCheckup}, appointment.ErrInvalidDuration},
		{"type", appointment.CreateAppointmentCommand{PatientID: f.patient.ID, DoctorID: f.doctor.ID, ScheduledAt: time.Now().Add(time.Hour), Type: "massage"}, appointment.ErrInvalidAppointmentType},
		{"patient", appointment.CreateAppointmentCommand{PatientID: "missing", DoctorID: f.doctor.ID, ScheduledAt: time.Now().Add(time.Hour), Type: appointment.TypeCheckup}, patient.ErrPatientNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.appointments.ScheduleAppointment(ctx, &tt.cmd, SystemCaller); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}

	_, err := f.appointments.ScheduleAppointment(ctx, &appointment.CreateAppointmentCommand{
		PatientID: f.patient.ID, DoctorID: f.patient.ID, ScheduledAt: time.Now().Add(time.Hour), Type: appointment.TypeCheckup,
	}, SystemCaller)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("non-doctor should fail validation, got %v", err)
	}
}

func TestAppointmentService_StatusTransitions(t *testing.T) {
	f := newClinicFixture(t)
	ctx := context.Background()
	a := f.schedule(t)

	completed := appointment.StatusCompleted
	if _, err := f.appointments.UpdateAppointment(ctx, a.ID, &appointment.UpdateAppointmentCommand{Status: &completed}, SystemCaller); !errors.Is(err, appointment.ErrInvalidStatusTransition) {
		t.Fatalf("scheduled -> completed should be rejected, got %v", err)
	}

	for _, next := range []appointment.AppointmentStatus{appointment.StatusConfirmed, appointment.StatusInProgress, appointment.StatusCompleted} {
		s := next
		got, err := f.appointments.UpdateAppointment(ctx, a.ID, &appointment.UpdateAppointmentCommand{Status: &s}, SystemCaller)
		if err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
		if got.Status != next {
			t.Fatalf("status = %s, want %s", got.Status, next)
		}
	}

	if _, err := f.appointments.UpdateAppointment(ctx, "missing", &appointment.UpdateAppointmentCommand{}, SystemCaller); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestAppointmentService_ListFilters(t *testing.T) {
	f := newClinicFixture(t)
	ctx := context.Background()
	a := f.schedule(t)

	byDate, err := f.appointments.ListAppointments(ctx, AppointmentFilter{Date: a.Date})
	if err != nil || len(byDate) != 1 {
		t.Fatalf("by date = %v, %v", byDate, err)
	}
	byDoctor, _ := f.appointments.ListAppointments(ctx, AppointmentFilter{DoctorID: f.doctor.ID})
	byPatient, _ := f.appointments.ListAppointments(ctx, AppointmentFilter{PatientID: f.patient.ID})
	if len(byDoctor) != 1 || len(byPatient) != 1 {
		t.Errorf("doctor=%d patient=%d, want 1 and 1", len(byDoctor), len(byPatient))
	}
	onDay, _ := f.appointments.ListAppointments(ctx, AppointmentFilter{PatientID: f.patient.ID, Date: a.Date})
	otherDay, _ := f.appointments.ListAppointments(ctx, AppointmentFilter{PatientID: f.patient.ID, Date: "1999-01-01"})
	if len(onDay) != 1 || len(otherDay) != 0 {
		t.Errorf("patient+date filter: same day=%d other day=%d, want 1 and 0", len(onDay), len(otherDay))
	}
	otherDoctor, _ := f.appointments.ListAppointments(ctx, AppointmentFilter{PatientID: f.patient.ID, DoctorID: "someone-else"})
	if len(otherDoctor) != 0 {
		t.Errorf("patient+doctor filter should exclude other doctors, got %d", len(otherDoctor))
	}
	if _, err := f.appointments.ListAppointments(ctx, AppointmentFilter{Date: "17/05/2026"}); !errors.Is(err, appointment.ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestClinicalService_EncounterIsOnePerAppointment(t *testing.T) {
	f := newClinicFixture(t)
	ctx := context.Background()
	a := f.schedule(t)

	e, err := f.clinical.CreateEncounter(ctx, &encounter.CreateEncounterCommand{AppointmentID: a.ID, Diagnosis: "caries"}, SystemCaller)
	if err != nil {
		t.Fatalf("create encounter: %v", err)
	}
	if e.PatientID != f.patient.ID || e.DoctorID != f.doctor.ID {
		t.Errorf("participants not copied from appointment: %+v", e)
	}

	if _, err := f.clinical.CreateEncounter(ctx, &encounter.CreateEncounterCommand{AppointmentID: a.ID}, SystemCaller); !errors.Is(err, encounter.ErrEncounterExists) {
		t.Errorf("second encounter should be rejected, got %v", err)
	}
	if _, err := f.clinical.CreateEncounter(ctx, &encounter.CreateEncounterCommand{AppointmentID: "missing"}, SystemCaller); !errors.Is(err, appointment.ErrAppointmentNotFound) {
		t.Errorf("expected appointment not found, got %v", err)
	}
}

func TestClinicalService_PrescriptionLifecycle(t *testing.T) {
	f := newClinicFixture(t)
	ctx := context.Background()
	a := f.schedule(t)
	e, err := f.clinical.CreateEncounter(ctx, &encounter.CreateEncounterCommand{AppointmentID: a.ID}, SystemCaller)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.clinical.IssuePrescription(ctx, &prescription.CreatePrescriptionCommand{EncounterID: e.ID}, SystemCaller); !errors.Is(err, prescription.ErrNoMedications) {
		t.Fatalf("expected ErrNoMedications, got %v", err)
	}

	rx, err := f.clinical.IssuePrescription(ctx, &prescription.CreatePrescriptionCommand{
		EncounterID: e.ID,
		Medications: []prescription.Medication{{Name: "Amoxicillin", Dosage: "500mg", Frequency: "thrice daily", Duration: "5 days"}},
	}, SystemCaller)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if rx.PatientID != f.patient.ID || rx.EmailSent || rx.WhatsAppSent {
		t.Errorf("unexpected prescription %+v", rx)
	}

	rx, err = f.clinical.MarkSent(ctx, rx.ID, prescription.ChannelWhatsApp, SystemCaller)
	if err != nil {
		t.Fatal(err)
	}
	if !rx.WhatsAppSent || rx.EmailSent {
		t.Errorf("only whatsapp should be flagged: %+v", rx)
	}
	if _, err := f.clinical.MarkSent(ctx, rx.ID, "fax", SystemCaller); !errors.Is(err, prescription.ErrInvalidChannel) {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}

	list, _ := f.clinical.ListPrescriptions(ctx, PrescriptionFilter{EncounterID: e.ID})
	if len(list) != 1 {
		t.Errorf("expected one prescription for the encounter, got %d", len(list))
	}
}

func TestUserService_Uniqueness(t *testing.T) {
	f := newClinicFixture(t)
	ctx := context.Background()

	u, err := f.users.CreateUser(ctx, &CreateUserCommand{ExternalAuthID: "ext-nurse", Email: "Nurse@Clinic.test", Name: "Meena", Role: domain.RoleNurse}, SystemCaller)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !u.IsActive || u.EmailLower != "nurse@clinic.test" {
		t.Errorf("unexpected user %+v", u)
	}

	dupes := []CreateUserCommand{
		{ExternalAuthID: "ext-nurse", Email: "other@clinic.test", Name: "X", Role: domain.RoleNurse},
		{ExternalAuthID: "ext-other", Email: "nurse@clinic.test", Name: "X", Role: domain.RoleNurse},
	}
	for _, cmd := range dupes {
		if _, err := f.users.CreateUser(ctx, &cmd, SystemCaller); !errors.Is(err, ErrUserExists) {
			t.Errorf("expected ErrUserExists for %+v, got %v", cmd, err)
		}
	}

	_, err = f.users.CreateUser(ctx, &CreateUserCommand{ExternalAuthID: "x", Email: "x@clinic.test", Name: "X", Role: "superuser"}, SystemCaller)
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("unknown role should fail validation, got %v", err)
	}

	for _, email := range []string{"", "not-an-email", "Nurse <nurse2@clinic.test>"} {
		_, err := f.users.CreateUser(ctx, &CreateUserCommand{ExternalAuthID: "ext-" + email, Email: email, Name: "X", Role: domain.RoleNurse}, SystemCaller)
		if !errors.As(err, &ve) {
			t.Errorf("email %q should fail validation, got %v", email, err)
		}
	}

	bad := "nurse@"
	if _, err := f.users.UpdateUser(ctx, u.ID, &domain.UpdateUserCommand{Email: &bad}, SystemCaller); !errors.As(err, &ve) {
		t.Errorf("update with invalid email should fail validation, got %v", err)
	}
}

func TestAuthService_IssueAndRefresh(t *testing.T) {
	f := newClinicFixture(t)
	ctx := context.Background()
	jwtm := auth.NewJWTManager(config.JWTConfig{
		Secret: "0123456789abcdef0123456789abcdef", AccessTokenTTL: time.Minute, RefreshTokenTTL: time.Hour, Issuer: "test",
	})
	svc := NewAuthService(f.store, jwtm, zaptest.NewLogger(t))

	for _, id := range []string{f.doctor.ID, "ext-doc", "DOC@clinic.test"} {
		pair, err := svc.IssueToken(ctx, id)
		if err != nil {
			t.Fatalf("issue for %q: %v", id, err)
		}
		claims, err := jwtm.ValidateAccessToken(pair.AccessToken)
		if err != nil || claims.UserID != f.doctor.ID || claims.Role != domain.RoleDoctor {
			t.Fatalf("claims for %q = %+v, %v", id, claims, err)
		}
	}

	pair, _ := svc.IssueToken(ctx, f.doctor.ID)
	if _, err := svc.RefreshToken(ctx, pair.RefreshToken); err != nil {
		t.Errorf("refresh: %v", err)
	}

	inactive := false
	if _, err := f.store.UpdateUser(ctx, f.doctor.ID, &domain.UpdateUserCommand{IsActive: &inactive}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.RefreshToken(ctx, pair.RefreshToken); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("refresh for inactive user = %v", err)
	}
	if _, err := svc.IssueToken(ctx, f.doctor.ID); !errors.Is(err, ErrAccountInactive) {
		t.Errorf("issue for inactive user = %v", err)
	}
	if _, err := svc.IssueToken(ctx, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("issue for unknown user = %v", err)
	}
}

func TestAuditService_AsyncFlushOnShutdown(t *testing.T) {
	store := storage.NewMemory()
	audit := NewAuditService(store, zaptest.NewLogger(t), nil)

	for _, id := range []string{"A", "B", "C"} {
		audit.LogAsync(context.Background(), AuditEntry{Action: domain.ActionCreate, EntityType: "patient", EntityID: id})
	}
	audit.Shutdown(time.Second)

	logs, err := audit.List(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(logs))
	}
	if logs[0].EntityID != "C" || logs[2].EntityID != "A" || logs[0].UserID != "system" {
		t.Errorf("expected newest first [C B A] by system, got %s %s %s", logs[0].EntityID, logs[1].EntityID, logs[2].EntityID)
	}

	// After shutdown entries are dropped, not panicked on.
	audit.LogAsync(context.Background(), AuditEntry{Action: domain.ActionCreate, EntityType: "patient", EntityID: "D"})
	audit.Shutdown(time.Second)
}
