package storage

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
)

func strPtr(s string) *string { return &s }

func seedPatient(t *testing.T, s Store, first, last, phone, email string) *patient.Patient {
	t.Helper()
	p, err := s.CreatePatient(context.Background(), &patient.Patient{
		FirstName: first,
		LastName:  last,
		Phone:     phone,
		Email:     email,
	})
	if err != nil {
		t.Fatalf("seeding patient %s %s: %v", first, last, err)
	}
	return p
}

func TestMemory_CreatePatientDenormalizes(t *testing.T) {
	s := NewMemory()
	p := seedPatient(t, s, "Jane", "Doe", "+15550001", "Jane@Example.com")

	if p.ID == "" || p.CreatedAt.IsZero() {
		t.Fatalf("expected id and createdAt to be set, got %+v", p)
	}
	if p.FullName != "Jane Doe" || p.FullNameLower != "jane doe" {
		t.Errorf("unexpected name fields %q / %q", p.FullName, p.FullNameLower)
	}
	if p.EmailLower != "jane@example.com" {
		t.Errorf("unexpected email mirror %q", p.EmailLower)
	}

	got, err := s.UpdatePatient(context.Background(), p.ID, &patient.UpdatePatientCommand{LastName: strPtr("Smith")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.FullName != "Jane Smith" || got.FullNameLower != "jane smith" {
		t.Errorf("expected name recomputed after update, got %q / %q", got.FullName, got.FullNameLower)
	}
}

func TestMemory_AbsentIsNotAnError(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	p, err := s.GetPatient(ctx, "missing")
	if err != nil || p != nil {
		t.Errorf("GetPatient(missing) = %v, %v; want nil, nil", p, err)
	}
	u, err := s.UpdatePatient(ctx, "missing", &patient.UpdatePatientCommand{FirstName: strPtr("x")})
	if err != nil || u != nil {
		t.Errorf("UpdatePatient(missing) = %v, %v; want nil, nil", u, err)
	}
	c, err := s.CleanupPhotoUpload(ctx, "missing", "admin")
	if err != nil || c != nil {
		t.Errorf("CleanupPhotoUpload(missing) = %v, %v; want nil, nil", c, err)
	}
}

func TestMemory_ReturnsCopies(t *testing.T) {
	s := NewMemory()
	p := seedPatient(t, s, "Jane", "Doe", "+1555", "")
	p.FirstName = "Mutated"

	got, _ := s.GetPatient(context.Background(), p.ID)
	if got.FirstName != "Jane" {
		t.Errorf("store state leaked through returned pointer: %q", got.FirstName)
	}
}

func TestMemory_SearchPatients(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	mary := seedPatient(t, s, "Mary", "Jane", "+1234567890", "mj@clinic.io")
	john := seedPatient(t, s, "John", "Smith", "+1999000111", "john@clinic.io")

	tests := []struct {
		q    string
		want []string
	}{
		{"mary", []string{mary.ID}},
		{"  JANE ", []string{mary.ID}},
		{"+1999", []string{john.ID}},
		{"JOHN@clinic.io", []string{john.ID}},
		{"clinic.io", nil},
		{"", nil},
		{"   ", nil},
	}

	for _, tt := range tests {
		got, err := s.SearchPatients(ctx, tt.q)
		if err != nil {
			t.Fatalf("search %q: %v", tt.q, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("search %q returned %d results, want %d", tt.q, len(got), len(tt.want))
			continue
		}
		for i := range got {
			if got[i].ID != tt.want[i] {
				t.Errorf("search %q result %d = %s, want %s", tt.q, i, got[i].ID, tt.want[i])
			}
		}
	}
}

func TestMemory_SearchMatchesPrefixOfAnyStoredName(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	names := [][2]string{{"Ana", "Lopez"}, {"Anand", "Kumar"}, {"Zoe", "Anders"}}
	for _, n := range names {
		seedPatient(t, s, n[0], n[1], "", "")
	}

	for _, n := range names {
		full := n[0] + " " + n[1]
		for i := 1; i <= len(full); i++ {
			prefix := strings.TrimSpace(full[:i])
			if prefix == "" {
				continue
			}
			got, err := s.SearchPatients(ctx, prefix)
			if err != nil {
				t.Fatalf("search %q: %v", prefix, err)
			}
			found := false
			for _, p := range got {
				if p.FullName == full {
					found = true
				}
			}
			if !found {
				t.Errorf("prefix %q did not find %q", prefix, full)
			}
		}
	}
}

func TestMemory_AuditLogsNewestFirst(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	for _, id := range []string{"A", "B", "C"} {
		if _, err := s.CreateAuditLog(ctx, &domain.AuditLog{
			UserID: "u1", Action: domain.ActionCreate, EntityType: "patient", EntityID: id,
		}); err != nil {
			t.Fatalf("create audit log: %v", err)
		}
	}

	logs, err := s.ListAuditLogs(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var order []string
	for _, l := range logs {
		order = append(order, l.EntityID)
	}
	if strings.Join(order, ",") != "C,B,A" {
		t.Errorf("expected C,B,A, got %v", order)
	}

	limited, _ := s.ListAuditLogs(ctx, 2)
	if len(limited) != 2 || limited[0].EntityID != "C" {
		t.Errorf("expected limit to keep newest two, got %d entries", len(limited))
	}

	forB, _ := s.ListAuditLogsForEntity(ctx, "patient", "B")
	if len(forB) != 1 {
		t.Errorf("expected one entry for B, got %d", len(forB))
	}
}

func TestMemory_AppointmentOrdering(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	late, _ := s.CreateAppointment(ctx, &appointment.Appointment{PatientID: "p1", DoctorID: "d1", ScheduledAt: day.Add(15 * time.Hour), Type: appointment.TypeCheckup})
	early, _ := s.CreateAppointment(ctx, &appointment.Appointment{PatientID: "p2", DoctorID: "d1", ScheduledAt: day.Add(9 * time.Hour), Type: appointment.TypeCleaning})
	other, _ := s.CreateAppointment(ctx, &appointment.Appointment{PatientID: "p1", DoctorID: "d2", ScheduledAt: day.AddDate(0, 0, 1), Type: appointment.TypeFilling})

	if early.Date != "2026-05-04" || early.Status != appointment.StatusScheduled || early.DurationMins != 30 {
		t.Fatalf("expected derived defaults, got %+v", early)
	}

	byDate, _ := s.ListAppointmentsByDate(ctx, "2026-05-04")
	if len(byDate) != 2 || byDate[0].ID != early.ID || byDate[1].ID != late.ID {
		t.Errorf("expected date queue earliest first")
	}

	byDoctor, _ := s.ListAppointmentsByDoctor(ctx, "d1", "")
	if len(byDoctor) != 2 || byDoctor[0].ID != early.ID {
		t.Errorf("expected doctor queue earliest first")
	}

	byDoctorDay, _ := s.ListAppointmentsByDoctor(ctx, "d2", "2026-05-04")
	if len(byDoctorDay) != 0 {
		t.Errorf("expected no d2 appointments on 2026-05-04, got %d", len(byDoctorDay))
	}

	byPatient, _ := s.ListAppointmentsByPatient(ctx, "p1")
	if len(byPatient) != 2 || byPatient[0].ID != other.ID {
		t.Errorf("expected patient list newest first")
	}
}

func TestMemory_PhotoUploadLifecycle(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()
	now := time.Now().UTC()

	old, _ := s.TrackPhotoUpload(ctx, &photo.PhotoUpload{PatientID: "temp-1", TempPath: "a/old.jpg", UploadedAt: now.Add(-48 * time.Hour)})
	fresh, _ := s.TrackPhotoUpload(ctx, &photo.PhotoUpload{PatientID: "temp-1", TempPath: "a/new.jpg"})

	if fresh.Status != photo.StatusUploaded || fresh.UploadedAt.IsZero() {
		t.Fatalf("expected defaults on track, got %+v", fresh)
	}

	pending, _ := s.FindPendingPhotoUpload(ctx, "temp-1")
	if pending == nil || pending.ID != fresh.ID {
		t.Fatalf("expected newest pending upload, got %+v", pending)
	}

	n, err := s.CleanupStalePhotoUploads(ctx, now.Add(-24*time.Hour), "janitor")
	if err != nil || n != 1 {
		t.Fatalf("CleanupStalePhotoUploads = %d, %v; want 1, nil", n, err)
	}
	got, _ := s.GetPhotoUpload(ctx, old.ID)
	if got.Status != photo.StatusCleanedUp || got.CleanedUpBy != "janitor" || got.CleanedUpAt == nil {
		t.Errorf("expected old upload cleaned up, got %+v", got)
	}

	confirmed := photo.StatusConfirmed
	updated, _ := s.UpdatePhotoUploadByTempPath(ctx, "a/new.jpg", &photo.UpdateCommand{Status: &confirmed})
	if updated == nil || updated.Status != photo.StatusConfirmed {
		t.Errorf("expected update by temp path to confirm, got %+v", updated)
	}

	pending, _ = s.FindPendingPhotoUpload(ctx, "temp-1")
	if pending != nil {
		t.Errorf("expected no pending uploads left, got %+v", pending)
	}
}

func TestMemory_UsersAndHasUsers(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	has, _ := s.HasUsers(ctx)
	if has {
		t.Fatal("expected empty store")
	}

	u, _ := s.CreateUser(ctx, &domain.User{ExternalAuthID: "ext-1", Email: "Doc@Clinic.io", Name: "Doc", Role: domain.RoleDoctor})
	if u.EmailLower != "doc@clinic.io" {
		t.Errorf("expected email mirror, got %q", u.EmailLower)
	}

	byEmail, _ := s.GetUserByEmail(ctx, "DOC@clinic.io")
	if byEmail == nil || byEmail.ID != u.ID {
		t.Errorf("expected lookup by email to be case-insensitive")
	}
	byExt, _ := s.GetUserByExternalID(ctx, "ext-1")
	if byExt == nil || byExt.ID != u.ID {
		t.Errorf("expected lookup by external id")
	}
	doctors, _ := s.ListUsersByRole(ctx, domain.RoleDoctor)
	if len(doctors) != 1 {
		t.Errorf("expected one doctor, got %d", len(doctors))
	}

	has, _ = s.HasUsers(ctx)
	if !has {
		t.Error("expected HasUsers after create")
	}
}
