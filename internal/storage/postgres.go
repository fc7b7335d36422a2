package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
)

// Postgres is the persistent Store. Each table holds one collection; nested
// values are JSON columns and free-form payloads go through toDocument.
type Postgres struct {
	db  *gorm.DB
	now func() time.Time
}

func NewPostgres(db *gorm.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

func (s *Postgres) stamp() (string, time.Time) {
	return uuid.NewString(), s.now().UTC()
}

// first loads one row or returns (nil, nil) when there is none.
func first[T any](ctx context.Context, db *gorm.DB, op string, query any, args ...any) (*T, error) {
	var out T
	err := db.WithContext(ctx).Where(query, args...).Order("created_at DESC").First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, classify(op, err)
	}
	return &out, nil
}

// list loads every row matching query in the given order.
func list[T any](ctx context.Context, db *gorm.DB, op, order string, limit int, query any, args ...any) ([]*T, error) {
	out := make([]*T, 0)
	q := db.WithContext(ctx).Order(order)
	if query != nil {
		q = q.Where(query, args...)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

// update locks the row, applies fn and saves it. A missing row yields (nil, nil).
func update[T any](ctx context.Context, db *gorm.DB, op string, apply func(*T), query any, args ...any) (*T, error) {
	var out *T
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row T
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where(query, args...).
			Order("created_at DESC").
			First(&row).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		apply(&row)
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		out = &row
		return nil
	})
	if err != nil {
		return nil, classify(op, err)
	}
	return out, nil
}

func create[T any](ctx context.Context, db *gorm.DB, op string, row *T) error {
	return classify(op, db.WithContext(ctx).Create(row).Error)
}

const (
	newest   = "created_at DESC"
	earliest = "scheduled_at ASC, created_at ASC"
)

func (s *Postgres) Ping(ctx context.Context) error {
	var ids []string
	err := s.db.WithContext(ctx).Model(&domain.User{}).Limit(1).Pluck("id", &ids).Error
	return classify("Ping", err)
}

// ── Users ───────────────────────────────────────────────────────────────────

func (s *Postgres) GetUser(ctx context.Context, id string) (*domain.User, error) {
	return first[domain.User](ctx, s.db, "GetUser", "id = ?", id)
}

func (s *Postgres) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	return first[domain.User](ctx, s.db, "GetUserByExternalID", "external_auth_id = ?", externalID)
}

func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	return first[domain.User](ctx, s.db, "GetUserByEmail", "email_lower = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (s *Postgres) CreateUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	row := *u
	row.ID, row.CreatedAt = s.stamp()
	row.Normalize()
	if err := create(ctx, s.db, "CreateUser", &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Postgres) UpdateUser(ctx context.Context, id string, cmd *domain.UpdateUserCommand) (*domain.User, error) {
	return update(ctx, s.db, "UpdateUser", cmd.Apply, "id = ?", id)
}

func (s *Postgres) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return list[domain.User](ctx, s.db, "ListUsers", newest, 0, nil)
}

func (s *Postgres) ListUsersByRole(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	return list[domain.User](ctx, s.db, "ListUsersByRole", newest, 0, "role = ?", role)
}

func (s *Postgres) HasUsers(ctx context.Context) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Limit(1).Count(&count).Error; err != nil {
		return false, classify("HasUsers", err)
	}
	return count > 0, nil
}

// ── Patients ────────────────────────────────────────────────────────────────

func (s *Postgres) GetPatient(ctx context.Context, id string) (*patient.Patient, error) {
	return first[patient.Patient](ctx, s.db, "GetPatient", "id = ?", id)
}

func (s *Postgres) CreatePatient(ctx context.Context, p *patient.Patient) (*patient.Patient, error) {
	row := *p
	row.ID, row.CreatedAt = s.stamp()
	row.Normalize()
	if err := create(ctx, s.db, "CreatePatient", &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Postgres) UpdatePatient(ctx context.Context, id string, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	return update(ctx, s.db, "UpdatePatient", cmd.Apply, "id = ?", id)
}

func (s *Postgres) ListPatients(ctx context.Context, limit int) ([]*patient.Patient, error) {
	return list[patient.Patient](ctx, s.db, "ListPatients", newest, limit, nil)
}

// SearchPatients applies the same rule as patient.Matches in SQL.
func (s *Postgres) SearchPatients(ctx context.Context, query string) ([]*patient.Patient, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []*patient.Patient{}, nil
	}
	lower := strings.ToLower(q)

	cond := s.db.Where("full_name_lower LIKE ?", "%"+escapeLike(lower)+"%").
		Or("phone LIKE ?", "%"+escapeLike(q)+"%")
	if strings.Contains(q, "@") {
		cond = cond.Or("email_lower = ?", lower)
	}
	return list[patient.Patient](ctx, s.db, "SearchPatients", newest, 0, cond)
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// ── Appointments ────────────────────────────────────────────────────────────

func (s *Postgres) GetAppointment(ctx context.Context, id string) (*appointment.Appointment, error) {
	return first[appointment.Appointment](ctx, s.db, "GetAppointment", "id = ?", id)
}

func (s *Postgres) CreateAppointment(ctx context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	row := *a
	row.ID, row.CreatedAt = s.stamp()
	row.Normalize()
	if err := create(ctx, s.db, "CreateAppointment", &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (s *Postgres) UpdateAppointment(ctx context.Context, id string, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	return update(ctx, s.db, "UpdateAppointment", cmd.Apply, "id = ?", id)
}

func (s *Postgres) ListAppointments(ctx context.Context) ([]*appointment.Appointment, error) {
	return list[appointment.Appointment](ctx, s.db, "ListAppointments", newest, 0, nil)
}

func (s *Postgres) ListAppointmentsByDate(ctx context.Context, date string) ([]*appointment.Appointment, error) {
	return list[appointment.Appointment](ctx, s.db, "ListAppointmentsByDate", earliest, 0, "date = ?", date)
}

func (s *Postgres) ListAppointmentsByDoctor(ctx context.Context, doctorID, date string) ([]*appointment.Appointment, error) {
	if date == "" {
		return list[appointment.Appointment](ctx, s.db, "ListAppointmentsByDoctor", earliest, 0, "doctor_id = ?", doctorID)
	}
	return list[appointment.Appointment](ctx, s.db, "ListAppointmentsByDoctor", earliest, 0,
		"doctor_id = ? AND date = ?", doctorID, date)
}

func (s *Postgres) ListAppointmentsByPatient(ctx context.Context, patientID string) ([]*appointment.Appointment, error) {
	return list[appointment.Appointment](ctx, s.db, "ListAppointmentsByPatient", newest, 0, "patient_id = ?", patientID)
}

// ── Encounters ──────────────────────────────────────────────────────────────

func (s *Postgres) GetEncounter(ctx context.Context, id string) (*encounter.Encounter, error) {
	return first[encounter.Encounter](ctx, s.db, "GetEncounter", "id = ?", id)
}

func (s *Postgres) GetEncounterByAppointment(ctx context.Context, appointmentID string) (*encounter.Encounter, error) {
	return first[encounter.Encounter](ctx, s.db, "GetEncounterByAppointment", "appointment_id = ?", appointmentID)
}

func (s *Postgres) CreateEncounter(ctx context.Context, e *encounter.Encounter) (*encounter.Encounter, error) {
	row := e.Clone()
	row.ID, row.CreatedAt = s.stamp()
	if err := create(ctx, s.db, "CreateEncounter", row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Postgres) UpdateEncounter(ctx context.Context, id string, cmd *encounter.UpdateEncounterCommand) (*encounter.Encounter, error) {
	return update(ctx, s.db, "UpdateEncounter", cmd.Apply, "id = ?", id)
}

func (s *Postgres) ListEncountersByPatient(ctx context.Context, patientID string) ([]*encounter.Encounter, error) {
	return list[encounter.Encounter](ctx, s.db, "ListEncountersByPatient", newest, 0, "patient_id = ?", patientID)
}

// ── Prescriptions ───────────────────────────────────────────────────────────

func (s *Postgres) GetPrescription(ctx context.Context, id string) (*prescription.Prescription, error) {
	return first[prescription.Prescription](ctx, s.db, "GetPrescription", "id = ?", id)
}

func (s *Postgres) CreatePrescription(ctx context.Context, p *prescription.Prescription) (*prescription.Prescription, error) {
	row := p.Clone()
	row.ID, row.CreatedAt = s.stamp()
	if err := create(ctx, s.db, "CreatePrescription", row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Postgres) UpdatePrescription(ctx context.Context, id string, cmd *prescription.UpdatePrescriptionCommand) (*prescription.Prescription, error) {
	return update(ctx, s.db, "UpdatePrescription", cmd.Apply, "id = ?", id)
}

func (s *Postgres) ListPrescriptionsByPatient(ctx context.Context, patientID string) ([]*prescription.Prescription, error) {
	return list[prescription.Prescription](ctx, s.db, "ListPrescriptionsByPatient", newest, 0, "patient_id = ?", patientID)
}

func (s *Postgres) ListPrescriptionsByEncounter(ctx context.Context, encounterID string) ([]*prescription.Prescription, error) {
	return list[prescription.Prescription](ctx, s.db, "ListPrescriptionsByEncounter", newest, 0, "encounter_id = ?", encounterID)
}

// ── Audit logs ──────────────────────────────────────────────────────────────

func decodeAuditLogs(rows []*domain.AuditLog) []*domain.AuditLog {
	for _, r := range rows {
		r.Changes = fromDocument(r.Changes)
	}
	return rows
}

func (s *Postgres) CreateAuditLog(ctx context.Context, entry *domain.AuditLog) (*domain.AuditLog, error) {
	row := *entry
	row.ID, row.CreatedAt = s.stamp()
	row.Changes = toDocument(entry.Changes)
	if err := create(ctx, s.db, "CreateAuditLog", &row); err != nil {
		return nil, err
	}
	row.Changes = copyDocument(entry.Changes)
	return &row, nil
}

func (s *Postgres) ListAuditLogs(ctx context.Context, limit int) ([]*domain.AuditLog, error) {
	rows, err := list[domain.AuditLog](ctx, s.db, "ListAuditLogs", newest, limit, nil)
	if err != nil {
		return nil, err
	}
	return decodeAuditLogs(rows), nil
}

func (s *Postgres) ListAuditLogsForEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	rows, err := list[domain.AuditLog](ctx, s.db, "ListAuditLogsForEntity", newest, 0,
		"entity_type = ? AND entity_id = ?", entityType, entityID)
	if err != nil {
		return nil, err
	}
	return decodeAuditLogs(rows), nil
}

// ── Photo uploads ───────────────────────────────────────────────────────────

func decodePhoto(u *photo.PhotoUpload) *photo.PhotoUpload {
	if u != nil {
		u.Metadata = fromDocument(u.Metadata)
	}
	return u
}

func (s *Postgres) TrackPhotoUpload(ctx context.Context, u *photo.PhotoUpload) (*photo.PhotoUpload, error) {
	row := *u
	row.ID, row.CreatedAt = s.stamp()
	if row.UploadedAt.IsZero() {
		row.UploadedAt = row.CreatedAt
	}
	if row.Status == "" {
		row.Status = photo.StatusUploaded
	}
	row.Metadata = toDocument(u.Metadata)
	if err := create(ctx, s.db, "TrackPhotoUpload", &row); err != nil {
		return nil, err
	}
	row.Metadata = copyDocument(u.Metadata)
	return &row, nil
}

func (s *Postgres) GetPhotoUpload(ctx context.Context, id string) (*photo.PhotoUpload, error) {
	u, err := first[photo.PhotoUpload](ctx, s.db, "GetPhotoUpload", "id = ?", id)
	return decodePhoto(u), err
}

func (s *Postgres) FindPendingPhotoUpload(ctx context.Context, patientID string) (*photo.PhotoUpload, error) {
	u, err := first[photo.PhotoUpload](ctx, s.db, "FindPendingPhotoUpload",
		"patient_id = ? AND status = ?", patientID, photo.StatusUploaded)
	return decodePhoto(u), err
}

func (s *Postgres) UpdatePhotoUploadByTempPath(ctx context.Context, tempPath string, cmd *photo.UpdateCommand) (*photo.PhotoUpload, error) {
	u, err := update(ctx, s.db, "UpdatePhotoUploadByTempPath", func(u *photo.PhotoUpload) {
		u.Metadata = fromDocument(u.Metadata)
		cmd.Apply(u)
		u.Metadata = toDocument(u.Metadata)
	}, "temp_path = ?", tempPath)
	return decodePhoto(u), err
}

func (s *Postgres) CleanupPhotoUpload(ctx context.Context, id, by string) (*photo.PhotoUpload, error) {
	now := s.now().UTC()
	u, err := update(ctx, s.db, "CleanupPhotoUpload", func(u *photo.PhotoUpload) {
		u.Status = photo.StatusCleanedUp
		u.CleanedUpBy = by
		u.CleanedUpAt = &now
	}, "id = ?", id)
	return decodePhoto(u), err
}

func (s *Postgres) ListPhotoUploadsForPatient(ctx context.Context, patientID string) ([]*photo.PhotoUpload, error) {
	rows, err := list[photo.PhotoUpload](ctx, s.db, "ListPhotoUploadsForPatient", newest, 0, "patient_id = ?", patientID)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		decodePhoto(r)
	}
	return rows, nil
}

func (s *Postgres) CleanupStalePhotoUploads(ctx context.Context, olderThan time.Time, by string) (int, error) {
	now := s.now().UTC()
	res := s.db.WithContext(ctx).Model(&photo.PhotoUpload{}).
		Where("status = ? AND uploaded_at < ?", photo.StatusUploaded, olderThan).
		Updates(map[string]any{
			"status":        photo.StatusCleanedUp,
			"cleaned_up_by": by,
			"cleaned_up_at": now,
		})
	if res.Error != nil {
		return 0, classify("CleanupStalePhotoUploads", res.Error)
	}
	return int(res.RowsAffected), nil
}
