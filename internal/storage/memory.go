package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/encounter"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/photo"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain/prescription"
)

// Memory is a volatile Store. Entities are copied on the way in and out so
// callers never share state with the maps.
type Memory struct {
	mu  sync.RWMutex
	now func() time.Time

	// seq records insertion order and breaks CreatedAt ties.
	seq     map[string]uint64
	nextSeq uint64

	users         map[string]*domain.User
	patients      map[string]*patient.Patient
	appointments  map[string]*appointment.Appointment
	encounters    map[string]*encounter.Encounter
	prescriptions map[string]*prescription.Prescription
	auditLogs     map[string]*domain.AuditLog
	photoUploads  map[string]*photo.PhotoUpload
}

func NewMemory() *Memory {
	return &Memory{
		now:           time.Now,
		seq:           make(map[string]uint64),
		users:         make(map[string]*domain.User),
		patients:      make(map[string]*patient.Patient),
		appointments:  make(map[string]*appointment.Appointment),
		encounters:    make(map[string]*encounter.Encounter),
		prescriptions: make(map[string]*prescription.Prescription),
		auditLogs:     make(map[string]*domain.AuditLog),
		photoUploads:  make(map[string]*photo.PhotoUpload),
	}
}

// newID must be called with mu held for writing.
func (m *Memory) newID() (string, time.Time) {
	id := uuid.NewString()
	m.nextSeq++
	m.seq[id] = m.nextSeq
	return id, m.now().UTC()
}

// newestFirst sorts by CreatedAt descending, later insertions first on ties.
func newestFirst[T any](m *Memory, items []T, key func(T) (string, time.Time)) {
	sort.SliceStable(items, func(i, j int) bool {
		idI, tI := key(items[i])
		idJ, tJ := key(items[j])
		if !tI.Equal(tJ) {
			return tI.After(tJ)
		}
		return m.seq[idI] > m.seq[idJ]
	})
}

func limitSlice[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}

func (m *Memory) Ping(_ context.Context) error {
	return nil
}

// ── Users ───────────────────────────────────────────────────────────────────

func cloneUser(u *domain.User) *domain.User {
	out := *u
	return &out
}

func userKey(u *domain.User) (string, time.Time) { return u.ID, u.CreatedAt }

func (m *Memory) GetUser(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.users[id]; ok {
		return cloneUser(u), nil
	}
	return nil, nil
}

func (m *Memory) findUser(match func(*domain.User) bool) *domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			return cloneUser(u)
		}
	}
	return nil
}

func (m *Memory) GetUserByExternalID(_ context.Context, externalID string) (*domain.User, error) {
	return m.findUser(func(u *domain.User) bool { return u.ExternalAuthID == externalID }), nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (*domain.User, error) {
	lower := strings.ToLower(strings.TrimSpace(email))
	return m.findUser(func(u *domain.User) bool { return u.EmailLower == lower }), nil
}

func (m *Memory) CreateUser(_ context.Context, u *domain.User) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneUser(u)
	stored.ID, stored.CreatedAt = m.newID()
	stored.Normalize()
	m.users[stored.ID] = stored
	return cloneUser(stored), nil
}

func (m *Memory) UpdateUser(_ context.Context, id string, cmd *domain.UpdateUserCommand) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	cmd.Apply(u)
	return cloneUser(u), nil
}

func (m *Memory) listUsers(match func(*domain.User) bool) []*domain.User {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.User, 0, len(m.users))
	for _, u := range m.users {
		if match(u) {
			out = append(out, cloneUser(u))
		}
	}
	newestFirst(m, out, userKey)
	return out
}

func (m *Memory) ListUsers(_ context.Context) ([]*domain.User, error) {
	return m.listUsers(func(*domain.User) bool { return true }), nil
}

func (m *Memory) ListUsersByRole(_ context.Context, role domain.Role) ([]*domain.User, error) {
	return m.listUsers(func(u *domain.User) bool { return u.Role == role }), nil
}

func (m *Memory) HasUsers(_ context.Context) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users) > 0, nil
}

// ── Patients ────────────────────────────────────────────────────────────────

func clonePatient(p *patient.Patient) *patient.Patient {
	out := *p
	if p.EmergencyContact != nil {
		ec := *p.EmergencyContact
		out.EmergencyContact = &ec
	}
	if p.CommunicationPreferences != nil {
		cp := *p.CommunicationPreferences
		out.CommunicationPreferences = &cp
	}
	if p.Consent != nil {
		cs := *p.Consent
		if p.Consent.SignedAt != nil {
			at := *p.Consent.SignedAt
			cs.SignedAt = &at
		}
		out.Consent = &cs
	}
	return &out
}

func patientKey(p *patient.Patient) (string, time.Time) { return p.ID, p.CreatedAt }

func (m *Memory) GetPatient(_ context.Context, id string) (*patient.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.patients[id]; ok {
		return clonePatient(p), nil
	}
	return nil, nil
}

func (m *Memory) CreatePatient(_ context.Context, p *patient.Patient) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := clonePatient(p)
	stored.ID, stored.CreatedAt = m.newID()
	stored.Normalize()
	m.patients[stored.ID] = stored
	return clonePatient(stored), nil
}

func (m *Memory) UpdatePatient(_ context.Context, id string, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.patients[id]
	if !ok {
		return nil, nil
	}
	cmd.Apply(p)
	return clonePatient(p), nil
}

func (m *Memory) ListPatients(_ context.Context, limit int) ([]*patient.Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*patient.Patient, 0, len(m.patients))
	for _, p := range m.patients {
		out = append(out, clonePatient(p))
	}
	newestFirst(m, out, patientKey)
	return limitSlice(out, limit), nil
}

func (m *Memory) SearchPatients(_ context.Context, query string) ([]*patient.Patient, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return []*patient.Patient{}, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*patient.Patient, 0)
	for _, p := range m.patients {
		if p.Matches(q) {
			out = append(out, clonePatient(p))
		}
	}
	newestFirst(m, out, patientKey)
	return out, nil
}

// ── Appointments ────────────────────────────────────────────────────────────

func cloneAppointment(a *appointment.Appointment) *appointment.Appointment {
	out := *a
	return &out
}

func appointmentKey(a *appointment.Appointment) (string, time.Time) { return a.ID, a.CreatedAt }

func (m *Memory) GetAppointment(_ context.Context, id string) (*appointment.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.appointments[id]; ok {
		return cloneAppointment(a), nil
	}
	return nil, nil
}

func (m *Memory) CreateAppointment(_ context.Context, a *appointment.Appointment) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneAppointment(a)
	stored.ID, stored.CreatedAt = m.newID()
	stored.Normalize()
	m.appointments[stored.ID] = stored
	return cloneAppointment(stored), nil
}

func (m *Memory) UpdateAppointment(_ context.Context, id string, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, nil
	}
	cmd.Apply(a)
	return cloneAppointment(a), nil
}

func (m *Memory) filterAppointments(match func(*appointment.Appointment) bool) []*appointment.Appointment {
	out := make([]*appointment.Appointment, 0)
	for _, a := range m.appointments {
		if match(a) {
			out = append(out, cloneAppointment(a))
		}
	}
	return out
}

func (m *Memory) earliestFirst(items []*appointment.Appointment) {
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].ScheduledAt.Equal(items[j].ScheduledAt) {
			return items[i].ScheduledAt.Before(items[j].ScheduledAt)
		}
		return m.seq[items[i].ID] < m.seq[items[j].ID]
	})
}

func (m *Memory) ListAppointments(_ context.Context) ([]*appointment.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filterAppointments(func(*appointment.Appointment) bool { return true })
	newestFirst(m, out, appointmentKey)
	return out, nil
}

func (m *Memory) ListAppointmentsByDate(_ context.Context, date string) ([]*appointment.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filterAppointments(func(a *appointment.Appointment) bool { return a.Date == date })
	m.earliestFirst(out)
	return out, nil
}

func (m *Memory) ListAppointmentsByDoctor(_ context.Context, doctorID, date string) ([]*appointment.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filterAppointments(func(a *appointment.Appointment) bool {
		return a.DoctorID == doctorID && (date == "" || a.Date == date)
	})
	m.earliestFirst(out)
	return out, nil
}

func (m *Memory) ListAppointmentsByPatient(_ context.Context, patientID string) ([]*appointment.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := m.filterAppointments(func(a *appointment.Appointment) bool { return a.PatientID == patientID })
	newestFirst(m, out, appointmentKey)
	return out, nil
}

// ── Encounters ──────────────────────────────────────────────────────────────

func encounterKey(e *encounter.Encounter) (string, time.Time) { return e.ID, e.CreatedAt }

func (m *Memory) GetEncounter(_ context.Context, id string) (*encounter.Encounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.encounters[id]; ok {
		return e.Clone(), nil
	}
	return nil, nil
}

func (m *Memory) GetEncounterByAppointment(_ context.Context, appointmentID string) (*encounter.Encounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.encounters {
		if e.AppointmentID == appointmentID {
			return e.Clone(), nil
		}
	}
	return nil, nil
}

func (m *Memory) CreateEncounter(_ context.Context, e *encounter.Encounter) (*encounter.Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := e.Clone()
	stored.ID, stored.CreatedAt = m.newID()
	m.encounters[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *Memory) UpdateEncounter(_ context.Context, id string, cmd *encounter.UpdateEncounterCommand) (*encounter.Encounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.encounters[id]
	if !ok {
		return nil, nil
	}
	cmd.Apply(e)
	return e.Clone(), nil
}

func (m *Memory) ListEncountersByPatient(_ context.Context, patientID string) ([]*encounter.Encounter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*encounter.Encounter, 0)
	for _, e := range m.encounters {
		if e.PatientID == patientID {
			out = append(out, e.Clone())
		}
	}
	newestFirst(m, out, encounterKey)
	return out, nil
}

// ── Prescriptions ───────────────────────────────────────────────────────────

func prescriptionKey(p *prescription.Prescription) (string, time.Time) { return p.ID, p.CreatedAt }

func (m *Memory) GetPrescription(_ context.Context, id string) (*prescription.Prescription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.prescriptions[id]; ok {
		return p.Clone(), nil
	}
	return nil, nil
}

func (m *Memory) CreatePrescription(_ context.Context, p *prescription.Prescription) (*prescription.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := p.Clone()
	stored.ID, stored.CreatedAt = m.newID()
	m.prescriptions[stored.ID] = stored
	return stored.Clone(), nil
}

func (m *Memory) UpdatePrescription(_ context.Context, id string, cmd *prescription.UpdatePrescriptionCommand) (*prescription.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prescriptions[id]
	if !ok {
		return nil, nil
	}
	cmd.Apply(p)
	return p.Clone(), nil
}

func (m *Memory) listPrescriptions(match func(*prescription.Prescription) bool) []*prescription.Prescription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*prescription.Prescription, 0)
	for _, p := range m.prescriptions {
		if match(p) {
			out = append(out, p.Clone())
		}
	}
	newestFirst(m, out, prescriptionKey)
	return out
}

func (m *Memory) ListPrescriptionsByPatient(_ context.Context, patientID string) ([]*prescription.Prescription, error) {
	return m.listPrescriptions(func(p *prescription.Prescription) bool { return p.PatientID == patientID }), nil
}

func (m *Memory) ListPrescriptionsByEncounter(_ context.Context, encounterID string) ([]*prescription.Prescription, error) {
	return m.listPrescriptions(func(p *prescription.Prescription) bool { return p.EncounterID == encounterID }), nil
}

// ── Audit logs ──────────────────────────────────────────────────────────────

func cloneAuditLog(a *domain.AuditLog) *domain.AuditLog {
	out := *a
	out.Changes = copyDocument(a.Changes)
	return &out
}

func auditKey(a *domain.AuditLog) (string, time.Time) { return a.ID, a.CreatedAt }

func (m *Memory) CreateAuditLog(_ context.Context, entry *domain.AuditLog) (*domain.AuditLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := cloneAuditLog(entry)
	stored.ID, stored.CreatedAt = m.newID()
	m.auditLogs[stored.ID] = stored
	return cloneAuditLog(stored), nil
}

func (m *Memory) listAuditLogs(match func(*domain.AuditLog) bool) []*domain.AuditLog {
	out := make([]*domain.AuditLog, 0)
	for _, a := range m.auditLogs {
		if match(a) {
			out = append(out, cloneAuditLog(a))
		}
	}
	newestFirst(m, out, auditKey)
	return out
}

func (m *Memory) ListAuditLogs(_ context.Context, limit int) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return limitSlice(m.listAuditLogs(func(*domain.AuditLog) bool { return true }), limit), nil
}

func (m *Memory) ListAuditLogsForEntity(_ context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listAuditLogs(func(a *domain.AuditLog) bool {
		return a.EntityType == entityType && a.EntityID == entityID
	}), nil
}

// ── Photo uploads ───────────────────────────────────────────────────────────

func clonePhotoUpload(u *photo.PhotoUpload) *photo.PhotoUpload {
	out := *u
	if u.ConfirmedAt != nil {
		t := *u.ConfirmedAt
		out.ConfirmedAt = &t
	}
	if u.CleanedUpAt != nil {
		t := *u.CleanedUpAt
		out.CleanedUpAt = &t
	}
	out.Metadata = copyDocument(u.Metadata)
	return &out
}

func photoKey(u *photo.PhotoUpload) (string, time.Time) { return u.ID, u.CreatedAt }

func (m *Memory) TrackPhotoUpload(_ context.Context, u *photo.PhotoUpload) (*photo.PhotoUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := clonePhotoUpload(u)
	stored.ID, stored.CreatedAt = m.newID()
	if stored.UploadedAt.IsZero() {
		stored.UploadedAt = stored.CreatedAt
	}
	if stored.Status == "" {
		stored.Status = photo.StatusUploaded
	}
	m.photoUploads[stored.ID] = stored
	return clonePhotoUpload(stored), nil
}

func (m *Memory) GetPhotoUpload(_ context.Context, id string) (*photo.PhotoUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.photoUploads[id]; ok {
		return clonePhotoUpload(u), nil
	}
	return nil, nil
}

// newestPhoto must be called with mu held.
func (m *Memory) newestPhoto(match func(*photo.PhotoUpload) bool) *photo.PhotoUpload {
	var hits []*photo.PhotoUpload
	for _, u := range m.photoUploads {
		if match(u) {
			hits = append(hits, u)
		}
	}
	if len(hits) == 0 {
		return nil
	}
	newestFirst(m, hits, photoKey)
	return hits[0]
}

func (m *Memory) FindPendingPhotoUpload(_ context.Context, patientID string) (*photo.PhotoUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u := m.newestPhoto(func(u *photo.PhotoUpload) bool {
		return u.PatientID == patientID && u.IsPending()
	})
	if u == nil {
		return nil, nil
	}
	return clonePhotoUpload(u), nil
}

func (m *Memory) UpdatePhotoUploadByTempPath(_ context.Context, tempPath string, cmd *photo.UpdateCommand) (*photo.PhotoUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u := m.newestPhoto(func(u *photo.PhotoUpload) bool { return u.TempPath == tempPath })
	if u == nil {
		return nil, nil
	}
	cmd.Apply(u)
	return clonePhotoUpload(u), nil
}

func (m *Memory) CleanupPhotoUpload(_ context.Context, id, by string) (*photo.PhotoUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.photoUploads[id]
	if !ok {
		return nil, nil
	}
	now := m.now().UTC()
	u.Status = photo.StatusCleanedUp
	u.CleanedUpBy = by
	u.CleanedUpAt = &now
	return clonePhotoUpload(u), nil
}

func (m *Memory) ListPhotoUploadsForPatient(_ context.Context, patientID string) ([]*photo.PhotoUpload, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*photo.PhotoUpload, 0)
	for _, u := range m.photoUploads {
		if u.PatientID == patientID {
			out = append(out, clonePhotoUpload(u))
		}
	}
	newestFirst(m, out, photoKey)
	return out, nil
}

func (m *Memory) CleanupStalePhotoUploads(_ context.Context, olderThan time.Time, by string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now().UTC()
	n := 0
	for _, u := range m.photoUploads {
		if u.IsPending() && u.UploadedAt.Before(olderThan) {
			at := now
			u.Status = photo.StatusCleanedUp
			u.CleanedUpBy = by
			u.CleanedUpAt = &at
			n++
		}
	}
	return n, nil
}
