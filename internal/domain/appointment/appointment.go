package appointment

import (
	"time"
)

// DateLayout is the calendar-date form stored in Appointment.Date.
const DateLayout = "2006-01-02"

const DefaultDurationMins = 30

type AppointmentType string

const (
	TypeConsultation AppointmentType = "consultation"
	TypeCheckup      AppointmentType = "checkup"
	TypeCleaning     AppointmentType = "cleaning"
	TypeFilling      AppointmentType = "filling"
	TypeExtraction   AppointmentType = "extraction"
	TypeRootCanal    AppointmentType = "root_canal"
	TypeOrthodontics AppointmentType = "orthodontics"
	TypeEmergency    AppointmentType = "emergency"
	TypeFollowUp     AppointmentType = "follow_up"
)

func (t AppointmentType) IsValid() bool {
	switch t {
	case TypeConsultation, TypeCheckup, TypeCleaning, TypeFilling, TypeExtraction,
		TypeRootCanal, TypeOrthodontics, TypeEmergency, TypeFollowUp:
		return true
	}
	return false
}

// State transitions possibilities:
//
//	scheduled → confirmed → in_progress → completed
//	scheduled → cancelled
//	confirmed → cancelled
//	confirmed → no_show (if patient doesn't arrive)
type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "scheduled"
	StatusConfirmed  AppointmentStatus = "confirmed"
	StatusInProgress AppointmentStatus = "in_progress"
	StatusCompleted  AppointmentStatus = "completed"
	StatusCancelled  AppointmentStatus = "cancelled"
	StatusNoShow     AppointmentStatus = "no_show"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Appointment struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`

	PatientID string `gorm:"column:patient_id;type:varchar(64);not null;index" json:"patientId"`
	DoctorID  string `gorm:"column:doctor_id;type:varchar(64);not null;index" json:"doctorId"`

	ScheduledAt  time.Time         `gorm:"column:scheduled_at;not null;index" json:"scheduledAt"`
	Date         string            `gorm:"column:date;type:varchar(10);not null;index" json:"date"`
	DurationMins int               `gorm:"column:duration_mins;not null" json:"durationMins"`
	Type         AppointmentType   `gorm:"column:type;type:varchar(50);not null;index" json:"type"`
	Status       AppointmentStatus `gorm:"column:status;type:varchar(30);not null;index" json:"status"`

	Notes string `gorm:"column:notes;type:text" json:"notes,omitempty"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// Normalize fills defaults and rederives Date from ScheduledAt.
func (a *Appointment) Normalize() {
	if a.DurationMins <= 0 {
		a.DurationMins = DefaultDurationMins
	}
	if a.Status == "" {
		a.Status = StatusScheduled
	}
	a.Date = a.ScheduledAt.UTC().Format(DateLayout)
}

func (a *Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMins) * time.Minute)
}

func (a *Appointment) CanTransitionTo(newStatus AppointmentStatus) bool {
	if a.Status == newStatus {
		return true
	}

	allowed := map[AppointmentStatus][]AppointmentStatus{
		StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled, StatusNoShow},
		StatusConfirmed:  {StatusInProgress, StatusNoShow, StatusCancelled},
		StatusInProgress: {StatusCompleted},
		StatusCompleted:  {},
		StatusCancelled:  {},
		StatusNoShow:     {},
	}

	for _, s := range allowed[a.Status] {
		if s == newStatus {
			return true
		}
	}
	return false
}

type CreateAppointmentCommand struct {
	PatientID    string
	DoctorID     string
	ScheduledAt  time.Time
	DurationMins int
	Type         AppointmentType
	Notes        string
}

type UpdateAppointmentCommand struct {
	DoctorID     *string
	ScheduledAt  *time.Time
	DurationMins *int
	Type         *AppointmentType
	Status       *AppointmentStatus
	Notes        *string
}

func (c *UpdateAppointmentCommand) Apply(a *Appointment) {
	if c.DoctorID != nil {
		a.DoctorID = *c.DoctorID
	}
	if c.ScheduledAt != nil {
		a.ScheduledAt = *c.ScheduledAt
	}
	if c.DurationMins != nil {
		a.DurationMins = *c.DurationMins
	}
	if c.Type != nil {
		a.Type = *c.Type
	}
	if c.Status != nil {
		a.Status = *c.Status
	}
	if c.Notes != nil {
		a.Notes = *c.Notes
	}
	a.Normalize()
}
