package encounter

import (
	"time"
)

type Vitals struct {
	BloodPressureSystolic  *int     `json:"bpSystolic,omitempty"`
	BloodPressureDiastolic *int     `json:"bpDiastolic,omitempty"`
	HeartRateBPM           *int     `json:"heartRateBpm,omitempty"`
	TemperatureCelsius     *float64 `json:"temperatureCelsius,omitempty"`
	WeightKg               *float64 `json:"weightKg,omitempty"`
	HeightCm               *float64 `json:"heightCm,omitempty"`
	OxygenSaturation       *float64 `json:"oxygenSaturation,omitempty"`
	RespiratoryRate        *int     `json:"respiratoryRate,omitempty"`
}

// Encounter is the clinical record of one appointment. At most one exists
// per appointment.
type Encounter struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`

	AppointmentID string `gorm:"column:appointment_id;type:varchar(64);not null;uniqueIndex" json:"appointmentId"`
	PatientID     string `gorm:"column:patient_id;type:varchar(64);not null;index" json:"patientId"`
	DoctorID      string `gorm:"column:doctor_id;type:varchar(64);not null;index" json:"doctorId"`

	ChiefComplaint string   `gorm:"column:chief_complaint;type:text" json:"chiefComplaint,omitempty"`
	ClinicalNotes  string   `gorm:"column:clinical_notes;type:text" json:"clinicalNotes,omitempty"`
	Diagnosis      string   `gorm:"column:diagnosis;type:text" json:"diagnosis,omitempty"`
	TreatmentPlan  string   `gorm:"column:treatment_plan;type:text" json:"treatmentPlan,omitempty"`
	Files          []string `gorm:"column:files;serializer:json" json:"files"`
	Vitals         *Vitals  `gorm:"column:vitals;serializer:json" json:"vitals,omitempty"`
}

func (Encounter) TableName() string {
	return "encounters"
}

type CreateEncounterCommand struct {
	AppointmentID  string
	PatientID      string
	DoctorID       string
	ChiefComplaint string
	ClinicalNotes  string
	Diagnosis      string
	TreatmentPlan  string
	Files          []string
	Vitals         *Vitals
}

func (c *CreateEncounterCommand) ToEncounter() *Encounter {
	e := &Encounter{
		AppointmentID:  c.AppointmentID,
		PatientID:      c.PatientID,
		DoctorID:       c.DoctorID,
		ChiefComplaint: c.ChiefComplaint,
		ClinicalNotes:  c.ClinicalNotes,
		Diagnosis:      c.Diagnosis,
		TreatmentPlan:  c.TreatmentPlan,
		Files:          append([]string(nil), c.Files...),
		Vitals:         c.Vitals,
	}
	if e.Files == nil {
		e.Files = []string{}
	}
	return e
}

type UpdateEncounterCommand struct {
	ChiefComplaint *string
	ClinicalNotes  *string
	Diagnosis      *string
	TreatmentPlan  *string
	Files          []string
	Vitals         *Vitals
}

func (c *UpdateEncounterCommand) Apply(e *Encounter) {
	if c.ChiefComplaint != nil {
		e.ChiefComplaint = *c.ChiefComplaint
	}
	if c.ClinicalNotes != nil {
		e.ClinicalNotes = *c.ClinicalNotes
	}
	if c.Diagnosis != nil {
		e.Diagnosis = *c.Diagnosis
	}
	if c.TreatmentPlan != nil {
		e.TreatmentPlan = *c.TreatmentPlan
	}
	if c.Files != nil {
		e.Files = append([]string(nil), c.Files...)
	}
	if c.Vitals != nil {
		v := *c.Vitals
		e.Vitals = &v
	}
}

// Clone returns a deep copy of e.
func (e *Encounter) Clone() *Encounter {
	out := *e
	out.Files = append([]string{}, e.Files...)
	if e.Vitals != nil {
		v := *e.Vitals
		out.Vitals = &v
	}
	return &out
}
