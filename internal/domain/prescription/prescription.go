package prescription

import (
	"time"
)

type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`    // e.g. "500mg"
	Frequency    string `json:"frequency"` // e.g. "twice daily"
	Duration     string `json:"duration"`  // e.g. "7 days"
	Instructions string `json:"instructions,omitempty"`
}

// Channel is a delivery route for a prescription document.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelWhatsApp:
		return true
	}
	return false
}

type Prescription struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`

	EncounterID string `gorm:"column:encounter_id;type:varchar(64);not null;index" json:"encounterId"`
	PatientID   string `gorm:"column:patient_id;type:varchar(64);not null;index" json:"patientId"`
	DoctorID    string `gorm:"column:doctor_id;type:varchar(64);not null;index" json:"doctorId"`

	Medications []Medication `gorm:"column:medications;serializer:json" json:"medications"`
	DocumentURL string       `gorm:"column:document_url;type:text" json:"documentUrl,omitempty"`

	EmailSent    bool `gorm:"column:email_sent;not null" json:"emailSent"`
	WhatsAppSent bool `gorm:"column:whatsapp_sent;not null" json:"whatsappSent"`
}

func (Prescription) TableName() string {
	return "prescriptions"
}

func (p *Prescription) Clone() *Prescription {
	out := *p
	out.Medications = append([]Medication{}, p.Medications...)
	return &out
}

type CreatePrescriptionCommand struct {
	EncounterID string
	PatientID   string
	DoctorID    string
	Medications []Medication
	DocumentURL string
}

func (c *CreatePrescriptionCommand) ToPrescription() *Prescription {
	return &Prescription{
		EncounterID: c.EncounterID,
		PatientID:   c.PatientID,
		DoctorID:    c.DoctorID,
		Medications: append([]Medication{}, c.Medications...),
		DocumentURL: c.DocumentURL,
	}
}

type UpdatePrescriptionCommand struct {
	Medications  []Medication
	DocumentURL  *string
	EmailSent    *bool
	WhatsAppSent *bool
}

func (c *UpdatePrescriptionCommand) Apply(p *Prescription) {
	if c.Medications != nil {
		p.Medications = append([]Medication{}, c.Medications...)
	}
	if c.DocumentURL != nil {
		p.DocumentURL = *c.DocumentURL
	}
	if c.EmailSent != nil {
		p.EmailSent = *c.EmailSent
	}
	if c.WhatsAppSent != nil {
		p.WhatsAppSent = *c.WhatsAppSent
	}
}

// MarkSentCommand builds the update that flags delivery over ch.
func MarkSentCommand(ch Channel) (*UpdatePrescriptionCommand, error) {
	sent := true
	switch ch {
	case ChannelEmail:
		return &UpdatePrescriptionCommand{EmailSent: &sent}, nil
	case ChannelWhatsApp:
		return &UpdatePrescriptionCommand{WhatsAppSent: &sent}, nil
	}
	return nil, ErrInvalidChannel
}
