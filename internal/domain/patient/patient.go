package patient

import (
	"strings"
	"time"
)

type Gender string

const (
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
	GenderOther   Gender = "other"
	GenderUnknown Gender = "unknown"
)

func (g Gender) IsValid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther, GenderUnknown:
		return true
	}
	return false
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

type CommunicationPreferences struct {
	Email    bool `json:"email"`
	WhatsApp bool `json:"whatsapp"`
}

type Consent struct {
	Treatment      bool       `json:"treatment"`
	DataProcessing bool       `json:"dataProcessing"`
	Marketing      bool       `json:"marketing"`
	SignedAt       *time.Time `json:"signedAt,omitempty"`
	SignedBy       string     `json:"signedBy,omitempty"`
}

type Patient struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`

	FirstName     string    `gorm:"column:first_name;type:varchar(100);not null" json:"firstName"`
	LastName      string    `gorm:"column:last_name;type:varchar(100);not null" json:"lastName"`
	FullName      string    `gorm:"column:full_name;type:varchar(201);not null" json:"fullName"`
	FullNameLower string    `gorm:"column:full_name_lower;type:varchar(201);not null;index" json:"fullNameLower"`
	DateOfBirth   time.Time `gorm:"column:date_of_birth;not null" json:"dateOfBirth"`
	Gender        Gender    `gorm:"column:gender;type:varchar(20)" json:"gender,omitempty"`

	Phone      string `gorm:"column:phone;type:varchar(30);not null;index" json:"phone"`
	Email      string `gorm:"column:email;type:varchar(255)" json:"email,omitempty"`
	EmailLower string `gorm:"column:email_lower;type:varchar(255);index" json:"emailLower,omitempty"`
	Address    string `gorm:"column:address;type:text" json:"address,omitempty"`

	EmergencyContact *EmergencyContact `gorm:"column:emergency_contact;serializer:json" json:"emergencyContact,omitempty"`

	// PHI
	MedicalHistory string `gorm:"column:medical_history;type:text" json:"medicalHistory,omitempty"`
	Allergies      string `gorm:"column:allergies;type:text" json:"allergies,omitempty"`

	ProfilePhotoURL          string                    `gorm:"column:profile_photo_url;type:text" json:"profilePhotoUrl,omitempty"`
	CommunicationPreferences *CommunicationPreferences `gorm:"column:communication_preferences;serializer:json" json:"communicationPreferences,omitempty"`
	Consent                  *Consent                  `gorm:"column:consent;serializer:json" json:"consent,omitempty"`
}

func (Patient) TableName() string {
	return "patients"
}

// Normalize recomputes the denormalized name and email fields. Both stores
// call it on every create and update.
func (p *Patient) Normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.FullName = p.FirstName + " " + p.LastName
	p.FullNameLower = strings.ToLower(p.FullName)
	p.Email = strings.TrimSpace(p.Email)
	p.EmailLower = strings.ToLower(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
}

func (p *Patient) Age() int {
	now := time.Now()
	years := now.Year() - p.DateOfBirth.Year()
	if now.Month() < p.DateOfBirth.Month() ||
		(now.Month() == p.DateOfBirth.Month() && now.Day() < p.DateOfBirth.Day()) {
		years--
	}
	return years
}

type CreatePatientCommand struct {
	FirstName                string
	LastName                 string
	DateOfBirth              time.Time
	Gender                   Gender
	Phone                    string
	Email                    string
	Address                  string
	EmergencyContact         *EmergencyContact
	MedicalHistory           string
	Allergies                string
	ProfilePhotoURL          string
	CommunicationPreferences *CommunicationPreferences
	Consent                  *Consent
}

func (c *CreatePatientCommand) ToPatient() *Patient {
	return &Patient{
		FirstName:                c.FirstName,
		LastName:                 c.LastName,
		DateOfBirth:              c.DateOfBirth,
		Gender:                   c.Gender,
		Phone:                    c.Phone,
		Email:                    c.Email,
		Address:                  c.Address,
		EmergencyContact:         c.EmergencyContact,
		MedicalHistory:           c.MedicalHistory,
		Allergies:                c.Allergies,
		ProfilePhotoURL:          c.ProfilePhotoURL,
		CommunicationPreferences: c.CommunicationPreferences,
		Consent:                  c.Consent,
	}
}

type UpdatePatientCommand struct {
	FirstName                *string
	LastName                 *string
	DateOfBirth              *time.Time
	Gender                   *Gender
	Phone                    *string
	Email                    *string
	Address                  *string
	EmergencyContact         *EmergencyContact
	MedicalHistory           *string
	Allergies                *string
	ProfilePhotoURL          *string
	CommunicationPreferences *CommunicationPreferences
	Consent                  *Consent
}

// Apply copies the set fields onto p and renormalizes it.
func (c *UpdatePatientCommand) Apply(p *Patient) {
	if c.FirstName != nil {
		p.FirstName = *c.FirstName
	}
	if c.LastName != nil {
		p.LastName = *c.LastName
	}
	if c.DateOfBirth != nil {
		p.DateOfBirth = *c.DateOfBirth
	}
	if c.Gender != nil {
		p.Gender = *c.Gender
	}
	if c.Phone != nil {
		p.Phone = *c.Phone
	}
	if c.Email != nil {
		p.Email = *c.Email
	}
	if c.Address != nil {
		p.Address = *c.Address
	}
	if c.EmergencyContact != nil {
		ec := *c.EmergencyContact
		p.EmergencyContact = &ec
	}
	if c.MedicalHistory != nil {
		p.MedicalHistory = *c.MedicalHistory
	}
	if c.Allergies != nil {
		p.Allergies = *c.Allergies
	}
	if c.ProfilePhotoURL != nil {
		p.ProfilePhotoURL = *c.ProfilePhotoURL
	}
	if c.CommunicationPreferences != nil {
		cp := *c.CommunicationPreferences
		p.CommunicationPreferences = &cp
	}
	if c.Consent != nil {
		cs := *c.Consent
		p.Consent = &cs
	}
	p.Normalize()
}

// Matches reports whether p satisfies a search query. q must already be
// trimmed. Names match by case-insensitive substring, phones by substring and
// emails (queries containing "@") by case-insensitive equality.
func (p *Patient) Matches(q string) bool {
	if q == "" {
		return false
	}
	lower := strings.ToLower(q)
	if strings.Contains(p.FullNameLower, lower) {
		return true
	}
	if p.Phone != "" && strings.Contains(p.Phone, q) {
		return true
	}
	if strings.Contains(q, "@") && p.EmailLower != "" && p.EmailLower == lower {
		return true
	}
	return false
}
