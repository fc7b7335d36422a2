package photo

import (
	"regexp"
	"time"
)

type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusConfirmed Status = "confirmed"
	StatusCleanedUp Status = "cleaned_up"
	StatusFailed    Status = "failed"
)

// EntityType is the audit entity type for photo lifecycle events.
const EntityType = "patient_photo"

// PhotoUpload tracks one uploaded object from its temporary path until it is
// confirmed against a patient or cleaned up.
type PhotoUpload struct {
	ID        string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at;index" json:"createdAt"`

	PatientID   string `gorm:"column:patient_id;type:varchar(64);not null;index" json:"patientId"`
	TempPath    string `gorm:"column:temp_path;type:text;not null;index" json:"tempPath"`
	FinalPath   string `gorm:"column:final_path;type:text" json:"finalPath,omitempty"`
	FileName    string `gorm:"column:file_name;type:varchar(255)" json:"fileName"`
	FileSize    int64  `gorm:"column:file_size" json:"fileSize"`
	ContentType string `gorm:"column:content_type;type:varchar(100)" json:"contentType"`
	UploadID    string `gorm:"column:upload_id;type:varchar(100);index" json:"uploadId"`

	UploadedBy  string     `gorm:"column:uploaded_by;type:varchar(64)" json:"uploadedBy"`
	UploadedAt  time.Time  `gorm:"column:uploaded_at;index" json:"uploadedAt"`
	ConfirmedBy string     `gorm:"column:confirmed_by;type:varchar(64)" json:"confirmedBy,omitempty"`
	ConfirmedAt *time.Time `gorm:"column:confirmed_at" json:"confirmedAt,omitempty"`
	CleanedUpBy string     `gorm:"column:cleaned_up_by;type:varchar(64)" json:"cleanedUpBy,omitempty"`
	CleanedUpAt *time.Time `gorm:"column:cleaned_up_at" json:"cleanedUpAt,omitempty"`

	Status   Status         `gorm:"column:status;type:varchar(20);not null;index" json:"status"`
	Metadata map[string]any `gorm:"column:metadata;serializer:json" json:"metadata,omitempty"`
}

func (PhotoUpload) TableName() string {
	return "photo_uploads"
}

func (u *PhotoUpload) IsPending() bool {
	return u.Status == StatusUploaded
}

type TrackCommand struct {
	PatientID   string
	TempPath    string
	FileName    string
	FileSize    int64
	ContentType string
	UploadID    string
	UploadedBy  string
	Metadata    map[string]any
}

func (c *TrackCommand) ToPhotoUpload(now time.Time) *PhotoUpload {
	return &PhotoUpload{
		PatientID:   c.PatientID,
		TempPath:    c.TempPath,
		FileName:    c.FileName,
		FileSize:    c.FileSize,
		ContentType: c.ContentType,
		UploadID:    c.UploadID,
		UploadedBy:  c.UploadedBy,
		UploadedAt:  now,
		Status:      StatusUploaded,
		Metadata:    c.Metadata,
	}
}

type UpdateCommand struct {
	PatientID   *string
	FinalPath   *string
	Status      *Status
	ConfirmedBy *string
	ConfirmedAt *time.Time
	Metadata    map[string]any

	// ClearConfirmation drops ConfirmedBy and ConfirmedAt before the other
	// fields are applied.
	ClearConfirmation bool
}

func (c *UpdateCommand) Apply(u *PhotoUpload) {
	if c.ClearConfirmation {
		u.ConfirmedBy = ""
		u.ConfirmedAt = nil
	}
	if c.PatientID != nil {
		u.PatientID = *c.PatientID
	}
	if c.FinalPath != nil {
		u.FinalPath = *c.FinalPath
	}
	if c.Status != nil {
		u.Status = *c.Status
	}
	if c.ConfirmedBy != nil {
		u.ConfirmedBy = *c.ConfirmedBy
	}
	if c.ConfirmedAt != nil {
		t := *c.ConfirmedAt
		u.ConfirmedAt = &t
	}
	if c.Metadata != nil {
		if u.Metadata == nil {
			u.Metadata = make(map[string]any, len(c.Metadata))
		}
		for k, v := range c.Metadata {
			u.Metadata[k] = v
		}
	}
}

var (
	placeholderRE   = regexp.MustCompile(`temp-\d+`)
	placeholderIDRE = regexp.MustCompile(`^temp-\d+$`)
)

// IsPlaceholderID reports whether id is a client-side placeholder for a
// patient that does not exist yet.
func IsPlaceholderID(id string) bool {
	return placeholderIDRE.MatchString(id)
}

// FindPlaceholder returns the first placeholder id embedded in s, or "".
func FindPlaceholder(s string) string {
	return placeholderRE.FindString(s)
}
