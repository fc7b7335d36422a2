package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleStaff   Role = "staff"
	RolePatient Role = "patient"
)

func (r Role) IsValid() bool {
	_, ok := r.Level()
	return ok
}

// Level ranks roles for hierarchy checks. Unknown roles report ok=false
// instead of silently ranking lowest.
func (r Role) Level() (int, bool) {
	switch r {
	case RoleAdmin:
		return 100, true
	case RoleDoctor:
		return 80, true
	case RoleNurse:
		return 60, true
	case RoleStaff:
		return 40, true
	case RolePatient:
		return 10, true
	}
	return 0, false
}

// AtLeast reports whether r ranks at or above min. Unknown roles never pass.
func (r Role) AtLeast(min Role) bool {
	have, ok := r.Level()
	if !ok {
		return false
	}
	want, ok := min.Level()
	if !ok {
		return false
	}
	return have >= want
}

type Permission string

const (
	PermManageUsers        Permission = "manage:users"
	PermReadPatients       Permission = "read:patients"
	PermWritePatients      Permission = "write:patients"
	PermManageAppointments Permission = "manage:appointments"
	PermReadClinical       Permission = "read:clinical"
	PermWriteClinical      Permission = "write:clinical"
	PermUploadPhotos       Permission = "upload:photos"
	PermCleanupUploads     Permission = "cleanup:uploads"
	PermReadAudit          Permission = "read:audit"
)

// Permissions returns the permission set of a role.
func (r Role) Permissions() ([]Permission, bool) {
	switch r {
	case RoleAdmin:
		return []Permission{
			PermManageUsers, PermReadPatients, PermWritePatients, PermManageAppointments,
			PermReadClinical, PermWriteClinical, PermUploadPhotos, PermCleanupUploads, PermReadAudit,
		}, true
	case RoleDoctor:
		return []Permission{
			PermReadPatients, PermWritePatients, PermManageAppointments,
			PermReadClinical, PermWriteClinical, PermUploadPhotos,
		}, true
	case RoleNurse:
		return []Permission{
			PermReadPatients, PermWritePatients, PermManageAppointments, PermReadClinical, PermUploadPhotos,
		}, true
	case RoleStaff:
		return []Permission{
			PermReadPatients, PermWritePatients, PermManageAppointments, PermUploadPhotos,
		}, true
	case RolePatient:
		return []Permission{}, true
	}
	return nil, false
}

func (r Role) Can(p Permission) bool {
	perms, ok := r.Permissions()
	if !ok {
		return false
	}
	for _, have := range perms {
		if have == p {
			return true
		}
	}
	return false
}

type User struct {
	ID             string    `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	ExternalAuthID string    `gorm:"column:external_auth_id;type:varchar(128);uniqueIndex;not null" json:"externalAuthId"`
	Email          string    `gorm:"column:email;type:varchar(255);not null" json:"email"`
	EmailLower     string    `gorm:"column:email_lower;type:varchar(255);uniqueIndex;not null" json:"emailLower"`
	Name           string    `gorm:"column:name;type:varchar(200);not null" json:"name"`
	Role           Role      `gorm:"column:role;type:varchar(30);not null;index" json:"role"`
	Specialization string    `gorm:"column:specialization;type:varchar(100)" json:"specialization,omitempty"`
	IsActive       bool      `gorm:"column:is_active;index" json:"isActive"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}

// Normalize recomputes the lowercase email mirror.
func (u *User) Normalize() {
	u.Email = strings.TrimSpace(u.Email)
	u.EmailLower = strings.ToLower(u.Email)
	u.Name = strings.TrimSpace(u.Name)
}

type UpdateUserCommand struct {
	Email          *string
	Name           *string
	Role           *Role
	Specialization *string
	IsActive       *bool
}

func (c *UpdateUserCommand) Apply(u *User) {
	if c.Email != nil {
		u.Email = *c.Email
	}
	if c.Name != nil {
		u.Name = *c.Name
	}
	if c.Role != nil {
		u.Role = *c.Role
	}
	if c.Specialization != nil {
		u.Specialization = *c.Specialization
	}
	if c.IsActive != nil {
		u.IsActive = *c.IsActive
	}
	u.Normalize()
}

type AuditAction string

const (
	ActionCreate       AuditAction = "create"
	ActionUpdate       AuditAction = "update"
	ActionDelete       AuditAction = "delete"
	ActionUpload       AuditAction = "upload"
	ActionRepath       AuditAction = "repath"
	ActionCleanup      AuditAction = "cleanup"
	ActionBatchCleanup AuditAction = "batch_cleanup"
)

// AuditLog is append-only; stores never update or delete it.
type AuditLog struct {
	ID         string         `gorm:"column:id;type:varchar(64);primaryKey" json:"id"`
	UserID     string         `gorm:"column:user_id;type:varchar(64);not null;index" json:"userId"`
	Action     AuditAction    `gorm:"column:action;type:varchar(20);not null;index" json:"action"`
	EntityType string         `gorm:"column:entity_type;type:varchar(50);not null;index:idx_audit_entity" json:"entityType"`
	EntityID   string         `gorm:"column:entity_id;type:varchar(64);index:idx_audit_entity" json:"entityId"`
	Changes    map[string]any `gorm:"column:changes;type:jsonb;serializer:json" json:"changes,omitempty"`
	CreatedAt  time.Time      `gorm:"column:created_at;index" json:"createdAt"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"` // Always "Bearer"
}

type Claims struct {
	UserID string `json:"sub"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}
