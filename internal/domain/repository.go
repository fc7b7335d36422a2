package domain

import "context"

// UserRepository returns (nil, nil) for absent users.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	CreateUser(ctx context.Context, u *User) (*User, error)
	UpdateUser(ctx context.Context, id string, cmd *UpdateUserCommand) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	ListUsersByRole(ctx context.Context, role Role) ([]*User, error)

	// HasUsers is the seed idempotency check.
	HasUsers(ctx context.Context) (bool, error)
}

type AuditRepository interface {
	CreateAuditLog(ctx context.Context, entry *AuditLog) (*AuditLog, error)
	// ListAuditLogs returns newest first. limit <= 0 means no limit.
	ListAuditLogs(ctx context.Context, limit int) ([]*AuditLog, error)
	ListAuditLogsForEntity(ctx context.Context, entityType, entityID string) ([]*AuditLog, error)
}
