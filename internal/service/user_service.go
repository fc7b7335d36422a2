package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
)

type CreateUserCommand struct {
	ExternalAuthID string
	Email          string
	Name           string
	Role           domain.Role
	Specialization string
}

type UserService struct {
	repo     domain.UserRepository
	auditSvc *AuditService
	log      *zap.Logger
}

func NewUserService(repo domain.UserRepository, auditSvc *AuditService, log *zap.Logger) *UserService {
	return &UserService{repo: repo, auditSvc: auditSvc, log: log}
}

// CreateUser checks uniqueness up front. A constraint violation from the
// primary store would otherwise count as a store failure.
func (s *UserService) CreateUser(ctx context.Context, cmd *CreateUserCommand, caller Caller) (*domain.User, error) {
	var errs []string
	if strings.TrimSpace(cmd.ExternalAuthID) == "" {
		errs = append(errs, "externalAuthId is required")
	}
	if !validEmail(cmd.Email) {
		errs = append(errs, "email is invalid")
	}
	if strings.TrimSpace(cmd.Name) == "" {
		errs = append(errs, "name is required")
	}
	if !cmd.Role.IsValid() {
		errs = append(errs, "role is invalid")
	}
	if err := validationError(errs); err != nil {
		return nil, err
	}

	if u, err := s.repo.GetUserByExternalID(ctx, cmd.ExternalAuthID); err != nil {
		return nil, fmt.Errorf("checking external id: %w", err)
	} else if u != nil {
		return nil, ErrUserExists
	}
	if u, err := s.repo.GetUserByEmail(ctx, cmd.Email); err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	} else if u != nil {
		return nil, ErrUserExists
	}

	u, err := s.repo.CreateUser(ctx, &domain.User{
		ExternalAuthID: strings.TrimSpace(cmd.ExternalAuthID),
		Email:          cmd.Email,
		Name:           cmd.Name,
		Role:           cmd.Role,
		Specialization: cmd.Specialization,
		IsActive:       true,
	})
	if err != nil {
		s.log.Error("failed to create user", zap.Error(err))
		return nil, fmt.Errorf("creating user: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionCreate,
		EntityType: "user",
		EntityID:   u.ID,
		Changes:    map[string]any{"role": string(u.Role)},
	})

	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (s *UserService) UpdateUser(ctx context.Context, id string, cmd *domain.UpdateUserCommand, caller Caller) (*domain.User, error) {
	var errs []string
	if cmd.Role != nil && !cmd.Role.IsValid() {
		errs = append(errs, "role is invalid")
	}
	if cmd.Name != nil && strings.TrimSpace(*cmd.Name) == "" {
		errs = append(errs, "name cannot be empty")
	}
	if cmd.Email != nil && !validEmail(*cmd.Email) {
		errs = append(errs, "email is invalid")
	}
	if err := validationError(errs); err != nil {
		return nil, err
	}

	if cmd.Email != nil {
		other, err := s.repo.GetUserByEmail(ctx, *cmd.Email)
		if err != nil {
			return nil, fmt.Errorf("checking email: %w", err)
		}
		if other != nil && other.ID != id {
			return nil, ErrUserExists
		}
	}

	u, err := s.repo.UpdateUser(ctx, id, cmd)
	if err != nil {
		return nil, fmt.Errorf("updating user: %w", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.actor(),
		Action:     domain.ActionUpdate,
		EntityType: "user",
		EntityID:   id,
	})

	return u, nil
}

func (s *UserService) ListUsers(ctx context.Context, role domain.Role) ([]*domain.User, error) {
	if role == "" {
		return s.repo.ListUsers(ctx)
	}
	if !role.IsValid() {
		return nil, &ValidationError{Fields: []string{"role is invalid"}}
	}
	return s.repo.ListUsersByRole(ctx, role)
}
