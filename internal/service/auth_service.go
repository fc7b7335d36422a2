package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicdesk/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicdesk/pkg/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid or expired credentials")
	ErrAccountInactive    = errors.New("account is inactive")
)

// AuthService mints bearer tokens for users that already exist. Identity is
// proven upstream; there is no password login.
type AuthService struct {
	userRepo   domain.UserRepository
	jwtManager *auth.JWTManager
	log        *zap.Logger
}

func NewAuthService(userRepo domain.UserRepository, jwtManager *auth.JWTManager, log *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, jwtManager: jwtManager, log: log}
}

// IssueToken accepts a user id, external auth id or email.
func (s *AuthService) IssueToken(ctx context.Context, identifier string) (*domain.TokenPair, error) {
	user, err := s.lookup(ctx, identifier)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	pair, err := s.jwtManager.GenerateTokenPair(claimsFor(user))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	s.log.Info("token issued", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	return pair, nil
}

// RefreshToken issues a new pair given a valid refresh token, re-reading the
// user so deactivation and role changes take effect.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	user, err := s.userRepo.GetUser(ctx, claims.UserID)
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if user == nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.jwtManager.GenerateTokenPair(claimsFor(user))
}

func (s *AuthService) lookup(ctx context.Context, identifier string) (*domain.User, error) {
	finders := []func(context.Context, string) (*domain.User, error){
		s.userRepo.GetUser,
		s.userRepo.GetUserByExternalID,
		s.userRepo.GetUserByEmail,
	}
	for _, find := range finders {
		u, err := find(ctx, identifier)
		if err != nil {
			return nil, fmt.Errorf("looking up user: %w", err)
		}
		if u != nil {
			return u, nil
		}
	}
	return nil, nil
}

func claimsFor(u *domain.User) *domain.Claims {
	return &domain.Claims{
		UserID: u.ID,
		Email:  u.Email,
		Role:   u.Role,
	}
}
