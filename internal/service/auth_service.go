package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/medidoc/pkg/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is temporarily locked due to multiple failed login attempts")
	ErrAccountInactive    = errors.New("account is inactive")
)

const maxFailedAttempts = 5

const lockDuration = 15 * time.Minute

type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	// UpdateLoginState records the outcome of a login attempt.
	UpdateLoginState(ctx context.Context, id uuid.UUID, failedCount int, lockedUntil, lastLoginAt *time.Time) error
}

type AuthService struct {
	userRepo   UserRepository
	jwtManager *auth.JWTManager
	audit      Auditor
	log        *zap.Logger
	now        func() time.Time
}

func NewAuthService(userRepo UserRepository, jwtManager *auth.JWTManager, audit Auditor, log *zap.Logger) *AuthService {
	return &AuthService{userRepo: userRepo, jwtManager: jwtManager, audit: audit, log: log, now: time.Now}
}

// Login checks the password and issues a token pair. The caller carries only
// client details at this point; its UserID is filled in on success.
func (s *AuthService) Login(ctx context.Context, email, password string, client Caller) (*domain.TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		// Spend the same bcrypt time as a real comparison so response latency
		// does not reveal whether the email exists.
		_, _ = bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if user.IsLocked() {
		return nil, ErrAccountLocked
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		failed := user.FailedLoginCount + 1
		var lockedUntil *time.Time
		if failed >= maxFailedAttempts {
			t := s.now().Add(lockDuration)
			lockedUntil = &t
		}
		if err := s.userRepo.UpdateLoginState(ctx, user.ID, failed, lockedUntil, user.LastLoginAt); err != nil {
			s.log.Error("failed to record login attempt", zap.String("user_id", user.ID.String()), zap.Error(err))
		}
		s.log.Warn("failed login attempt",
			zap.String("email", email),
			zap.String("ip", client.IPAddress),
			zap.Int("failed_count", failed),
		)
		return nil, ErrInvalidCredentials
	}

	now := s.now()
	if err := s.userRepo.UpdateLoginState(ctx, user.ID, 0, nil, &now); err != nil {
		s.log.Error("failed to record login", zap.String("user_id", user.ID.String()), zap.Error(err))
	}

	pair, err := s.jwtManager.GenerateTokenPair(claimsFor(user))
	if err != nil {
		s.log.Error("failed to generate token pair", zap.Error(err))
		return nil, fmt.Errorf("generating tokens: %w", err)
	}

	client.UserID = user.ID
	client.Role = user.Role
	client.PatientID = user.PatientID
	s.audit.LogAsync(ctx, AuditEntry{
		Caller:     client,
		Action:     domain.ActionLogin,
		TargetType: domain.TargetAuth,
		TargetID:   user.ID.String(),
		Meta:       map[string]any{"email": user.Email},
	})

	s.log.Info("user logged in",
		zap.String("user_id", user.ID.String()),
		zap.String("ip", client.IPAddress),
	)

	return pair, nil
}

// RefreshToken issues a new token pair given a valid refresh token.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.jwtManager.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	// Re-validate user is still active
	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil || !user.IsActive {
		return nil, ErrInvalidCredentials
	}

	return s.jwtManager.GenerateTokenPair(claimsFor(user))
}

func claimsFor(u *domain.User) *domain.Claims {
	return &domain.Claims{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		PatientID: u.PatientID,
	}
}
