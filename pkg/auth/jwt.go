package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medidoc/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenType string

const (
	accessTokenType  tokenType = "access"
	refreshTokenType tokenType = "refresh"
)

// clockSkew is tolerated on exp, nbf and iat across API replicas.
const clockSkew = 10 * time.Second

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrTokenTypeMismatch = errors.New("wrong token type")
	// ErrClaimsInconsistent is returned when a caller's role and patient
	// binding disagree: patients must carry a patient ID, staff must not.
	ErrClaimsInconsistent = errors.New("role and patient binding do not match")
)

// accessClaims authorise API calls, so they carry everything a handler
// needs to build a Caller without touching the user table.
type accessClaims struct {
	jwt.RegisteredClaims
	Email     string      `json:"email,omitempty"`
	Role      domain.Role `json:"role"`
	PatientID *uuid.UUID  `json:"patient_id,omitempty"`
	TokenType tokenType   `json:"token_type"`
}

// refreshClaims only name the user. The auth service reloads the account on
// refresh, so a role change or deactivation takes effect on the next pair.
type refreshClaims struct {
	jwt.RegisteredClaims
	TokenType tokenType `json:"token_type"`
}

type typedClaims interface {
	jwt.Claims
	tokenKind() tokenType
}

func (c *accessClaims) tokenKind() tokenType  { return c.TokenType }
func (c *refreshClaims) tokenKind() tokenType { return c.TokenType }

// JWTManager issues and verifies HS256 access/refresh token pairs.
type JWTManager struct {
	cfg config.JWTConfig
	now func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	return &JWTManager{cfg: cfg, now: time.Now}
}

func (m *JWTManager) GenerateTokenPair(claims *domain.Claims) (*domain.TokenPair, error) {
	if err := checkBinding(claims.Role, claims.PatientID); err != nil {
		return nil, fmt.Errorf("user %s: %w", claims.UserID, err)
	}

	now := m.now()
	accessExp := now.Add(m.cfg.AccessTokenTTL)

	accessToken, err := m.sign(&accessClaims{
		RegisteredClaims: m.registered(claims.UserID, now, accessExp),
		Email:            claims.Email,
		Role:             claims.Role,
		PatientID:        claims.PatientID,
		TokenType:        accessTokenType,
	})
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}

	refreshToken, err := m.sign(&refreshClaims{
		RegisteredClaims: m.registered(claims.UserID, now, now.Add(m.cfg.RefreshTokenTTL)),
		TokenType:        refreshTokenType,
	})
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    accessExp,
		TokenType:    "Bearer",
	}, nil
}

func (m *JWTManager) ValidateAccessToken(tokenString string) (*domain.Claims, error) {
	c := &accessClaims{}
	userID, err := m.parse(tokenString, c, accessTokenType)
	if err != nil {
		return nil, err
	}
	if checkBinding(c.Role, c.PatientID) != nil {
		return nil, ErrTokenInvalid
	}
	return &domain.Claims{
		UserID:    userID,
		Email:     c.Email,
		Role:      c.Role,
		PatientID: c.PatientID,
	}, nil
}

// ValidateRefreshToken returns claims holding only the user ID.
func (m *JWTManager) ValidateRefreshToken(tokenString string) (*domain.Claims, error) {
	userID, err := m.parse(tokenString, &refreshClaims{}, refreshTokenType)
	if err != nil {
		return nil, err
	}
	return &domain.Claims{UserID: userID}, nil
}

func (m *JWTManager) registered(userID uuid.UUID, now, exp time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    m.cfg.Issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
}

func (m *JWTManager) sign(c jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(m.cfg.Secret))
}

func (m *JWTManager) parse(tokenString string, c typedClaims, want tokenType) (uuid.UUID, error) {
	_, err := jwt.ParseWithClaims(
		tokenString,
		c,
		func(*jwt.Token) (any, error) { return []byte(m.cfg.Secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, ErrTokenExpired
		}
		return uuid.Nil, ErrTokenInvalid
	}

	if c.tokenKind() != want {
		return uuid.Nil, ErrTokenTypeMismatch
	}

	sub, err := c.GetSubject()
	if err != nil {
		return uuid.Nil, ErrTokenInvalid
	}
	userID, err := uuid.Parse(sub)
	if err != nil || userID == uuid.Nil {
		return uuid.Nil, ErrTokenInvalid
	}
	return userID, nil
}

func checkBinding(role domain.Role, patientID *uuid.UUID) error {
	if !role.IsValid() {
		return fmt.Errorf("unknown role %q: %w", role, ErrClaimsInconsistent)
	}
	bound := patientID != nil && *patientID != uuid.Nil
	if (role == domain.RolePatient) != bound {
		return ErrClaimsInconsistent
	}
	return nil
}
