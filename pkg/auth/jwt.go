package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type tokenKind string

const (
	kindAccess  tokenKind = "access"
	kindRefresh tokenKind = "refresh"
)

// clockSkew is accepted on exp, nbf and iat when validating.
const clockSkew = 10 * time.Second

var (
	ErrTokenExpired      = errors.New("token has expired")
	ErrTokenInvalid      = errors.New("token is invalid")
	ErrTokenTypeMismatch = errors.New("wrong token type")
)

// sessionClaims is the signed payload. Role and profile ids ride along so
// the API can authorize without a user lookup per request.
type sessionClaims struct {
	jwt.RegisteredClaims
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	DoctorID  *uuid.UUID  `json:"doctor_id,omitempty"`
	PatientID *uuid.UUID  `json:"patient_id,omitempty"`
	Kind      tokenKind   `json:"token_type"`
}

// JWTManager issues and validates HS256 access and refresh tokens.
type JWTManager struct {
	cfg config.JWTConfig
	now func() time.Time
}

func NewJWTManager(cfg config.JWTConfig) *JWTManager {
	return &JWTManager{cfg: cfg, now: time.Now}
}

func (m *JWTManager) GenerateTokenPair(claims *domain.Claims) (*domain.TokenPair, error) {
	access, expiresAt, err := m.sign(claims, kindAccess, m.cfg.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("signing access token: %w", err)
	}
	refresh, _, err := m.sign(claims, kindRefresh, m.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("signing refresh token: %w", err)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
		TokenType:    "Bearer",
	}, nil
}

func (m *JWTManager) ValidateAccessToken(token string) (*domain.Claims, error) {
	return m.parse(token, kindAccess)
}

func (m *JWTManager) ValidateRefreshToken(token string) (*domain.Claims, error) {
	return m.parse(token, kindRefresh)
}

func (m *JWTManager) sign(claims *domain.Claims, kind tokenKind, ttl time.Duration) (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(ttl)

	sc := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.cfg.Issuer,
			Subject:   claims.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:     claims.Email,
		Role:      claims.Role,
		DoctorID:  claims.DoctorID,
		PatientID: claims.PatientID,
		Kind:      kind,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sc).SignedString([]byte(m.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (m *JWTManager) parse(raw string, want tokenKind) (*domain.Claims, error) {
	var sc sessionClaims
	_, err := jwt.ParseWithClaims(raw, &sc, m.key,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(clockSkew),
		jwt.WithTimeFunc(m.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, ErrTokenInvalid
	}

	if sc.Kind != want {
		return nil, ErrTokenTypeMismatch
	}
	return sc.domainClaims()
}

func (m *JWTManager) key(*jwt.Token) (any, error) {
	return []byte(m.cfg.Secret), nil
}

func (sc *sessionClaims) domainClaims() (*domain.Claims, error) {
	userID, err := uuid.Parse(sc.Subject)
	if err != nil || sc.IssuedAt == nil {
		return nil, ErrTokenInvalid
	}
	return &domain.Claims{
		UserID:    userID,
		Email:     sc.Email,
		Role:      sc.Role,
		DoctorID:  sc.DoctorID,
		PatientID: sc.PatientID,
		IssuedAt:  sc.IssuedAt.Time,
	}, nil
}
