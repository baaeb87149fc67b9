package auth

import (
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/telecare/internal/config"
	"github.com/dmehra2102/prod-golang-projects/telecare/internal/domain"
	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:          "0123456789abcdef0123456789abcdef",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		Issuer:          "telecare-test",
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager(testJWTConfig())
	doctorID := uuid.New()
	in := &domain.Claims{UserID: uuid.New(), Email: "dr@example.com", Role: domain.RoleDoctor, DoctorID: &doctorID}

	pair, err := m.GenerateTokenPair(in)
	require.NoError(t, err)
	assert.Equal(t, "Bearer", pair.TokenType)

	out, err := m.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, in.UserID, out.UserID)
	assert.Equal(t, domain.RoleDoctor, out.Role)
	require.NotNil(t, out.DoctorID)
	assert.Equal(t, doctorID, *out.DoctorID)
	assert.Nil(t, out.PatientID)

	_, err = m.ValidateRefreshToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)

	_, err = m.ValidateRefreshToken(pair.RefreshToken)
	assert.NoError(t, err)
}

func TestJWTManager_Rejects(t *testing.T) {
	m := NewJWTManager(testJWTConfig())
	claims := &domain.Claims{UserID: uuid.New(), Role: domain.RolePatient}

	other := testJWTConfig()
	other.Secret = "ffffffffffffffffffffffffffffffff"
	pair, err := NewJWTManager(other).GenerateTokenPair(claims)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	expired := testJWTConfig()
	expired.AccessTokenTTL = -time.Minute
	pair, err = NewJWTManager(expired).GenerateTokenPair(claims)
	require.NoError(t, err)
	_, err = m.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = m.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestJWTManager_ClockSkew(t *testing.T) {
	now := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)
	claims := &domain.Claims{UserID: uuid.New(), Role: domain.RolePatient}

	verifier := NewJWTManager(testJWTConfig())
	verifier.now = func() time.Time { return now }

	ahead := NewJWTManager(testJWTConfig())
	ahead.now = func() time.Time { return now.Add(5 * time.Second) }
	pair, err := ahead.GenerateTokenPair(claims)
	require.NoError(t, err)
	out, err := verifier.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err, "small skew is tolerated")
	assert.True(t, out.IssuedAt.Equal(now.Add(5*time.Second)))

	ahead.now = func() time.Time { return now.Add(time.Minute) }
	pair, err = ahead.GenerateTokenPair(claims)
	require.NoError(t, err)
	_, err = verifier.ValidateAccessToken(pair.AccessToken)
	assert.ErrorIs(t, err, ErrTokenInvalid, "tokens from the future are rejected")
}

func TestTOTP(t *testing.T) {
	tp := NewTOTP("telecare")
	enr, err := tp.Generate("patient@example.com")
	require.NoError(t, err)
	assert.Contains(t, enr.URL, "otpauth://totp/")
	assert.NotEmpty(t, enr.Secret)

	now := time.Now()
	code, err := totp.GenerateCode(enr.Secret, now)
	require.NoError(t, err)

	assert.True(t, tp.Validate(code, enr.Secret, now))
	assert.True(t, tp.Validate(code, enr.Secret, now.Add(30*time.Second)), "one period of skew")
	assert.False(t, tp.Validate(code, enr.Secret, now.Add(5*time.Minute)))
	assert.False(t, tp.Validate("", enr.Secret, now))
}
