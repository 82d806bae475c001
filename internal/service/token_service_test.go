package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/models"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "timetable", Audience: []string{"web"}})
	teacherID := int64(12)

	token, err := svc.Issue(models.JWTClaims{UserID: "u-1", Role: models.RoleTeacher, TeacherID: &teacherID}, time.Hour)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
	assert.Equal(t, teacherID, *claims.TeacherID)
	assert.False(t, claims.IsAdmin())
}

func TestTokenServiceRejectsInvalidTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "timetable"})
	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "timetable"})
	foreign := NewTokenService(TokenConfig{Secret: "secret", Issuer: "someone-else"})

	wrongKey, err := other.Issue(models.JWTClaims{UserID: "u", Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	expired, err := svc.Issue(models.JWTClaims{UserID: "u", Role: models.RoleAdmin}, -time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := foreign.Issue(models.JWTClaims{UserID: "u", Role: models.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	noTeacher, err := svc.Issue(models.JWTClaims{UserID: "u", Role: models.RoleTeacher}, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"role": "ADMIN"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"garbage":      "not-a-token",
		"wrong key":    wrongKey,
		"expired":      expired,
		"wrong issuer": wrongIssuer,
		"no teacher":   noTeacher,
		"alg none":     none,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
		})
	}
}
