package auth

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stagepay/internal/model"
)

const secret = "test-secret"

func TestJWT_RoundTrip(t *testing.T) {
	token, err := GenerateJWT(model.Actor{UserID: 42, Role: model.RoleContractor}, secret, time.Hour)
	require.NoError(t, err)

	actor, err := ParseJWT(token, secret)
	require.NoError(t, err)
	assert.Equal(t, model.Actor{UserID: 42, Role: model.RoleContractor}, actor)

	_, err = ParseJWT(token, "other-secret")
	assert.Error(t, err)
}

func TestParseJWT_RejectsExpired(t *testing.T) {
	token, err := GenerateJWT(model.Actor{UserID: 42, Role: model.RoleAdmin}, secret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT(token, secret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseJWT_RejectsUnknownRole(t *testing.T) {
	token, err := GenerateJWT(model.Actor{UserID: 42, Role: "superuser"}, secret, time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT(token, secret)
	assert.ErrorIs(t, err, ErrInvalidClaims)
}

func TestParseJWT_RejectsMissingExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": 1, "role": "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = ParseJWT(token, secret)
	assert.Error(t, err)
}

func TestExtractToken(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, ExtractToken(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", ExtractToken(r))

	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, ExtractToken(r))
}
