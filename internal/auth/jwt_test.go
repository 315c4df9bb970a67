package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_RoundTrip(t *testing.T) {
	validator := NewValidator("test-secret")
	teamID := uint64(7)

	token, err := validator.Sign(42, "member", &teamID, time.Hour)
	require.NoError(t, err)

	claims, err := validator.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), claims.UserID)
	assert.Equal(t, "member", claims.Role)
	assert.Equal(t, teamID, *claims.TeamID)
}

func TestValidate_WrongSecret(t *testing.T) {
	token, err := NewValidator("secret-a").Sign(42, "member", nil, time.Hour)
	require.NoError(t, err)

	_, err = NewValidator("secret-b").Validate(token)
	assert.Error(t, err)
}

func TestValidate_Expired(t *testing.T) {
	validator := NewValidator("test-secret")
	token, err := validator.Sign(42, "member", nil, -time.Minute)
	require.NoError(t, err)

	_, err = validator.Validate(token)
	assert.Error(t, err)
}

func TestValidate_WrongIssuer(t *testing.T) {
	secret := []byte("test-secret")
	claims := Claims{
		UserID: 42,
		Role:   "member",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			Issuer:    "someone-else",
			Audience:  jwt.ClaimStrings{tokenAudience},
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)

	_, err = NewValidator("test-secret").Validate(token)
	assert.Error(t, err)
}
