package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "teamsync-identity"
	tokenAudience = "teamsync-api"
)

var (
	ErrInvalidToken = errors.New("invalid token")
)

// Claims are issued by the external identity provider. This service only
// validates them; it never issues tokens.
type Claims struct {
	UserID uint64  `json:"user_id"`
	Role   string  `json:"role"`
	TeamID *uint64 `json:"team_id"`
	jwt.RegisteredClaims
}

// Validator verifies bearer tokens from the identity provider.
type Validator struct {
	secret []byte
}

// NewValidator creates a Validator for the shared HMAC secret.
func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

// Validate parses and verifies a token string and returns its claims.
func (v *Validator) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.Issuer != tokenIssuer {
		return nil, errors.New("invalid token issuer")
	}
	audValid := false
	for _, aud := range claims.Audience {
		if aud == tokenAudience {
			audValid = true
			break
		}
	}
	if !audValid {
		return nil, errors.New("invalid token audience")
	}

	return claims, nil
}

// Sign issues a token with the given claims; used by tests to stand in
// for the identity provider.
func (v *Validator) Sign(userID uint64, role string, teamID *uint64, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: userID,
		Role:   role,
		TeamID: teamID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
