// Package token issues and verifies the signed identity tokens returned to
// clients. Tokens are self-contained JWTs (HS256): three dot-separated,
// base64url-encoded segments carrying the algorithm header, the claim set,
// and the signature. Validity is re-derived entirely from the token bytes,
// the signing key, and the current time; nothing is stored server-side.
package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/avdeev/usersvc/internal/common"
	"github.com/avdeev/usersvc/internal/server/models"
)

// Claims is the claim set embedded in every issued token: the standard
// subject/issued-at/expiry claims plus the user's role.
type Claims struct {
	jwt.RegisteredClaims
	Role models.Role `json:"role"`
}

// Manager signs and verifies tokens with a fixed key and lifetime, both set
// once at startup. Safe for concurrent use; it holds no mutable state.
type Manager struct {
	secretKey []byte
	validity  time.Duration
}

func NewManager(secretKey []byte, validity time.Duration) *Manager {
	return &Manager{secretKey: secretKey, validity: validity}
}

// Issue builds a claim set for the user and signs it. Subject is the user's
// stable ID; expiry is issued-at plus the configured lifetime.
func (m *Manager) Issue(user *models.User) (string, error) {
	now := time.Now()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.validity)),
		},
		Role: user.Role,
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Parse verifies a token string and returns its claims.
//
// The signing algorithm is pinned to HS256: a token whose header declares any
// other algorithm (including "none") fails with ErrInvalidSignature. The
// signature is checked before any claim is trusted. A token is already
// invalid at exactly its expiry instant.
//
// Failures map to common.ErrMalformedToken, common.ErrInvalidSignature, or
// common.ErrTokenExpired.
func (m *Manager) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, mapError(err)
	}

	if !parsed.Valid {
		return nil, common.ErrInvalidSignature
	}

	if claims.Subject == "" {
		return nil, common.ErrMalformedToken
	}

	return claims, nil
}

func mapError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenMalformed):
		return common.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrInvalidSignature
	default:
		return common.ErrInvalidSignature
	}
}
