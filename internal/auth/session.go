package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/kurihiro0119/syscope/internal/errors"
)

// Issuer is the iss claim of every session token
const Issuer = "syscope"

// ErrInvalidToken is returned when a session token is invalid
var ErrInvalidToken = apperrors.NewUnauthorizedError("invalid or expired session token")

// Sessions issues and verifies HS256 session tokens. The subject is the
// user's uid; the GitHub token never leaves the server.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSessions creates a session issuer signing with secret
func NewSessions(secret string, ttl time.Duration) *Sessions {
	return &Sessions{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// SessionClaims are the claims of a session token. Epoch is the user's
// session epoch at issue time; a logout bumps the stored epoch and so
// invalidates every token issued before it.
type SessionClaims struct {
	Epoch int `json:"epoch"`
	jwt.RegisteredClaims
}

// Issue signs a session token for uid at the given session epoch
func (s *Sessions) Issue(uid string, epoch int) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		Epoch: epoch,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    Issuer,
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, apperrors.NewInternalError("failed to sign session token", err)
	}
	return token, expiresAt, nil
}

// Parse verifies a session token and returns its claims
func (s *Sessions) Parse(token string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperrors.NewUnauthorizedError("session expired")
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
