// internal/membership/sessions.go
package membership

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"librarydesk/internal/apperr"
)

const sessionIssuer = "librarydesk"

// Sessions issues and verifies HS256 bearer tokens carrying a Session.
type Sessions struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Username string `json:"usr"`
	Role     string `json:"role"`
}

// NewSessions creates a token issuer. A nil clock means time.Now.
func NewSessions(secret []byte, ttl time.Duration, now func() time.Time) (*Sessions, error) {
	if len(secret) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	if now == nil {
		now = time.Now
	}
	return &Sessions{secret: secret, ttl: ttl, now: now}, nil
}

// Issue signs a token for sess and returns it with its expiry.
func (s *Sessions) Issue(sess Session) (string, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			Subject:   sess.AccountID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Username: sess.Username,
		Role:     string(sess.Role),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expiresAt, nil
}

// Parse verifies token and returns its session. Any failure is reported as
// ErrUnauthenticated.
func (s *Sessions) Parse(token string) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, apperr.ErrUnauthenticated
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.CodeUnauthenticated, "invalid or expired session", err)
	}

	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.CodeUnauthenticated, "invalid session subject", err)
	}
	role, err := ParseRole(claims.Role)
	if err != nil {
		return Session{}, apperr.Wrap(apperr.CodeUnauthenticated, "invalid session role", err)
	}

	return Session{AccountID: accountID, Username: claims.Username, Role: role}, nil
}
