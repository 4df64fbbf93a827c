// internal/membership/domain.go
package membership

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"librarydesk/internal/apperr"
	"librarydesk/internal/requestctx"
)

// Role is the access class of an account.
type Role string

const (
	RoleReader    Role = "reader"
	RoleLibrarian Role = "librarian"
)

// ParseRole accepts exactly "reader" or "librarian".
func ParseRole(value string) (Role, error) {
	switch Role(value) {
	case RoleReader, RoleLibrarian:
		return Role(value), nil
	}
	return "", apperr.New(apperr.CodeInvalidRole, "role must be reader or librarian, got "+quote(value))
}

// Account is a registered user. The digest never leaves the package.
type Account struct {
	ID             uuid.UUID `db:"id"              json:"id"`
	Username       string    `db:"username"        json:"username"`
	PasswordDigest string    `db:"password_digest" json:"-"`
	Role           Role      `db:"role"            json:"role"`
	CreatedAt      time.Time `db:"created_at"      json:"created_at"`
}

// Session is the role-scoped identity returned by Authenticate.
type Session struct {
	AccountID uuid.UUID `json:"account_id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
}

// Require fails with ErrForbidden unless the session holds one of roles.
func (s Session) Require(roles ...Role) error {
	if slices.Contains(roles, s.Role) {
		return nil
	}
	return apperr.New(apperr.CodeForbidden, "operation requires role "+joinRoles(roles))
}

// IsLibrarian reports whether the session may act on behalf of others.
func (s Session) IsLibrarian() bool {
	return s.Role == RoleLibrarian
}

type sessionContextKey struct{}

// ContextWithSession stores sess in ctx and marks its account as the actor.
func ContextWithSession(ctx context.Context, sess Session) context.Context {
	ctx = requestctx.WithActor(ctx, sess.AccountID)
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext returns the session stored by ContextWithSession.
func SessionFromContext(ctx context.Context) (Session, bool) {
	sess, ok := ctx.Value(sessionContextKey{}).(Session)
	return sess, ok
}

// RequireSession returns the session in ctx or ErrUnauthenticated.
func RequireSession(ctx context.Context) (Session, error) {
	sess, ok := SessionFromContext(ctx)
	if !ok {
		return Session{}, apperr.ErrUnauthenticated
	}
	return sess, nil
}

func joinRoles(roles []Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return strings.Join(names, " or ")
}

func quote(s string) string {
	return "\"" + s + "\""
}
