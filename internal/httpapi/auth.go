// internal/httpapi/auth.go
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"librarydesk/internal/apperr"
	"librarydesk/internal/httpapi/render"
	"librarydesk/internal/membership"
)

// AccountLookup resolves the account a session names.
type AccountLookup interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*membership.Account, error)
}

// authenticate attaches the bearer session, if any, to the request context.
// A malformed or expired token is rejected rather than ignored, and so is a
// token whose account no longer exists. Username and role come from the
// stored account.
func authenticate(sessions *membership.Sessions, accounts AccountLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") {
				render.Error(w, r, apperr.New(apperr.CodeUnauthenticated, "authorization must use the Bearer scheme"))
				return
			}
			sess, err := sessions.Parse(token)
			if err != nil {
				render.Error(w, r, err)
				return
			}
			account, err := accounts.GetAccount(r.Context(), sess.AccountID)
			if errors.Is(err, apperr.ErrAccountNotFound) {
				render.Error(w, r, apperr.Wrap(apperr.CodeUnauthenticated, "session account no longer exists", err))
				return
			}
			if err != nil {
				render.Error(w, r, err)
				return
			}
			sess.Username = account.Username
			sess.Role = account.Role
			next.ServeHTTP(w, r.WithContext(membership.ContextWithSession(r.Context(), sess)))
		})
	}
}

// requireSession rejects requests without a session.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := membership.RequireSession(r.Context()); err != nil {
			render.Error(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
