// internal/membership/service.go
package membership

import (
	"context"

	"github.com/google/uuid"
)

// Service is the credential store.
type Service interface {
	// Register creates an account. It fails with ErrDuplicateUsername or
	// ErrInvalidRole.
	Register(ctx context.Context, username, password, role string) (*Account, error)
	// Authenticate returns a session on a matching password and
	// ErrInvalidCredentials otherwise, whether or not the username exists.
	Authenticate(ctx context.Context, username, password string) (*Session, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*Account, error)
}
