package membership

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/apperr"
	"librarydesk/internal/requestctx"
)

func TestParseRole(t *testing.T) {
	role, err := ParseRole("reader")
	require.NoError(t, err)
	assert.Equal(t, RoleReader, role)

	role, err = ParseRole("librarian")
	require.NoError(t, err)
	assert.Equal(t, RoleLibrarian, role)

	for _, bad := range []string{"", "admin", "Reader"} {
		_, err := ParseRole(bad)
		assert.ErrorIs(t, err, apperr.ErrInvalidRole, bad)
	}
}

func TestSessionRequire(t *testing.T) {
	reader := Session{AccountID: uuid.New(), Role: RoleReader}
	assert.NoError(t, reader.Require(RoleReader, RoleLibrarian))
	assert.ErrorIs(t, reader.Require(RoleLibrarian), apperr.ErrForbidden)
	assert.False(t, reader.IsLibrarian())
}

func TestSessionContext(t *testing.T) {
	_, err := RequireSession(context.Background())
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	sess := Session{AccountID: uuid.New(), Username: "ann", Role: RoleLibrarian}
	ctx := ContextWithSession(context.Background(), sess)

	got, err := RequireSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess, got)

	actor, ok := requestctx.ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, sess.AccountID, actor)
}
