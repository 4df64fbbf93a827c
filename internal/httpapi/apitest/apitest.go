// internal/httpapi/apitest/apitest.go

// Package apitest starts a complete API over a temporary SQLite store for
// tests of HTTP consumers.
package apitest

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"librarydesk/internal/audit"
	"librarydesk/internal/catalog"
	"librarydesk/internal/circulation"
	"librarydesk/internal/httpapi"
	"librarydesk/internal/ledger"
	"librarydesk/internal/logging"
	"librarydesk/internal/membership"
	"librarydesk/internal/store/storetest"
)

// Librarian credentials seeded by NewServer.
const (
	Librarian         = "head-librarian"
	LibrarianPassword = "stacks-and-shelves"
)

// Today is the server's clock for requests that omit a date.
var Today = time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)

// NewServer serves the full router and seeds one librarian account.
func NewServer(t testing.TB) *httptest.Server {
	t.Helper()
	s := storetest.NewSQLite(t)
	logger := logging.Discard()
	log := audit.NewLog(s, nil)
	loans := ledger.NewService(s)

	members, err := membership.NewService(s, log, membership.Options{
		Params: membership.Params{Time: 1, MemoryKiB: 64, Threads: 1},
		Logger: logger,
	})
	require.NoError(t, err)
	_, err = members.Register(context.Background(), Librarian, LibrarianPassword, string(membership.RoleLibrarian))
	require.NoError(t, err)

	sessions, err := membership.NewSessions([]byte("0123456789abcdef0123456789abcdef"), time.Hour, nil)
	require.NoError(t, err)
	engine, err := circulation.NewService(s, loans, log, circulation.Options{Logger: logger})
	require.NoError(t, err)

	server := httptest.NewServer(httpapi.NewRouter(httpapi.Deps{
		Sessions:    sessions,
		Accounts:    members,
		Membership:  membership.NewHandler(members, sessions),
		Catalog:     catalog.NewHandler(catalog.NewService(s, log, logger)),
		Circulation: circulation.NewHandler(engine, loans, func() time.Time { return Today }),
		Audit:       log,
		Health:      s,
		Logger:      logger,
	}))
	t.Cleanup(server.Close)
	return server
}
