package main

import (
	"bytes"
	"context"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/apperr"
)

type deskFixture struct {
	t        *testing.T
	password string
	now      time.Time
}

func newDeskFixture(t *testing.T) *deskFixture {
	t.Setenv("LIBRARYDESK_DATABASE_URL", filepath.Join(t.TempDir(), "desk.db"))
	t.Setenv("LIBRARYDESK_ARGON2_MEMORY_KIB", "64")
	t.Setenv("LIBRARYDESK_ARGON2_THREADS", "1")
	t.Setenv("LIBRARYDESK_LOG_LEVEL", "error")
	return &deskFixture{
		t:        t,
		password: "secret",
		now:      time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC),
	}
}

func (f *deskFixture) run(args ...string) (string, error) {
	d := &desk{
		password: func(string) (string, error) { return f.password, nil },
		now:      func() time.Time { return f.now },
	}
	var out, errOut bytes.Buffer
	err := d.execute(context.Background(), args, &out, &errOut)
	return out.String(), err
}

func (f *deskFixture) mustRun(args ...string) string {
	out, err := f.run(args...)
	require.NoError(f.t, err, "desk %v", args)
	return out
}

var idPattern = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)

func firstID(t *testing.T, out string) string {
	id := idPattern.FindString(out)
	require.NotEmpty(t, id, "no id in %q", out)
	return id
}

func TestDeskCirculationFlow(t *testing.T) {
	f := newDeskFixture(t)

	assert.Contains(t, f.mustRun("migrate"), "schema up to date")
	assert.Contains(t, f.mustRun("register", "lib", "--role", "librarian"), "registered lib (librarian)")
	f.mustRun("register", "ann")

	out := f.mustRun("-u", "lib", "add-title", "Dune", "--author", "Frank Herbert", "--category", "Sci-Fi", "--copies", "2")
	titleID := firstID(t, out)

	titles := f.mustRun("titles")
	assert.Contains(t, titles, "Dune")
	assert.Contains(t, titles, "Frank Herbert")

	out = f.mustRun("-u", "ann", "borrow", titleID)
	assert.Contains(t, out, "due 2024-01-15")
	loanID := firstID(t, out)

	assert.Contains(t, f.mustRun("-u", "ann", "loans"), loanID)

	f.now = time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	report := f.mustRun("-u", "lib", "overdue")
	assert.Contains(t, report, "2024-01-15")
	assert.Contains(t, report, "ann")
	assert.Contains(t, report, "17")

	assert.Contains(t, f.mustRun("-u", "ann", "return", loanID), "returned 2024-02-01")
	assert.NotContains(t, f.mustRun("-u", "lib", "overdue"), loanID)

	_, err := f.run("-u", "ann", "return", loanID)
	assert.ErrorIs(t, err, apperr.ErrAlreadyReturned)

	log := f.mustRun("-u", "lib", "audit", "--action", "borrowed")
	assert.Contains(t, log, "borrowed")
	assert.NotContains(t, log, "returned")
}

func TestDeskRestock(t *testing.T) {
	f := newDeskFixture(t)
	f.mustRun("register", "lib", "--role", "librarian")
	titleID := firstID(t, f.mustRun("-u", "lib", "add-title", "Emma", "--author", "Jane Austen", "--category", "Classics"))

	out := f.mustRun("-u", "lib", "restock", titleID, "--copies", "3")
	assert.Contains(t, out, "4 of 4 copies available")
}

func TestDeskRoleChecks(t *testing.T) {
	f := newDeskFixture(t)
	f.mustRun("register", "lib", "--role", "librarian")
	f.mustRun("register", "ann")
	bob := firstID(t, f.mustRun("register", "bob"))
	titleID := firstID(t, f.mustRun("-u", "lib", "add-title", "Dune", "--author", "Frank Herbert", "--category", "Sci-Fi"))

	_, err := f.run("-u", "ann", "add-title", "Emma", "--author", "Jane Austen", "--category", "Classics")
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	_, err = f.run("-u", "ann", "borrow", titleID, "--account", bob)
	assert.ErrorIs(t, err, apperr.ErrForbidden)

	loanID := firstID(t, f.mustRun("-u", "lib", "borrow", titleID, "--account", bob))
	_, err = f.run("-u", "ann", "return", loanID)
	assert.ErrorIs(t, err, apperr.ErrLoanNotFound)

	_, err = f.run("-u", "ann", "overdue")
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestDeskRejectsBadInput(t *testing.T) {
	f := newDeskFixture(t)
	f.mustRun("register", "ann")

	_, err := f.run("-u", "ann", "borrow", "not-a-uuid")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.run("-u", "ann", "borrow", "7c9e6679-7425-40de-944b-e07fc1f90ae7", "--today", "01/02/2024")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	_, err = f.run("borrow", "7c9e6679-7425-40de-944b-e07fc1f90ae7")
	assert.ErrorContains(t, err, "--username")

	f.password = "wrong"
	_, err = f.run("-u", "ann", "loans")
	assert.ErrorIs(t, err, apperr.ErrInvalidCredentials)
}
