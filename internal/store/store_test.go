package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/apperr"
)

func tempStore(t *testing.T, lockTimeout time.Duration) *Store {
	t.Helper()
	s, err := Open(context.Background(), Options{
		Driver:      DriverSQLite,
		URL:         filepath.Join(t.TempDir(), "nested", "test.db"),
		LockTimeout: lockTimeout,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

type authorRow struct {
	ID   uuid.UUID `db:"id"`
	Name string    `db:"name"`
}

func insertAuthor(ctx context.Context, q Querier, b goqu.DialectWrapper, name string) error {
	_, err := Exec(ctx, q, b.Insert("authors").Rows(goqu.Record{
		"id":   uuid.New(),
		"name": name,
	}).Prepared(true))
	return err
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "mysql", URL: "x"})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t,
		"file:lib.db?_busy_timeout=250&_foreign_keys=1&_txlock=immediate&_journal_mode=WAL",
		sqliteDSN("lib.db", 250*time.Millisecond))
	assert.Equal(t,
		"file:lib.db?cache=shared&_busy_timeout=1000&_foreign_keys=1&_txlock=immediate&_journal_mode=WAL",
		sqliteDSN("file:lib.db?cache=shared", time.Second))
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := tempStore(t, time.Second)
	ctx := context.Background()

	require.NoError(t, s.Migrate(ctx))

	var count int
	require.NoError(t, Get(ctx, s.DB(), &count,
		s.Builder().From(migrationTable).Select(goqu.COUNT("*")).Prepared(true)))
	assert.Equal(t, 1, count)
}

func TestWithTxCommits(t *testing.T) {
	s := tempStore(t, time.Second)
	ctx := context.Background()

	err := s.WithTx(ctx, "test", func(tx *Tx) error {
		return insertAuthor(ctx, tx, tx.Builder(), "Herbert")
	})
	require.NoError(t, err)

	var rows []authorRow
	require.NoError(t, Select(ctx, s.DB(), &rows, s.Builder().From("authors").Prepared(true)))
	require.Len(t, rows, 1)
	assert.Equal(t, "Herbert", rows[0].Name)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := tempStore(t, time.Second)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, "test", func(tx *Tx) error {
		if err := insertAuthor(ctx, tx, tx.Builder(), "Le Guin"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var row authorRow
	err = Get(ctx, s.DB(), &row, s.Builder().From("authors").Prepared(true))
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUniqueViolationIsDetected(t *testing.T) {
	s := tempStore(t, time.Second)
	ctx := context.Background()

	require.NoError(t, insertAuthor(ctx, s.DB(), s.Builder(), "Banks"))
	err := insertAuthor(ctx, s.DB(), s.Builder(), "Banks")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}

func TestConcurrentWriterGetsBusy(t *testing.T) {
	s := tempStore(t, 50*time.Millisecond)
	ctx := context.Background()

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- s.WithTx(ctx, "holder", func(tx *Tx) error {
			if err := insertAuthor(ctx, tx, tx.Builder(), "Holder"); err != nil {
				return err
			}
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked
	err := s.WithTx(ctx, "waiter", func(tx *Tx) error {
		return insertAuthor(ctx, tx, tx.Builder(), "Waiter")
	})
	close(release)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBusy)
	assert.True(t, apperr.IsRetryable(err))
	require.NoError(t, <-done)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		busy bool
	}{
		{"sqlite busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"sqlite locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"sqlite constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"pq lock timeout", &pq.Error{Code: "55P03"}, true},
		{"pq serialization", fmt.Errorf("commit: %w", &pq.Error{Code: "40001"}), true},
		{"pq unique", &pq.Error{Code: "23505"}, false},
		{"pgx deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"pgx unique", &pgconn.PgError{Code: "23505"}, false},
		{"deadline", fmt.Errorf("begin: %w", context.DeadlineExceeded), true},
		{"domain error", apperr.ErrTitleNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			assert.Equal(t, tt.busy, errors.Is(got, apperr.ErrBusy))
			assert.ErrorIs(t, got, tt.err)
		})
	}
	assert.NoError(t, Classify(nil))
}

func TestSeqIsRestartable(t *testing.T) {
	s := tempStore(t, time.Second)
	ctx := context.Background()
	for _, name := range []string{"Austen", "Borges", "Calvino"} {
		require.NoError(t, insertAuthor(ctx, s.DB(), s.Builder(), name))
	}

	seq := Seq[authorRow](ctx, s.DB(), s.Builder().From("authors").
		Select("id", "name").
		Order(goqu.C("name").Asc()).
		Prepared(true))

	first, err := Collect(seq)
	require.NoError(t, err)
	second, err := Collect(seq)
	require.NoError(t, err)

	require.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.Equal(t, "Austen", first[0].Name)

	// Stopping early must not leak the cursor.
	for row, err := range seq {
		require.NoError(t, err)
		assert.Equal(t, "Austen", row.Name)
		break
	}
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- header\nCREATE TABLE a (x INT);\n\n-- only a comment\n;\nCREATE INDEX i ON a(x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, stmts)
}
