// internal/store/storetest/storetest.go

// Package storetest opens throw-away stores for package tests.
package storetest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"librarydesk/internal/store"
)

// PostgresURLEnv names the variable that enables postgres-backed tests.
const PostgresURLEnv = "LIBRARYDESK_TEST_POSTGRES_URL"

// NewSQLite returns a migrated sqlite store in a temp dir, closed on cleanup.
func NewSQLite(t testing.TB) *store.Store {
	t.Helper()
	return open(t, store.Options{
		Driver:      store.DriverSQLite,
		URL:         filepath.Join(t.TempDir(), "library.db"),
		LockTimeout: 5 * time.Second,
	})
}

// NewPostgres returns a migrated, emptied postgres store. It skips the test
// when LIBRARYDESK_TEST_POSTGRES_URL is unset or the server is unreachable.
// Tests using it must not run in parallel with each other.
func NewPostgres(t testing.TB) *store.Store {
	t.Helper()

	url := os.Getenv(PostgresURLEnv)
	if url == "" {
		t.Skipf("skipping postgres test: %s not set", PostgresURLEnv)
	}
	driver := os.Getenv("LIBRARYDESK_TEST_POSTGRES_DRIVER")
	if driver == "" {
		driver = store.DriverPostgres
	}

	s, err := store.Open(context.Background(), store.Options{
		Driver:      driver,
		URL:         url,
		LockTimeout: 2 * time.Second,
	})
	if err != nil {
		t.Skipf("skipping postgres test: could not connect: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := s.DB().ExecContext(context.Background(),
		`TRUNCATE TABLE audit_log, loans, titles, authors, categories, accounts CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func open(t testing.TB, opts store.Options) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}
