// internal/store/store.go

// Package store is the transactional relational interface every component is
// handed at construction. It owns the connection pool, the SQL dialect, schema
// migrations and the isolation rules for state-changing transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

// Options configures Open.
type Options struct {
	Driver      string
	URL         string
	LockTimeout time.Duration
}

// Store wraps the connection pool together with the dialect rules.
type Store struct {
	db          *sqlx.DB
	dialect     string
	builder     goqu.DialectWrapper
	rowLocks    bool
	isolation   sql.IsolationLevel
	lockTimeout time.Duration
	tracer      trace.Tracer
}

// Open connects to the database and verifies it is reachable.
//
// sqlite3 transactions are opened with BEGIN IMMEDIATE so the write lock is
// held from the first read; postgres transactions run at READ COMMITTED and
// rely on SELECT ... FOR UPDATE plus a per-transaction lock_timeout.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}

	s := &Store{
		lockTimeout: opts.LockTimeout,
		tracer:      otel.Tracer("librarydesk/store"),
	}

	var dsn string
	switch opts.Driver {
	case DriverSQLite:
		path := strings.TrimPrefix(opts.URL, "file:")
		if i := strings.IndexByte(path, '?'); i >= 0 {
			path = path[:i]
		}
		// Ensure directory exists so first-run succeeds.
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
		dsn = sqliteDSN(opts.URL, opts.LockTimeout)
		s.dialect = "sqlite3"
		s.isolation = sql.LevelDefault
	case DriverPostgres, DriverPGX:
		dsn = opts.URL
		s.dialect = "postgres"
		s.rowLocks = true
		s.isolation = sql.LevelReadCommitted
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}

	db, err := sqlx.Open(opts.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Driver, err)
	}

	s.db = db
	s.builder = goqu.Dialect(s.dialect)
	return s, nil
}

func sqliteDSN(url string, lockTimeout time.Duration) string {
	dsn := url
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return fmt.Sprintf("%s%s_busy_timeout=%d&_foreign_keys=1&_txlock=immediate&_journal_mode=WAL",
		dsn, sep, lockTimeout.Milliseconds())
}

// Close closes the pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DB returns the pool as a Querier for reads outside a transaction.
func (s *Store) DB() Querier {
	return s.db
}

// Builder returns the goqu dialect used to build every statement.
func (s *Store) Builder() goqu.DialectWrapper {
	return s.builder
}

// ForUpdate adds a row lock clause where the dialect has one. sqlite needs
// none: the immediate transaction already holds the database write lock.
func (s *Store) ForUpdate(ds *goqu.SelectDataset) *goqu.SelectDataset {
	if !s.rowLocks {
		return ds
	}
	return ds.ForUpdate(exp.Wait)
}
