// internal/store/tx.go
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tx is a transaction opened by WithTx.
type Tx struct {
	*sqlx.Tx
	store *Store
}

// Builder returns the store dialect.
func (tx *Tx) Builder() goqu.DialectWrapper {
	return tx.store.builder
}

// ForUpdate locks the selected rows until the transaction ends.
func (tx *Tx) ForUpdate(ds *goqu.SelectDataset) *goqu.SelectDataset {
	return tx.store.ForUpdate(ds)
}

// WithTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back otherwise, so a failed fn leaves every row as it was. Lock and
// serialization failures come back as apperr.ErrBusy.
func (s *Store) WithTx(ctx context.Context, name string, fn func(tx *Tx) error) error {
	ctx, span := s.tracer.Start(ctx, "store.tx",
		trace.WithAttributes(
			attribute.String("tx.name", name),
			attribute.String("db.system", s.dialect),
		),
	)
	defer span.End()

	err := s.runTx(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: s.isolation})
	if err != nil {
		return Classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer sqlTx.Rollback()

	if s.rowLocks {
		stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
		if _, err := sqlTx.ExecContext(ctx, stmt); err != nil {
			return Classify(fmt.Errorf("set lock timeout: %w", err))
		}
	}

	if err := fn(&Tx{Tx: sqlTx, store: s}); err != nil {
		return Classify(err)
	}

	if err := sqlTx.Commit(); err != nil {
		return Classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}
