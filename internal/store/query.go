// internal/store/query.go
package store

import (
	"context"
	"database/sql"
	"fmt"
	"iter"

	"github.com/jmoiron/sqlx"
)

// Querier is satisfied by both the pool and a transaction.
type Querier interface {
	sqlx.QueryerContext
	sqlx.ExecerContext
}

// Statement is any goqu dataset.
type Statement interface {
	ToSQL() (string, []interface{}, error)
}

// Get scans a single row into dest. It returns sql.ErrNoRows when nothing matches.
func Get(ctx context.Context, q Querier, dest any, stmt Statement) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

// Select scans every row into the slice pointed to by dest.
func Select(ctx context.Context, q Querier, dest any, stmt Statement) error {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

// Exec runs a statement that returns no rows.
func Exec(ctx context.Context, q Querier, stmt Statement) (sql.Result, error) {
	query, args, err := stmt.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return q.ExecContext(ctx, query, args...)
}

// ExecOne runs a statement and reports whether exactly one row was affected.
func ExecOne(ctx context.Context, q Querier, stmt Statement) (bool, error) {
	res, err := Exec(ctx, q, stmt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Seq runs stmt each time the sequence is ranged over and yields one scanned
// row at a time. Nothing is cached between iterations.
func Seq[T any](ctx context.Context, q Querier, stmt Statement) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T

		query, args, err := stmt.ToSQL()
		if err != nil {
			yield(zero, fmt.Errorf("build query: %w", err))
			return
		}
		rows, err := q.QueryxContext(ctx, query, args...)
		if err != nil {
			yield(zero, Classify(err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var item T
			if err := rows.StructScan(&item); err != nil {
				yield(zero, fmt.Errorf("scan row: %w", err))
				return
			}
			if !yield(item, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(zero, fmt.Errorf("iterate rows: %w", Classify(err)))
		}
	}
}

// Collect drains a sequence into a slice, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for item, err := range seq {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
