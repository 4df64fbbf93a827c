// internal/circulation/inventory.go
package circulation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"librarydesk/internal/apperr"
	"librarydesk/internal/store"
)

// takeCopy decrements available_copies. The WHERE clause repeats the
// availability check so the row can never go negative.
func takeCopy(ctx context.Context, tx *store.Tx, titleID uuid.UUID) (bool, error) {
	ok, err := store.ExecOne(ctx, tx, tx.Builder().Update("titles").
		Set(goqu.Record{"available_copies": goqu.L("available_copies - 1")}).
		Where(
			goqu.C("id").Eq(titleID),
			goqu.C("available_copies").Gt(0),
		).
		Prepared(true))
	if err != nil {
		return false, fmt.Errorf("decrement available copies: %w", err)
	}
	return ok, nil
}

// creditCopy increments available_copies unless it already equals
// total_copies.
func creditCopy(ctx context.Context, tx *store.Tx, titleID uuid.UUID) (bool, error) {
	ok, err := store.ExecOne(ctx, tx, tx.Builder().Update("titles").
		Set(goqu.Record{"available_copies": goqu.L("available_copies + 1")}).
		Where(
			goqu.C("id").Eq(titleID),
			goqu.C("available_copies").Lt(goqu.C("total_copies")),
		).
		Prepared(true))
	if err != nil {
		return false, fmt.Errorf("increment available copies: %w", err)
	}
	return ok, nil
}

// addCopies grows both counters of a title by n.
func addCopies(ctx context.Context, tx *store.Tx, titleID uuid.UUID, n int) (bool, error) {
	ok, err := store.ExecOne(ctx, tx, tx.Builder().Update("titles").
		Set(goqu.Record{
			"total_copies":     goqu.L("total_copies + ?", n),
			"available_copies": goqu.L("available_copies + ?", n),
		}).
		Where(goqu.C("id").Eq(titleID)).
		Prepared(true))
	if err != nil {
		return false, fmt.Errorf("restock title: %w", err)
	}
	return ok, nil
}

func requireAccount(ctx context.Context, tx *store.Tx, accountID uuid.UUID) error {
	var id uuid.UUID
	err := store.Get(ctx, tx, &id, tx.Builder().From("accounts").
		Select("id").
		Where(goqu.C("id").Eq(accountID)).
		Prepared(true))
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	return nil
}
