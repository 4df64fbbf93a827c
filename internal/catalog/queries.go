// internal/catalog/queries.go
package catalog

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

const (
	titlesTable     = "titles"
	authorsTable    = "authors"
	categoriesTable = "categories"
)

func titlesQuery(b goqu.DialectWrapper) *goqu.SelectDataset {
	return b.From(goqu.T(titlesTable).As("t")).
		Join(goqu.T(authorsTable).As("a"), goqu.On(goqu.I("a.id").Eq(goqu.I("t.author_id")))).
		Join(goqu.T(categoriesTable).As("c"), goqu.On(goqu.I("c.id").Eq(goqu.I("t.category_id")))).
		Select(
			goqu.I("t.id"),
			goqu.I("t.name"),
			goqu.I("t.author_id"),
			goqu.I("a.name").As("author_name"),
			goqu.I("t.category_id"),
			goqu.I("c.name").As("category_name"),
			goqu.I("t.total_copies"),
			goqu.I("t.available_copies"),
		)
}

func getTitle(ctx context.Context, q store.Querier, b goqu.DialectWrapper, id uuid.UUID) (*Title, error) {
	title := &Title{}
	err := store.Get(ctx, q, title, titlesQuery(b).Where(goqu.I("t.id").Eq(id)).Prepared(true))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrTitleNotFound
		}
		return nil, fmt.Errorf("get title: %w", store.Classify(err))
	}
	return title, nil
}

// ReadTitle returns a title with its author and category names as seen by tx.
func ReadTitle(ctx context.Context, tx *store.Tx, id uuid.UUID) (*Title, error) {
	return getTitle(ctx, tx, tx.Builder(), id)
}

// LockStock reads the counters of a title and holds its row lock until tx
// ends. It fails with ErrTitleNotFound.
func LockStock(ctx context.Context, tx *store.Tx, id uuid.UUID) (*Stock, error) {
	stock := &Stock{}
	ds := tx.Builder().From(titlesTable).
		Select("id", "name", "total_copies", "available_copies").
		Where(goqu.C("id").Eq(id))
	err := store.Get(ctx, tx, stock, tx.ForUpdate(ds).Prepared(true))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.ErrTitleNotFound
		}
		return nil, fmt.Errorf("lock title: %w", err)
	}
	return stock, nil
}

// ensureNamed returns the id of the row called name in table, inserting it
// first when absent.
func ensureNamed(ctx context.Context, tx *store.Tx, table, name string) (uuid.UUID, error) {
	_, err := store.Exec(ctx, tx, tx.Builder().Insert(table).
		Rows(goqu.Record{"id": uuid.New(), "name": name}).
		OnConflict(goqu.DoNothing()).
		Prepared(true))
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert into %s: %w", table, err)
	}

	var id uuid.UUID
	err = store.Get(ctx, tx, &id, tx.Builder().From(table).
		Select("id").
		Where(goqu.C("name").Eq(name)).
		Prepared(true))
	if err != nil {
		return uuid.Nil, fmt.Errorf("select from %s: %w", table, err)
	}
	return id, nil
}
