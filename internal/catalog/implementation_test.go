package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/apperr"
	"librarydesk/internal/audit"
	"librarydesk/internal/logging"
	"librarydesk/internal/store"
	"librarydesk/internal/store/storetest"
)

func newTestService(t *testing.T) (Service, *store.Store, *audit.Log) {
	t.Helper()
	s := storetest.NewSQLite(t)
	log := audit.NewLog(s, nil)
	return NewService(s, log, logging.Discard()), s, log
}

func TestAddTitle(t *testing.T) {
	ctx := context.Background()
	svc, _, log := newTestService(t)

	title, err := svc.AddTitle(ctx, "Dune", "Frank Herbert", "Sci-Fi", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, title.TotalCopies)
	assert.Equal(t, 3, title.AvailableCopies)

	got, err := svc.GetTitle(ctx, title.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune", got.Name)
	assert.Equal(t, "Frank Herbert", got.AuthorName)
	assert.Equal(t, "Sci-Fi", got.CategoryName)
	assert.Equal(t, title.AuthorID, got.AuthorID)

	entries, err := log.List(ctx, audit.Filter{Action: audit.ActionTitleAdded})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, title.ID.String(), entries[0].Metadata["title_id"])
}

func TestAddTitleReusesAuthorAndCategory(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	dune, err := svc.AddTitle(ctx, "Dune", "Frank Herbert", "Sci-Fi", 1)
	require.NoError(t, err)
	messiah, err := svc.AddTitle(ctx, "Dune Messiah", " Frank Herbert ", "Sci-Fi", 1)
	require.NoError(t, err)

	assert.Equal(t, dune.AuthorID, messiah.AuthorID)
	assert.Equal(t, dune.CategoryID, messiah.CategoryID)

	author, err := svc.EnsureAuthor(ctx, "Frank Herbert")
	require.NoError(t, err)
	assert.Equal(t, dune.AuthorID, author.ID)
}

func TestAddTitleValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, log := newTestService(t)

	for name, args := range map[string]struct {
		name, author, category string
		copies                 int
	}{
		"zero copies":     {"Dune", "Frank Herbert", "Sci-Fi", 0},
		"negative copies": {"Dune", "Frank Herbert", "Sci-Fi", -2},
		"empty name":      {" ", "Frank Herbert", "Sci-Fi", 1},
		"empty author":    {"Dune", "", "Sci-Fi", 1},
		"empty category":  {"Dune", "Frank Herbert", "", 1},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.AddTitle(ctx, args.name, args.author, args.category, args.copies)
			assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
		})
	}

	entries, err := log.List(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestEnsureIsIdempotentUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	const n = 8
	ids := make([]uuid.UUID, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			category, err := svc.EnsureCategory(ctx, "Poetry")
			if assert.NoError(t, err) {
				ids[i] = category.ID
			}
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, ids[0], id)
	}
}

func TestListTitlesOrderedAndRestartable(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newTestService(t)

	for _, name := range []string{"Neuromancer", "Dune", "Foundation"} {
		_, err := svc.AddTitle(ctx, name, "Someone", "Sci-Fi", 1)
		require.NoError(t, err)
	}

	seq := svc.ListTitles(ctx)
	first, err := store.Collect(seq)
	require.NoError(t, err)
	names := make([]string, len(first))
	for i, title := range first {
		names[i] = title.Name
	}
	assert.Equal(t, []string{"Dune", "Foundation", "Neuromancer"}, names)

	_, err = svc.AddTitle(ctx, "Accelerando", "Someone", "Sci-Fi", 1)
	require.NoError(t, err)

	second, err := store.Collect(seq)
	require.NoError(t, err)
	require.Len(t, second, 4)
	assert.Equal(t, "Accelerando", second[0].Name)
}

func TestGetTitleNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, err := svc.GetTitle(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperr.ErrTitleNotFound)
}

func TestStockConsistent(t *testing.T) {
	assert.True(t, Stock{TotalCopies: 2, AvailableCopies: 2}.Consistent())
	assert.True(t, Stock{TotalCopies: 2, AvailableCopies: 0}.Consistent())
	assert.False(t, Stock{TotalCopies: 2, AvailableCopies: 3}.Consistent())
	assert.False(t, Stock{TotalCopies: 2, AvailableCopies: -1}.Consistent())
}
