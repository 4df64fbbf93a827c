package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librarydesk/internal/requestctx"
	"librarydesk/internal/store"
	"librarydesk/internal/store/storetest"
)

func fixedClock() time.Time {
	return time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)
}

func seedAccount(t *testing.T, s *store.Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := store.Exec(context.Background(), s.DB(), s.Builder().Insert("accounts").Rows(goqu.Record{
		"id":              id,
		"username":        "alice-" + id.String()[:8],
		"password_digest": "x",
		"role":            "reader",
		"created_at":      fixedClock(),
	}).Prepared(true))
	require.NoError(t, err)
	return id
}

func TestAppendAndListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	log := NewLog(s, fixedClock)
	alice := seedAccount(t, s)

	require.NoError(t, s.WithTx(ctx, "test", func(tx *store.Tx) error {
		if err := log.Append(ctx, tx, Entry{
			AccountID:   For(alice),
			Action:      ActionBorrowed,
			Description: "borrowed Dune",
			Metadata:    map[string]any{"title": "Dune"},
		}); err != nil {
			return err
		}
		return log.Append(ctx, tx, Entry{Action: ActionTitleAdded, Description: "added Dune"})
	}))

	entries, err := log.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ActionTitleAdded, entries[0].Action)
	assert.False(t, entries[0].AccountID.Valid)
	assert.Nil(t, entries[0].Metadata)

	assert.Equal(t, ActionBorrowed, entries[1].Action)
	assert.Equal(t, alice, entries[1].AccountID.UUID)
	assert.Equal(t, "Dune", entries[1].Metadata["title"])
	assert.True(t, entries[1].OccurredAt.Equal(fixedClock()))
	assert.Greater(t, entries[0].ID, entries[1].ID)
}

func TestAppendRolledBackWithCaller(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	log := NewLog(s, fixedClock)
	boom := errors.New("boom")

	err := s.WithTx(ctx, "test", func(tx *store.Tx) error {
		require.NoError(t, log.Append(ctx, tx, Entry{Action: ActionRestocked, Description: "restock"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	entries, err := log.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAlarmCommitsOnItsOwn(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	log := NewLog(s, fixedClock)

	require.NoError(t, log.Alarm(ctx, Entry{Action: ActionBorrowed, Description: "available exceeds total"}))

	entries, err := log.List(ctx, Filter{Action: ActionIntegrityAlarm})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "available exceeds total", entries[0].Description)
}

func TestListFiltersByAccountAndLimit(t *testing.T) {
	ctx := context.Background()
	s := storetest.NewSQLite(t)
	log := NewLog(s, fixedClock)
	alice := seedAccount(t, s)
	bob := seedAccount(t, s)

	for i := 0; i < 3; i++ {
		require.NoError(t, log.Append(ctx, s.DB(), Entry{AccountID: For(alice), Action: ActionBorrowed, Description: "a"}))
	}
	require.NoError(t, log.Append(ctx, s.DB(), Entry{AccountID: For(bob), Action: ActionBorrowed, Description: "b"}))

	entries, err := log.List(ctx, Filter{AccountID: For(alice)})
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	entries, err = log.List(ctx, Filter{AccountID: For(alice), Limit: 2})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestActorFromRequestContext(t *testing.T) {
	assert.False(t, Actor(context.Background()).Valid)

	id := uuid.New()
	got := Actor(requestctx.WithActor(context.Background(), id))
	assert.True(t, got.Valid)
	assert.Equal(t, id, got.UUID)
}

func TestForNilIsNull(t *testing.T) {
	assert.False(t, For(uuid.Nil).Valid)
}
