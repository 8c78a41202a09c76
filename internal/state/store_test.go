package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leaplineage/internal/testutil"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func event(runID string, typ core.EventType, at time.Time) *core.LineageEvent {
	return &core.LineageEvent{
		EventType: typ,
		EventTime: at,
		Run:       core.Run{RunID: runID},
		Job:       core.Job{Namespace: "shop", Name: "model.shop." + runID},
		Inputs:    []core.Dataset{},
		Outputs:   []core.Dataset{},
	}
}

func TestSQLiteStore_OpenClose(t *testing.T) {
	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(1), version)

	require.NoError(t, store.Close())
	require.NoError(t, store.Close(), "closing twice is a no-op")
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	ctx := context.Background()

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	_, err := store.InsertEvent(ctx, event("r1", core.EventTypeStart, time.Now()))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()

	events, err := reopened.ListEvents(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.Equal(t, path, reopened.Path())
}

func TestSQLiteStore_NotOpen(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	_, err := store.InsertEvent(ctx, event("r1", core.EventTypeStart, time.Now()))
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.ListEvents(ctx, "r1")
	assert.ErrorIs(t, err, ErrNotOpen)
	_, err = store.ListRecent(ctx, 10)
	assert.ErrorIs(t, err, ErrNotOpen)
	assert.ErrorIs(t, store.Migrate(), ErrNotOpen)
}

func TestSQLiteStore_InsertAndListEvents(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	startID, err := store.InsertEvent(ctx, event("r1", core.EventTypeStart, t0))
	require.NoError(t, err)
	_, err = store.InsertEvent(ctx, event("r2", core.EventTypeStart, t0.Add(time.Second)))
	require.NoError(t, err)
	failID, err := store.InsertEvent(ctx, event("r1", core.EventTypeFail, t0.Add(2*time.Second)))
	require.NoError(t, err)
	assert.NotEqual(t, startID, failID)

	events, err := store.ListEvents(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, startID, events[0].ID)
	assert.Equal(t, core.EventTypeStart, events[0].EventType)
	assert.Equal(t, t0, events[0].EventTime)
	assert.Equal(t, "shop", events[0].JobNamespace)
	assert.Equal(t, "model.shop.r1", events[0].JobName)
	assert.False(t, events[0].CreatedAt.IsZero())

	assert.Equal(t, failID, events[1].ID)
	assert.Equal(t, core.EventTypeFail, events[1].EventType)

	decoded, err := events[1].Decode()
	require.NoError(t, err)
	assert.Equal(t, core.EventTypeFail, decoded.EventType)
	assert.Equal(t, "r1", decoded.Run.RunID)

	none, err := store.ListEvents(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_ListRecent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, runID := range []string{"a", "b", "c", "d"} {
		_, err := store.InsertEvent(ctx, event(runID, core.EventTypeStart, t0.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	tests := []struct {
		name  string
		limit int
		want  []string
	}{
		{"limited", 2, []string{"d", "c"}},
		{"all", 10, []string{"d", "c", "b", "a"}},
		{"non-positive uses default", 0, []string{"d", "c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.ListRecent(ctx, tt.limit)
			require.NoError(t, err)

			got := make([]string, 0, len(events))
			for _, ev := range events {
				got = append(got, ev.RunID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSQLiteStore_EventTimeStoredInUTC(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	local := time.Date(2024, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))

	_, err := store.InsertEvent(ctx, event("r1", core.EventTypeComplete, local))
	require.NoError(t, err)

	events, err := store.ListEvents(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), events[0].EventTime)
}
