package jobs

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()
	sqlStore, err := NewSQLStore(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlStore.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlStore,
	}
}

func TestStoreLifecycle(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			req := json.RawMessage(`{"query":"q"}`)
			require.NoError(t, store.Create(ctx, Job{ID: "j1", Kind: "council", Request: req}))

			got, err := store.Get(ctx, "j1")
			require.NoError(t, err)
			assert.Equal(t, StatusPending, got.Status)
			assert.JSONEq(t, `{"query":"q"}`, string(got.Request))
			assert.Nil(t, got.CompletedAt)
			assert.False(t, got.CreatedAt.IsZero())

			got.Status = StatusRunning
			require.NoError(t, store.Update(ctx, got))

			got.Status = StatusDone
			got.Result = json.RawMessage(`{"ok":true}`)
			require.NoError(t, store.Update(ctx, got))

			final, err := store.Get(ctx, "j1")
			require.NoError(t, err)
			assert.Equal(t, StatusDone, final.Status)
			assert.JSONEq(t, `{"ok":true}`, string(final.Result))
			require.NotNil(t, final.CompletedAt)
			assert.Equal(t, "council", final.Kind)
		})
	}
}

func TestStoreNotFound(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := store.Get(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
			err = store.Update(ctx, Job{ID: "missing", Status: StatusFailed})
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsInvalidCreate(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.Error(t, store.Create(ctx, Job{Kind: "council"}))
			require.NoError(t, store.Create(ctx, Job{ID: "dup", Kind: "council"}))
			assert.Error(t, store.Create(ctx, Job{ID: "dup", Kind: "council"}))
		})
	}
}

func TestStoreListNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, id := range []string{"a", "b", "c"} {
				require.NoError(t, store.Create(ctx, Job{
					ID:        id,
					Kind:      "trade",
					CreatedAt: base.Add(time.Duration(i) * time.Minute),
				}))
			}
			list, err := store.List(ctx, 2)
			require.NoError(t, err)
			require.Len(t, list, 2)
			assert.Equal(t, "c", list[0].ID)
			assert.Equal(t, "b", list[1].ID)
		})
	}
}

func TestFailedJobKeepsError(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.Create(ctx, Job{ID: "f", Kind: "council"}))
			require.NoError(t, store.Update(ctx, Job{ID: "f", Status: StatusFailed, Error: "boom"}))
			got, err := store.Get(ctx, "f")
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, got.Status)
			assert.Equal(t, "boom", got.Error)
			assert.NotNil(t, got.CompletedAt)
		})
	}
}

func TestNewSQLStoreRequiresPath(t *testing.T) {
	_, err := NewSQLStore("  ")
	assert.Error(t, err)
}
