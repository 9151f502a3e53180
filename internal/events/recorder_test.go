package events

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"council/internal/store/gormstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type listingRecorder interface {
	Recorder
	Lister
}

func exerciseRecorder(t *testing.T, r listingRecorder) {
	t.Helper()
	ctx := context.Background()
	at := time.UnixMilli(1_760_000_000_000).UTC()

	id, err := r.Record(ctx, Event{Type: OrderPlaced, Account: " alpha ", WeekID: "2026-W42", RunID: "r1", Payload: map[string]any{"order_id": "o-1"}, OccurredAt: at})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	_, err = r.Record(ctx, Event{Type: BaselineAccountSkipped, Account: "control", WeekID: "2026-W42", RunID: "r1"})
	require.NoError(t, err)
	_, err = r.Record(ctx, Event{Type: OrderFailed, Account: "alpha", WeekID: "2026-W43", RunID: "r2"})
	require.NoError(t, err)

	all, err := r.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, id, all[0].ID)
	assert.Equal(t, "ALPHA", all[0].Account)
	assert.Equal(t, "o-1", all[0].Payload["order_id"])
	assert.True(t, at.Equal(all[0].OccurredAt))
	assert.False(t, all[1].OccurredAt.IsZero())

	alpha, err := r.List(ctx, Filter{Account: "alpha"})
	require.NoError(t, err)
	assert.Len(t, alpha, 2)

	week, err := r.List(ctx, Filter{WeekID: "2026-W42", RunID: "r1"})
	require.NoError(t, err)
	assert.Len(t, week, 2)
}

func TestMemoryRecorder(t *testing.T) {
	exerciseRecorder(t, NewMemoryRecorder())
}

func TestFileRecorder(t *testing.T) {
	r, err := NewFileRecorder(filepath.Join(t.TempDir(), "logs", "events.jsonl"))
	require.NoError(t, err)
	defer r.Close()
	exerciseRecorder(t, r)
}

func TestStoreRecorder(t *testing.T) {
	db, err := gormstore.NewGormStore(filepath.Join(t.TempDir(), "events.db"))
	require.NoError(t, err)
	defer db.Close()
	exerciseRecorder(t, NewStoreRecorder(db))
}

func TestConcurrentRecordsAreAllKept(t *testing.T) {
	r, err := NewFileRecorder(filepath.Join(t.TempDir(), "events.jsonl"))
	require.NoError(t, err)
	defer r.Close()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Record(context.Background(), Event{Type: OrderPlaced, Account: fmt.Sprintf("acct-%d", i)})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()
	all, err := r.List(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestTeeWritesEverySink(t *testing.T) {
	a, b := NewMemoryRecorder(), NewMemoryRecorder()
	tee := Tee{a, b}
	id, err := tee.Record(context.Background(), Event{Type: OrderRetried, Account: "x"})
	require.NoError(t, err)
	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
	assert.Equal(t, id, a.Events()[0].ID)
	assert.Equal(t, id, b.Events()[0].ID)

	listed, err := tee.List(context.Background(), Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
