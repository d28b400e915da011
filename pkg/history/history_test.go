package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freitascorp/sheriff/pkg/model"
)

func TestRecorderWritesStatusChange(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := NewRecorder(store, func() time.Time { return now }, nil)

	r.OnModelEvent(model.Event{
		Kind:      model.CommandStatusChanged,
		Deputy:    "h1",
		Command:   model.CommandSnapshot{Nickname: "web"},
		OldStatus: model.StatusRunning,
		NewStatus: model.StatusStoppedErr,
	})

	recs, err := store.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "command_status_changed", recs[0].Kind)
	assert.Equal(t, "web", recs[0].Command)
	assert.Equal(t, "h1", recs[0].Deputy)
	assert.Equal(t, now, recs[0].Timestamp)
	assert.NotEmpty(t, recs[0].ID)
}

func TestRecorderIgnoresUntrackedEventKinds(t *testing.T) {
	store := NewMemoryStore()
	r := NewRecorder(store, nil, nil)
	r.OnModelEvent(model.Event{Kind: model.CommandGroupChanged})

	recs, err := store.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecorderRecordsSplitBrainAndScriptEvents(t *testing.T) {
	store := NewMemoryStore()
	r := NewRecorder(store, nil, nil)

	r.OnModelEvent(model.Event{Kind: model.SplitBrainWarning, Warning: "foreign sheriff detected"})
	r.OnModelEvent(model.Event{Kind: model.ScriptStarted, Script: "deploy"})
	r.OnModelEvent(model.Event{Kind: model.ScriptFinished, Script: "deploy", Warning: "aborted"})

	recs, err := store.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "split_brain_warning", recs[0].Kind)
	assert.Equal(t, "foreign sheriff detected", recs[0].Detail)
	assert.Equal(t, "script_started", recs[1].Kind)
	assert.Equal(t, "script_finished", recs[2].Kind)
	assert.Equal(t, "aborted", recs[2].Detail)
}

func TestMemoryStoreSinceFiltersAndSorts(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, Record{ID: "2", Timestamp: t0.Add(2 * time.Minute)}))
	require.NoError(t, store.Append(ctx, Record{ID: "1", Timestamp: t0.Add(1 * time.Minute)}))
	require.NoError(t, store.Append(ctx, Record{ID: "0", Timestamp: t0.Add(-1 * time.Minute)}))

	recs, err := store.Since(ctx, t0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "1", recs[0].ID)
	assert.Equal(t, "2", recs[1].ID)
}

func TestFileStoreRoundTrips(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Append(ctx, Record{ID: "a", Timestamp: t0, Kind: "command_status_changed"}))
	require.NoError(t, store.Append(ctx, Record{ID: "b", Timestamp: t0.Add(time.Hour), Kind: "script_started"}))

	recs, err := store.Since(ctx, t0.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].ID)
}

func TestFileStoreSinceOnMissingFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)
	defer store.Close()

	recs, err := store.Since(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}
