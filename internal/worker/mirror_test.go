package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timetracker/internal/amqp"
	"timetracker/internal/core"
	"timetracker/internal/store"
	"timetracker/internal/tables"
	"timetracker/internal/tables/memory"
)

func entry(id, date string, minutes int) core.FlatTimeEntry {
	return core.FlatTimeEntry{
		TimeEntry: core.TimeEntry{ID: id, Description: "work " + id, DurationMinutes: minutes, CategoryID: "1"},
		Date:      date,
	}
}

func pinned() store.EntryOption {
	return store.WithNormalizer(core.DateNormalizer{
		Now:      func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) },
		Location: time.UTC,
	})
}

func TestHandleEvent_SavedThenDeleted(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	mirror := store.NewEntryStore(mem, "", pinned())
	w := NewMirrorWorker(mirror, nil)

	e := entry("100", "2024-05-02", 90)
	require.NoError(t, w.HandleEvent(ctx, amqp.NewEntrySavedEvent(e, "user-7")))

	rows, err := mem.Table(tables.EntriesTable).Select(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "user-7", rows[0]["user_id"])
	want := e
	want.Owner = "user-7"
	assert.Equal(t, []core.FlatTimeEntry{want}, mirror.List(ctx))

	require.NoError(t, w.HandleEvent(ctx, amqp.NewEntryDeletedEvent("100", "user-7")))
	assert.Empty(t, mirror.List(ctx))
}

func TestHandleEvent_UnknownTypeIsIgnored(t *testing.T) {
	w := NewMirrorWorker(store.NewEntryStore(memory.New(), ""), nil)
	assert.NoError(t, w.HandleEvent(context.Background(), &amqp.EntryEvent{Type: "entry.renamed", ID: "1"}))
}

type failingWriter struct{ err error }

func (f failingWriter) Save(context.Context, core.FlatTimeEntry) error { return f.err }
func (f failingWriter) Delete(context.Context, string) error           { return f.err }

func TestHandleEvent_FailureIsReturnedForRequeue(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := NewMirrorWorker(failingWriter{err: boom}, nil)

	err := w.HandleEvent(context.Background(), amqp.NewEntrySavedEvent(entry("1", "2024-01-01", 5), ""))
	assert.ErrorIs(t, err, boom)
}

func TestReconcile_CopiesMissingAndChanged(t *testing.T) {
	ctx := context.Background()
	source := store.NewEntryStore(memory.New(), "", pinned())
	mirror := store.NewEntryStore(memory.New(), "", pinned())

	for _, e := range []core.FlatTimeEntry{entry("1", "2024-05-01", 30), entry("2", "2024-05-02", 60), entry("3", "2024-05-03", 15)} {
		require.NoError(t, source.Save(ctx, e))
	}
	require.NoError(t, mirror.Save(ctx, entry("1", "2024-05-01", 30)))
	require.NoError(t, mirror.Save(ctx, entry("2", "2024-05-02", 45)))
	require.NoError(t, mirror.Save(ctx, entry("9", "2024-04-01", 10)))

	w := NewMirrorWorker(mirror, nil)
	require.NoError(t, w.Reconcile(ctx, source, mirror))

	got := map[string]int{}
	for _, e := range mirror.List(ctx) {
		got[e.ID] = e.DurationMinutes
	}
	assert.Equal(t, map[string]int{"1": 30, "2": 60, "3": 15, "9": 10}, got)
}

func TestReconcile_KeepsOwner(t *testing.T) {
	ctx := context.Background()
	source := store.NewEntryStore(memory.New(), "", pinned())
	mirrorMem := memory.New()
	mirror := store.NewEntryStore(mirrorMem, "", pinned())

	alice := tables.WithIdentity(ctx, tables.Identity{UserID: "alice"})
	require.NoError(t, source.Save(alice, entry("1", "2024-05-01", 30)))
	// mirrored earlier without an owner
	require.NoError(t, mirror.Save(ctx, entry("1", "2024-05-01", 30)))

	w := NewMirrorWorker(mirror, nil)
	require.NoError(t, w.Reconcile(ctx, source, mirror))

	rows, err := mirrorMem.Table(tables.EntriesTable).Select(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "alice", rows[0]["user_id"])
	assert.Len(t, mirror.List(alice), 1)
}

type brokenClient struct{}

func (brokenClient) Table(string) tables.Table { return brokenTable{} }

type brokenTable struct{}

func (brokenTable) Select(context.Context) ([]tables.Row, error) { return nil, errors.New("offline") }
func (brokenTable) Upsert(context.Context, tables.Row) error     { return errors.New("offline") }
func (brokenTable) Insert(context.Context, ...tables.Row) error  { return errors.New("offline") }
func (brokenTable) Delete(context.Context, string) error         { return errors.New("offline") }

func TestReconcile_SourceFailureAborts(t *testing.T) {
	mirror := store.NewEntryStore(memory.New(), "")
	w := NewMirrorWorker(mirror, nil)

	err := w.Reconcile(context.Background(), store.NewEntryStore(brokenClient{}, ""), mirror)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read source entries")
}
