package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/supplycover/internal/cache"
	"github.com/Spok95/supplycover/internal/domain/catalog"
)

type fakeHistory struct {
	saved []catalog.NoteInput
	err   error
}

func (f *fakeHistory) SaveNote(_ context.Context, in catalog.NoteInput) (catalog.HistoryEntry, error) {
	if f.err != nil {
		return catalog.HistoryEntry{}, f.err
	}
	f.saved = append(f.saved, in)
	return catalog.HistoryEntry{ID: int64(len(f.saved)), NoteInput: in}, nil
}

func TestSaveNoteDropsItemsAndNotesCaches(t *testing.T) {
	f := newFixture()
	hist := &fakeHistory{}
	e := f.engine(Options{})
	e.src.History = hist
	ctx := context.Background()

	_, err := e.Items(ctx, Query{})
	require.NoError(t, err)
	_, err = e.DashboardSummary(ctx)
	require.NoError(t, err)
	require.True(t, f.store.Has(cache.ItemsKey(Query{}, 1, 50)))
	require.True(t, f.store.Has(cache.NotesKey([]int64{1})))
	require.True(t, f.store.Has(cache.DashboardKey()))

	entry, err := e.SaveNote(ctx, catalog.NoteInput{ItemID: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), entry.ID)
	require.Len(t, hist.saved, 1)

	assert.False(t, f.store.Has(cache.ItemsKey(Query{}, 1, 50)))
	assert.False(t, f.store.Has(cache.NotesKey([]int64{1})))
	assert.False(t, f.store.Has(cache.DashboardKey()))
	assert.True(t, f.store.Has(cache.TotalsKey([]string{"586243"})), "source batches survive")

	_, err = e.Items(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.cat.calls.Load())
}

func TestSaveNoteFailureKeepsCaches(t *testing.T) {
	f := newFixture()
	e := f.engine(Options{})
	e.src.History = &fakeHistory{err: catalog.ErrItemNotFound}
	ctx := context.Background()

	_, err := e.Items(ctx, Query{})
	require.NoError(t, err)

	_, err = e.SaveNote(ctx, catalog.NoteInput{ItemID: 99})
	assert.ErrorIs(t, err, catalog.ErrItemNotFound)
	assert.True(t, f.store.Has(cache.ItemsKey(Query{}, 1, 50)))
}

func TestSaveNoteWithoutStore(t *testing.T) {
	_, err := newFixture().engine(Options{}).SaveNote(context.Background(), catalog.NoteInput{ItemID: 1})
	assert.True(t, errors.Is(err, ErrNotConfigured))
}
