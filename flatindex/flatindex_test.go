package flatindex

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpare/zipstore/errs"
)

type fakeWalker struct {
	blocks []struct {
		rbn, lastKey uint32
	}
}

func (w *fakeWalker) WalkActiveBlocks(fn func(rbn, lastKey uint32) error) error {
	for _, b := range w.blocks {
		if err := fn(b.rbn, b.lastKey); err != nil {
			return err
		}
	}
	return nil
}

func TestBuildFromSequenceSetAndLookup(t *testing.T) {
	w := &fakeWalker{blocks: []struct{ rbn, lastKey uint32 }{
		{rbn: 1, lastKey: 100},
		{rbn: 2, lastKey: 200},
		{rbn: 3, lastKey: 300},
	}}
	idx, err := BuildFromSequenceSet(w)
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())

	rbn, ok := idx.Lookup(150)
	require.True(t, ok)
	require.Equal(t, uint32(2), rbn)

	rbn, ok = idx.Lookup(300)
	require.True(t, ok)
	require.Equal(t, uint32(3), rbn)

	_, ok = idx.Lookup(301)
	require.False(t, ok)
}

func TestResolveInsertionBlockFallsBackToTail(t *testing.T) {
	w := &fakeWalker{blocks: []struct{ rbn, lastKey uint32 }{
		{rbn: 1, lastKey: 100},
		{rbn: 2, lastKey: 200},
	}}
	idx, err := BuildFromSequenceSet(w)
	require.NoError(t, err)

	rbn, err := idx.ResolveInsertionBlock(500)
	require.NoError(t, err)
	require.Equal(t, uint32(2), rbn)
}

func TestResolveInsertionBlockEmptyIndex(t *testing.T) {
	idx := New()
	_, err := idx.ResolveInsertionBlock(1)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestUpdateLastKeyResorts(t *testing.T) {
	idx := New()
	idx.InsertEntry(100, 1)
	idx.InsertEntry(200, 2)
	require.NoError(t, idx.UpdateLastKey(1, 250))

	entries := idx.Entries()
	require.Equal(t, uint32(2), entries[0].RBN)
	require.Equal(t, uint32(1), entries[1].RBN)
	require.Equal(t, uint32(1), entries[0].NextRBN)
	require.Equal(t, uint32(2), entries[1].PrevRBN)
}

func TestInsertAndRemoveEntry(t *testing.T) {
	idx := New()
	idx.InsertEntry(100, 1)
	idx.InsertEntry(200, 2)
	idx.InsertEntry(300, 3)

	require.NoError(t, idx.RemoveEntry(2))
	entries := idx.Entries()
	require.Len(t, entries, 2)
	require.Equal(t, uint32(0), entries[0].PrevRBN)
	require.Equal(t, uint32(3), entries[0].NextRBN)
	require.Equal(t, uint32(1), entries[1].PrevRBN)
	require.Equal(t, uint32(0), entries[1].NextRBN)

	err := idx.RemoveEntry(999)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	idx := New()
	idx.InsertEntry(100, 1)
	idx.InsertEntry(200, 2)
	idx.InsertEntry(300, 3)

	var buf bytes.Buffer
	require.NoError(t, Save(&buf, idx))

	got, err := Load(&buf)
	require.NoError(t, err)
	require.Equal(t, idx.Entries(), got.Entries())
}

func TestLoadMissingTerminator(t *testing.T) {
	_, err := Load(bytes.NewBufferString("{ 100 1 0 0 }\n"))
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrCorruptBlock))
}

func TestLoadMalformedEntry(t *testing.T) {
	_, err := Load(bytes.NewBufferString("{ 100 1 0 }\n|\n"))
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrCorruptBlock))
}
