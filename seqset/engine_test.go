package seqset

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/internal/recfmt"
)

// linearResolver scans the active list in sequence-set order and returns
// the first block whose last record's zip is ≥ key, falling back to the
// tail. It is a minimal stand-in for flatindex/btree in these tests.
type linearResolver struct {
	e *Engine
}

func (r *linearResolver) ResolveInsertionBlock(key uint32) (uint32, error) {
	walk, err := r.e.DumpLogical()
	if err != nil {
		return 0, err
	}
	for _, rbn := range walk.ActiveRBNs {
		_, recs, err := r.e.readActive(rbn)
		if err != nil {
			return 0, err
		}
		if len(recs) == 0 || lastKeyOf(recs) >= key {
			return rbn, nil
		}
	}
	return walk.ActiveRBNs[len(walk.ActiveRBNs)-1], nil
}

func newTestEngine(t *testing.T, blockSize, minBlockSize int) *Engine {
	t.Helper()
	path := filepath.Join(t.TempDir(), "zips.zcd")
	pf, err := pagedfile.Create(path, 0, blockSize)
	require.NoError(t, err)
	t.Cleanup(func() { pf.Close() })

	hdr := &header.SeqSetHeader{
		BlockSize:    uint32(blockSize),
		MinBlockSize: uint16(minBlockSize),
	}
	// headerSize must be decided before any block is written; reserve a
	// generous fixed region for these tests.
	pf.SetHeaderSize(128)
	hdr.HeaderSize = 128

	e := New(pf, hdr, nil)
	e.resolver = &linearResolver{e: e}
	_, err = e.Bootstrap()
	require.NoError(t, err)
	return e
}

func rec(zip uint32) recfmt.ZipRecord {
	return recfmt.ZipRecord{Zip: zip, Location: "City", State: "MN", County: "County", Lat: 44, Lon: -93}
}

func TestInsertAndSearch(t *testing.T) {
	e := newTestEngine(t, 1024, 256)
	_, err := e.Insert(rec(100))
	require.NoError(t, err)
	_, err = e.Insert(rec(200))
	require.NoError(t, err)
	_, err = e.Insert(rec(50))
	require.NoError(t, err)

	got, err := e.Search(200)
	require.NoError(t, err)
	require.Equal(t, uint32(200), got.Zip)

	_, err = e.Search(999)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrNotFound))
}

func TestInsertDuplicateRejected(t *testing.T) {
	e := newTestEngine(t, 1024, 256)
	_, err := e.Insert(rec(100))
	require.NoError(t, err)
	_, err = e.Insert(rec(100))
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrDuplicateKey))
}

func TestInsertTriggersSplit(t *testing.T) {
	// Small block size forces an early split once enough records accumulate.
	e := newTestEngine(t, 96, 24)
	var sawSplit bool
	for i := uint32(0); i < 20; i++ {
		res, err := e.Insert(rec(1000 + i*10))
		require.NoError(t, err)
		if res.Split {
			sawSplit = true
		}
	}
	require.True(t, sawSplit, "expected at least one split across 20 inserts into a 96-byte block")

	walk, err := e.DumpLogical()
	require.NoError(t, err)
	require.Greater(t, len(walk.ActiveRBNs), 1)

	for i := uint32(0); i < 20; i++ {
		got, err := e.Search(1000 + i*10)
		require.NoError(t, err)
		require.Equal(t, 1000+i*10, got.Zip)
	}
}

func TestRemoveMergesUnderfullBlocks(t *testing.T) {
	e := newTestEngine(t, 96, 24)
	zips := []uint32{1000, 1010, 1020, 1030, 1040, 1050, 1060, 1070}
	for _, z := range zips {
		_, err := e.Insert(rec(z))
		require.NoError(t, err)
	}
	walkBefore, err := e.DumpLogical()
	require.NoError(t, err)
	require.Greater(t, len(walkBefore.ActiveRBNs), 1)

	// Remove enough records to force the chain back toward a single block
	// via merges and borrows.
	for _, z := range zips[:6] {
		_, err := e.Remove(z)
		require.NoError(t, err)
	}

	for _, z := range zips[6:] {
		got, err := e.Search(z)
		require.NoError(t, err)
		require.Equal(t, z, got.Zip)
	}
	for _, z := range zips[:6] {
		_, err := e.Search(z)
		require.Error(t, err)
	}
}

func TestDumpPhysicalClassifiesAvailableBlocks(t *testing.T) {
	e := newTestEngine(t, 64, 16)
	for i := uint32(0); i < 12; i++ {
		_, err := e.Insert(rec(1000 + i*5))
		require.NoError(t, err)
	}
	for i := uint32(0); i < 8; i++ {
		_, err := e.Remove(1000 + i*5)
		require.NoError(t, err)
	}

	entries, err := e.DumpPhysical()
	require.NoError(t, err)
	require.Len(t, entries, int(e.hdr.BlockCount))

	var sawAvailable bool
	for _, entry := range entries {
		if entry.IsAvailable {
			sawAvailable = true
		}
	}
	require.True(t, sawAvailable, "expected at least one freed block to be classified available")
}
