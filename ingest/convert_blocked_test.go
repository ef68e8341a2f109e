package ingest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpare/zipstore/extremes"
	"github.com/jpare/zipstore/flatindex"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/seqset"
)

func writeCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvertBlockedSmallIngest(t *testing.T) {
	csvPath := writeCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
		"30000,Atlanta,GA,Fulton,33.7490,-84.3880",
		"70000,Shreveport,LA,Caddo,32.5252,-93.7502",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.dat")
	indexPath := filepath.Join(dir, "zips.idx")

	result, err := ConvertBlocked(csvPath, dataPath, indexPath, DefaultBlockSize, DefaultMinBlockSize)
	require.NoError(t, err)
	require.Equal(t, 3, result.RecordCount)
	require.Equal(t, 0, result.DuplicateCount)
	require.Equal(t, uint32(1), result.BlockCount)

	f, err := os.Open(indexPath)
	require.NoError(t, err)
	defer f.Close()
	idx, err := flatindex.Load(f)
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())
	entries := idx.Entries()
	require.Equal(t, uint32(70000), entries[0].LastKey)
	require.Equal(t, uint32(1), entries[0].RBN)
}

func TestConvertBlockedExtremesSignatureSingleRecordState(t *testing.T) {
	csvPath := writeCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
		"30000,Atlanta,GA,Fulton,33.7490,-84.3880",
		"70000,Shreveport,LA,Caddo,32.5252,-93.7502",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.dat")
	indexPath := filepath.Join(dir, "zips.idx")

	_, err := ConvertBlocked(csvPath, dataPath, indexPath, DefaultBlockSize, DefaultMinBlockSize)
	require.NoError(t, err)

	pf, err := pagedfile.Open(dataPath)
	require.NoError(t, err)
	defer pf.Close()
	hdr, err := header.ReadSeqSetHeader(pf)
	require.NoError(t, err)
	e := seqset.New(pf, &hdr, nil)

	reducer, err := extremes.Reduce(e)
	require.NoError(t, err)

	var found bool
	for _, se := range reducer.States() {
		if se.State != "MN" {
			continue
		}
		found = true
		require.Equal(t, uint32(50000), se.EZip)
		require.Equal(t, uint32(50000), se.WZip)
		require.Equal(t, uint32(50000), se.NZip)
		require.Equal(t, uint32(50000), se.SZip)
	}
	require.True(t, found, "expected MN in extremes signature")
}

func TestConvertBlockedRejectsDuplicateZip(t *testing.T) {
	csvPath := writeCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.dat")
	indexPath := filepath.Join(dir, "zips.idx")

	result, err := ConvertBlocked(csvPath, dataPath, indexPath, DefaultBlockSize, DefaultMinBlockSize)
	require.NoError(t, err)
	require.Equal(t, 1, result.RecordCount)
	require.Equal(t, 1, result.DuplicateCount)
}
