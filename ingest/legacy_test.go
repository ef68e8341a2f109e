package ingest

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConvertLegacyRoundTrip(t *testing.T) {
	csvPath := writeCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
		"30000,Atlanta,GA,Fulton,33.7490,-84.3880",
		"70000,Shreveport,LA,Caddo,32.5252,-93.7502",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "legacy.dat")
	indexPath := filepath.Join(dir, "legacy.idx")

	result, err := ConvertLegacy(csvPath, dataPath, indexPath)
	require.NoError(t, err)
	require.Equal(t, 3, result.RecordCount)

	f, err := os.Open(indexPath)
	require.NoError(t, err)
	defer f.Close()
	idx, err := LoadLegacyIndex(f)
	require.NoError(t, err)
	require.Equal(t, 3, idx.Len())
	require.True(t, idx.Contains(50000))
	require.True(t, idx.Contains(30000))
	require.True(t, idx.Contains(70000))
	require.False(t, idx.Contains(99999))

	df, err := os.Open(dataPath)
	require.NoError(t, err)
	defer df.Close()

	for _, zip := range []uint32{50000, 30000, 70000} {
		offset, ok := idx.Find(zip)
		require.True(t, ok)
		rec, err := ReadLegacyRecord(df, offset)
		require.NoError(t, err)
		require.Equal(t, zip, rec.Zip)
	}
}

func TestLegacyIndexSaveLoadRoundTrip(t *testing.T) {
	idx := NewLegacyIndex()
	idx.Add(70000, 40)
	idx.Add(30000, 0)
	idx.Add(50000, 20)

	var buf bytes.Buffer
	require.NoError(t, SaveLegacyIndex(&buf, idx))

	loaded, err := LoadLegacyIndex(&buf)
	require.NoError(t, err)
	require.Equal(t, 3, loaded.Len())

	offset, ok := loaded.Find(30000)
	require.True(t, ok)
	require.Equal(t, int64(0), offset)

	offset, ok = loaded.Find(70000)
	require.True(t, ok)
	require.Equal(t, int64(40), offset)
}

func TestConvertLegacyRejectsDuplicateZip(t *testing.T) {
	csvPath := writeCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "legacy.dat")
	indexPath := filepath.Join(dir, "legacy.idx")

	_, err := ConvertLegacy(csvPath, dataPath, indexPath)
	require.Error(t, err)
}
