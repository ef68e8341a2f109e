package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTestCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.csv")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConvertBlockedThenReadThenVerify(t *testing.T) {
	csvPath := writeTestCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
		"30000,Atlanta,GA,Fulton,33.7490,-84.3880",
		"70000,Shreveport,LA,Caddo,32.5252,-93.7502",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.zcb")

	require.NoError(t, runConvertBlocked(csvPath, dataPath, 1024, 256))

	// read should walk every record via WalkRecords without error.
	require.NoError(t, runRead(dataPath, 0))

	// verify should MATCH since the file was built straight from this CSV.
	err := runVerify(csvPath, dataPath)
	require.NoError(t, err)
}

func TestConvertBlockedThenVerifyDetectsMismatch(t *testing.T) {
	csvPath := writeTestCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
	)
	otherCSVPath := writeTestCSV(t,
		"99999,Nowhere,ZZ,Nowhere,0,0",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.zcb")

	require.NoError(t, runConvertBlocked(csvPath, dataPath, 1024, 256))

	err := runVerify(otherCSVPath, dataPath)
	require.ErrorIs(t, err, errVerificationMismatch)
}

func TestZcdSearchFindsInsertedRecord(t *testing.T) {
	csvPath := writeTestCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
		"30000,Atlanta,GA,Fulton,33.7490,-84.3880",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.zcb")
	indexPath := dataPath + ".idx"

	require.NoError(t, runConvertBlocked(csvPath, dataPath, 1024, 256))
	require.NoError(t, runZcdSearch(dataPath, indexPath, []uint32{50000, 12345}))
}

func TestConvertLegacyRoundTripViaCLI(t *testing.T) {
	csvPath := writeTestCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.zcd")

	require.NoError(t, runConvert(csvPath, dataPath))
	_, err := os.Stat(dataPath)
	require.NoError(t, err)
	_, err = os.Stat(dataPath + ".idx")
	require.NoError(t, err)
}

func TestHeaderCommandOnBlockedFile(t *testing.T) {
	csvPath := writeTestCSV(t,
		"50000,Minneapolis,MN,Hennepin,44.9778,-93.2650",
	)
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "zips.zcb")

	require.NoError(t, runConvertBlocked(csvPath, dataPath, 1024, 256))
	require.NoError(t, runHeader(dataPath))
}
