package blockfmt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/recfmt"
)

func encodedRecords(zips ...uint32) [][]byte {
	out := make([][]byte, len(zips))
	for i, z := range zips {
		rec := recfmt.ZipRecord{Zip: z, Location: "X", State: "MN", County: "Y", Lat: 1, Lon: 1}
		out[i] = rec.Encode()
	}
	return out
}

func TestPackUnpackActiveRoundTrip(t *testing.T) {
	recs := encodedRecords(100, 200, 300)
	block, err := PackActive(7, 9, recs, 1024)
	require.NoError(t, err)
	require.Len(t, block, 1024)

	h, got, err := UnpackActive(block)
	require.NoError(t, err)
	require.Equal(t, uint16(3), h.RecordCount)
	require.Equal(t, uint32(7), h.PrecedingRBN)
	require.Equal(t, uint32(9), h.SucceedingRBN)
	require.Equal(t, recs, got)
}

func TestPackActiveOverflow(t *testing.T) {
	recs := encodedRecords(1, 2, 3, 4, 5, 6, 7, 8)
	_, err := PackActive(0, 0, recs, 16)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrBlockOverflow))
}

func TestUnpackActiveCorrupt(t *testing.T) {
	recs := encodedRecords(1)
	block, err := PackActive(0, 0, recs, 64)
	require.NoError(t, err)

	// Corrupt the declared recordCount so it disagrees with the real body.
	block[0] = 9
	_, _, err = UnpackActive(block)
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrCorruptBlock))
}

func TestOccupiedSize(t *testing.T) {
	recs := encodedRecords(1, 2)
	want := HeaderSize + len(recs[0]) + len(recs[1])
	require.Equal(t, want, OccupiedSize(recs))
}

func TestPackUnpackAvailRoundTrip(t *testing.T) {
	block := PackAvail(42, 256)
	require.Len(t, block, 256)

	succ, err := UnpackAvail(block)
	require.NoError(t, err)
	require.Equal(t, uint32(42), succ)
}

func TestUnpackAvailRejectsActiveBlock(t *testing.T) {
	recs := encodedRecords(5)
	block, err := PackActive(0, 0, recs, 64)
	require.NoError(t, err)

	_, err = UnpackAvail(block)
	require.Error(t, err)
}
