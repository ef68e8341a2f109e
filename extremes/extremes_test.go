package extremes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpare/zipstore/internal/recfmt"
)

type sliceWalker []recfmt.ZipRecord

func (w sliceWalker) WalkRecords(fn func(recfmt.ZipRecord) error) error {
	for _, rec := range w {
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

func TestSingleRecordStateAllFourPositions(t *testing.T) {
	rec := recfmt.ZipRecord{Zip: 50000, Location: "Somewhere", State: "MN", County: "Some", Lat: 45.0, Lon: -93.0}
	r, err := Reduce(sliceWalker{rec})
	require.NoError(t, err)
	require.Equal(t, "MN:50000|50000|50000|50000\n", r.Signature())
}

func TestMultiRecordExtremesPerDirection(t *testing.T) {
	recs := sliceWalker{
		{Zip: 1, Location: "A", State: "CA", County: "X", Lat: 30.0, Lon: -120.0}, // south, west
		{Zip: 2, Location: "B", State: "CA", County: "X", Lat: 40.0, Lon: -110.0}, // north, east
		{Zip: 3, Location: "C", State: "CA", County: "X", Lat: 35.0, Lon: -115.0}, // middle
	}
	r, err := Reduce(recs)
	require.NoError(t, err)
	states := r.States()
	require.Len(t, states, 1)
	s := states[0]
	require.Equal(t, uint32(2), s.EZip)
	require.Equal(t, uint32(1), s.WZip)
	require.Equal(t, uint32(2), s.NZip)
	require.Equal(t, uint32(1), s.SZip)
}

func TestSignatureSortedByStateAndOrderIndependent(t *testing.T) {
	a := sliceWalker{
		{Zip: 10, Location: "A", State: "WA", County: "X", Lat: 47.0, Lon: -122.0},
		{Zip: 20, Location: "B", State: "AK", County: "X", Lat: 61.0, Lon: -149.0},
	}
	b := sliceWalker{a[1], a[0]}

	ra, err := Reduce(a)
	require.NoError(t, err)
	rb, err := Reduce(b)
	require.NoError(t, err)
	require.Equal(t, ra.Signature(), rb.Signature())
	require.True(t, ra.Signature()[:2] == "AK")
}

func TestMultiStateIndependentAccumulators(t *testing.T) {
	recs := sliceWalker{
		{Zip: 1, Location: "A", State: "TX", County: "X", Lat: 30.0, Lon: -97.0},
		{Zip: 2, Location: "B", State: "NY", County: "X", Lat: 40.0, Lon: -74.0},
	}
	r, err := Reduce(recs)
	require.NoError(t, err)
	require.Len(t, r.States(), 2)
}
