package recfmt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jpare/zipstore/errs"
)

func sample() ZipRecord {
	return ZipRecord{Zip: 50000, Location: "Somewhere", State: "MN", County: "Example", Lat: 44.5, Lon: -93.2}
}

func TestParseCSVRoundTrip(t *testing.T) {
	rec := sample()
	line := rec.CSV()

	got, err := ParseCSV(line)
	require.NoError(t, err)
	require.True(t, rec.Equal(got))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rec := sample()
	encoded := rec.Encode()
	require.Equal(t, rec.Size(), len(encoded))

	got, n, err := Decode(encoded)
	require.NoError(t, err)
	require.Equal(t, len(encoded), n)
	require.True(t, rec.Equal(got))
}

func TestParseCSVFieldCount(t *testing.T) {
	_, err := ParseCSV("50000,City,MN,County,44.0")
	require.Error(t, err)
	require.True(t, errors.Is(err, errs.ErrInvalidRecord))
}

func TestValidateRanges(t *testing.T) {
	cases := []struct {
		name string
		rec  ZipRecord
	}{
		{"zip too low", ZipRecord{Zip: 0, Location: "X", State: "MN", County: "Y", Lat: 0, Lon: 0}},
		{"zip too high", ZipRecord{Zip: 100000, Location: "X", State: "MN", County: "Y", Lat: 0, Lon: 0}},
		{"state wrong length", ZipRecord{Zip: 1, Location: "X", State: "MNN", County: "Y", Lat: 0, Lon: 0}},
		{"empty location", ZipRecord{Zip: 1, Location: "", State: "MN", County: "Y", Lat: 0, Lon: 0}},
		{"lat out of range", ZipRecord{Zip: 1, Location: "X", State: "MN", County: "Y", Lat: 91, Lon: 0}},
		{"lon out of range", ZipRecord{Zip: 1, Location: "X", State: "MN", County: "Y", Lat: 0, Lon: 181}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.rec.Validate()
			require.Error(t, err)
			require.True(t, errors.Is(err, errs.ErrInvalidRecord))
		})
	}
}

func TestDecodeTruncated(t *testing.T) {
	rec := sample()
	encoded := rec.Encode()
	_, _, err := Decode(encoded[:LengthPrefixSize+2])
	require.Error(t, err)
}

func TestFloatRoundTripPreservesPrecision(t *testing.T) {
	rec := ZipRecord{Zip: 12345, Location: "X", State: "CA", County: "Y", Lat: 37.774929, Lon: -122.419418}
	got, err := ParseCSV(rec.CSV())
	require.NoError(t, err)
	require.Equal(t, rec.Lat, got.Lat)
	require.Equal(t, rec.Lon, got.Lon)
}
