// Package recfmt implements the ZIP record codec: a length-prefixed ASCII
// CSV line of the form
//
//	zip,location,state,county,lat,lon
//
// with no escaping and no embedded commas. Decode the fixed prefix,
// validate ranges, surface a sentinel error on any violation.
package recfmt

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/buf"
)

const (
	// LengthPrefixSize is the width of the u32 length prefix preceding every
	// encoded record.
	LengthPrefixSize = 4

	// fieldCount is the number of comma-separated fields in a record's CSV form.
	fieldCount = 6

	minZip = 1
	maxZip = 99999

	minLocationLen = 1
	maxLocationLen = 99

	stateLen = 2

	minCountyLen = 1
	maxCountyLen = 49

	minLat, maxLat = -90.0, 90.0
	minLon, maxLon = -180.0, 180.0
)

// ZipRecord is a single ZIP code record.
type ZipRecord struct {
	Zip      uint32
	Location string
	State    string
	County   string
	Lat      float64
	Lon      float64
}

// Validate checks the field-count-independent range and length invariants on
// a ZipRecord. It does not re-check field count; that is a property of how
// the record was parsed, not of the struct itself.
func (r ZipRecord) Validate() error {
	if r.Zip < minZip || r.Zip > maxZip {
		return fmt.Errorf("recfmt: zip %d out of range [%d,%d]: %w", r.Zip, minZip, maxZip, errs.ErrInvalidRecord)
	}
	if n := utf8.RuneCountInString(r.Location); n < minLocationLen || len(r.Location) > maxLocationLen {
		return fmt.Errorf("recfmt: location length %d out of range [%d,%d] bytes: %w", len(r.Location), minLocationLen, maxLocationLen, errs.ErrInvalidRecord)
	}
	if len(r.State) != stateLen {
		return fmt.Errorf("recfmt: state %q must be exactly %d bytes: %w", r.State, stateLen, errs.ErrInvalidRecord)
	}
	if n := len(r.County); n < minCountyLen || n > maxCountyLen {
		return fmt.Errorf("recfmt: county length %d out of range [%d,%d] bytes: %w", len(r.County), minCountyLen, maxCountyLen, errs.ErrInvalidRecord)
	}
	if r.Lat < minLat || r.Lat > maxLat {
		return fmt.Errorf("recfmt: latitude %v out of range [%v,%v]: %w", r.Lat, minLat, maxLat, errs.ErrInvalidRecord)
	}
	if r.Lon < minLon || r.Lon > maxLon {
		return fmt.Errorf("recfmt: longitude %v out of range [%v,%v]: %w", r.Lon, minLon, maxLon, errs.ErrInvalidRecord)
	}
	for _, field := range []string{r.Location, r.State, r.County} {
		if strings.ContainsRune(field, ',') {
			return fmt.Errorf("recfmt: field %q contains a comma: %w", field, errs.ErrInvalidRecord)
		}
	}
	return nil
}

// CSV renders the record's persisted CSV line (without the length prefix).
// strconv.FormatFloat with precision -1 is used for lat/lon so that parsing
// the output back reproduces the exact same float64.
func (r ZipRecord) CSV() string {
	return fmt.Sprintf("%d,%s,%s,%s,%s,%s",
		r.Zip, r.Location, r.State, r.County,
		strconv.FormatFloat(r.Lat, 'f', -1, 64),
		strconv.FormatFloat(r.Lon, 'f', -1, 64))
}

// Size returns 4 + the byte length of the CSV line.
func (r ZipRecord) Size() int {
	return LengthPrefixSize + len(r.CSV())
}

// Encode serializes a record to its length-prefixed on-disk form. The caller
// must Validate first; Encode does not re-validate.
func (r ZipRecord) Encode() []byte {
	csv := r.CSV()
	out := make([]byte, LengthPrefixSize+len(csv))
	buf.PutU32(out, uint32(len(csv)))
	copy(out[LengthPrefixSize:], csv)
	return out
}

// Equal reports field-by-field equality.
func (r ZipRecord) Equal(o ZipRecord) bool {
	return r.Zip == o.Zip && r.Location == o.Location && r.State == o.State &&
		r.County == o.County && r.Lat == o.Lat && r.Lon == o.Lon
}

// ParseCSV parses one CSV line (without length prefix) into a ZipRecord,
// validating field count and then every range constraint. Fields are
// comma-split with no escaping; a comma inside a field is indistinguishable
// from a field separator and will surface as a field-count mismatch.
func ParseCSV(line string) (ZipRecord, error) {
	fields := strings.Split(line, ",")
	if len(fields) != fieldCount {
		return ZipRecord{}, fmt.Errorf("recfmt: expected %d fields, got %d: %w", fieldCount, len(fields), errs.ErrInvalidRecord)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	zip64, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil {
		return ZipRecord{}, fmt.Errorf("recfmt: zip %q: %w: %v", fields[0], errs.ErrInvalidRecord, err)
	}
	lat, err := strconv.ParseFloat(fields[4], 64)
	if err != nil {
		return ZipRecord{}, fmt.Errorf("recfmt: latitude %q: %w: %v", fields[4], errs.ErrInvalidRecord, err)
	}
	lon, err := strconv.ParseFloat(fields[5], 64)
	if err != nil {
		return ZipRecord{}, fmt.Errorf("recfmt: longitude %q: %w: %v", fields[5], errs.ErrInvalidRecord, err)
	}

	rec := ZipRecord{
		Zip:      uint32(zip64),
		Location: fields[1],
		State:    fields[2],
		County:   fields[3],
		Lat:      lat,
		Lon:      lon,
	}
	if err := rec.Validate(); err != nil {
		return ZipRecord{}, err
	}
	return rec, nil
}

// Decode reads one length-prefixed record from the front of b, returning the
// record and the number of bytes consumed (4 + CSV length).
func Decode(b []byte) (ZipRecord, int, error) {
	length, err := buf.CheckedU32(b, 0)
	if err != nil {
		return ZipRecord{}, 0, fmt.Errorf("recfmt: length prefix: %w", err)
	}
	if length == 0 {
		return ZipRecord{}, 0, fmt.Errorf("recfmt: zero-length record: %w", errs.ErrCorruptBlock)
	}
	payload, err := buf.CheckedBytes(b, LengthPrefixSize, int(length))
	if err != nil {
		return ZipRecord{}, 0, fmt.Errorf("recfmt: payload: %w", err)
	}
	rec, err := ParseCSV(string(payload))
	if err != nil {
		return ZipRecord{}, 0, err
	}
	return rec, LengthPrefixSize + int(length), nil
}
