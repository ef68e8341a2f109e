// Package extremes implements the verification oracle: a per-state
// accumulator of the easternmost, westernmost, northernmost, and
// southernmost ZIP code, reduced to a canonical text signature. Two
// equivalent record sets, streamed in any order, produce byte-identical
// signatures — this is what `verify` uses to confirm a round trip through
// the storage engine preserved every record.
//
// Streaming straight into a comparable summary, rather than collecting a
// full dump and diffing it, keeps verification's memory use independent of
// store size.
package extremes

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jpare/zipstore/internal/recfmt"
)

// StateExtremes tracks the four current extremes for one state: E/W by
// longitude, N/S by latitude.
type StateExtremes struct {
	State string

	EZip, WZip, NZip, SZip uint32

	eLon, wLon, nLat, sLat float64
	seen                   bool
}

func (s *StateExtremes) add(rec recfmt.ZipRecord) {
	if !s.seen {
		s.State = rec.State
		s.EZip, s.WZip, s.NZip, s.SZip = rec.Zip, rec.Zip, rec.Zip, rec.Zip
		s.eLon, s.wLon, s.nLat, s.sLat = rec.Lon, rec.Lon, rec.Lat, rec.Lat
		s.seen = true
		return
	}
	if rec.Lon > s.eLon {
		s.eLon, s.EZip = rec.Lon, rec.Zip
	}
	if rec.Lon < s.wLon {
		s.wLon, s.WZip = rec.Lon, rec.Zip
	}
	if rec.Lat > s.nLat {
		s.nLat, s.NZip = rec.Lat, rec.Zip
	}
	if rec.Lat < s.sLat {
		s.sLat, s.SZip = rec.Lat, rec.Zip
	}
}

// Reducer accumulates StateExtremes across a record stream.
type Reducer struct {
	states map[string]*StateExtremes
}

// New returns an empty Reducer.
func New() *Reducer {
	return &Reducer{states: make(map[string]*StateExtremes)}
}

// Add folds one record into its state's accumulator.
func (r *Reducer) Add(rec recfmt.ZipRecord) {
	s, ok := r.states[rec.State]
	if !ok {
		s = &StateExtremes{}
		r.states[rec.State] = s
	}
	s.add(rec)
}

// RecordWalker supplies a record stream to reduce, in any order.
// *seqset.Engine satisfies this via WalkRecords; CSV records from
// ingest.ParseCSVFile are a plain slice and need a small WalkRecords
// wrapper (cmd/zcbctl's verify command has one).
type RecordWalker interface {
	WalkRecords(fn func(recfmt.ZipRecord) error) error
}

// Reduce drains w into a fresh Reducer.
func Reduce(w RecordWalker) (*Reducer, error) {
	r := New()
	if err := w.WalkRecords(func(rec recfmt.ZipRecord) error {
		r.Add(rec)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("extremes: reducing record stream: %w", err)
	}
	return r, nil
}

// States returns every accumulated state's extremes, sorted by state code.
func (r *Reducer) States() []StateExtremes {
	out := make([]StateExtremes, 0, len(r.states))
	for _, s := range r.states {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].State < out[j].State })
	return out
}

// Signature renders the canonical `state:eZip|wZip|nZip|sZip` text form,
// one line per state in sorted order, so two runs over equivalent record
// sets produce byte-identical output regardless of stream order.
func (r *Reducer) Signature() string {
	var b strings.Builder
	for _, s := range r.States() {
		fmt.Fprintf(&b, "%s:%d|%d|%d|%d\n", s.State, s.EZip, s.WZip, s.NZip, s.SZip)
	}
	return b.String()
}
