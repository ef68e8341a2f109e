// Package ingest is the CSV collaborator boundary named in spec.md §1: it
// turns a CSV file of ZIP records into either a blocked sequence set (the
// engine's hard core) or a legacy length-indicated flat file. It does not
// compute the extremes signature; that is the extremes package's job. None
// of the engine packages import ingest; the dependency runs one way.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jpare/zipstore/internal/recfmt"
)

// ParseCSVFile reads every row of path with encoding/csv (which tolerates
// quoting and embedded newlines a hand-rolled scanner would not) and hands
// each row's fields, rejoined with commas, to recfmt.ParseCSV so the same
// validation rules govern both a CLI-ingested file and a record parsed
// off an on-disk block.
func ParseCSVFile(path string) ([]recfmt.ZipRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []recfmt.ZipRecord
	lineNo := 0
	for {
		fields, err := r.Read()
		lineNo++
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ingest: %s:%d: %w", path, lineNo, err)
		}
		if len(fields) == 1 && strings.TrimSpace(fields[0]) == "" {
			continue
		}
		rec, err := recfmt.ParseCSV(strings.Join(fields, ","))
		if err != nil {
			return nil, fmt.Errorf("ingest: %s:%d: %w", path, lineNo, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// SortByZip returns recs sorted ascending by zip, the order both the
// sequence set and the legacy flat file require on ingest.
func SortByZip(recs []recfmt.ZipRecord) []recfmt.ZipRecord {
	out := make([]recfmt.ZipRecord, len(recs))
	copy(out, recs)
	sort.Slice(out, func(i, j int) bool { return out[i].Zip < out[j].Zip })
	return out
}
