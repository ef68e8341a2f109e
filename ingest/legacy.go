package ingest

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/buf"
	"github.com/jpare/zipstore/internal/recfmt"
)

// LegacyEntry maps a zip code to its byte offset in a legacy flat data file,
// the Go-sized equivalent of PrimaryKeyIndex's two-level
// SecondaryIndexEntry/PrimaryIndexEntry split: since a zip is already the
// full key, one flat sorted (zip, offset) list does the job of both levels.
type LegacyEntry struct {
	Zip    uint32
	Offset int64
}

// LegacyIndex is the in-memory sorted zip→offset list for the legacy flat
// file mode.
type LegacyIndex struct {
	entries []LegacyEntry
}

// NewLegacyIndex returns an empty index.
func NewLegacyIndex() *LegacyIndex { return &LegacyIndex{} }

// Len reports the number of entries.
func (idx *LegacyIndex) Len() int { return len(idx.entries) }

// Add inserts a (zip, offset) pair, keeping entries sorted by zip.
func (idx *LegacyIndex) Add(zip uint32, offset int64) {
	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].Zip >= zip })
	idx.entries = append(idx.entries, LegacyEntry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = LegacyEntry{Zip: zip, Offset: offset}
}

// Find returns the offset of zip, mirroring PrimaryKeyIndex::find. ok is
// false if zip is not present.
func (idx *LegacyIndex) Find(zip uint32) (offset int64, ok bool) {
	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].Zip >= zip })
	if i == len(idx.entries) || idx.entries[i].Zip != zip {
		return 0, false
	}
	return idx.entries[i].Offset, true
}

// Contains reports whether zip is present, mirroring
// PrimaryKeyIndex::contains.
func (idx *LegacyIndex) Contains(zip uint32) bool {
	_, ok := idx.Find(zip)
	return ok
}

// SaveLegacyIndex writes idx in the same bracketed, pipe-terminated ASCII
// grammar flatindex uses, so both index shapes are legible with the same
// kind of tooling even though their fields differ.
func SaveLegacyIndex(w io.Writer, idx *LegacyIndex) error {
	bw := bufio.NewWriter(w)
	for _, e := range idx.entries {
		if _, err := fmt.Fprintf(bw, "{ %d %d }\n", e.Zip, e.Offset); err != nil {
			return fmt.Errorf("ingest: write legacy index entry: %w: %v", errs.ErrIO, err)
		}
	}
	if _, err := bw.WriteString("|\n"); err != nil {
		return fmt.Errorf("ingest: write legacy index terminator: %w: %v", errs.ErrIO, err)
	}
	return bw.Flush()
}

// LoadLegacyIndex reads an index previously written by SaveLegacyIndex.
func LoadLegacyIndex(r io.Reader) (*LegacyIndex, error) {
	idx := NewLegacyIndex()
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if line == "|" {
			return idx, nil
		}
		line = strings.TrimPrefix(line, "{")
		line = strings.TrimSuffix(line, "}")
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("ingest: malformed legacy index entry %q: %w", line, errs.ErrCorruptBlock)
		}
		zip, err := strconv.ParseUint(fields[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("ingest: malformed legacy index zip %q: %w", fields[0], errs.ErrCorruptBlock)
		}
		offset, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ingest: malformed legacy index offset %q: %w", fields[1], errs.ErrCorruptBlock)
		}
		idx.entries = append(idx.entries, LegacyEntry{Zip: uint32(zip), Offset: offset})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("ingest: scan legacy index: %w: %v", errs.ErrIO, err)
	}
	return nil, fmt.Errorf("ingest: legacy index missing terminator: %w", errs.ErrCorruptBlock)
}

// LegacyResult summarizes a convert-legacy run.
type LegacyResult struct {
	RecordCount int
}

// ConvertLegacy writes recs, sorted by zip, as a flat file of concatenated
// length-prefixed records (recfmt's own on-disk form, with no block
// structure at all) at dataPath, plus a companion zip→offset index at
// indexPath. This is the simple predecessor mode the blocked sequence set
// replaces; it has no split/merge machinery; the whole file is rewritten on
// every conversion.
func ConvertLegacy(csvPath, dataPath, indexPath string) (LegacyResult, error) {
	recs, err := ParseCSVFile(csvPath)
	if err != nil {
		return LegacyResult{}, err
	}
	recs = SortByZip(recs)

	df, err := os.Create(dataPath)
	if err != nil {
		return LegacyResult{}, fmt.Errorf("ingest: creating legacy data file %s: %w", dataPath, err)
	}
	defer df.Close()

	bw := bufio.NewWriter(df)
	idx := NewLegacyIndex()
	var offset int64
	seen := make(map[uint32]bool, len(recs))
	for _, rec := range recs {
		if seen[rec.Zip] {
			return LegacyResult{}, fmt.Errorf("ingest: zip %d: %w", rec.Zip, errs.ErrDuplicateKey)
		}
		seen[rec.Zip] = true
		encoded := rec.Encode()
		n, err := bw.Write(encoded)
		if err != nil {
			return LegacyResult{}, fmt.Errorf("ingest: writing legacy record for zip %d: %w: %v", rec.Zip, errs.ErrIO, err)
		}
		idx.Add(rec.Zip, offset)
		offset += int64(n)
	}
	if err := bw.Flush(); err != nil {
		return LegacyResult{}, fmt.Errorf("ingest: flushing legacy data file: %w: %v", errs.ErrIO, err)
	}

	xf, err := os.Create(indexPath)
	if err != nil {
		return LegacyResult{}, fmt.Errorf("ingest: creating legacy index file %s: %w", indexPath, err)
	}
	defer xf.Close()
	if err := SaveLegacyIndex(xf, idx); err != nil {
		return LegacyResult{}, err
	}

	return LegacyResult{RecordCount: len(recs)}, nil
}

// ReadLegacyRecord reads the record stored at offset in a legacy data file
// previously produced by ConvertLegacy: a short read of the length prefix
// to size the full record, then one read of exactly that many bytes.
func ReadLegacyRecord(f *os.File, offset int64) (recfmt.ZipRecord, error) {
	prefix := make([]byte, recfmt.LengthPrefixSize)
	if _, err := f.ReadAt(prefix, offset); err != nil {
		return recfmt.ZipRecord{}, fmt.Errorf("ingest: reading legacy record length at %d: %w: %v", offset, errs.ErrIO, err)
	}
	payloadLen, err := buf.CheckedU32(prefix, 0)
	if err != nil {
		return recfmt.ZipRecord{}, fmt.Errorf("ingest: legacy record length at %d: %w", offset, err)
	}

	full := make([]byte, recfmt.LengthPrefixSize+int(payloadLen))
	if _, err := f.ReadAt(full, offset); err != nil {
		return recfmt.ZipRecord{}, fmt.Errorf("ingest: reading legacy record at %d: %w: %v", offset, errs.ErrIO, err)
	}
	rec, _, err := recfmt.Decode(full)
	if err != nil {
		return recfmt.ZipRecord{}, err
	}
	return rec, nil
}
