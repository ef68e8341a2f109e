package ingest

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/flatindex"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/seqset"
)

// DefaultBlockSize and DefaultMinBlockSize are convert-blocked's defaults
// when the CLI caller doesn't override them.
const (
	DefaultBlockSize    = 1024
	DefaultMinBlockSize = 256
)

// BlockedResult summarizes a convert-blocked run for CLI reporting.
type BlockedResult struct {
	RecordCount    int
	DuplicateCount int
	// BloomFlagged counts zips the bloom filter flagged as probable
	// duplicates before insertion was attempted. It is a pre-check only;
	// seqset.Insert's own comparison against the resolved block's records
	// is what actually rejects a duplicate, so BloomFlagged may exceed
	// DuplicateCount (false positives) but never causes a record to be
	// skipped on its own.
	BloomFlagged int
	BlockCount   uint32
}

// zipSchema describes the fixed ZipRecord layout for the sequence-set
// header's self-describing field list.
func zipSchema() []header.FieldDesc {
	return []header.FieldDesc{
		{Name: "zip", TypeTag: header.FieldTypeUint32},
		{Name: "location", TypeTag: header.FieldTypeString},
		{Name: "state", TypeTag: header.FieldTypeString},
		{Name: "county", TypeTag: header.FieldTypeString},
		{Name: "lat", TypeTag: header.FieldTypeFloat64},
		{Name: "lon", TypeTag: header.FieldTypeFloat64},
	}
}

// ConvertBlocked builds a sequence-set file at dataPath plus a companion
// flat block-index file at indexPath from the CSV at csvPath, using
// blockSize/minBlockSize (spec.md §6 defaults: 1024/256).
func ConvertBlocked(csvPath, dataPath, indexPath string, blockSize, minBlockSize int) (BlockedResult, error) {
	recs, err := ParseCSVFile(csvPath)
	if err != nil {
		return BlockedResult{}, err
	}
	recs = SortByZip(recs)

	pf, err := pagedfile.Create(dataPath, 0, blockSize)
	if err != nil {
		return BlockedResult{}, err
	}
	defer pf.Close()

	hdr := &header.SeqSetHeader{
		Version:        header.Version,
		SizeFormatType: 1,
		BlockSize:      uint32(blockSize),
		MinBlockSize:   uint16(minBlockSize),
		IndexFileName:  indexPath,
		Schema:         "zip,location,state,county,lat,lon",
		Fields:         zipSchema(),
		StaleFlag:      1,
	}
	if err := header.WriteSeqSetHeader(pf, hdr); err != nil {
		return BlockedResult{}, err
	}

	idx := flatindex.New()
	e := seqset.New(pf, hdr, idx)
	headRBN, err := e.Bootstrap()
	if err != nil {
		return BlockedResult{}, err
	}
	idx.InsertEntry(0, headRBN)

	filter := bloom.NewWithEstimates(uint(len(recs))+1, 0.01)

	var result BlockedResult
	for _, rec := range recs {
		key := zipBloomKey(rec.Zip)
		if filter.Test(key) {
			result.BloomFlagged++
		}
		filter.Add(key)

		res, err := e.Insert(rec)
		if err != nil {
			if errors.Is(err, errs.ErrDuplicateKey) {
				result.DuplicateCount++
				continue
			}
			return BlockedResult{}, err
		}
		if err := applyDeltas(idx, res.Deltas); err != nil {
			return BlockedResult{}, err
		}
		result.RecordCount++
	}

	hdr.StaleFlag = 0
	if err := e.Flush(); err != nil {
		return BlockedResult{}, err
	}

	f, err := os.Create(indexPath)
	if err != nil {
		return BlockedResult{}, fmt.Errorf("ingest: creating index file %s: %w", indexPath, err)
	}
	defer f.Close()
	if err := flatindex.Save(f, idx); err != nil {
		return BlockedResult{}, err
	}

	result.BlockCount = hdr.BlockCount
	return result, nil
}

func zipBloomKey(zip uint32) []byte {
	return []byte(strconv.FormatUint(uint64(zip), 10))
}

// applyDeltas folds a seqset Insert/Remove result's BlockDeltas into idx,
// inserting a fresh entry for a newly allocated RBN (e.g. a split's new
// block) and updating or removing an existing one otherwise.
func applyDeltas(idx *flatindex.Index, deltas []seqset.BlockDelta) error {
	for _, d := range deltas {
		if d.Removed {
			if err := idx.RemoveEntry(d.RBN); err != nil {
				return fmt.Errorf("ingest: removing stale index entry for RBN %d: %w", d.RBN, err)
			}
			continue
		}
		if err := idx.UpdateLastKey(d.RBN, d.LastKey); err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				idx.InsertEntry(d.LastKey, d.RBN)
				continue
			}
			return fmt.Errorf("ingest: updating index entry for RBN %d: %w", d.RBN, err)
		}
	}
	return nil
}
