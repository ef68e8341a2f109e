// Package blockfmt implements the data-block and available-block codecs. It
// treats records as already-encoded length-prefixed byte runs
// (internal/recfmt's output) and only concerns itself with the block-level
// framing: header fields, ordering, and the 0xFF padding sentinel.
//
package blockfmt

import (
	"fmt"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/buf"
)

const (
	// HeaderSize is the fixed 10-byte active-block header: u16 recordCount,
	// u32 precedingRBN, u32 succeedingRBN.
	HeaderSize = 10

	// PaddingByte fills unused trailing bytes of an active block.
	PaddingByte = 0xFF

	recordCountOffset   = 0
	precedingRBNOffset  = 2
	succeedingRBNOffset = 6

	// availSuccOffset is the offset of the next-free-block pointer within an
	// available block. It does NOT line up with succeedingRBNOffset above —
	// an available block only has room for recordCount(=0) and one pointer.
	availSuccOffset = 2
	availMinSize    = 6
)

// Header is the decoded fixed header of an active data block.
type Header struct {
	RecordCount   uint16
	PrecedingRBN  uint32
	SucceedingRBN uint32
}

// OccupiedSize computes 10 + Σ(4+len_i) for a set of already-encoded
// records: the header plus every length-prefixed record.
func OccupiedSize(encodedRecords [][]byte) int {
	total := HeaderSize
	for _, r := range encodedRecords {
		total += len(r)
	}
	return total
}

// PackActive serializes an active block: header fields plus the
// already-sorted, already-encoded records, 0xFF-padded to blockSize.
// Returns errs.ErrBlockOverflow if the records do not fit.
func PackActive(preceding, succeeding uint32, encodedRecords [][]byte, blockSize int) ([]byte, error) {
	total := OccupiedSize(encodedRecords)
	if total > blockSize {
		return nil, fmt.Errorf("blockfmt: %d bytes exceeds block size %d: %w", total, blockSize, errs.ErrBlockOverflow)
	}

	out := make([]byte, blockSize)
	for i := range out {
		out[i] = PaddingByte
	}
	buf.PutU16(out[recordCountOffset:], uint16(len(encodedRecords)))
	buf.PutU32(out[precedingRBNOffset:], preceding)
	buf.PutU32(out[succeedingRBNOffset:], succeeding)

	off := HeaderSize
	for _, r := range encodedRecords {
		copy(out[off:], r)
		off += len(r)
	}
	return out, nil
}

// UnpackActive parses an active block. It reads length-prefixed records
// until either the body is exhausted or the next byte is the padding
// sentinel, then cross-checks the parsed count against the declared
// recordCount field.
func UnpackActive(block []byte) (Header, [][]byte, error) {
	if len(block) < HeaderSize {
		return Header{}, nil, fmt.Errorf("blockfmt: block shorter than header: %w", errs.ErrShortRead)
	}
	h := Header{
		RecordCount:   buf.U16(block[recordCountOffset:]),
		PrecedingRBN:  buf.U32(block[precedingRBNOffset:]),
		SucceedingRBN: buf.U32(block[succeedingRBNOffset:]),
	}

	body := block[HeaderSize:]
	var records [][]byte
	off := 0
	for off < len(body) {
		if body[off] == PaddingByte {
			break
		}
		length, err := buf.CheckedU32(body, off)
		if err != nil {
			return Header{}, nil, fmt.Errorf("blockfmt: length prefix at %d: %w", off, errs.ErrCorruptBlock)
		}
		if length == 0 {
			return Header{}, nil, fmt.Errorf("blockfmt: zero-length record at %d: %w", off, errs.ErrCorruptBlock)
		}
		recEnd := off + 4 + int(length)
		if recEnd > len(body) {
			return Header{}, nil, fmt.Errorf("blockfmt: record at %d overruns block: %w", off, errs.ErrCorruptBlock)
		}
		records = append(records, body[off:recEnd])
		off = recEnd
	}

	if uint16(len(records)) != h.RecordCount {
		return Header{}, nil, fmt.Errorf("blockfmt: recordCount field %d does not match parsed count %d: %w",
			h.RecordCount, len(records), errs.ErrCorruptBlock)
	}
	return h, records, nil
}

// PackAvail serializes an available block: recordCount=0, succeedingRBN at
// offset 2, remainder zero.
func PackAvail(succeeding uint32, blockSize int) []byte {
	out := make([]byte, blockSize)
	buf.PutU16(out[recordCountOffset:], 0)
	buf.PutU32(out[availSuccOffset:], succeeding)
	return out
}

// UnpackAvail parses an available block, returning its next-free pointer.
func UnpackAvail(block []byte) (uint32, error) {
	if len(block) < availMinSize {
		return 0, fmt.Errorf("blockfmt: avail block too short: %w", errs.ErrShortRead)
	}
	if rc := buf.U16(block[recordCountOffset:]); rc != 0 {
		return 0, fmt.Errorf("blockfmt: avail block has nonzero recordCount %d: %w", rc, errs.ErrCorruptBlock)
	}
	return buf.U32(block[availSuccOffset:]), nil
}
