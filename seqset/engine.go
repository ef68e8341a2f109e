// Package seqset implements the sequence-set engine: the doubly-linked
// chain of data blocks that holds the store's records in sorted order, with
// split/merge/redistribute on insert and remove and an explicit
// available-block free list.
//
// The engine never resolves a key to a block on its own — that is always
// delegated to a Resolver, so the same engine works whether the caller is
// backed by the flat block index or by the B+ tree. Relinking sibling
// blocks never needs to know which higher-level index structure referenced
// them.
package seqset

import (
	"fmt"
	"sort"

	"github.com/bits-and-blooms/bitset"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/blockfmt"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/internal/recfmt"
)

// Resolver maps a key to the RBN of the block that should contain it, for
// both search and insertion purposes: the smallest-lastKey-≥key block, or
// the tail block if key exceeds every lastKey. It returns errs.ErrNotFound
// only when it has no block at all (an empty index or tree); a key missing
// from the resolved block is reported by the caller once the block is read.
type Resolver interface {
	ResolveInsertionBlock(key uint32) (uint32, error)
}

// BlockDelta reports that a block's last key changed, or that a block was
// freed, as the result of an Insert or Remove. Callers maintaining a
// separate key→RBN index (flatindex or btree) apply these to stay in sync.
type BlockDelta struct {
	RBN     uint32
	LastKey uint32
	Removed bool
}

// InsertResult reports what Insert did to the chain.
type InsertResult struct {
	Split  bool
	Deltas []BlockDelta
}

// RemoveResult reports what Remove did to the chain.
type RemoveResult struct {
	Deltas []BlockDelta
}

// Engine operates a sequence set over a paged file using the header's
// blockSize/minBlockSize/list-head fields. It does not persist header
// changes itself; call Flush after a batch of mutations.
type Engine struct {
	pf       *pagedfile.File
	hdr      *header.SeqSetHeader
	resolver Resolver
}

// New constructs an Engine over an already-opened paged file and decoded
// header, using resolver to map keys to candidate blocks.
func New(pf *pagedfile.File, hdr *header.SeqSetHeader, resolver Resolver) *Engine {
	return &Engine{pf: pf, hdr: hdr, resolver: resolver}
}

// BlockSize returns the fixed data-block size from the header.
func (e *Engine) BlockSize() int { return int(e.hdr.BlockSize) }

// MinBlockSize returns the configured minimum occupied size from the header.
func (e *Engine) MinBlockSize() int { return int(e.hdr.MinBlockSize) }

// Flush persists the header (record/block counts, list heads) to disk.
func (e *Engine) Flush() error {
	return header.WriteSeqSetHeader(e.pf, e.hdr)
}

// Bootstrap allocates and writes a single empty head block, then records it
// as the sequence-set list head. Used once, when creating a new store.
func (e *Engine) Bootstrap() (uint32, error) {
	rbn, err := e.allocateBlock()
	if err != nil {
		return 0, err
	}
	if err := e.writeActive(rbn, 0, 0, nil); err != nil {
		return 0, err
	}
	e.hdr.SequenceSetListRBN = rbn
	return rbn, nil
}

func (e *Engine) readActive(rbn uint32) (blockfmt.Header, []recfmt.ZipRecord, error) {
	raw, err := e.pf.ReadBlock(rbn)
	if err != nil {
		return blockfmt.Header{}, nil, err
	}
	h, encoded, err := blockfmt.UnpackActive(raw)
	if err != nil {
		return blockfmt.Header{}, nil, fmt.Errorf("seqset: block %d: %w", rbn, err)
	}
	recs := make([]recfmt.ZipRecord, len(encoded))
	for i, enc := range encoded {
		rec, _, err := recfmt.Decode(enc)
		if err != nil {
			return blockfmt.Header{}, nil, fmt.Errorf("seqset: block %d record %d: %w", rbn, i, err)
		}
		recs[i] = rec
	}
	return h, recs, nil
}

func (e *Engine) writeActive(rbn uint32, preceding, succeeding uint32, recs []recfmt.ZipRecord) error {
	encoded := make([][]byte, len(recs))
	for i, r := range recs {
		encoded[i] = r.Encode()
	}
	block, err := blockfmt.PackActive(preceding, succeeding, encoded, e.BlockSize())
	if err != nil {
		return fmt.Errorf("seqset: packing block %d: %w", rbn, err)
	}
	return e.pf.WriteBlock(rbn, block)
}

// relinkPreceding rewrites the block at rbn so its precedingRBN field points
// to newPreceding, leaving its records and succeedingRBN untouched.
func (e *Engine) relinkPreceding(rbn, newPreceding uint32) error {
	h, recs, err := e.readActive(rbn)
	if err != nil {
		return err
	}
	return e.writeActive(rbn, newPreceding, h.SucceedingRBN, recs)
}

func occupied(recs []recfmt.ZipRecord) int {
	encoded := make([][]byte, len(recs))
	for i, r := range recs {
		encoded[i] = r.Encode()
	}
	return blockfmt.OccupiedSize(encoded)
}

func lastKeyOf(recs []recfmt.ZipRecord) uint32 {
	if len(recs) == 0 {
		return 0
	}
	return recs[len(recs)-1].Zip
}

func insertSorted(recs []recfmt.ZipRecord, rec recfmt.ZipRecord) []recfmt.ZipRecord {
	i := sort.Search(len(recs), func(i int) bool { return recs[i].Zip >= rec.Zip })
	out := make([]recfmt.ZipRecord, 0, len(recs)+1)
	out = append(out, recs[:i]...)
	out = append(out, rec)
	out = append(out, recs[i:]...)
	return out
}

func removeAt(recs []recfmt.ZipRecord, idx int) []recfmt.ZipRecord {
	out := make([]recfmt.ZipRecord, 0, len(recs)-1)
	out = append(out, recs[:idx]...)
	out = append(out, recs[idx+1:]...)
	return out
}

func (e *Engine) allocateBlock() (uint32, error) {
	if e.hdr.AvailableListRBN != 0 {
		rbn := e.hdr.AvailableListRBN
		raw, err := e.pf.ReadBlock(rbn)
		if err != nil {
			return 0, err
		}
		succ, err := blockfmt.UnpackAvail(raw)
		if err != nil {
			return 0, fmt.Errorf("seqset: available block %d: %w", rbn, err)
		}
		e.hdr.AvailableListRBN = succ
		return rbn, nil
	}

	e.hdr.BlockCount++
	rbn := e.hdr.BlockCount
	required := e.pf.HeaderSize() + int64(rbn)*int64(e.BlockSize())
	size, err := e.pf.Size()
	if err != nil {
		return 0, err
	}
	if size < required {
		if err := e.pf.Truncate(required); err != nil {
			return 0, err
		}
	}
	return rbn, nil
}

func (e *Engine) freeBlock(rbn uint32) error {
	avail := blockfmt.PackAvail(e.hdr.AvailableListRBN, e.BlockSize())
	if err := e.pf.WriteBlock(rbn, avail); err != nil {
		return err
	}
	e.hdr.AvailableListRBN = rbn
	return nil
}

// Search resolves key to a candidate block and returns the record within it
// whose zip equals key, or errs.ErrNotFound.
func (e *Engine) Search(key uint32) (recfmt.ZipRecord, error) {
	rbn, err := e.resolver.ResolveInsertionBlock(key)
	if err != nil {
		return recfmt.ZipRecord{}, err
	}
	_, recs, err := e.readActive(rbn)
	if err != nil {
		return recfmt.ZipRecord{}, err
	}
	for _, r := range recs {
		if r.Zip == key {
			return r, nil
		}
	}
	return recfmt.ZipRecord{}, fmt.Errorf("seqset: zip %d: %w", key, errs.ErrNotFound)
}

// Insert resolves rec.Zip to a target block and inserts it, attempting
// direct insertion, then left redistribution, then right redistribution,
// then a split, in that order.
func (e *Engine) Insert(rec recfmt.ZipRecord) (InsertResult, error) {
	if err := rec.Validate(); err != nil {
		return InsertResult{}, err
	}
	rbn, err := e.resolver.ResolveInsertionBlock(rec.Zip)
	if err != nil {
		return InsertResult{}, err
	}
	h, recs, err := e.readActive(rbn)
	if err != nil {
		return InsertResult{}, err
	}
	for _, r := range recs {
		if r.Zip == rec.Zip {
			return InsertResult{}, fmt.Errorf("seqset: zip %d: %w", rec.Zip, errs.ErrDuplicateKey)
		}
	}

	e.hdr.RecordCount++
	merged := insertSorted(recs, rec)
	if occupied(merged) <= e.BlockSize() {
		if err := e.writeActive(rbn, h.PrecedingRBN, h.SucceedingRBN, merged); err != nil {
			return InsertResult{}, err
		}
		return InsertResult{Deltas: []BlockDelta{{RBN: rbn, LastKey: lastKeyOf(merged)}}}, nil
	}

	if h.PrecedingRBN != 0 {
		if res, ok, err := e.tryLeftRedistribute(rbn, h, merged); err != nil {
			return InsertResult{}, err
		} else if ok {
			return res, nil
		}
	}
	if h.SucceedingRBN != 0 {
		if res, ok, err := e.tryRightRedistribute(rbn, h, merged); err != nil {
			return InsertResult{}, err
		} else if ok {
			return res, nil
		}
	}
	return e.split(rbn, h, merged)
}

func (e *Engine) tryLeftRedistribute(rbn uint32, h blockfmt.Header, merged []recfmt.ZipRecord) (InsertResult, bool, error) {
	precH, precRecs, err := e.readActive(h.PrecedingRBN)
	if err != nil {
		return InsertResult{}, false, err
	}
	moved := merged[0]
	remaining := merged[1:]
	newPrec := insertSorted(precRecs, moved)
	if occupied(newPrec) > e.BlockSize() || occupied(newPrec) < e.MinBlockSize() {
		return InsertResult{}, false, nil
	}
	if occupied(remaining) > e.BlockSize() || occupied(remaining) < e.MinBlockSize() {
		return InsertResult{}, false, nil
	}
	if err := e.writeActive(h.PrecedingRBN, precH.PrecedingRBN, rbn, newPrec); err != nil {
		return InsertResult{}, false, err
	}
	if err := e.writeActive(rbn, h.PrecedingRBN, h.SucceedingRBN, remaining); err != nil {
		return InsertResult{}, false, err
	}
	return InsertResult{Deltas: []BlockDelta{
		{RBN: h.PrecedingRBN, LastKey: lastKeyOf(newPrec)},
		{RBN: rbn, LastKey: lastKeyOf(remaining)},
	}}, true, nil
}

func (e *Engine) tryRightRedistribute(rbn uint32, h blockfmt.Header, merged []recfmt.ZipRecord) (InsertResult, bool, error) {
	succH, succRecs, err := e.readActive(h.SucceedingRBN)
	if err != nil {
		return InsertResult{}, false, err
	}
	moved := merged[len(merged)-1]
	remaining := merged[:len(merged)-1]
	newSucc := insertSorted(succRecs, moved)
	if occupied(newSucc) > e.BlockSize() || occupied(newSucc) < e.MinBlockSize() {
		return InsertResult{}, false, nil
	}
	if occupied(remaining) > e.BlockSize() || occupied(remaining) < e.MinBlockSize() {
		return InsertResult{}, false, nil
	}
	if err := e.writeActive(rbn, h.PrecedingRBN, h.SucceedingRBN, remaining); err != nil {
		return InsertResult{}, false, err
	}
	if err := e.writeActive(h.SucceedingRBN, rbn, succH.SucceedingRBN, newSucc); err != nil {
		return InsertResult{}, false, err
	}
	return InsertResult{Deltas: []BlockDelta{
		{RBN: rbn, LastKey: lastKeyOf(remaining)},
		{RBN: h.SucceedingRBN, LastKey: lastKeyOf(newSucc)},
	}}, true, nil
}

func (e *Engine) split(rbn uint32, h blockfmt.Header, merged []recfmt.ZipRecord) (InsertResult, error) {
	mid := len(merged) / 2
	low := merged[:mid]
	high := merged[mid:]

	newRBN, err := e.allocateBlock()
	if err != nil {
		return InsertResult{}, err
	}
	oldSucc := h.SucceedingRBN

	if err := e.writeActive(rbn, h.PrecedingRBN, newRBN, low); err != nil {
		return InsertResult{}, err
	}
	if err := e.writeActive(newRBN, rbn, oldSucc, high); err != nil {
		return InsertResult{}, err
	}
	if oldSucc != 0 {
		if err := e.relinkPreceding(oldSucc, newRBN); err != nil {
			return InsertResult{}, err
		}
	}
	return InsertResult{
		Split: true,
		Deltas: []BlockDelta{
			{RBN: rbn, LastKey: lastKeyOf(low)},
			{RBN: newRBN, LastKey: lastKeyOf(high)},
		},
	}, nil
}

// Remove resolves key to its block, deletes the matching record, and
// attempts merge-with-preceding, merge-with-succeeding,
// borrow-from-preceding, and borrow-from-succeeding in that order if the
// block becomes underfull.
func (e *Engine) Remove(key uint32) (RemoveResult, error) {
	rbn, err := e.resolver.ResolveInsertionBlock(key)
	if err != nil {
		return RemoveResult{}, err
	}
	h, recs, err := e.readActive(rbn)
	if err != nil {
		return RemoveResult{}, err
	}
	idx := -1
	for i, r := range recs {
		if r.Zip == key {
			idx = i
			break
		}
	}
	if idx < 0 {
		return RemoveResult{}, fmt.Errorf("seqset: zip %d: %w", key, errs.ErrNotFound)
	}
	remaining := removeAt(recs, idx)
	e.hdr.RecordCount--

	if occupied(remaining) >= e.MinBlockSize() || (h.PrecedingRBN == 0 && h.SucceedingRBN == 0) {
		if err := e.writeActive(rbn, h.PrecedingRBN, h.SucceedingRBN, remaining); err != nil {
			return RemoveResult{}, err
		}
		return RemoveResult{Deltas: []BlockDelta{{RBN: rbn, LastKey: lastKeyOf(remaining)}}}, nil
	}

	if h.PrecedingRBN != 0 {
		if res, ok, err := e.tryMergePreceding(rbn, h, remaining); err != nil {
			return RemoveResult{}, err
		} else if ok {
			return res, nil
		}
	}
	if h.SucceedingRBN != 0 {
		if res, ok, err := e.tryMergeSucceeding(rbn, h, remaining); err != nil {
			return RemoveResult{}, err
		} else if ok {
			return res, nil
		}
	}
	if h.PrecedingRBN != 0 {
		if res, ok, err := e.tryBorrowPreceding(rbn, h, remaining); err != nil {
			return RemoveResult{}, err
		} else if ok {
			return res, nil
		}
	}
	if h.SucceedingRBN != 0 {
		if res, ok, err := e.tryBorrowSucceeding(rbn, h, remaining); err != nil {
			return RemoveResult{}, err
		} else if ok {
			return res, nil
		}
	}

	if err := e.writeActive(rbn, h.PrecedingRBN, h.SucceedingRBN, remaining); err != nil {
		return RemoveResult{}, err
	}
	return RemoveResult{Deltas: []BlockDelta{{RBN: rbn, LastKey: lastKeyOf(remaining)}}}, nil
}

func (e *Engine) tryMergePreceding(rbn uint32, h blockfmt.Header, remaining []recfmt.ZipRecord) (RemoveResult, bool, error) {
	precH, precRecs, err := e.readActive(h.PrecedingRBN)
	if err != nil {
		return RemoveResult{}, false, err
	}
	if occupied(precRecs)+occupied(remaining)-blockfmt.HeaderSize > e.BlockSize() {
		return RemoveResult{}, false, nil
	}
	mergedList := append(append([]recfmt.ZipRecord{}, precRecs...), remaining...)
	if err := e.writeActive(h.PrecedingRBN, precH.PrecedingRBN, h.SucceedingRBN, mergedList); err != nil {
		return RemoveResult{}, false, err
	}
	if h.SucceedingRBN != 0 {
		if err := e.relinkPreceding(h.SucceedingRBN, h.PrecedingRBN); err != nil {
			return RemoveResult{}, false, err
		}
	}
	if err := e.freeBlock(rbn); err != nil {
		return RemoveResult{}, false, err
	}
	return RemoveResult{Deltas: []BlockDelta{
		{RBN: h.PrecedingRBN, LastKey: lastKeyOf(mergedList)},
		{RBN: rbn, Removed: true},
	}}, true, nil
}

func (e *Engine) tryMergeSucceeding(rbn uint32, h blockfmt.Header, remaining []recfmt.ZipRecord) (RemoveResult, bool, error) {
	succH, succRecs, err := e.readActive(h.SucceedingRBN)
	if err != nil {
		return RemoveResult{}, false, err
	}
	if occupied(remaining)+occupied(succRecs)-blockfmt.HeaderSize > e.BlockSize() {
		return RemoveResult{}, false, nil
	}
	mergedList := append(append([]recfmt.ZipRecord{}, remaining...), succRecs...)
	succRBN := h.SucceedingRBN
	if err := e.writeActive(rbn, h.PrecedingRBN, succH.SucceedingRBN, mergedList); err != nil {
		return RemoveResult{}, false, err
	}
	if succH.SucceedingRBN != 0 {
		if err := e.relinkPreceding(succH.SucceedingRBN, rbn); err != nil {
			return RemoveResult{}, false, err
		}
	}
	if err := e.freeBlock(succRBN); err != nil {
		return RemoveResult{}, false, err
	}
	return RemoveResult{Deltas: []BlockDelta{
		{RBN: rbn, LastKey: lastKeyOf(mergedList)},
		{RBN: succRBN, Removed: true},
	}}, true, nil
}

func (e *Engine) tryBorrowPreceding(rbn uint32, h blockfmt.Header, remaining []recfmt.ZipRecord) (RemoveResult, bool, error) {
	precH, precRecs, err := e.readActive(h.PrecedingRBN)
	if err != nil {
		return RemoveResult{}, false, err
	}
	precList := append([]recfmt.ZipRecord{}, precRecs...)
	rList := append([]recfmt.ZipRecord{}, remaining...)
	moved := false
	for len(precList) > 0 {
		candidate := precList[len(precList)-1]
		trialPrec := precList[:len(precList)-1]
		trialR := insertSorted(rList, candidate)
		if occupied(trialPrec) < e.MinBlockSize() || occupied(trialR) > e.BlockSize() {
			break
		}
		precList = trialPrec
		rList = trialR
		moved = true
		if occupied(rList) >= e.MinBlockSize() {
			break
		}
	}
	if !moved {
		return RemoveResult{}, false, nil
	}
	if err := e.writeActive(h.PrecedingRBN, precH.PrecedingRBN, rbn, precList); err != nil {
		return RemoveResult{}, false, err
	}
	if err := e.writeActive(rbn, h.PrecedingRBN, h.SucceedingRBN, rList); err != nil {
		return RemoveResult{}, false, err
	}
	return RemoveResult{Deltas: []BlockDelta{
		{RBN: h.PrecedingRBN, LastKey: lastKeyOf(precList)},
		{RBN: rbn, LastKey: lastKeyOf(rList)},
	}}, true, nil
}

func (e *Engine) tryBorrowSucceeding(rbn uint32, h blockfmt.Header, remaining []recfmt.ZipRecord) (RemoveResult, bool, error) {
	succH, succRecs, err := e.readActive(h.SucceedingRBN)
	if err != nil {
		return RemoveResult{}, false, err
	}
	succList := append([]recfmt.ZipRecord{}, succRecs...)
	rList := append([]recfmt.ZipRecord{}, remaining...)
	moved := false
	for len(succList) > 0 {
		candidate := succList[0]
		trialSucc := succList[1:]
		trialR := insertSorted(rList, candidate)
		if occupied(trialSucc) < e.MinBlockSize() || occupied(trialR) > e.BlockSize() {
			break
		}
		succList = trialSucc
		rList = trialR
		moved = true
		if occupied(rList) >= e.MinBlockSize() {
			break
		}
	}
	if !moved {
		return RemoveResult{}, false, nil
	}
	if err := e.writeActive(rbn, h.PrecedingRBN, h.SucceedingRBN, rList); err != nil {
		return RemoveResult{}, false, err
	}
	if err := e.writeActive(h.SucceedingRBN, rbn, succH.SucceedingRBN, succList); err != nil {
		return RemoveResult{}, false, err
	}
	return RemoveResult{Deltas: []BlockDelta{
		{RBN: rbn, LastKey: lastKeyOf(rList)},
		{RBN: h.SucceedingRBN, LastKey: lastKeyOf(succList)},
	}}, true, nil
}

// WalkActiveBlocks calls fn once per non-empty active block, walking the
// active list from sequenceSetListRBN in ascending key order. It implements
// the walker interface flatindex and btree bulk-build against.
func (e *Engine) WalkActiveBlocks(fn func(rbn, lastKey uint32) error) error {
	seen := make(map[uint32]bool)
	for rbn := e.hdr.SequenceSetListRBN; rbn != 0; {
		if seen[rbn] {
			return fmt.Errorf("seqset: active list cycle at RBN %d: %w", rbn, errs.ErrCorruptBlock)
		}
		seen[rbn] = true
		h, recs, err := e.readActive(rbn)
		if err != nil {
			return err
		}
		if len(recs) > 0 {
			if err := fn(rbn, lastKeyOf(recs)); err != nil {
				return err
			}
		}
		rbn = h.SucceedingRBN
	}
	return nil
}

// WalkRecords streams every record in the store in sorted key order by
// walking the active block list and decoding each block in turn. Used by
// the extremes reducer and by verification tooling.
func (e *Engine) WalkRecords(fn func(recfmt.ZipRecord) error) error {
	seen := make(map[uint32]bool)
	for rbn := e.hdr.SequenceSetListRBN; rbn != 0; {
		if seen[rbn] {
			return fmt.Errorf("seqset: active list cycle at RBN %d: %w", rbn, errs.ErrCorruptBlock)
		}
		seen[rbn] = true
		h, recs, err := e.readActive(rbn)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := fn(rec); err != nil {
				return err
			}
		}
		rbn = h.SucceedingRBN
	}
	return nil
}

// PhysicalEntry is one block as seen by a raw RBN-order physical scan,
// independent of list membership.
type PhysicalEntry struct {
	RBN           uint32
	IsAvailable   bool
	PrecedingRBN  uint32
	SucceedingRBN uint32
	Zips          []uint32
}

// DumpPhysical scans every RBN in 1..blockCount and classifies each as
// active or available.
func (e *Engine) DumpPhysical() ([]PhysicalEntry, error) {
	entries := make([]PhysicalEntry, 0, e.hdr.BlockCount)
	for rbn := uint32(1); rbn <= e.hdr.BlockCount; rbn++ {
		raw, err := e.pf.ReadBlock(rbn)
		if err != nil {
			return nil, err
		}
		h, recs, activeErr := blockfmt.UnpackActive(raw)
		if activeErr == nil {
			zips := make([]uint32, len(recs))
			for i, enc := range recs {
				rec, _, err := recfmt.Decode(enc)
				if err != nil {
					return nil, err
				}
				zips[i] = rec.Zip
			}
			entries = append(entries, PhysicalEntry{
				RBN: rbn, PrecedingRBN: h.PrecedingRBN, SucceedingRBN: h.SucceedingRBN, Zips: zips,
			})
			continue
		}
		succ, availErr := blockfmt.UnpackAvail(raw)
		if availErr != nil {
			return nil, fmt.Errorf("seqset: block %d is neither active nor available: %w", rbn, errs.ErrCorruptBlock)
		}
		entries = append(entries, PhysicalEntry{RBN: rbn, IsAvailable: true, SucceedingRBN: succ})
	}
	return entries, nil
}

// activeBitmap rebuilds a bit-per-RBN map of which blocks a physical scan
// classifies as active. It is derived fresh from DumpPhysical every call,
// never persisted, and exists only so DumpLogical can cross-check the
// active linked list against what is actually on disk.
func (e *Engine) activeBitmap() (*bitset.BitSet, error) {
	entries, err := e.DumpPhysical()
	if err != nil {
		return nil, err
	}
	bs := bitset.New(uint(e.hdr.BlockCount))
	for _, pe := range entries {
		if !pe.IsAvailable {
			bs.Set(uint(pe.RBN - 1))
		}
	}
	return bs, nil
}

// LogicalWalk is the result of walking the active list and the available
// list each from their recorded head.
type LogicalWalk struct {
	ActiveRBNs    []uint32
	AvailableRBNs []uint32
}

// DumpLogical walks the active list from sequenceSetListRBN and the
// available list from availableListRBN, detecting cycles.
func (e *Engine) DumpLogical() (LogicalWalk, error) {
	var out LogicalWalk

	seen := make(map[uint32]bool)
	for rbn := e.hdr.SequenceSetListRBN; rbn != 0; {
		if seen[rbn] {
			return out, fmt.Errorf("seqset: active list cycle at RBN %d: %w", rbn, errs.ErrCorruptBlock)
		}
		seen[rbn] = true
		out.ActiveRBNs = append(out.ActiveRBNs, rbn)
		h, _, err := e.readActive(rbn)
		if err != nil {
			return out, err
		}
		rbn = h.SucceedingRBN
	}

	seen = make(map[uint32]bool)
	for rbn := e.hdr.AvailableListRBN; rbn != 0; {
		if seen[rbn] {
			return out, fmt.Errorf("seqset: available list cycle at RBN %d: %w", rbn, errs.ErrCorruptBlock)
		}
		seen[rbn] = true
		out.AvailableRBNs = append(out.AvailableRBNs, rbn)
		raw, err := e.pf.ReadBlock(rbn)
		if err != nil {
			return out, err
		}
		succ, err := blockfmt.UnpackAvail(raw)
		if err != nil {
			return out, fmt.Errorf("seqset: available block %d: %w", rbn, err)
		}
		rbn = succ
	}

	physActive, err := e.activeBitmap()
	if err != nil {
		return out, err
	}
	logicalActive := bitset.New(uint(e.hdr.BlockCount))
	for _, rbn := range out.ActiveRBNs {
		logicalActive.Set(uint(rbn - 1))
	}
	if !physActive.Equal(logicalActive) {
		return out, fmt.Errorf("seqset: active list does not match a physical scan of the file: %w", errs.ErrCorruptBlock)
	}
	return out, nil
}
