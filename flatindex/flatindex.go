// Package flatindex implements the flat block index (C5): a sorted list of
// (lastKey, recordRBN, prevRBN, nextRBN) entries, one per active data block,
// supporting key→RBN lookup for the sequence set. It is persisted as
// whitespace-separated ASCII text terminated by "|", in the exact grammar
// the engine also reads back.
package flatindex

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jpare/zipstore/errs"
)

// Entries use RBN 0 for "no such neighbor" at a list boundary, the same
// null-pointer convention the sequence set uses for precedingRBN/
// succeedingRBN. "No entry with lastKey ≥ key" is never persisted — it is
// a transient lookup outcome, surfaced as an explicit (rbn, ok) pair so
// callers never confuse it with RBN 0 or a real RBN.

// Entry is one flat-index record: the last key of a data block, that
// block's RBN, and its neighbors in index order.
type Entry struct {
	LastKey uint32
	RBN     uint32
	PrevRBN uint32
	NextRBN uint32
}

// Index is the in-memory sorted entry list, kept ordered by LastKey.
type Index struct {
	entries []Entry
}

// New returns an empty index.
func New() *Index { return &Index{} }

// Len reports the number of entries.
func (idx *Index) Len() int { return len(idx.entries) }

// Entries returns the entries in LastKey order. The caller must not mutate
// the returned slice.
func (idx *Index) Entries() []Entry { return idx.entries }

// Lookup returns the RBN of the first entry with lastKey ≥ key. ok is false
// if key exceeds every lastKey in the index.
func (idx *Index) Lookup(key uint32) (rbn uint32, ok bool) {
	i := sort.Search(len(idx.entries), func(i int) bool { return idx.entries[i].LastKey >= key })
	if i == len(idx.entries) {
		return 0, false
	}
	return idx.entries[i].RBN, true
}

// Tail returns the RBN of the entry with the greatest lastKey. ok is false
// if the index is empty.
func (idx *Index) Tail() (rbn uint32, ok bool) {
	if len(idx.entries) == 0 {
		return 0, false
	}
	return idx.entries[len(idx.entries)-1].RBN, true
}

// ResolveInsertionBlock implements seqset.Resolver: the smallest-lastKey-≥key
// block, falling back to the tail block when key exceeds every lastKey.
func (idx *Index) ResolveInsertionBlock(key uint32) (uint32, error) {
	if rbn, ok := idx.Lookup(key); ok {
		return rbn, nil
	}
	if rbn, ok := idx.Tail(); ok {
		return rbn, nil
	}
	return 0, fmt.Errorf("flatindex: empty index: %w", errs.ErrNotFound)
}

func (idx *Index) indexOf(rbn uint32) int {
	for i, e := range idx.entries {
		if e.RBN == rbn {
			return i
		}
	}
	return -1
}

// UpdateLastKey changes the lastKey of the entry for rbn and re-sorts it
// into place, fixing up its neighbors' prev/next links.
func (idx *Index) UpdateLastKey(rbn, newLastKey uint32) error {
	i := idx.indexOf(rbn)
	if i < 0 {
		return fmt.Errorf("flatindex: no entry for RBN %d: %w", rbn, errs.ErrNotFound)
	}
	idx.entries[i].LastKey = newLastKey
	idx.resort()
	return nil
}

// InsertEntry adds a new entry for a freshly created block and re-sorts.
func (idx *Index) InsertEntry(lastKey, rbn uint32) {
	idx.entries = append(idx.entries, Entry{LastKey: lastKey, RBN: rbn})
	idx.resort()
}

// RemoveEntry deletes the entry for a freed block and fixes up neighbors.
func (idx *Index) RemoveEntry(rbn uint32) error {
	i := idx.indexOf(rbn)
	if i < 0 {
		return fmt.Errorf("flatindex: no entry for RBN %d: %w", rbn, errs.ErrNotFound)
	}
	idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
	idx.relink()
	return nil
}

func (idx *Index) resort() {
	sort.Slice(idx.entries, func(i, j int) bool { return idx.entries[i].LastKey < idx.entries[j].LastKey })
	idx.relink()
}

func (idx *Index) relink() {
	for i := range idx.entries {
		if i == 0 {
			idx.entries[i].PrevRBN = 0
		} else {
			idx.entries[i].PrevRBN = idx.entries[i-1].RBN
		}
		if i == len(idx.entries)-1 {
			idx.entries[i].NextRBN = 0
		} else {
			idx.entries[i].NextRBN = idx.entries[i+1].RBN
		}
	}
}

// SequenceSetWalker is the minimal view of a sequence-set engine
// BuildFromSequenceSet needs: walk the active list reporting each
// non-empty block's RBN and last key.
type SequenceSetWalker interface {
	// WalkActiveBlocks calls fn once per non-empty active block, in
	// ascending key order, with that block's RBN and last key.
	WalkActiveBlocks(fn func(rbn, lastKey uint32) error) error
}

// BuildFromSequenceSet rebuilds the index from scratch by walking the
// active list.
func BuildFromSequenceSet(w SequenceSetWalker) (*Index, error) {
	idx := New()
	err := w.WalkActiveBlocks(func(rbn, lastKey uint32) error {
		idx.entries = append(idx.entries, Entry{LastKey: lastKey, RBN: rbn})
		return nil
	})
	if err != nil {
		return nil, err
	}
	idx.relink()
	return idx, nil
}

// Save writes the index in its persisted ASCII grammar:
// "{ lastKey rbn prev next }" per entry, the whole stream terminated by "|".
func Save(w io.Writer, idx *Index) error {
	bw := bufio.NewWriter(w)
	for _, e := range idx.entries {
		if _, err := fmt.Fprintf(bw, "{ %d %d %d %d }\n", e.LastKey, e.RBN, e.PrevRBN, e.NextRBN); err != nil {
			return fmt.Errorf("flatindex: write entry: %w: %v", errs.ErrIO, err)
		}
	}
	if _, err := bw.WriteString("|\n"); err != nil {
		return fmt.Errorf("flatindex: write terminator: %w: %v", errs.ErrIO, err)
	}
	return bw.Flush()
}

// Load reads an index previously written by Save.
func Load(r io.Reader) (*Index, error) {
	idx := New()
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
		if len(fields) != 4 {
			return nil, fmt.Errorf("flatindex: malformed entry %q: %w", line, errs.ErrCorruptBlock)
		}
		nums := make([]uint64, 4)
		for i, f := range fields {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("flatindex: malformed field %q: %w", f, errs.ErrCorruptBlock)
			}
			nums[i] = n
		}
		idx.entries = append(idx.entries, Entry{
			LastKey: uint32(nums[0]), RBN: uint32(nums[1]), PrevRBN: uint32(nums[2]), NextRBN: uint32(nums[3]),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("flatindex: scan: %w: %v", errs.ErrIO, err)
	}
	return nil, fmt.Errorf("flatindex: missing terminator: %w", errs.ErrCorruptBlock)
}
