// Package treefmt implements the B+ tree node codec: packing and unpacking
// a leaf or internal node into a fixed-size page. Both node kinds share a
// 9-byte header (isLeaf, keyCount, parentRBN); a leaf additionally carries
// prev/next leaf pointers and (key,value) entries, while an internal node
// carries a key array followed by one more child pointer than keys.
//
package treefmt

import (
	"fmt"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/buf"
)

const (
	headerSize = 9 // u8 isLeaf, u32 keyCount, u32 parentRBN

	leafFixedOverhead     = headerSize + 8 // + prevLeafRBN, nextLeafRBN
	internalFixedOverhead = headerSize + 4 // + one extra child word

	entryWidth = 8 // one u32 key plus one u32 value/child per unit

	isLeafOffset    = 0
	keyCountOffset  = 1
	parentRBNOffset = 5

	leafPrevOffset    = 9
	leafNextOffset    = 13
	leafEntriesOffset = 17

	internalKeysOffset = 9
)

// Node is the decoded in-memory form of either a leaf or an internal page.
// For a leaf, Keys and Values are parallel slices of equal length. For an
// internal node, Children has exactly len(Keys)+1 entries.
type Node struct {
	IsLeaf    bool
	ParentRBN uint32

	// Leaf fields.
	PrevLeafRBN uint32
	NextLeafRBN uint32
	Keys        []uint32
	Values      []uint32

	// Internal fields.
	Children []uint32
}

// KeyCount reports the number of keys resident in the node.
func (n Node) KeyCount() int { return len(n.Keys) }

// MaxKeys computes ⌊(P − fixed)/8⌋, the maximum number of keys a node of
// page size P and the given kind can hold. fixed is 17 for leaves (the two
// extra leaf pointers) and 13 for internal nodes (one extra child word).
func MaxKeys(pageSize int, isLeaf bool) int {
	fixed := internalFixedOverhead
	if isLeaf {
		fixed = leafFixedOverhead
	}
	if pageSize <= fixed {
		return 0
	}
	return (pageSize - fixed) / entryWidth
}

// occupiedSize returns the number of bytes n actually occupies, before
// zero-padding to the page size.
func occupiedSize(n Node) int {
	if n.IsLeaf {
		return leafFixedOverhead + len(n.Keys)*entryWidth
	}
	return headerSize + len(n.Keys)*4 + len(n.Children)*4
}

// Pack serializes n into exactly pageSize bytes, zero-padded. Returns
// errs.ErrBlockOverflow if n does not fit.
func Pack(n Node, pageSize int) ([]byte, error) {
	if !n.IsLeaf && len(n.Children) != len(n.Keys)+1 {
		return nil, fmt.Errorf("treefmt: internal node has %d children for %d keys: %w", len(n.Children), len(n.Keys), errs.ErrBadNodeKind)
	}
	if n.IsLeaf && len(n.Values) != len(n.Keys) {
		return nil, fmt.Errorf("treefmt: leaf node has %d values for %d keys: %w", len(n.Values), len(n.Keys), errs.ErrBadNodeKind)
	}
	if occupiedSize(n) > pageSize {
		return nil, fmt.Errorf("treefmt: node needs %d bytes, page is %d: %w", occupiedSize(n), pageSize, errs.ErrBlockOverflow)
	}

	out := make([]byte, pageSize)
	if n.IsLeaf {
		out[isLeafOffset] = 1
	}
	buf.PutU32(out[keyCountOffset:], uint32(len(n.Keys)))
	buf.PutU32(out[parentRBNOffset:], n.ParentRBN)

	if n.IsLeaf {
		buf.PutU32(out[leafPrevOffset:], n.PrevLeafRBN)
		buf.PutU32(out[leafNextOffset:], n.NextLeafRBN)
		off := leafEntriesOffset
		for i, k := range n.Keys {
			buf.PutU32(out[off:], k)
			buf.PutU32(out[off+4:], n.Values[i])
			off += entryWidth
		}
		return out, nil
	}

	off := internalKeysOffset
	for _, k := range n.Keys {
		buf.PutU32(out[off:], k)
		off += 4
	}
	for _, c := range n.Children {
		buf.PutU32(out[off:], c)
		off += 4
	}
	return out, nil
}

// Unpack parses a page into a Node. Returns errs.ErrShortPage if the page is
// smaller than the fixed header or than its declared entries require, and
// errs.ErrBadNodeKind if the isLeaf byte is neither 0 nor 1.
func Unpack(page []byte) (Node, error) {
	if len(page) < headerSize {
		return Node{}, fmt.Errorf("treefmt: page of %d bytes shorter than header: %w", len(page), errs.ErrShortPage)
	}
	kindByte := page[isLeafOffset]
	if kindByte != 0 && kindByte != 1 {
		return Node{}, fmt.Errorf("treefmt: isLeaf byte %d: %w", kindByte, errs.ErrBadNodeKind)
	}
	isLeaf := kindByte == 1

	keyCount, err := buf.CheckedU32(page, keyCountOffset)
	if err != nil {
		return Node{}, fmt.Errorf("treefmt: keyCount: %w", errs.ErrShortPage)
	}
	parentRBN, err := buf.CheckedU32(page, parentRBNOffset)
	if err != nil {
		return Node{}, fmt.Errorf("treefmt: parentRBN: %w", errs.ErrShortPage)
	}

	n := Node{IsLeaf: isLeaf, ParentRBN: parentRBN}

	if isLeaf {
		prev, err := buf.CheckedU32(page, leafPrevOffset)
		if err != nil {
			return Node{}, fmt.Errorf("treefmt: prevLeafRBN: %w", errs.ErrShortPage)
		}
		next, err := buf.CheckedU32(page, leafNextOffset)
		if err != nil {
			return Node{}, fmt.Errorf("treefmt: nextLeafRBN: %w", errs.ErrShortPage)
		}
		n.PrevLeafRBN = prev
		n.NextLeafRBN = next

		n.Keys = make([]uint32, keyCount)
		n.Values = make([]uint32, keyCount)
		off := leafEntriesOffset
		for i := range n.Keys {
			key, err := buf.CheckedU32(page, off)
			if err != nil {
				return Node{}, fmt.Errorf("treefmt: leaf entry %d key: %w", i, errs.ErrShortPage)
			}
			val, err := buf.CheckedU32(page, off+4)
			if err != nil {
				return Node{}, fmt.Errorf("treefmt: leaf entry %d value: %w", i, errs.ErrShortPage)
			}
			n.Keys[i] = key
			n.Values[i] = val
			off += entryWidth
		}
		return n, nil
	}

	n.Keys = make([]uint32, keyCount)
	off := internalKeysOffset
	for i := range n.Keys {
		key, err := buf.CheckedU32(page, off)
		if err != nil {
			return Node{}, fmt.Errorf("treefmt: internal key %d: %w", i, errs.ErrShortPage)
		}
		n.Keys[i] = key
		off += 4
	}
	n.Children = make([]uint32, keyCount+1)
	for i := range n.Children {
		c, err := buf.CheckedU32(page, off)
		if err != nil {
			return Node{}, fmt.Errorf("treefmt: internal child %d: %w", i, errs.ErrShortPage)
		}
		n.Children[i] = c
		off += 4
	}
	return n, nil
}
