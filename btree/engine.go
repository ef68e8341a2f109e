// Package btree implements the B+ tree engine (C7): bulk build from a
// sequence set, point resolution, range scan, and recursive insert/remove
// with split, borrow, and merge. Every leaf value is a sequence-set RBN —
// the tree indexes the last key of each data block, exactly like
// flatindex, just with O(log N) descent instead of a flat scan.
//
// The recursive descent carries (parentRBN, indexInParent) instead of a
// stored back-pointer, so a split or merge can rewrite the parent's child
// list without the node itself needing to know its position in advance.
package btree

import (
	"fmt"
	"sort"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/internal/treefmt"
)

// Engine operates a B+ tree index over a paged file using the tree header's
// blockSize/rootIndexRBN/height fields. It does not persist header changes
// itself; call Flush after a batch of mutations.
type Engine struct {
	pf  *pagedfile.File
	hdr *header.TreeHeader
}

// New constructs an Engine over an already-opened paged file and decoded
// tree header.
func New(pf *pagedfile.File, hdr *header.TreeHeader) *Engine {
	return &Engine{pf: pf, hdr: hdr}
}

// Flush persists the tree header (root, height, indexBlockCount) to disk.
func (e *Engine) Flush() error {
	return header.WriteTreeHeader(e.pf, e.hdr)
}

func (e *Engine) pageSize() int { return int(e.hdr.BlockSize) }

func (e *Engine) maxKeys(isLeaf bool) int { return treefmt.MaxKeys(e.pageSize(), isLeaf) }

func minKeysFor(maxKeys int) int { return (maxKeys + 1) / 2 }

func (e *Engine) readNode(rbn uint32) (treefmt.Node, error) {
	raw, err := e.pf.ReadBlock(rbn)
	if err != nil {
		return treefmt.Node{}, err
	}
	n, err := treefmt.Unpack(raw)
	if err != nil {
		return treefmt.Node{}, fmt.Errorf("btree: node %d: %w", rbn, err)
	}
	return n, nil
}

func (e *Engine) writeNode(rbn uint32, n treefmt.Node) error {
	page, err := treefmt.Pack(n, e.pageSize())
	if err != nil {
		return fmt.Errorf("btree: packing node %d: %w", rbn, err)
	}
	return e.pf.WriteBlock(rbn, page)
}

func (e *Engine) allocateNode() (uint32, error) {
	e.hdr.IndexBlockCount++
	rbn := e.hdr.IndexBlockCount
	required := e.pf.HeaderSize() + int64(rbn)*int64(e.pageSize())
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

// findChildIndex returns the smallest index i such that key < keys[i], or
// len(keys) if no such index exists.
func findChildIndex(keys []uint32, key uint32) int {
	for i, k := range keys {
		if key < k {
			return i
		}
	}
	return len(keys)
}

// depthSlack bounds descent past the header's recorded height before
// treating the tree as damaged or cyclic, per the descent-depth guard.
const depthSlack = 4

func (e *Engine) descendToLeaf(key uint32) (treefmt.Node, uint32, error) {
	rbn := e.hdr.RootIndexRBN
	limit := int(e.hdr.Height) + depthSlack
	for steps := 0; ; steps++ {
		if steps > limit {
			return treefmt.Node{}, 0, fmt.Errorf("btree: descent exceeded height %d+%d: %w", e.hdr.Height, depthSlack, errs.ErrTreeInvariant)
		}
		node, err := e.readNode(rbn)
		if err != nil {
			return treefmt.Node{}, 0, err
		}
		if node.IsLeaf {
			return node, rbn, nil
		}
		rbn = node.Children[findChildIndex(node.Keys, key)]
	}
}

// Search resolves key to the value (sequence-set RBN) paired with the
// smallest indexed key ≥ key. errs.ErrNotFound if key exceeds every
// indexed key.
func (e *Engine) Search(key uint32) (uint32, error) {
	if e.hdr.RootIndexRBN == 0 {
		return 0, fmt.Errorf("btree: empty tree: %w", errs.ErrNotFound)
	}
	leaf, _, err := e.descendToLeaf(key)
	if err != nil {
		return 0, err
	}
	i := sort.Search(len(leaf.Keys), func(i int) bool { return leaf.Keys[i] >= key })
	if i == len(leaf.Keys) {
		if leaf.NextLeafRBN != 0 {
			next, err := e.readNode(leaf.NextLeafRBN)
			if err != nil {
				return 0, err
			}
			if len(next.Values) > 0 {
				return next.Values[0], nil
			}
		}
		return 0, fmt.Errorf("btree: key %d: %w", key, errs.ErrNotFound)
	}
	return leaf.Values[i], nil
}

// FindInsertionBlock resolves key the same way Search does, but falls back
// to the last value of the rightmost leaf when key exceeds every indexed
// key, rather than failing with ErrNotFound. This is also used as the
// engine's seqset.Resolver implementation.
func (e *Engine) FindInsertionBlock(key uint32) (uint32, error) {
	if e.hdr.RootIndexRBN == 0 {
		return 0, fmt.Errorf("btree: empty tree: %w", errs.ErrNotFound)
	}
	leaf, _, err := e.descendToLeaf(key)
	if err != nil {
		return 0, err
	}
	if len(leaf.Values) == 0 {
		return 0, fmt.Errorf("btree: empty leaf: %w", errs.ErrNotFound)
	}
	i := sort.Search(len(leaf.Keys), func(i int) bool { return leaf.Keys[i] >= key })
	if i == len(leaf.Keys) {
		if leaf.NextLeafRBN != 0 {
			next, err := e.readNode(leaf.NextLeafRBN)
			if err != nil {
				return 0, err
			}
			if len(next.Values) > 0 {
				return next.Values[0], nil
			}
		}
		i = len(leaf.Keys) - 1
	}
	return leaf.Values[i], nil
}

// ResolveInsertionBlock implements seqset.Resolver.
func (e *Engine) ResolveInsertionBlock(key uint32) (uint32, error) { return e.FindInsertionBlock(key) }

// SearchRange descends to the leaf containing lo, then walks the leaf chain
// via nextLeafRBN collecting every value whose key lies in [lo, hi].
func (e *Engine) SearchRange(lo, hi uint32) ([]uint32, error) {
	if e.hdr.RootIndexRBN == 0 {
		return nil, nil
	}
	leaf, _, err := e.descendToLeaf(lo)
	if err != nil {
		return nil, err
	}
	var out []uint32
	i := sort.Search(len(leaf.Keys), func(i int) bool { return leaf.Keys[i] >= lo })
	for {
		for ; i < len(leaf.Keys); i++ {
			if leaf.Keys[i] > hi {
				return out, nil
			}
			out = append(out, leaf.Values[i])
		}
		if leaf.NextLeafRBN == 0 {
			return out, nil
		}
		leaf, err = e.readNode(leaf.NextLeafRBN)
		if err != nil {
			return nil, err
		}
		i = 0
	}
}

func insertLeafSorted(keys, values []uint32, key, value uint32) ([]uint32, []uint32) {
	i := sort.Search(len(keys), func(i int) bool { return keys[i] >= key })
	newKeys := make([]uint32, 0, len(keys)+1)
	newKeys = append(newKeys, keys[:i]...)
	newKeys = append(newKeys, key)
	newKeys = append(newKeys, keys[i:]...)
	newValues := make([]uint32, 0, len(values)+1)
	newValues = append(newValues, values[:i]...)
	newValues = append(newValues, value)
	newValues = append(newValues, values[i:]...)
	return newKeys, newValues
}

func insertAt(keys []uint32, i int, k uint32) []uint32 {
	out := make([]uint32, 0, len(keys)+1)
	out = append(out, keys[:i]...)
	out = append(out, k)
	out = append(out, keys[i:]...)
	return out
}

func insertChildAt(children []uint32, i int, c uint32) []uint32 {
	out := make([]uint32, 0, len(children)+1)
	out = append(out, children[:i]...)
	out = append(out, c)
	out = append(out, children[i:]...)
	return out
}

func ceilHalf(n int) int { return (n + 1) / 2 }

// Insert adds (key, value) to the tree, splitting leaves and internal nodes
// as needed and growing the root when the split reaches the top.
func (e *Engine) Insert(key, value uint32) error {
	if e.hdr.RootIndexRBN == 0 {
		rbn, err := e.allocateNode()
		if err != nil {
			return err
		}
		leaf := treefmt.Node{IsLeaf: true, Keys: []uint32{key}, Values: []uint32{value}}
		if err := e.writeNode(rbn, leaf); err != nil {
			return err
		}
		e.hdr.RootIndexRBN = rbn
		e.hdr.IndexStartRBN = rbn
		e.hdr.Height = 1
		return nil
	}

	promoted, newRightRBN, split, err := e.insertRecursive(e.hdr.RootIndexRBN, key, value)
	if err != nil {
		return err
	}
	if !split {
		return nil
	}
	newRootRBN, err := e.allocateNode()
	if err != nil {
		return err
	}
	newRoot := treefmt.Node{IsLeaf: false, Keys: []uint32{promoted}, Children: []uint32{e.hdr.RootIndexRBN, newRightRBN}}
	if err := e.writeNode(newRootRBN, newRoot); err != nil {
		return err
	}
	e.hdr.RootIndexRBN = newRootRBN
	e.hdr.Height++
	return nil
}

func (e *Engine) insertRecursive(rbn uint32, key, value uint32) (promoted uint32, newRightRBN uint32, split bool, err error) {
	node, err := e.readNode(rbn)
	if err != nil {
		return 0, 0, false, err
	}

	if node.IsLeaf {
		if i := sort.Search(len(node.Keys), func(i int) bool { return node.Keys[i] >= key }); i < len(node.Keys) && node.Keys[i] == key {
			return 0, 0, false, fmt.Errorf("btree: key %d: %w", key, errs.ErrDuplicateKey)
		}
		maxKeys := e.maxKeys(true)
		if len(node.Keys) < maxKeys {
			node.Keys, node.Values = insertLeafSorted(node.Keys, node.Values, key, value)
			return 0, 0, false, e.writeNode(rbn, node)
		}
		allKeys, allValues := insertLeafSorted(node.Keys, node.Values, key, value)
		mid := ceilHalf(len(allKeys))
		newRBN, err := e.allocateNode()
		if err != nil {
			return 0, 0, false, err
		}
		oldNext := node.NextLeafRBN
		left := treefmt.Node{IsLeaf: true, PrevLeafRBN: node.PrevLeafRBN, NextLeafRBN: newRBN, Keys: allKeys[:mid], Values: allValues[:mid]}
		right := treefmt.Node{IsLeaf: true, PrevLeafRBN: rbn, NextLeafRBN: oldNext, Keys: allKeys[mid:], Values: allValues[mid:]}
		if err := e.writeNode(rbn, left); err != nil {
			return 0, 0, false, err
		}
		if err := e.writeNode(newRBN, right); err != nil {
			return 0, 0, false, err
		}
		if oldNext != 0 {
			nextNode, err := e.readNode(oldNext)
			if err != nil {
				return 0, 0, false, err
			}
			nextNode.PrevLeafRBN = newRBN
			if err := e.writeNode(oldNext, nextNode); err != nil {
				return 0, 0, false, err
			}
		}
		return right.Keys[0], newRBN, true, nil
	}

	childIdx := findChildIndex(node.Keys, key)
	childPromoted, newChildRBN, childSplit, err := e.insertRecursive(node.Children[childIdx], key, value)
	if err != nil {
		return 0, 0, false, err
	}
	if !childSplit {
		return 0, 0, false, nil
	}

	newKeys := insertAt(node.Keys, childIdx, childPromoted)
	newChildren := insertChildAt(node.Children, childIdx+1, newChildRBN)
	maxKeys := e.maxKeys(false)
	if len(newKeys) <= maxKeys {
		node.Keys, node.Children = newKeys, newChildren
		return 0, 0, false, e.writeNode(rbn, node)
	}

	mid := len(newKeys) / 2
	midKey := newKeys[mid]
	newRBN, err := e.allocateNode()
	if err != nil {
		return 0, 0, false, err
	}
	left := treefmt.Node{IsLeaf: false, Keys: newKeys[:mid], Children: newChildren[:mid+1]}
	right := treefmt.Node{IsLeaf: false, Keys: newKeys[mid+1:], Children: newChildren[mid+1:]}
	if err := e.writeNode(rbn, left); err != nil {
		return 0, 0, false, err
	}
	if err := e.writeNode(newRBN, right); err != nil {
		return 0, 0, false, err
	}
	return midKey, newRBN, true, nil
}

type pathEntry struct {
	RBN           uint32
	IndexInParent int // this node's child index within its parent; -1 for the root
}

func (e *Engine) descendPath(key uint32) ([]pathEntry, error) {
	var path []pathEntry
	rbn := e.hdr.RootIndexRBN
	idx := -1
	limit := int(e.hdr.Height) + depthSlack
	for steps := 0; ; steps++ {
		if steps > limit {
			return nil, fmt.Errorf("btree: descent exceeded height %d+%d: %w", e.hdr.Height, depthSlack, errs.ErrTreeInvariant)
		}
		path = append(path, pathEntry{RBN: rbn, IndexInParent: idx})
		node, err := e.readNode(rbn)
		if err != nil {
			return nil, err
		}
		if node.IsLeaf {
			return path, nil
		}
		idx = findChildIndex(node.Keys, key)
		rbn = node.Children[idx]
	}
}

// Remove deletes key from the tree, repairing underfull nodes by borrowing
// from or merging with a sibling, and collapsing the root if it ends with
// zero keys and one child.
func (e *Engine) Remove(key uint32) error {
	if e.hdr.RootIndexRBN == 0 {
		return fmt.Errorf("btree: key %d: %w", key, errs.ErrNotFound)
	}
	path, err := e.descendPath(key)
	if err != nil {
		return err
	}
	leafEntry := path[len(path)-1]
	leaf, err := e.readNode(leafEntry.RBN)
	if err != nil {
		return err
	}
	i := sort.Search(len(leaf.Keys), func(i int) bool { return leaf.Keys[i] >= key })
	if i == len(leaf.Keys) || leaf.Keys[i] != key {
		return fmt.Errorf("btree: key %d: %w", key, errs.ErrNotFound)
	}
	firstRemoved := i == 0
	leaf.Keys = append(leaf.Keys[:i], leaf.Keys[i+1:]...)
	leaf.Values = append(leaf.Values[:i], leaf.Values[i+1:]...)
	if err := e.writeNode(leafEntry.RBN, leaf); err != nil {
		return err
	}

	if firstRemoved && len(leaf.Keys) > 0 && leafEntry.IndexInParent > 0 {
		parentEntry := path[len(path)-2]
		parent, err := e.readNode(parentEntry.RBN)
		if err != nil {
			return err
		}
		parent.Keys[leafEntry.IndexInParent-1] = leaf.Keys[0]
		if err := e.writeNode(parentEntry.RBN, parent); err != nil {
			return err
		}
	}

	return e.repairFrom(path, len(path)-1)
}

func canBorrow(sib treefmt.Node, maxKeys int) bool {
	return len(sib.Keys) > minKeysFor(maxKeys)
}

func borrowFromRight(node, right, parent *treefmt.Node, idx int) {
	if node.IsLeaf {
		node.Keys = append(node.Keys, right.Keys[0])
		node.Values = append(node.Values, right.Values[0])
		right.Keys = right.Keys[1:]
		right.Values = right.Values[1:]
		parent.Keys[idx] = right.Keys[0]
		return
	}
	node.Keys = append(node.Keys, parent.Keys[idx])
	node.Children = append(node.Children, right.Children[0])
	parent.Keys[idx] = right.Keys[0]
	right.Keys = right.Keys[1:]
	right.Children = right.Children[1:]
}

func borrowFromLeft(node, left, parent *treefmt.Node, idx int) {
	if node.IsLeaf {
		k := left.Keys[len(left.Keys)-1]
		v := left.Values[len(left.Values)-1]
		left.Keys = left.Keys[:len(left.Keys)-1]
		left.Values = left.Values[:len(left.Values)-1]
		node.Keys = append([]uint32{k}, node.Keys...)
		node.Values = append([]uint32{v}, node.Values...)
		parent.Keys[idx-1] = node.Keys[0]
		return
	}
	sep := parent.Keys[idx-1]
	lastChild := left.Children[len(left.Children)-1]
	lastKey := left.Keys[len(left.Keys)-1]
	left.Keys = left.Keys[:len(left.Keys)-1]
	left.Children = left.Children[:len(left.Children)-1]
	node.Keys = append([]uint32{sep}, node.Keys...)
	node.Children = append([]uint32{lastChild}, node.Children...)
	parent.Keys[idx-1] = lastKey
}

// mergeInto folds right into left (left survives, right is abandoned).
// sepIdx is the index in parent.Keys separating left and right.
func mergeInto(left, right *treefmt.Node, parent *treefmt.Node, sepIdx int) {
	if left.IsLeaf {
		left.Keys = append(left.Keys, right.Keys...)
		left.Values = append(left.Values, right.Values...)
		left.NextLeafRBN = right.NextLeafRBN
		return
	}
	left.Keys = append(left.Keys, parent.Keys[sepIdx])
	left.Keys = append(left.Keys, right.Keys...)
	left.Children = append(left.Children, right.Children...)
}

func removeAt(keys []uint32, i int) []uint32 {
	return append(keys[:i], keys[i+1:]...)
}

func removeChildAt(children []uint32, i int) []uint32 {
	return append(children[:i], children[i+1:]...)
}

func (e *Engine) repairFrom(path []pathEntry, level int) error {
	entry := path[level]
	node, err := e.readNode(entry.RBN)
	if err != nil {
		return err
	}

	if level == 0 {
		if !node.IsLeaf && len(node.Children) == 1 {
			e.hdr.RootIndexRBN = node.Children[0]
			e.hdr.Height--
		}
		return nil
	}

	maxKeys := e.maxKeys(node.IsLeaf)
	if len(node.Keys) >= minKeysFor(maxKeys) {
		return nil
	}

	parentEntry := path[level-1]
	parent, err := e.readNode(parentEntry.RBN)
	if err != nil {
		return err
	}
	idx := entry.IndexInParent

	if idx+1 < len(parent.Children) {
		right, err := e.readNode(parent.Children[idx+1])
		if err != nil {
			return err
		}
		if canBorrow(right, maxKeys) {
			borrowFromRight(&node, &right, &parent, idx)
			if err := e.writeNode(entry.RBN, node); err != nil {
				return err
			}
			if err := e.writeNode(parent.Children[idx+1], right); err != nil {
				return err
			}
			return e.writeNode(parentEntry.RBN, parent)
		}
	}
	if idx-1 >= 0 {
		left, err := e.readNode(parent.Children[idx-1])
		if err != nil {
			return err
		}
		if canBorrow(left, maxKeys) {
			borrowFromLeft(&node, &left, &parent, idx)
			if err := e.writeNode(entry.RBN, node); err != nil {
				return err
			}
			if err := e.writeNode(parent.Children[idx-1], left); err != nil {
				return err
			}
			return e.writeNode(parentEntry.RBN, parent)
		}
	}
	if idx+1 < len(parent.Children) {
		rightRBN := parent.Children[idx+1]
		right, err := e.readNode(rightRBN)
		if err != nil {
			return err
		}
		mergeInto(&node, &right, &parent, idx)
		if node.IsLeaf && node.NextLeafRBN != 0 {
			next, err := e.readNode(node.NextLeafRBN)
			if err != nil {
				return err
			}
			next.PrevLeafRBN = entry.RBN
			if err := e.writeNode(node.NextLeafRBN, next); err != nil {
				return err
			}
		}
		if err := e.writeNode(entry.RBN, node); err != nil {
			return err
		}
		parent.Keys = removeAt(parent.Keys, idx)
		parent.Children = removeChildAt(parent.Children, idx+1)
		if err := e.writeNode(parentEntry.RBN, parent); err != nil {
			return err
		}
		return e.repairFrom(path, level-1)
	}
	if idx-1 >= 0 {
		leftRBN := parent.Children[idx-1]
		left, err := e.readNode(leftRBN)
		if err != nil {
			return err
		}
		mergeInto(&left, &node, &parent, idx-1)
		if left.IsLeaf && left.NextLeafRBN != 0 {
			next, err := e.readNode(left.NextLeafRBN)
			if err != nil {
				return err
			}
			next.PrevLeafRBN = leftRBN
			if err := e.writeNode(left.NextLeafRBN, next); err != nil {
				return err
			}
		}
		if err := e.writeNode(leftRBN, left); err != nil {
			return err
		}
		parent.Keys = removeAt(parent.Keys, idx-1)
		parent.Children = removeChildAt(parent.Children, idx)
		if err := e.writeNode(parentEntry.RBN, parent); err != nil {
			return err
		}
		return e.repairFrom(path, level-1)
	}
	// No sibling at all: tolerate the underfull node (only possible when
	// parent itself has a single child, which only happens transiently
	// during a root collapse on the next pass up).
	return nil
}
