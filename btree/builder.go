package btree

import (
	"fmt"

	"github.com/jpare/zipstore/errs"
	"github.com/jpare/zipstore/internal/header"
	"github.com/jpare/zipstore/internal/pagedfile"
	"github.com/jpare/zipstore/internal/treefmt"
)

// SequenceSetWalker supplies the (rbn, lastKey) pairs a bulk build indexes,
// in ascending key order. *seqset.Engine satisfies this.
type SequenceSetWalker interface {
	WalkActiveBlocks(fn func(rbn, lastKey uint32) error) error
}

// BuildFromSequenceSet bulk-loads a fresh tree over pf: collect every data
// block's last key from w, pack them into leaves left to right, then build
// internal levels bottom-up in groups of maxKeys+1 children until a single
// root remains.
func BuildFromSequenceSet(pf *pagedfile.File, hdr *header.TreeHeader, w SequenceSetWalker) (*Engine, error) {
	type pair struct{ rbn, lastKey uint32 }
	var pairs []pair
	if err := w.WalkActiveBlocks(func(rbn, lastKey uint32) error {
		pairs = append(pairs, pair{rbn, lastKey})
		return nil
	}); err != nil {
		return nil, fmt.Errorf("btree: bulk build: walking sequence set: %w", err)
	}

	e := &Engine{pf: pf, hdr: hdr}
	e.hdr.IndexBlockCount = 0
	e.hdr.Height = 0
	e.hdr.RootIndexRBN = 0
	e.hdr.IndexStartRBN = 0

	if len(pairs) == 0 {
		return e, nil
	}

	maxLeafKeys := e.maxKeys(true)
	if maxLeafKeys < 1 {
		return nil, fmt.Errorf("btree: bulk build: page size %d too small for any leaf entries: %w", e.pageSize(), errs.ErrBlockOverflow)
	}

	type levelNode struct {
		rbn      uint32
		firstKey uint32
	}
	var level []levelNode
	var prevLeafRBN uint32

	for start := 0; start < len(pairs); start += maxLeafKeys {
		end := start + maxLeafKeys
		if end > len(pairs) {
			end = len(pairs)
		}
		chunk := pairs[start:end]

		rbn, err := e.allocateNode()
		if err != nil {
			return nil, err
		}
		leaf := treefmt.Node{IsLeaf: true, PrevLeafRBN: prevLeafRBN}
		for _, p := range chunk {
			leaf.Keys = append(leaf.Keys, p.lastKey)
			leaf.Values = append(leaf.Values, p.rbn)
		}
		if err := e.writeNode(rbn, leaf); err != nil {
			return nil, err
		}
		if prevLeafRBN != 0 {
			prev, err := e.readNode(prevLeafRBN)
			if err != nil {
				return nil, err
			}
			prev.NextLeafRBN = rbn
			if err := e.writeNode(prevLeafRBN, prev); err != nil {
				return nil, err
			}
		} else {
			e.hdr.IndexStartRBN = rbn
		}
		prevLeafRBN = rbn

		level = append(level, levelNode{rbn: rbn, firstKey: chunk[0].lastKey})
	}

	e.hdr.Height = 1
	maxInternalKeys := e.maxKeys(false)
	if maxInternalKeys < 1 {
		return nil, fmt.Errorf("btree: bulk build: page size %d too small for any internal fan-out: %w", e.pageSize(), errs.ErrBlockOverflow)
	}
	childrenPerNode := maxInternalKeys + 1

	for len(level) > 1 {
		var next []levelNode
		for start := 0; start < len(level); start += childrenPerNode {
			end := start + childrenPerNode
			if end > len(level) {
				end = len(level)
			}
			group := level[start:end]

			rbn, err := e.allocateNode()
			if err != nil {
				return nil, err
			}
			node := treefmt.Node{IsLeaf: false}
			for i, g := range group {
				node.Children = append(node.Children, g.rbn)
				if i > 0 {
					node.Keys = append(node.Keys, g.firstKey)
				}
			}
			if err := e.writeNode(rbn, node); err != nil {
				return nil, err
			}
			next = append(next, levelNode{rbn: rbn, firstKey: group[0].firstKey})
		}
		level = next
		e.hdr.Height++
	}

	e.hdr.RootIndexRBN = level[0].rbn
	return e, nil
}
