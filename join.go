// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"github.com/gaissmai/bitjoin/internal/arena"
	"github.com/gaissmai/bitjoin/internal/bitset"
)

// Join calls visit for every key present in all indexes, in ascending key order.
// The vals slice holds the value of key in each index, in the order of idxs.
// It is reused between the calls, visit must not retain it.
//
// The tries are walked in lockstep from the root down to the leaves.
// On each level the presence bitmaps of the current nodes are intersected
// and only the common slots are descended, a subtree missing in any single
// index is pruned at once. The work is proportional to the live nodes
// visited, not to the key space.
//
// Joining a single index iterates over it, joining an index with
// itself is legal. No indexes at all, or any empty index, yield no calls.
//
// The join always runs to completion. The indexes must not be
// modified until Join returns, also not by visit.
func Join(visit func(key uint32, vals []uint64), idxs ...*Index) {
	if len(idxs) == 0 {
		return
	}

	depth := 0
	for _, t := range idxs {
		if t.Len() == 0 {
			return
		}
		depth = max(depth, t.depth)
	}

	j := &joiner{
		idxs:  idxs,
		masks: make([]*bitset.BitSet256, len(idxs)),
		vals:  make([]uint64, len(idxs)),
		visit: visit,
	}

	for level := leafLevel; level <= depth; level++ {
		j.nodes[level] = make([]arena.Handle, len(idxs))
	}

	// all tries start at the root, shallower tries are virtually
	// wrapped up to the common depth, see descend.
	for i, t := range idxs {
		j.nodes[depth][i] = t.root
	}

	j.descend(depth, 0)
}

// joiner holds the state of a level synchronized descent.
type joiner struct {
	idxs []*Index

	// per level, the current node of each index
	nodes [maxTreeDepth + 1][]arena.Handle

	// per level, buffer for the common slots
	slots [maxTreeDepth + 1][maxNodeSlots]uint

	masks []*bitset.BitSet256 // scratch, presence bitmaps to intersect
	vals  []uint64            // scratch, passed to visit

	visit func(key uint32, vals []uint64)
}

// descend intersects the nodes at level and recurses into the common slots.
//
// An index with a depth below level takes part as a virtual node with
// only slot 0 present, whose child is the index node itself. This is
// exactly how the trie would look after growing to the common depth.
func (j *joiner) descend(level int, prefix uint32) {
	cur := j.nodes[level]

	for i, t := range j.idxs {
		if level > t.depth {
			j.masks[i] = &wrapMask
			continue
		}
		j.masks[i] = &t.arena.At(cur[i]).BitSet256
	}

	common := bitset.IntersectAll(j.masks...)
	if common.IsEmpty() {
		return
	}

	shift := strideLen * (level - 1)

	if level == leafLevel {
		for _, b := range common.AsSlice(j.slots[level][:0]) {
			for i, t := range j.idxs {
				j.vals[i] = t.arena.At(cur[i]).body[b]
			}
			j.visit(prefix|uint32(b), j.vals)
		}
		return
	}

	next := j.nodes[level-1]

	for _, b := range common.AsSlice(j.slots[level][:0]) {
		for i, t := range j.idxs {
			if level > t.depth {
				next[i] = cur[i]
				continue
			}
			next[i] = t.arena.At(cur[i]).child(b)
		}
		j.descend(level-1, prefix|uint32(b)<<shift)
	}
}

// Join2 calls visit for every key present in both pools, in ascending key order,
// with pointers to the values of key in a and b.
//
// The values may be modified through the pointers, the pools must not
// be modified until Join2 returns.
func Join2[A, B any](a *Pool[A], b *Pool[B], visit func(key uint32, a *A, b *B)) {
	Join(func(key uint32, slots []uint64) {
		visit(key, &a.dense[slots[0]], &b.dense[slots[1]])
	}, &a.idx, &b.idx)
}

// Join3 calls visit for every key present in all three pools, in ascending key order,
// with pointers to the values of key in a, b and c.
//
// The values may be modified through the pointers, the pools must not
// be modified until Join3 returns.
func Join3[A, B, C any](a *Pool[A], b *Pool[B], c *Pool[C], visit func(key uint32, a *A, b *B, c *C)) {
	Join(func(key uint32, slots []uint64) {
		visit(key, &a.dense[slots[0]], &b.dense[slots[1]], &c.dense[slots[2]])
	}, &a.idx, &b.idx, &c.idx)
}

// Indexer is implemented by every [Pool], regardless of its value type.
type Indexer interface {
	Index() *Index
}

// JoinPools calls visit for every key present in all pools, in ascending key order.
// The slots slice holds the slot of key in each pool, in the order of pools,
// resolve them with the Dense method of the pool.
// The slots slice is reused between the calls, visit must not retain it.
func JoinPools(visit func(key uint32, slots []int), pools ...Indexer) {
	idxs := make([]*Index, len(pools))
	for i, p := range pools {
		idxs[i] = p.Index()
	}

	slots := make([]int, len(pools))
	Join(func(key uint32, vals []uint64) {
		for i, v := range vals {
			slots[i] = int(v)
		}
		visit(key, slots)
	}, idxs...)
}
