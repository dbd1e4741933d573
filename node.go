// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"github.com/gaissmai/bitjoin/internal/arena"
	"github.com/gaissmai/bitjoin/internal/bitset"
)

const (
	strideLen    = 8                // byte
	maxTreeDepth = 32 / strideLen   // 4
	maxNodeSlots = 1 << strideLen   // 256
	byteMask     = maxNodeSlots - 1 // 0xff
	leafLevel    = 1                // levels count down to the leaf
)

// node is a trie level node of the bitmask index.
//
// The body is interpreted by the level of the node in the traversal,
// it is never inferred from the content:
//   - leaf level: the body holds the values
//   - inner levels: the body holds the arena handles of the children
//
// The embedded bitset is the presence bitmap, bit i is set
// iff body[i] holds a valid value or child.
type node struct {
	bitset.BitSet256
	body [maxNodeSlots]uint64
}

// child returns the handle of the child at slot b, the slot must be present.
func (n *node) child(b uint) arena.Handle {
	return arena.Handle(n.body[b])
}

// setChild inserts the child handle at slot b.
func (n *node) setChild(b uint, h arena.Handle) {
	n.MustSet(b)
	n.body[b] = uint64(h)
}

// clearSlot removes slot b, value or child, and reports if the node is now empty.
func (n *node) clearSlot(b uint) (empty bool) {
	n.MustClear(b)
	n.body[b] = 0
	return n.IsEmpty()
}

// byteAt returns the byte of key addressing the slot at level,
// level 1 is the least significant byte.
func byteAt(key uint32, level int) uint {
	return uint(key>>(strideLen*(level-1))) & byteMask
}

// depthFor returns the smallest depth with a capacity exceeding key.
func depthFor(key uint32) int {
	switch {
	case key < 1<<8:
		return 1
	case key < 1<<16:
		return 2
	case key < 1<<24:
		return 3
	default:
		return maxTreeDepth
	}
}

// capacityOf returns the key capacity of a tree with the given depth, 256^depth.
func capacityOf(depth int) uint64 {
	return 1 << (strideLen * depth)
}

// wrapMask is the presence bitmap of the virtual root wrapping a shallower
// tree in a join, only slot 0 is present.
var wrapMask = func() (b bitset.BitSet256) {
	b.MustSet(0)
	return
}()
