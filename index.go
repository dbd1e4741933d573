// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"iter"
	"log/slog"

	"github.com/gaissmai/bitjoin/internal/arena"
)

// ErrExhausted is returned by Insert when the node limit of the arena is reached.
// Match it with errors.Is, the returned errors carry the limit as context.
var ErrExhausted = arena.ErrExhausted

// Index is a sparse map from uint32 keys to uint64 values,
// a 256-way trie over the bytes of the key, most significant byte first.
//
// Every node carries a 256-bit presence bitmap, absence tests are
// a single bit test per level and the keys present in several
// indexes are found by intersecting the bitmaps, see [Join].
//
// The depth of the trie is 1 to 4 levels, it grows by wrapping the root
// when a key exceeds the capacity of 256^depth. The depth never shrinks.
//
// The zero value is ready to use. An Index is not safe for concurrent use.
type Index struct {
	arena  *arena.Arena[node]
	logger *slog.Logger

	root  arena.Handle
	depth int
	size  int
}

// NewIndex returns an empty index configured by opts.
func NewIndex(opts ...Option) *Index {
	t := new(Index)
	t.apply(opts)
	return t
}

// init the lazy fields of the zero value.
func (t *Index) init() {
	if t.depth == 0 {
		t.depth = 1
	}
	if t.arena == nil {
		t.arena = arena.New[node](0)
	}
}

// Len returns the number of keys in the index.
func (t *Index) Len() int {
	if t == nil {
		return 0
	}
	return t.size
}

// Depth returns the number of trie levels, 1 to 4.
func (t *Index) Depth() int {
	if t == nil || t.depth == 0 {
		return 1
	}
	return t.depth
}

// Capacity returns 256^depth, all keys below the capacity
// are stored without growing the trie.
func (t *Index) Capacity() uint64 {
	return capacityOf(t.Depth())
}

// Insert adds or overwrites the value for key.
//
// The trie grows if key >= Capacity. Insert fails only if the
// arena is exhausted, in that case the index is left unchanged.
func (t *Index) Insert(key uint32, val uint64) error {
	t.init()
	depth := max(t.depth, depthFor(key))

	// reserve all nodes up front, insert succeeds completely or not at all
	if err := t.arena.Reserve(t.nodesNeeded(key, depth)); err != nil {
		t.log().Warn("insert failed", slog.Uint64("key", uint64(key)), slog.Any("err", err))
		return err
	}

	t.grow(depth)

	if t.root == arena.Nil {
		t.root = t.arena.MustAlloc()
	}

	h := t.root
	for level := t.depth; level > leafLevel; level-- {
		n := t.arena.At(h)
		b := byteAt(key, level)

		if !n.Test(b) {
			n.setChild(b, t.arena.MustAlloc())
		}
		h = n.child(b)
	}

	leaf := t.arena.At(h)
	b := byteAt(key, leafLevel)

	if !leaf.Test(b) {
		leaf.MustSet(b)
		t.size++
	}
	leaf.body[b] = val

	return nil
}

// nodesNeeded returns the number of nodes an insert of key allocates,
// including the new roots when growing to depth.
func (t *Index) nodesNeeded(key uint32, depth int) int {
	if t.root == arena.Nil {
		return depth
	}

	// new roots wrapping the current one
	wraps := depth - t.depth

	h := t.root
	for level := depth; level > leafLevel; level-- {
		b := byteAt(key, level)

		if level > t.depth {
			// wrap levels have only slot 0, leading to the current root
			if b != 0 {
				return wraps + level - 1
			}
			continue
		}

		n := t.arena.At(h)
		if !n.Test(b) {
			return wraps + level - 1
		}
		h = n.child(b)
	}

	return wraps
}

// grow the trie to depth, the current root becomes child 0 of the new root.
// The nodes must be reserved by the caller.
func (t *Index) grow(depth int) {
	if t.depth >= depth {
		return
	}

	if t.root == arena.Nil {
		t.depth = depth
		return
	}

	for t.depth < depth {
		h := t.arena.MustAlloc()
		t.arena.At(h).setChild(0, t.root)

		t.root = h
		t.depth++
	}

	t.log().Debug("index grown", slog.Int("depth", t.depth), slog.Uint64("capacity", t.Capacity()))
}

// Lookup returns the value for key and true, or false if key is absent.
func (t *Index) Lookup(key uint32) (val uint64, ok bool) {
	if t == nil || t.root == arena.Nil || uint64(key) >= t.Capacity() {
		return
	}

	h := t.root
	for level := t.depth; level > leafLevel; level-- {
		n := t.arena.At(h)
		b := byteAt(key, level)

		if !n.Test(b) {
			return
		}
		h = n.child(b)
	}

	leaf := t.arena.At(h)
	b := byteAt(key, leafLevel)

	if !leaf.Test(b) {
		return
	}
	return leaf.body[b], true
}

// update overwrites the value of an existing key, it never allocates.
func (t *Index) update(key uint32, val uint64) (ok bool) {
	if t.root == arena.Nil || uint64(key) >= t.Capacity() {
		return
	}

	h := t.root
	for level := t.depth; level > leafLevel; level-- {
		n := t.arena.At(h)
		b := byteAt(key, level)

		if !n.Test(b) {
			return
		}
		h = n.child(b)
	}

	leaf := t.arena.At(h)
	b := byteAt(key, leafLevel)

	if !leaf.Test(b) {
		return
	}
	leaf.body[b] = val
	return true
}

// Remove deletes key and reports whether it was present.
//
// Nodes becoming empty are pruned and returned to the arena,
// up to and including the root. The depth is unchanged.
func (t *Index) Remove(key uint32) (found bool) {
	if t == nil || t.root == arena.Nil || uint64(key) >= t.Capacity() {
		return
	}

	found, empty := t.removeRec(t.root, key, t.depth)
	if empty {
		t.arena.Free(t.root)
		t.root = arena.Nil
	}

	if found {
		t.size--
	}
	return found
}

// removeRec clears key below node h at level and reports
// if h became empty, the parent frees it.
func (t *Index) removeRec(h arena.Handle, key uint32, level int) (found, empty bool) {
	n := t.arena.At(h)
	b := byteAt(key, level)

	if !n.Test(b) {
		return false, false
	}

	if level > leafLevel {
		child := n.child(b)

		found, empty = t.removeRec(child, key, level-1)
		if !empty {
			return found, false
		}
		t.arena.Free(child)
	}

	return true, n.clearSlot(b)
}

// All returns an iterator over all keys and values in ascending key order.
//
// The index must not be modified during the iteration.
func (t *Index) All() iter.Seq2[uint32, uint64] {
	return func(yield func(uint32, uint64) bool) {
		if t == nil || t.root == arena.Nil {
			return
		}
		_ = t.allRec(t.root, t.depth, 0, yield)
	}
}

// allRec, returns false if the iteration was stopped by yield.
func (t *Index) allRec(h arena.Handle, level int, prefix uint32, yield func(uint32, uint64) bool) bool {
	n := t.arena.At(h)
	shift := strideLen * (level - 1)

	for b := range n.All() {
		key := prefix | uint32(b)<<shift

		if level == leafLevel {
			if !yield(key, n.body[b]) {
				return false
			}
			continue
		}

		if !t.allRec(n.child(b), level-1, key, yield) {
			return false
		}
	}
	return true
}
