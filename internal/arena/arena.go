// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package arena implements a growable node arena addressed by handles.
//
// Nodes are allocated in fixed-size chunks, growing the arena never moves
// a live node. Freed handles are recycled before the arena grows.
// An optional limit on the number of live nodes turns exhaustion into
// an explicit [ErrExhausted] error.
//
// The arena is not safe for concurrent use.
package arena

import (
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"
)

// Handle addresses a node in the arena, the zero value is [Nil].
type Handle uint32

// Nil is the handle of no node.
const Nil Handle = 0

const (
	chunkBits = 6
	chunkSize = 1 << chunkBits
	chunkMask = chunkSize - 1

	// handle 0 is reserved for Nil
	maxHandles = math.MaxUint32
)

// ErrExhausted is returned when the node limit of the arena is reached.
var ErrExhausted = errors.New("arena: node limit exhausted")

// Arena is a handle based bump allocator with a free-list for nodes of type N.
//
// The zero value is an empty, unlimited arena ready to use.
type Arena[N any] struct {
	chunks []*[chunkSize]N

	next  Handle   // highest handle ever handed out
	free  []Handle // recycled handles, LIFO
	live  bitset.BitSet
	limit int // max live nodes, 0 means unlimited
}

// New returns an arena with at most limit live nodes, limit <= 0 means unlimited.
func New[N any](limit int) *Arena[N] {
	return &Arena[N]{limit: max(limit, 0)}
}

// Limit returns the max number of live nodes, 0 means unlimited.
func (a *Arena[N]) Limit() int {
	return a.limit
}

// Stats returns the number of currently live nodes
// and the total number of nodes ever allocated from fresh memory.
func (a *Arena[N]) Stats() (live int, total int) {
	total = int(a.next)
	return total - len(a.free), total
}

// Reserve checks that n more nodes can be allocated without exhausting the arena.
// It allocates nothing, callers use it to fail before any mutation.
func (a *Arena[N]) Reserve(n int) error {
	if n <= 0 {
		return nil
	}

	live, total := a.Stats()

	if a.limit > 0 && live+n > a.limit {
		return errors.Wrapf(ErrExhausted, "limit %d, live %d, requested %d", a.limit, live, n)
	}

	// fresh handles needed beyond the recycled ones
	if fresh := n - len(a.free); fresh > 0 && uint64(total)+uint64(fresh) > maxHandles {
		return errors.Wrapf(ErrExhausted, "handle space, total %d, requested %d", total, n)
	}

	return nil
}

// Alloc returns the handle of a zeroed node.
func (a *Arena[N]) Alloc() (Handle, error) {
	if err := a.Reserve(1); err != nil {
		return Nil, err
	}

	// recycle first
	if l := len(a.free); l > 0 {
		h := a.free[l-1]
		a.free = a.free[:l-1]
		a.live.Set(uint(h))
		return h, nil
	}

	a.next++
	h := a.next

	if int(h>>chunkBits) >= len(a.chunks) {
		a.chunks = append(a.chunks, new([chunkSize]N))
	}

	a.live.Set(uint(h))
	return h, nil
}

// MustAlloc is Alloc for callers that have already reserved the node,
// it panics if the arena is exhausted.
func (a *Arena[N]) MustAlloc() Handle {
	h, err := a.Alloc()
	if err != nil {
		panic(err)
	}
	return h
}

// Free resets the node and returns the handle to the free-list.
//
// It panics on Nil, on foreign handles and on double free, by intention!
func (a *Arena[N]) Free(h Handle) {
	if !a.IsLive(h) {
		panic(fmt.Sprintf("arena: free of unallocated handle %d", h))
	}

	var zero N
	*a.At(h) = zero

	a.live.Clear(uint(h))
	a.free = append(a.free, h)
}

// IsLive reports whether h is currently allocated.
func (a *Arena[N]) IsLive(h Handle) bool {
	return h != Nil && a.live.Test(uint(h))
}

// At returns the node addressed by h, it panics on Nil.
//
// The pointer stays valid until h is freed, growing the arena does not move nodes.
func (a *Arena[N]) At(h Handle) *N {
	if h == Nil {
		panic("arena: dereference of Nil handle")
	}
	return &a.chunks[h>>chunkBits][h&chunkMask]
}
