// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"fmt"
	"iter"
)

// Pool is a sparse set of keys with dense value storage, a component pool.
//
// The index maps each key to a slot of the dense values,
// the reverse slice maps each slot back to its key:
//
//	index:   key -> slot
//	dense:   [slot]value
//	reverse: [slot]key
//
// Insert appends, Remove fills the vacated slot with the last value
// (swap-remove), the order of the dense values is not meaningful.
//
// The zero value is ready to use. A Pool is not safe for concurrent use.
type Pool[T any] struct {
	idx     Index
	dense   []T
	reverse []uint32
}

// NewPool returns an empty pool, the options configure its index.
func NewPool[T any](opts ...Option) *Pool[T] {
	p := new(Pool[T])
	p.idx.apply(opts)
	return p
}

// Len returns the number of keys in the pool.
func (p *Pool[T]) Len() int {
	if p == nil {
		return 0
	}
	return len(p.dense)
}

// Index returns the index of the pool, to take part in a [Join].
// The index must not be modified.
func (p *Pool[T]) Index() *Index {
	return &p.idx
}

// Dense returns the dense values, the slots reported by [JoinPools]
// address this slice. The slice must not be resized.
func (p *Pool[T]) Dense() []T {
	return p.dense
}

// slot returns the validated slot of key.
func (p *Pool[T]) slot(key uint32) (int, bool) {
	s, ok := p.idx.Lookup(key)
	if !ok || s >= uint64(len(p.reverse)) || p.reverse[s] != key {
		return 0, false
	}
	return int(s), true
}

// Insert adds val for key, or replaces the value of an existing key in place.
//
// Insert fails only with [ErrExhausted], the pool is then unchanged.
func (p *Pool[T]) Insert(key uint32, val T) error {
	if s, ok := p.slot(key); ok {
		p.dense[s] = val
		return nil
	}

	if err := p.idx.Insert(key, uint64(len(p.dense))); err != nil {
		return err
	}

	p.dense = append(p.dense, val)
	p.reverse = append(p.reverse, key)
	return nil
}

// Lookup returns the value for key and true, or false if key is absent.
func (p *Pool[T]) Lookup(key uint32) (val T, ok bool) {
	if p == nil {
		return
	}

	s, ok := p.slot(key)
	if !ok {
		return
	}
	return p.dense[s], true
}

// Remove deletes key and reports whether it was present.
//
// The last value moves into the vacated slot, the slots of all
// other keys are unchanged.
func (p *Pool[T]) Remove(key uint32) (found bool) {
	if p == nil {
		return
	}

	s, ok := p.slot(key)
	if !ok {
		return false
	}

	last := len(p.dense) - 1
	moved := p.reverse[last]

	p.dense[s] = p.dense[last]
	p.reverse[s] = moved

	// release the reference held by the tail for the GC
	var zero T
	p.dense[last] = zero

	p.dense = p.dense[:last]
	p.reverse = p.reverse[:last]

	if moved != key {
		p.idx.update(moved, uint64(s))
	}

	return p.idx.Remove(key)
}

// MustGet returns a pointer to the value of key, valid until the next
// modification of the pool.
//
// The key must be present, MustGet panics otherwise, by intention!
func (p *Pool[T]) MustGet(key uint32) *T {
	s, ok := p.slot(key)
	if !ok {
		panic(fmt.Sprintf("bitjoin: MustGet of absent key %d", key))
	}
	return &p.dense[s]
}

// KeyAt returns the key occupying slot.
//
// The slot must be in [0, Len), KeyAt panics otherwise, by intention!
func (p *Pool[T]) KeyAt(slot int) uint32 {
	if slot < 0 || slot >= len(p.reverse) {
		panic(fmt.Sprintf("bitjoin: KeyAt of empty slot %d, len %d", slot, len(p.reverse)))
	}
	return p.reverse[slot]
}

// All returns an iterator over all keys and pointers to their values
// in ascending key order.
//
// The pool must not be modified during the iteration,
// the values may be modified through the pointers.
func (p *Pool[T]) All() iter.Seq2[uint32, *T] {
	return func(yield func(uint32, *T) bool) {
		if p == nil {
			return
		}
		for key, s := range p.idx.All() {
			if !yield(key, &p.dense[s]) {
				return
			}
		}
	}
}
