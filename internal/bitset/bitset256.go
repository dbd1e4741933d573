// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package bitset implements the 256-bit presence bitmap of a trie node,
// a mapping between the byte values [0..255] and boolean values.
//
// Studied [github.com/bits-and-blooms/bitset] inside out
// and rewrote the needed parts from scratch for fixed 256 bits.
package bitset

import (
	"fmt"
	"iter"
	"math/bits"
)

// the expressions
//
//   i>>6 and i&63
//
// are the word index and the bit index of bit i in [4]uint64,
// not factored out as functions to keep the methods inlineable.

// BitSet256 represents a fixed size bitset from [0..255]
type BitSet256 [4]uint64

// Full is the bitset with all 256 bits set, the identity of the intersection.
var Full = BitSet256{
	^uint64(0),
	^uint64(0),
	^uint64(0),
	^uint64(0),
}

func (b *BitSet256) String() string {
	return fmt.Sprint(b.AsSlice(make([]uint, 0, 256)))
}

// MustSet sets the bit, it panic's if bit is > 255 by intention!
func (b *BitSet256) MustSet(bit uint) {
	b[bit>>6] |= 1 << (bit & 63)
}

// MustClear clears the bit, it panic's if bit is > 255 by intention!
func (b *BitSet256) MustClear(bit uint) {
	b[bit>>6] &^= 1 << (bit & 63)
}

// Test if the bit is set.
func (b *BitSet256) Test(bit uint) (ok bool) {
	if x := int(bit >> 6); x < 4 {
		return b[x&3]&(1<<(bit&63)) != 0 // [x&3] is bounds check elimination (BCE)
	}
	return
}

// IsEmpty returns true if no bit is set.
func (b *BitSet256) IsEmpty() bool {
	return b[3] == 0 &&
		b[2] == 0 &&
		b[1] == 0 &&
		b[0] == 0
}

// Size is the number of set bits (popcount).
func (b *BitSet256) Size() (cnt int) {
	cnt += bits.OnesCount64(b[0])
	cnt += bits.OnesCount64(b[1])
	cnt += bits.OnesCount64(b[2])
	cnt += bits.OnesCount64(b[3])
	return
}

// FirstSet returns the first bit set along with an ok code.
func (b *BitSet256) FirstSet() (first uint, ok bool) {
	if x := bits.TrailingZeros64(b[0]); x != 64 {
		return uint(x), true
	} else if x := bits.TrailingZeros64(b[1]); x != 64 {
		return uint(x + 64), true
	} else if x := bits.TrailingZeros64(b[2]); x != 64 {
		return uint(x + 128), true
	} else if x := bits.TrailingZeros64(b[3]); x != 64 {
		return uint(x + 192), true
	}
	return
}

// NextSet returns the next bit set from the specified start bit,
// including possibly the current bit along with an ok code.
func (b *BitSet256) NextSet(bit uint) (uint, bool) {
	wIdx := int(bit >> 6)
	if wIdx >= 4 {
		return 0, false
	}

	// process the first (maybe partial) word
	first := b[wIdx&3] >> (bit & 63)
	if first != 0 {
		return bit + uint(bits.TrailingZeros64(first)), true
	}

	// process the following words until next bit is set
	wIdx++
	for jIdx, word := range b[wIdx:] {
		if word != 0 {
			return uint((wIdx+jIdx)<<6 + bits.TrailingZeros64(word)), true
		}
	}
	return 0, false
}

// AsSlice returns all set bits in ascending order as slice of uint
// without heap allocations.
//
// The words are decoded in batches, a whole word at a time,
// it panics if the capacity of buf is < b.Size()
func (b *BitSet256) AsSlice(buf []uint) []uint {
	buf = buf[:cap(buf)] // use cap as max len

	size := 0
	for wIdx, word := range b {
		for ; word != 0; size++ {
			// panics if capacity of buf is exceeded.
			buf[size] = uint(wIdx<<6 + bits.TrailingZeros64(word))

			// clear the rightmost set bit
			word &= word - 1
		}
	}

	return buf[:size]
}

// All iterates over all set bits in ascending order, one bit at a time.
func (b *BitSet256) All() iter.Seq[uint] {
	return func(yield func(uint) bool) {
		for bit, ok := b.FirstSet(); ok; bit, ok = b.NextSet(bit + 1) {
			if !yield(bit) {
				return
			}
		}
	}
}

// IntersectsAny returns true if the intersection of base set with the compare set
// is not the empty set.
func (b *BitSet256) IntersectsAny(c *BitSet256) bool {
	return b[0]&c[0] != 0 ||
		b[1]&c[1] != 0 ||
		b[2]&c[2] != 0 ||
		b[3]&c[3] != 0
}

// Intersection computes the intersection of base set with the compare set.
// This is the BitSet equivalent of & (and).
func (b *BitSet256) Intersection(c *BitSet256) (bs BitSet256) {
	bs[0] = b[0] & c[0]
	bs[1] = b[1] & c[1]
	bs[2] = b[2] & c[2]
	bs[3] = b[3] & c[3]
	return
}

// IntersectAll computes the word-wise intersection of all sets.
//
// The intersection of no sets at all is the empty set and not [Full],
// a join without participants has nothing in common.
func IntersectAll(sets ...*BitSet256) (bs BitSet256) {
	if len(sets) == 0 {
		return
	}

	bs = *sets[0]
	for _, c := range sets[1:] {
		bs[0] &= c[0]
		bs[1] &= c[1]
		bs[2] &= c[2]
		bs[3] &= c[3]

		// early exit, nothing left to intersect
		if bs.IsEmpty() {
			return
		}
	}
	return
}
