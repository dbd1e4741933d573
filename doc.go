// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

// Package bitjoin provides sparse bitmask indexes for uint32 keys
// with dense value storage and fast N-way joins.
//
// The building blocks are:
//
//   - Index: a 256-way trie over the bytes of the key, 1 to 4 levels deep,
//     each node with a 256-bit presence bitmap.
//   - Pool:  a component pool, an Index from key to slot plus dense
//     values, with O(1) insert, lookup and swap-remove.
//   - Join:  the keys present in every one of N indexes, in ascending
//     order, found by intersecting the presence bitmaps level by level.
//
// Many pools typically share one key domain, e.g. entity ids, and
// the callers ask for the entities having all of several components:
//
//	pos := bitjoin.NewPool[Position]()
//	vel := bitjoin.NewPool[Velocity]()
//	...
//	bitjoin.Join2(pos, vel, func(id uint32, p *Position, v *Velocity) {
//		p.X += v.DX
//	})
//
// No intermediate set is materialized, subtrees missing in any
// participant are pruned by a single bitmap intersection.
//
// The nodes are allocated from an arena, pruned nodes are recycled.
// An optional node limit turns arena exhaustion into [ErrExhausted].
//
// Nothing in this package is safe for concurrent use, a join must not
// run concurrently with a modification of any participant.
package bitjoin
