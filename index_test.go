// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"bytes"
	"errors"
	"log/slog"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// randomKeys returns n distinct keys, spread over the full 32 bit range
// or limited to [0, bound) if bound > 0.
func randomKeys(prng *rand.Rand, n int, bound uint32) []uint32 {
	seen := make(map[uint32]bool, n)
	keys := make([]uint32, 0, n)
	for len(keys) < n {
		k := prng.Uint32()
		if bound > 0 {
			k %= bound
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		keys = append(keys, k)
	}
	return keys
}

func TestIndexZeroValue(t *testing.T) {
	t.Parallel()

	var idx Index

	require.Equal(t, 0, idx.Len())
	require.Equal(t, 1, idx.Depth())
	require.EqualValues(t, 256, idx.Capacity())

	_, ok := idx.Lookup(0)
	require.False(t, ok)
	require.False(t, idx.Remove(0))

	for range idx.All() {
		t.Fatal("empty index must not yield")
	}

	require.NoError(t, idx.Insert(7, 70))
	val, ok := idx.Lookup(7)
	require.True(t, ok)
	require.EqualValues(t, 70, val)
}

func TestIndexNil(t *testing.T) {
	t.Parallel()

	var idx *Index

	require.Equal(t, 0, idx.Len())
	require.Equal(t, 1, idx.Depth())
	_, ok := idx.Lookup(1)
	require.False(t, ok)
	require.False(t, idx.Remove(1))
	for range idx.All() {
		t.Fatal("nil index must not yield")
	}
	require.Equal(t, "", idx.dumpString())
}

// insert keys with value = key, growing across the 256² and 256³ thresholds.
func TestIndexScenarioGrowth(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	keys := []uint32{10, 100, 1000, 10000, 100000, 1000000}
	depths := []int{1, 1, 2, 2, 3, 3}

	for i, k := range keys {
		require.NoError(t, idx.Insert(k, uint64(k)))
		require.Equal(t, depths[i], idx.Depth(), "depth after insert of %d", k)
	}

	for _, k := range keys {
		val, ok := idx.Lookup(k)
		require.True(t, ok, "key %d", k)
		require.EqualValues(t, k, val)
	}

	require.EqualValues(t, 256*256*256, idx.Capacity())
	require.Equal(t, len(keys), idx.Len())
}

func TestIndexGrowthThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key      uint32
		depth    int
		capacity uint64
	}{
		{0, 1, 256},
		{255, 1, 256},
		{256, 2, 256 * 256},
		{65535, 2, 256 * 256},
		{65536, 3, 256 * 256 * 256},
		{1<<24 - 1, 3, 256 * 256 * 256},
		{1 << 24, 4, 1 << 32},
		{1<<32 - 1, 4, 1 << 32},
	}

	for _, tt := range tests {
		idx := NewIndex()
		require.NoError(t, idx.Insert(tt.key, 1))
		require.Equal(t, tt.depth, idx.Depth(), "key %d", tt.key)
		require.Equal(t, tt.capacity, idx.Capacity(), "key %d", tt.key)

		// the new capacity is the smallest power of 256 exceeding the key
		require.Greater(t, idx.Capacity(), uint64(tt.key))
		require.LessOrEqual(t, idx.Capacity()/256, uint64(tt.key)|0xff)
	}
}

func TestIndexGrowthPreservesKeys(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(42, 42))

	idx := NewIndex()
	want := map[uint32]uint64{}

	// small keys first, every growth step must keep them
	for _, bound := range []uint32{1 << 8, 1 << 16, 1 << 24, 0} {
		for _, k := range randomKeys(prng, 200, bound) {
			v := prng.Uint64()
			require.NoError(t, idx.Insert(k, v))
			want[k] = v
		}

		for k, v := range want {
			got, ok := idx.Lookup(k)
			require.True(t, ok, "key %d lost after growth to depth %d", k, idx.Depth())
			require.Equal(t, v, got)
		}
	}

	require.Equal(t, len(want), idx.Len())
}

func TestIndexOverwrite(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	require.NoError(t, idx.Insert(4711, 1))
	require.NoError(t, idx.Insert(4711, 2))

	val, ok := idx.Lookup(4711)
	require.True(t, ok)
	require.EqualValues(t, 2, val)
	require.Equal(t, 1, idx.Len())
}

func TestIndexLookupBeyondCapacity(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	require.NoError(t, idx.Insert(1, 1))

	// 0x0101 shares the leaf byte with key 1, but is beyond the capacity
	_, ok := idx.Lookup(0x0101)
	require.False(t, ok)
	require.False(t, idx.Remove(0x0101))

	val, ok := idx.Lookup(1)
	require.True(t, ok)
	require.EqualValues(t, 1, val)
}

func TestIndexRoundTripRandom(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(4711, 42))

	idx := NewIndex()
	gold := map[uint32]uint64{}

	for _, k := range randomKeys(prng, 5_000, 0) {
		v := prng.Uint64()
		require.NoError(t, idx.Insert(k, v))
		gold[k] = v
	}

	for k, v := range gold {
		got, ok := idx.Lookup(k)
		if !ok || got != v {
			t.Fatalf("Lookup(%d), expected (%d, true), got (%d, %v)", k, v, got, ok)
		}
	}

	// absent keys
	for range 1_000 {
		k := prng.Uint32()
		_, want := gold[k]
		_, ok := idx.Lookup(k)
		require.Equal(t, want, ok, "key %d", k)
	}
}

func TestIndexRemove(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(42, 4711))

	idx := NewIndex()
	gold := map[uint32]uint64{}

	keys := randomKeys(prng, 2_000, 1<<20)
	for _, k := range keys {
		require.NoError(t, idx.Insert(k, uint64(k)))
		gold[k] = uint64(k)
	}

	for i, k := range keys {
		if i%2 == 0 {
			continue
		}
		require.True(t, idx.Remove(k), "remove present key %d", k)
		require.False(t, idx.Remove(k), "remove absent key %d", k)
		delete(gold, k)

		_, ok := idx.Lookup(k)
		require.False(t, ok, "key %d after remove", k)
	}

	require.Equal(t, len(gold), idx.Len())
	for k, v := range gold {
		got, ok := idx.Lookup(k)
		require.True(t, ok)
		require.Equal(t, v, got)
	}
}

func TestIndexPruneReturnsNodes(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(1, 2))

	a := NewArena(0)
	idx := NewIndex(WithArena(a))

	keys := randomKeys(prng, 1_000, 0)
	for _, k := range keys {
		require.NoError(t, idx.Insert(k, 0))
	}

	live, total := a.Stats()
	require.Equal(t, idx.nodeCount(), live)
	require.Equal(t, live, total)

	// remove the first half, empty chains are pruned
	for _, k := range keys[:500] {
		require.True(t, idx.Remove(k))
	}
	live, _ = a.Stats()
	require.Equal(t, idx.nodeCount(), live)

	// remove the rest, everything is pruned, root included
	for _, k := range keys[500:] {
		require.True(t, idx.Remove(k))
	}
	live, _ = a.Stats()
	require.Equal(t, 0, live)
	require.Equal(t, 0, idx.Len())
	require.Equal(t, 4, idx.Depth(), "depth never shrinks")

	// pruned nodes are recycled
	for _, k := range keys {
		require.NoError(t, idx.Insert(k, 1))
	}
	_, total2 := a.Stats()
	require.Equal(t, total, total2, "no fresh nodes needed after recycling")
}

func TestIndexPrunesChain(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	require.NoError(t, idx.Insert(0x01020304, 1))
	require.NoError(t, idx.Insert(0x01020305, 2))
	require.NoError(t, idx.Insert(0x0a000000, 3))
	require.Equal(t, 7, idx.nodeCount())

	// sibling in the same leaf, no pruning
	require.True(t, idx.Remove(0x01020305))
	require.Equal(t, 7, idx.nodeCount())

	// the whole chain below the root is pruned
	require.True(t, idx.Remove(0x01020304))
	require.Equal(t, 4, idx.nodeCount())

	val, ok := idx.Lookup(0x0a000000)
	require.True(t, ok)
	require.EqualValues(t, 3, val)
}

func TestIndexExhausted(t *testing.T) {
	t.Parallel()

	idx := NewIndex(WithNodeLimit(2))
	require.NoError(t, idx.Insert(1, 1))

	// growth needs a new root and a new leaf, 3 nodes in total
	err := idx.Insert(300, 2)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrExhausted))

	// the failed insert left the index unchanged
	require.Equal(t, 1, idx.Depth())
	require.Equal(t, 1, idx.Len())
	require.Equal(t, 1, idx.nodeCount())
	_, ok := idx.Lookup(300)
	require.False(t, ok)

	// keys in existing nodes need no allocation
	require.NoError(t, idx.Insert(2, 2))

	// enough room after raising the limit
	idx = NewIndex(WithNodeLimit(3))
	require.NoError(t, idx.Insert(1, 1))
	require.NoError(t, idx.Insert(300, 2))
	require.Equal(t, 2, idx.Depth())
}

func TestIndexNodesNeeded(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	require.Equal(t, 1, idx.nodesNeeded(5, 1))
	require.Equal(t, 3, idx.nodesNeeded(70_000, 3))

	require.NoError(t, idx.Insert(5, 0))

	tests := []struct {
		key  uint32
		want int
	}{
		{6, 0},          // same leaf
		{5, 0},          // present
		{0x0105, 2},     // wrap root and new leaf
		{0xff05, 2},     // wrap root and new leaf
		{0x010005, 4},   // 2 wrap roots, new inner node and new leaf
		{0x01000005, 6}, // 3 wrap roots, path of 3 below the top
	}

	for _, tt := range tests {
		depth := max(idx.depth, depthFor(tt.key))
		got := idx.nodesNeeded(tt.key, depth)

		before, _ := idx.arena.Stats()
		clone := NewIndex()
		for k, v := range idx.All() {
			require.NoError(t, clone.Insert(k, v))
		}
		cloneBefore, _ := clone.arena.Stats()
		require.NoError(t, clone.Insert(tt.key, 1))
		cloneAfter, _ := clone.arena.Stats()

		require.Equal(t, tt.want, got, "key %#x", tt.key)
		require.Equal(t, cloneAfter-cloneBefore, got, "key %#x, allocated nodes", tt.key)

		after, _ := idx.arena.Stats()
		require.Equal(t, before, after, "nodesNeeded must not allocate")
	}
}

func TestIndexAllSorted(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(7, 7))

	idx := NewIndex()
	gold := map[uint32]uint64{}
	for _, k := range randomKeys(prng, 3_000, 0) {
		require.NoError(t, idx.Insert(k, uint64(k)+1))
		gold[k] = uint64(k) + 1
	}

	var got []uint32
	for k, v := range idx.All() {
		require.Equal(t, gold[k], v)
		got = append(got, k)
	}

	want := slices.Sorted(maps.Keys(gold))
	require.Equal(t, want, got)

	// early stop
	n := 0
	for range idx.All() {
		n++
		if n == 10 {
			break
		}
	}
	require.Equal(t, 10, n)
}

func TestIndexBitmap(t *testing.T) {
	t.Parallel()
	prng := rand.New(rand.NewPCG(3, 3))

	idx := NewIndex()
	keys := randomKeys(prng, 1_000, 0)
	for _, k := range keys {
		require.NoError(t, idx.Insert(k, 0))
	}

	rb := idx.Bitmap()
	require.EqualValues(t, len(keys), rb.GetCardinality())
	for _, k := range keys {
		require.True(t, rb.Contains(k))
	}

	var empty Index
	require.True(t, empty.Bitmap().IsEmpty())
}

func TestIndexSharedArena(t *testing.T) {
	t.Parallel()

	a := NewArena(0)
	x := NewIndex(WithArena(a))
	y := NewIndex(WithArena(a))

	require.NoError(t, x.Insert(1, 10))
	require.NoError(t, y.Insert(1, 20))
	require.NoError(t, y.Insert(0x1000, 30))

	live, _ := a.Stats()
	require.Equal(t, x.nodeCount()+y.nodeCount(), live)

	vx, _ := x.Lookup(1)
	vy, _ := y.Lookup(1)
	require.EqualValues(t, 10, vx)
	require.EqualValues(t, 20, vy)

	// y's pruned nodes are recycled by x
	require.True(t, y.Remove(1))
	require.True(t, y.Remove(0x1000))
	_, total := a.Stats()
	require.NoError(t, x.Insert(0x2000, 40))
	_, total2 := a.Stats()
	require.Equal(t, total, total2)
}

func TestIndexLogger(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	logger := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	idx := NewIndex(WithLogger(logger), WithNodeLimit(5))
	require.NoError(t, idx.Insert(1, 1))
	require.NoError(t, idx.Insert(70_000, 2))
	require.Contains(t, buf.String(), "index grown")
	require.Contains(t, buf.String(), "depth=3")

	require.ErrorIs(t, idx.Insert(0x01000000, 3), ErrExhausted)
	require.Contains(t, buf.String(), "insert failed")
}

func TestIndexDump(t *testing.T) {
	t.Parallel()

	idx := NewIndex()
	require.NoError(t, idx.Insert(1, 0))
	require.NoError(t, idx.Insert(3, 1))
	require.NoError(t, idx.Insert(0x0100, 2))
	require.True(t, idx.Remove(0x0100))

	want := `### depth(2) capacity(65536) size(2) nodes(2)

[IMED] level: 2 path: [] / 0
childs(#1): 0x00

.[LEAF] level: 1 path: [0x00] / 8
.values(#2): 0x01:0 0x03:1
`
	require.Equal(t, want, idx.dumpString())

	var empty Index
	require.True(t, strings.HasPrefix(empty.dumpString(), "### depth(1) capacity(256) size(0) nodes(0)"))
}
