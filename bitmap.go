// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// bitmapBatch is the number of ascending keys added at once.
const bitmapBatch = 256

// Bitmap returns the keys of the index as a roaring bitmap.
func (t *Index) Bitmap() *roaring.Bitmap {
	rb := roaring.New()

	buf := make([]uint32, 0, bitmapBatch)
	for key := range t.All() {
		if buf = append(buf, key); len(buf) == bitmapBatch {
			rb.AddMany(buf)
			buf = buf[:0]
		}
	}
	rb.AddMany(buf)

	return rb
}

// JoinBitmap returns the keys present in all indexes as a roaring bitmap,
// the materialized result of [Join].
func JoinBitmap(idxs ...*Index) *roaring.Bitmap {
	rb := roaring.New()

	buf := make([]uint32, 0, bitmapBatch)
	Join(func(key uint32, _ []uint64) {
		if buf = append(buf, key); len(buf) == bitmapBatch {
			rb.AddMany(buf)
			buf = buf[:0]
		}
	}, idxs...)
	rb.AddMany(buf)

	return rb
}
