package main

import (
	"sync"

	"github.com/gaissmai/bitjoin"
)

// SyncPool guards a pool with a writer lock, the pool itself
// is not safe for concurrent use.
type SyncPool[T any] struct {
	sync.RWMutex
	pool *bitjoin.Pool[T]
}

func NewSyncPool[T any](opts ...bitjoin.Option) *SyncPool[T] {
	return &SyncPool[T]{pool: bitjoin.NewPool[T](opts...)}
}

func (sp *SyncPool[T]) Insert(key uint32, val T) error {
	sp.Lock() // acquire writer lock to exclude other writers and readers
	defer sp.Unlock()

	return sp.pool.Insert(key, val)
}

func (sp *SyncPool[T]) Remove(key uint32) bool {
	sp.Lock()
	defer sp.Unlock()

	return sp.pool.Remove(key)
}

func (sp *SyncPool[T]) Lookup(key uint32) (T, bool) {
	sp.RLock()
	defer sp.RUnlock()

	return sp.pool.Lookup(key)
}

func (sp *SyncPool[T]) Len() int {
	sp.RLock()
	defer sp.RUnlock()

	return sp.pool.Len()
}

// Join3Sync locks all pools in argument order for the whole join,
// a is write-locked and its values may be modified by visit.
// All callers must pass the pools in the same order to avoid deadlocks.
func Join3Sync[A, B, C any](a *SyncPool[A], b *SyncPool[B], c *SyncPool[C], visit func(uint32, *A, *B, *C)) {
	a.Lock()
	defer a.Unlock()
	b.RLock()
	defer b.RUnlock()
	c.RLock()
	defer c.RUnlock()

	bitjoin.Join3(a.pool, b.pool, c.pool, visit)
}
