// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"log/slog"

	"github.com/gaissmai/bitjoin/internal/arena"
)

// Arena holds the trie nodes of one or more indexes.
//
// Indexes sharing an arena recycle each others pruned nodes and
// are bound by the same node limit. An arena must not be shared
// between goroutines.
type Arena struct {
	nodes *arena.Arena[node]
}

// NewArena returns an arena with at most limit live nodes,
// limit <= 0 means unlimited.
func NewArena(limit int) *Arena {
	return &Arena{nodes: arena.New[node](limit)}
}

// Stats returns the number of currently live nodes and the total
// number of nodes ever allocated from fresh memory.
func (a *Arena) Stats() (live int, total int) {
	return a.nodes.Stats()
}

// Option configures an [Index] or a [Pool] at construction.
type Option func(*Index)

// WithArena lets the index allocate its nodes from a.
func WithArena(a *Arena) Option {
	return func(t *Index) {
		if a != nil {
			t.arena = a.nodes
		}
	}
}

// WithNodeLimit gives the index a private arena with at most limit live nodes.
// An insert that would exceed the limit fails with [ErrExhausted].
func WithNodeLimit(limit int) Option {
	return func(t *Index) {
		t.arena = arena.New[node](limit)
	}
}

// WithLogger configures structured logging of growth and exhaustion events.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
//	idx := bitjoin.NewIndex(bitjoin.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(t *Index) {
		t.logger = logger
	}
}

// discardLogger is used until a logger is configured.
var discardLogger = slog.New(slog.DiscardHandler)

func (t *Index) apply(opts []Option) {
	for _, opt := range opts {
		opt(t)
	}
}

// log returns the configured logger or a discarding one.
func (t *Index) log() *slog.Logger {
	if t.logger == nil {
		return discardLogger
	}
	return t.logger
}
