// Copyright (c) 2025 Karl Gaissmaier
// SPDX-License-Identifier: MIT

package bitjoin

import (
	"fmt"
	"io"
	"strings"

	"github.com/gaissmai/bitjoin/internal/arena"
)

type nodeType byte

const (
	nullNode         nodeType = iota // empty node, only the pruned root may be null
	leafNode                         // values, at leaf level
	intermediateNode                 // only children, at inner levels
)

func (nt nodeType) String() string {
	switch nt {
	case nullNode:
		return "NULL"
	case leafNode:
		return "LEAF"
	case intermediateNode:
		return "IMED"
	default:
		return "unreachable"
	}
}

// ##################################################
//  useful during development, debugging and testing
// ##################################################

// dumpString is just a wrapper for dump.
func (t *Index) dumpString() string {
	w := new(strings.Builder)
	t.dump(w)

	return w.String()
}

// dump the index structure and all the nodes to w.
//
//	### depth(2) capacity(65536) size(2) nodes(2)
//
//	[IMED] level: 2 path: [] / 0
//	childs(#1): 0x00
//
//	.[LEAF] level: 1 path: [0x00] / 8
//	.values(#2): 0x01:0 0x03:1
func (t *Index) dump(w io.Writer) {
	if t == nil {
		return
	}

	fmt.Fprintf(w, "### depth(%d) capacity(%d) size(%d) nodes(%d)\n",
		t.Depth(), t.Capacity(), t.Len(), t.nodeCount())

	if t.root == arena.Nil {
		return
	}

	t.dumpRec(w, t.root, t.depth, nil)
}

// dumpRec, rec-descent the trie.
func (t *Index) dumpRec(w io.Writer, h arena.Handle, level int, path []byte) {
	n := t.arena.At(h)
	t.dumpNode(w, n, level, path)

	if level == leafLevel {
		return
	}

	for b := range n.All() {
		t.dumpRec(w, n.child(b), level-1, append(path, byte(b)))
	}
}

// dumpNode, the node at level reached by the path bytes.
func (t *Index) dumpNode(w io.Writer, n *node, level int, path []byte) {
	depth := t.depth - level
	indent := strings.Repeat(".", depth)

	fmt.Fprintf(w, "\n%s[%s] level: %d path: [%s] / %d\n",
		indent, nodeTypeAt(n, level), level, pathFmt(path), depth*strideLen)

	if n.IsEmpty() {
		return
	}

	if level == leafLevel {
		fmt.Fprintf(w, "%svalues(#%d):", indent, n.Size())
		for b := range n.All() {
			fmt.Fprintf(w, " 0x%02x:%d", b, n.body[b])
		}
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "%schilds(#%d):", indent, n.Size())
	for b := range n.All() {
		fmt.Fprintf(w, " 0x%02x", b)
	}
	fmt.Fprintln(w)
}

// nodeTypeAt, the type is a property of the level, not of the node content.
func nodeTypeAt(n *node, level int) nodeType {
	switch {
	case n.IsEmpty():
		return nullNode
	case level == leafLevel:
		return leafNode
	default:
		return intermediateNode
	}
}

// pathFmt, the bytes of the path in hex.
func pathFmt(path []byte) string {
	buf := new(strings.Builder)
	for i, b := range path {
		if i != 0 {
			buf.WriteString(" ")
		}
		fmt.Fprintf(buf, "0x%02x", b)
	}
	return buf.String()
}

// nodeCount returns the number of nodes in the trie.
func (t *Index) nodeCount() int {
	if t == nil || t.root == arena.Nil {
		return 0
	}
	return t.nodeCountRec(t.root, t.depth)
}

func (t *Index) nodeCountRec(h arena.Handle, level int) int {
	if level == leafLevel {
		return 1
	}

	n := t.arena.At(h)
	sum := 1
	for b := range n.All() {
		sum += t.nodeCountRec(n.child(b), level-1)
	}
	return sum
}
