// Package idtrie indexes node identifiers for prefix containment tests.
//
// A node identifier is a file path followed by nested symbol names, all
// joined by the Separator. Each identifier is decomposed into its
// filesystem path components followed by its symbol components and
// inserted into a shared prefix tree, so a directory, a file, or a parent
// symbol is "contained" whenever any stored identifier descends through
// it.
//
// Tries are built fresh per session and read-only afterwards; each level
// owns its segment keys and never aliases subtrees.
package idtrie

import (
	"path/filepath"
	"strings"
)

// Separator splits the filesystem part of a node identifier from its
// symbol parts, and symbol parts from each other.
const Separator = "::"

type node map[string]node

// Trie answers whether a filesystem path or node identifier could contain
// a selected node.
type Trie struct {
	root string
	d    node
}

// New builds a trie over ids. Paths inside ids are taken relative to
// root, which is also the base ContainsPath resolves against.
func New(root string, ids []string) *Trie {
	t := &Trie{root: root, d: node{}}
	for _, id := range ids {
		d := t.d
		for _, seg := range segments(id) {
			child, ok := d[seg]
			if !ok {
				child = node{}
				d[seg] = child
			}
			d = child
		}
	}
	return t
}

// Empty reports whether no identifier was inserted.
func (t *Trie) Empty() bool {
	return len(t.d) == 0
}

// ContainsID reports whether id, or any identifier descending through id,
// was inserted.
func (t *Trie) ContainsID(id string) bool {
	return t.walk(segments(id))
}

// ContainsPath reports whether any inserted identifier lives at or below
// the filesystem path p. p may be absolute or relative to the trie root.
func (t *Trie) ContainsPath(p string) bool {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(t.root, p)
		if err != nil || strings.HasPrefix(rel, "..") {
			return false
		}
		p = rel
	}
	return t.walk(pathSegments(p))
}

func (t *Trie) walk(segs []string) bool {
	d := t.d
	for _, seg := range segs {
		child, ok := d[seg]
		if !ok {
			return false
		}
		d = child
	}
	return true
}

// segments decomposes a node identifier into filesystem path components
// followed by symbol components.
func segments(id string) []string {
	parts := strings.Split(id, Separator)
	segs := pathSegments(parts[0])
	return append(segs, parts[1:]...)
}

func pathSegments(p string) []string {
	return strings.Split(filepath.ToSlash(p), "/")
}
