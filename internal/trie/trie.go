// Package trie implements read-only short-code lookup over a compiled
// dictionary artifact. The artifact is a set of flat arrays addressed by
// index; node 0 is the root and NullIndex marks an absent reference.
package trie

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// NullIndex marks "no children" / "end of chain".
const NullIndex uint16 = 0xFFFF

// MaxKeyLen bounds a lookup walk so malformed input always terminates.
const MaxKeyLen = 256

// MaxIndex is the largest usable array index; NullIndex is reserved.
const MaxIndex = int(NullIndex) - 1

var ErrInvalidArtifact = errors.New("trie: invalid artifact")

// Node is one trie vertex.
type Node struct {
	HashTable       uint16 `json:"hash_table"`
	TextOffset      uint16 `json:"text_offset"`
	TextLen         uint16 `json:"text_len"`
	LenChars        uint16 `json:"len_chars"`
	Terminal        bool   `json:"terminal,omitempty"`
	PreserveTrigger bool   `json:"preserve_trigger,omitempty"`
}

// HashTable is a node's child table: NumBuckets consecutive slots in the
// shared bucket array starting at BucketsStart.
type HashTable struct {
	BucketsStart uint16 `json:"buckets_start"`
	NumBuckets   uint8  `json:"num_buckets"`
}

// HashEntry is one child edge. Entries in a bucket chain through Next.
type HashEntry struct {
	Key   byte   `json:"key"`
	Child uint16 `json:"child"`
	Next  uint16 `json:"next"`
}

// NodeID identifies a node by its index in Trie.Nodes.
type NodeID uint16

// Trie is a compiled dictionary. It is immutable once loaded and safe for
// concurrent readers.
type Trie struct {
	Nodes   []Node      `json:"nodes"`
	Tables  []HashTable `json:"tables"`
	Entries []HashEntry `json:"entries"`
	Buckets []uint16    `json:"buckets"`
	Pool    []byte      `json:"pool"`

	// MaxShortLen is the short-code buffer capacity the dictionary was
	// compiled for: longest short code plus one.
	MaxShortLen int `json:"max_short_len,omitempty"`
}

// Len returns the number of nodes.
func (t *Trie) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Nodes)
}

// LookupNode walks key from the root and returns the node it spells, if any.
// The node need not be terminal; use it to test whether key is a prefix of
// some short code.
func (t *Trie) LookupNode(key string) (NodeID, bool) {
	if t.Len() == 0 {
		return 0, false
	}
	if len(key) > MaxKeyLen {
		key = key[:MaxKeyLen]
	}
	cur := 0
	for i := 0; i < len(key); i++ {
		n := t.Nodes[cur]
		if n.HashTable == NullIndex || int(n.HashTable) >= len(t.Tables) {
			return 0, false
		}
		ht := t.Tables[n.HashTable]
		if ht.NumBuckets == 0 {
			return 0, false
		}
		slot := int(ht.BucketsStart) + int(key[i]%ht.NumBuckets)
		if slot >= len(t.Buckets) {
			return 0, false
		}
		next := -1
		// A well-formed chain is acyclic; the step bound covers the rest.
		for e, steps := t.Buckets[slot], 0; e != NullIndex && steps <= len(t.Entries); steps++ {
			if int(e) >= len(t.Entries) {
				return 0, false
			}
			ent := t.Entries[e]
			if ent.Key == key[i] {
				next = int(ent.Child)
				break
			}
			e = ent.Next
		}
		if next < 0 || next >= len(t.Nodes) {
			return 0, false
		}
		cur = next
	}
	return NodeID(cur), true
}

// Search returns the terminal node for key.
func (t *Trie) Search(key string) (NodeID, bool) {
	id, ok := t.LookupNode(key)
	if !ok || !t.Nodes[id].Terminal {
		return 0, false
	}
	return id, true
}

// Node returns the node record for id.
func (t *Trie) Node(id NodeID) Node {
	return t.Nodes[id]
}

// Text returns the expansion bytes for a node as a view into the pool.
// Callers must not modify the returned slice.
func (t *Trie) Text(id NodeID) []byte {
	n := t.Nodes[id]
	end := int(n.TextOffset) + int(n.TextLen)
	if end > len(t.Pool) {
		return nil
	}
	return t.Pool[n.TextOffset:end:end]
}

// Lookup is a convenience that resolves key to its expansion text.
func (t *Trie) Lookup(key string) ([]byte, bool) {
	id, ok := t.Search(key)
	if !ok {
		return nil, false
	}
	return t.Text(id), true
}

// Walk visits every terminal node depth-first in bucket order.
func (t *Trie) Walk(fn func(code string, id NodeID) bool) {
	if t.Len() == 0 {
		return
	}
	var visit func(id NodeID, prefix []byte, depth int) bool
	visit = func(id NodeID, prefix []byte, depth int) bool {
		if depth > MaxKeyLen {
			return true
		}
		n := t.Nodes[id]
		if n.Terminal && !fn(string(prefix), id) {
			return false
		}
		if n.HashTable == NullIndex {
			return true
		}
		ht := t.Tables[n.HashTable]
		for b := 0; b < int(ht.NumBuckets); b++ {
			for e := t.Buckets[int(ht.BucketsStart)+b]; e != NullIndex; e = t.Entries[e].Next {
				ent := t.Entries[e]
				if !visit(NodeID(ent.Child), append(prefix, ent.Key), depth+1) {
					return false
				}
			}
		}
		return true
	}
	visit(0, nil, 0)
}

// Validate checks every index in the artifact and that the structure is a
// tree reachable from node 0.
func (t *Trie) Validate() error {
	if len(t.Nodes) == 0 {
		return nil
	}
	if len(t.Nodes) > MaxIndex+1 || len(t.Entries) > MaxIndex+1 || len(t.Tables) > MaxIndex+1 {
		return fmt.Errorf("%w: table exceeds %d entries", ErrInvalidArtifact, MaxIndex+1)
	}
	for i, n := range t.Nodes {
		if n.HashTable != NullIndex && int(n.HashTable) >= len(t.Tables) {
			return fmt.Errorf("%w: node %d: hash table %d out of range", ErrInvalidArtifact, i, n.HashTable)
		}
		if int(n.TextOffset)+int(n.TextLen) > len(t.Pool) {
			return fmt.Errorf("%w: node %d: text [%d:+%d] outside pool of %d bytes",
				ErrInvalidArtifact, i, n.TextOffset, n.TextLen, len(t.Pool))
		}
		if n.Terminal && !utf8.Valid(t.Text(NodeID(i))) {
			return fmt.Errorf("%w: node %d: expansion is not valid UTF-8", ErrInvalidArtifact, i)
		}
	}
	for i, ht := range t.Tables {
		if ht.NumBuckets == 0 || int(ht.BucketsStart)+int(ht.NumBuckets) > len(t.Buckets) {
			return fmt.Errorf("%w: table %d: buckets [%d:+%d] out of range", ErrInvalidArtifact, i, ht.BucketsStart, ht.NumBuckets)
		}
	}
	for i, b := range t.Buckets {
		if b != NullIndex && int(b) >= len(t.Entries) {
			return fmt.Errorf("%w: bucket %d: entry %d out of range", ErrInvalidArtifact, i, b)
		}
	}
	for i, e := range t.Entries {
		if int(e.Child) >= len(t.Nodes) || e.Child == 0 {
			return fmt.Errorf("%w: entry %d: child %d out of range", ErrInvalidArtifact, i, e.Child)
		}
		if e.Next != NullIndex && int(e.Next) >= len(t.Entries) {
			return fmt.Errorf("%w: entry %d: next %d out of range", ErrInvalidArtifact, i, e.Next)
		}
	}

	// Every entry and node must be reached exactly once.
	seenNode := make([]bool, len(t.Nodes))
	seenEntry := make([]bool, len(t.Entries))
	seenNode[0] = true
	queue := []int{0}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := t.Nodes[id]
		if n.HashTable == NullIndex {
			continue
		}
		ht := t.Tables[n.HashTable]
		for b := 0; b < int(ht.NumBuckets); b++ {
			for e := t.Buckets[int(ht.BucketsStart)+b]; e != NullIndex; e = t.Entries[e].Next {
				if seenEntry[e] {
					return fmt.Errorf("%w: entry %d reached twice", ErrInvalidArtifact, e)
				}
				seenEntry[e] = true
				ent := t.Entries[e]
				if int(ent.Key)%int(ht.NumBuckets) != b {
					return fmt.Errorf("%w: entry %d with key %q in wrong bucket", ErrInvalidArtifact, e, ent.Key)
				}
				if seenNode[ent.Child] {
					return fmt.Errorf("%w: node %d reached twice", ErrInvalidArtifact, ent.Child)
				}
				seenNode[ent.Child] = true
				queue = append(queue, int(ent.Child))
			}
		}
	}
	for i, ok := range seenNode {
		if !ok {
			return fmt.Errorf("%w: node %d unreachable", ErrInvalidArtifact, i)
		}
	}
	return nil
}
