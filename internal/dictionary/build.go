package dictionary

import (
	"fmt"
	"sort"

	"textexpander/internal/trie"
)

// DefaultMaxShortLen is the buffer capacity used when a dictionary is empty.
const DefaultMaxShortLen = 16

// maxBuckets is the largest power of two that fits a table's bucket count.
const maxBuckets = 128

// Warning is a non-fatal problem found while building.
type Warning struct {
	ShortCode string
	Message   string
}

func (w Warning) String() string {
	if w.ShortCode == "" {
		return w.Message
	}
	return fmt.Sprintf("%s: %s", w.ShortCode, w.Message)
}

type buildNode struct {
	children map[byte]*buildNode
	terminal bool
	text     []byte
	chars    int
	preserve bool
	id       int
}

// Build compiles src into a trie artifact.
func Build(src *Source) (*trie.Trie, []Warning, error) {
	var warnings []Warning
	root := &buildNode{children: map[byte]*buildNode{}}
	seen := make(map[string]bool)
	longest := 0

	for _, e := range src.Expansions {
		code, err := normalizeShortCode(e.ShortCode)
		if err != nil {
			warnings = append(warnings, Warning{ShortCode: e.ShortCode, Message: "skipped: " + err.Error()})
			continue
		}
		if len(code) > trie.MaxKeyLen {
			warnings = append(warnings, Warning{ShortCode: code, Message: fmt.Sprintf("skipped: longer than %d bytes", trie.MaxKeyLen)})
			continue
		}
		if seen[code] {
			warnings = append(warnings, Warning{ShortCode: code, Message: "duplicate short code; later definition wins"})
		}
		seen[code] = true

		text, chars, msgs := CompileText(e.Text)
		for _, m := range msgs {
			warnings = append(warnings, Warning{ShortCode: code, Message: m})
		}
		preserve := !src.DisablePreserveTrigger
		if e.PreserveTrigger != nil {
			preserve = *e.PreserveTrigger
		}

		n := root
		for i := 0; i < len(code); i++ {
			child, ok := n.children[code[i]]
			if !ok {
				child = &buildNode{children: map[byte]*buildNode{}}
				n.children[code[i]] = child
			}
			n = child
		}
		n.terminal = true
		n.text = text
		n.chars = chars
		n.preserve = preserve
		longest = max(longest, len(code))
	}

	if len(seen) == 0 {
		return &trie.Trie{}, warnings, nil
	}

	// Number nodes breadth-first so the root is 0 and siblings are adjacent.
	order := []*buildNode{root}
	for head := 0; head < len(order); head++ {
		n := order[head]
		n.id = head
		for _, k := range sortedKeys(n.children) {
			order = append(order, n.children[k])
		}
	}
	if len(order) > trie.MaxIndex+1 {
		return nil, warnings, fmt.Errorf("dictionary has %d trie nodes; limit is %d", len(order), trie.MaxIndex+1)
	}

	t := &trie.Trie{
		Nodes:       make([]trie.Node, len(order)),
		MaxShortLen: longest + 1,
	}
	for _, n := range order {
		node := trie.Node{HashTable: trie.NullIndex}
		if len(n.children) > 0 {
			if len(t.Tables) > trie.MaxIndex || len(t.Buckets) > trie.MaxIndex {
				return nil, warnings, fmt.Errorf("dictionary hash tables exceed %d entries", trie.MaxIndex+1)
			}
			node.HashTable = uint16(len(t.Tables))
			nb := bucketCount(len(n.children))
			start := len(t.Buckets)
			t.Tables = append(t.Tables, trie.HashTable{BucketsStart: uint16(start), NumBuckets: uint8(nb)})
			buckets := make([]uint16, nb)
			for i := range buckets {
				buckets[i] = trie.NullIndex
			}
			for _, k := range sortedKeys(n.children) {
				if len(t.Entries) > trie.MaxIndex {
					return nil, warnings, fmt.Errorf("dictionary hash entries exceed %d", trie.MaxIndex+1)
				}
				slot := int(k) % nb
				t.Entries = append(t.Entries, trie.HashEntry{
					Key:   k,
					Child: uint16(n.children[k].id),
					Next:  buckets[slot],
				})
				buckets[slot] = uint16(len(t.Entries) - 1)
			}
			t.Buckets = append(t.Buckets, buckets...)
		}
		if n.terminal {
			offset := len(t.Pool)
			if offset > trie.MaxIndex || len(n.text) > trie.MaxIndex || n.chars > trie.MaxIndex {
				return nil, warnings, fmt.Errorf("string pool exceeds 64KiB")
			}
			node.TextOffset = uint16(offset)
			node.TextLen = uint16(len(n.text))
			node.LenChars = uint16(n.chars)
			node.Terminal = true
			node.PreserveTrigger = n.preserve
			t.Pool = append(t.Pool, n.text...)
			t.Pool = append(t.Pool, 0)
		}
		t.Nodes[n.id] = node
	}
	if len(t.Pool) > trie.MaxIndex+1 {
		return nil, warnings, fmt.Errorf("string pool exceeds 64KiB")
	}
	return t, warnings, nil
}

// Compile loads a source file and builds it.
func Compile(path string) (*trie.Trie, []Warning, error) {
	src, err := LoadSource(path)
	if err != nil {
		return nil, nil, err
	}
	return Build(src)
}

func bucketCount(children int) int {
	if children <= 1 {
		return 1
	}
	p := 1
	for p < children && p < maxBuckets {
		p <<= 1
	}
	return p
}

func sortedKeys(m map[byte]*buildNode) []byte {
	keys := make([]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
