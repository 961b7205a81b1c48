// Package layout maps between HID keycodes and characters for the host's
// keyboard layout. The input direction feeds short-code accumulation; the
// output direction drives synthetic typing.
package layout

import (
	"fmt"
	"sort"
	"strings"

	"textexpander/internal/hid"
)

// Stroke is the key plus modifiers that produce one character.
type Stroke struct {
	Key  hid.Keycode
	Mods hid.Modifiers
}

// Shift reports whether the stroke needs a shift modifier.
func (s Stroke) Shift() bool {
	return s.Mods&(hid.ModLeftShift|hid.ModRightShift) != 0
}

// Layout is a per-keyboard-layout character table.
type Layout interface {
	Name() string
	// KeycodeToChar returns the unshifted character a key contributes to a
	// short code.
	KeycodeToChar(k hid.Keycode) (rune, bool)
	// CharToKeycode returns the stroke that types an ASCII byte. Bytes the
	// layout cannot produce directly (dead keys, non-ASCII) report false.
	CharToKeycode(c byte) (Stroke, bool)
}

type entry struct {
	c    byte
	key  hid.Keycode
	mods hid.Modifiers
}

const (
	shift = hid.ModLeftShift
	altGr = hid.ModRightAlt
)

func u(c byte, k hid.Keycode) entry { return entry{c, k, 0} }
func s(c byte, k hid.Keycode) entry { return entry{c, k, shift} }
func g(c byte, k hid.Keycode) entry { return entry{c, k, altGr} }

// Table is a Layout backed by static lookup tables.
type Table struct {
	name   string
	out    [128]Stroke
	mapped [128]bool
	in     map[hid.Keycode]rune
}

func newTable(name string, entries []entry, extraInput map[hid.Keycode]rune) *Table {
	t := &Table{name: name, in: make(map[hid.Keycode]rune)}
	base := []entry{
		u('\n', hid.KeyEnter),
		u('\t', hid.KeyTab),
		u('\b', hid.KeyBackspace),
		u(' ', hid.KeySpace),
	}
	for _, e := range append(base, entries...) {
		if e.c >= 128 || t.mapped[e.c] {
			continue
		}
		t.out[e.c] = Stroke{Key: e.key, Mods: e.mods}
		t.mapped[e.c] = true
		if e.mods == 0 && e.c > ' ' && e.c < 0x7F {
			if _, dup := t.in[e.key]; !dup {
				t.in[e.key] = rune(e.c)
			}
		}
	}
	for k, r := range extraInput {
		t.in[k] = r
	}
	return t
}

func (t *Table) Name() string { return t.name }

func (t *Table) KeycodeToChar(k hid.Keycode) (rune, bool) {
	r, ok := t.in[k]
	return r, ok
}

func (t *Table) CharToKeycode(c byte) (Stroke, bool) {
	if c >= 128 || !t.mapped[c] {
		return Stroke{}, false
	}
	return t.out[c], true
}

// letters maps a-z and A-Z, applying per-layout key swaps.
func letters(swap map[byte]hid.Keycode) []entry {
	out := make([]entry, 0, 52)
	for c := byte('a'); c <= 'z'; c++ {
		k := hid.KeyA + hid.Keycode(c-'a')
		if sk, ok := swap[c]; ok {
			k = sk
		}
		out = append(out, u(c, k), s(c-'a'+'A', k))
	}
	return out
}

var registry = map[string]Layout{}

func register(l Layout, aliases ...string) {
	registry[l.Name()] = l
	for _, a := range aliases {
		registry[a] = l
	}
}

// ByName returns a registered layout.
func ByName(name string) (Layout, error) {
	l, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("layout: unknown layout %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return l, nil
}

// Names lists the registered layout names and aliases.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
