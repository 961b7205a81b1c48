// Package simulate provides a virtual host that receives synthetic key
// actions and renders the text they would produce. It understands the
// three Unicode entry protocols so whole expansions can be checked end to
// end without a real keyboard sink.
package simulate

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"textexpander/internal/hid"
	"textexpander/internal/layout"
)

// Platform is the host operating system being emulated.
type Platform int

const (
	Windows Platform = iota
	MacOS
	Linux
)

// ErrInjected is returned by a Host configured to fail sends.
var ErrInjected = errors.New("simulate: injected send failure")

// ActionKind classifies a recorded action.
type ActionKind int

const (
	KeyDown ActionKind = iota
	KeyUp
	ModsDown
	ModsUp
)

// Action is one primitive the host received.
type Action struct {
	Kind ActionKind
	Key  hid.Keycode
	Mods hid.Modifiers
}

func (a Action) String() string {
	switch a.Kind {
	case KeyDown:
		return "+" + a.Key.String()
	case KeyUp:
		return "-" + a.Key.String()
	case ModsDown:
		return "+[" + a.Mods.String() + "]"
	case ModsUp:
		return "-[" + a.Mods.String() + "]"
	}
	return fmt.Sprintf("action(%d)", int(a.Kind))
}

// Host is a hid.Sender backed by an emulated text field.
type Host struct {
	mu       sync.Mutex
	platform Platform
	reverse  map[layout.Stroke]byte

	actions  []Action
	held     map[hid.Keycode]bool
	reported map[hid.Keycode]bool
	staged   hid.Modifiers
	mods     hid.Modifiers
	screen   []rune

	compose   []byte
	composing bool
	linuxHex  bool

	failSends bool
}

// NewHost creates a Host for a layout and platform.
func NewHost(lay layout.Layout, p Platform) *Host {
	h := &Host{
		platform: p,
		reverse:  make(map[layout.Stroke]byte),
		held:     make(map[hid.Keycode]bool),
		reported: make(map[hid.Keycode]bool),
	}
	for c := 0; c < 128; c++ {
		if st, ok := lay.CharToKeycode(byte(c)); ok {
			if _, dup := h.reverse[st]; !dup {
				h.reverse[st] = byte(c)
			}
		}
	}
	return h
}

// FailSends makes every subsequent SendKey return ErrInjected. The action
// is still recorded and applied, as a lossy transport would report an
// error for a report that may or may not have arrived.
func (h *Host) FailSends(fail bool) {
	h.mu.Lock()
	h.failSends = fail
	h.mu.Unlock()
}

func (h *Host) SendKey(code hid.Keycode, pressed bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if pressed {
		h.actions = append(h.actions, Action{Kind: KeyDown, Key: code})
		h.held[code] = true
	} else {
		h.actions = append(h.actions, Action{Kind: KeyUp, Key: code})
		delete(h.held, code)
	}
	if h.failSends {
		return ErrInjected
	}
	return nil
}

func (h *Host) RegisterMods(m hid.Modifiers) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = append(h.actions, Action{Kind: ModsDown, Mods: m})
	h.staged |= m
	return nil
}

func (h *Host) UnregisterMods(m hid.Modifiers) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.actions = append(h.actions, Action{Kind: ModsUp, Mods: m})
	h.staged &^= m
	return nil
}

// Flush delivers the staged report: modifier releases first, then keys
// that went down since the previous report.
func (h *Host) Flush() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	released := h.mods &^ h.staged
	h.mods = h.staged
	if released&hid.ModLeftAlt != 0 && h.composing {
		h.commitCompose()
	}
	var down []hid.Keycode
	for k := range h.held {
		if !h.reported[k] {
			down = append(down, k)
		}
	}
	sort.Slice(down, func(i, j int) bool { return down[i] < down[j] })
	for _, k := range down {
		h.apply(k)
	}
	h.reported = make(map[hid.Keycode]bool, len(h.held))
	for k := range h.held {
		h.reported[k] = true
	}
	return nil
}

func (h *Host) apply(k hid.Keycode) {
	switch {
	case h.linuxHex:
		if k == hid.KeyEnter || k == hid.KeyKpEnter {
			h.linuxHex = false
			h.commitCompose()
			return
		}
		if c, ok := h.reverse[layout.Stroke{Key: k, Mods: h.mods}]; ok {
			h.compose = append(h.compose, c)
		}
		return
	case h.platform == Linux && k == hid.KeyU && h.mods&hid.ModLeftCtrl != 0 && h.mods&hid.ModLeftShift != 0:
		h.linuxHex = true
		h.compose = h.compose[:0]
		return
	case h.platform == Windows && h.mods&hid.ModLeftAlt != 0:
		if d, ok := numpadDigit(k); ok {
			h.composing = true
			h.compose = append(h.compose, d)
		}
		return
	case h.platform == MacOS && h.mods&hid.ModLeftAlt != 0:
		if d, ok := usHexDigit(k); ok {
			h.composing = true
			h.compose = append(h.compose, d)
		}
		return
	case k == hid.KeyBackspace:
		if n := len(h.screen); n > 0 {
			h.screen = h.screen[:n-1]
		}
		return
	}
	if c, ok := h.reverse[layout.Stroke{Key: k, Mods: h.mods}]; ok {
		h.screen = append(h.screen, rune(c))
	}
}

func (h *Host) commitCompose() {
	base := 16
	if h.platform == Windows {
		base = 10
	}
	if v, err := strconv.ParseUint(string(h.compose), base, 32); err == nil && v > 0 {
		h.screen = append(h.screen, rune(v))
	}
	h.compose = h.compose[:0]
	h.composing = false
}

func numpadDigit(k hid.Keycode) (byte, bool) {
	switch {
	case k == hid.KeyKp0:
		return '0', true
	case k >= hid.KeyKp1 && k <= hid.KeyKp9:
		return byte('1' + k - hid.KeyKp1), true
	}
	return 0, false
}

func usHexDigit(k hid.Keycode) (byte, bool) {
	switch {
	case k == hid.Key0:
		return '0', true
	case k >= hid.Key1 && k <= hid.Key9:
		return byte('1' + k - hid.Key1), true
	case k >= hid.KeyA && k <= hid.KeyF:
		return byte('a' + k - hid.KeyA), true
	}
	return 0, false
}

// Tap applies a physical key press and release from the user's own
// keyboard. It is not recorded as a synthetic action.
func (h *Host) Tap(k hid.Keycode) {
	h.mu.Lock()
	h.apply(k)
	h.mu.Unlock()
}

// Type places text on the screen as if the user had typed it.
func (h *Host) Type(s string) {
	h.mu.Lock()
	h.screen = append(h.screen, []rune(s)...)
	h.mu.Unlock()
}

// Text returns the emulated text field contents.
func (h *Host) Text() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return string(h.screen)
}

// Actions returns a copy of every recorded action.
func (h *Host) Actions() []Action {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Action(nil), h.actions...)
}

// Reset clears the action log but keeps screen and key state.
func (h *Host) Reset() {
	h.mu.Lock()
	h.actions = nil
	h.mu.Unlock()
}

// Trace renders the action log as a compact string.
func (h *Host) Trace() string {
	acts := h.Actions()
	parts := make([]string, len(acts))
	for i, a := range acts {
		parts[i] = a.String()
	}
	return strings.Join(parts, " ")
}

// HeldKeys lists keys currently pressed.
func (h *Host) HeldKeys() []hid.Keycode {
	h.mu.Lock()
	defer h.mu.Unlock()
	keys := make([]hid.Keycode, 0, len(h.held))
	for k := range h.held {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Mods returns the staged modifier state.
func (h *Host) Mods() hid.Modifiers {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.staged
}

// Count returns how many actions of kind k on key were recorded.
func (h *Host) Count(kind ActionKind, key hid.Keycode) int {
	n := 0
	for _, a := range h.Actions() {
		if a.Kind == kind && a.Key == key {
			n++
		}
	}
	return n
}
