package keystroke

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"textexpander/internal/hid"
)

// Writer implements hid.Sender on an evdev event stream. Key and modifier
// changes are staged and Flush emits the difference from the last flushed
// state followed by a SYN_REPORT.
type Writer struct {
	mu sync.Mutex
	w  io.Writer

	keys     map[hid.Keycode]bool
	mods     hid.Modifiers
	sentKeys map[hid.Keycode]bool
	sentMods hid.Modifiers
	buf      []byte
}

var _ hid.Sender = (*Writer)(nil)

// NewWriter wraps w, typically a uinput file.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		w:        w,
		keys:     make(map[hid.Keycode]bool),
		sentKeys: make(map[hid.Keycode]bool),
	}
}

func (w *Writer) SendKey(code hid.Keycode, pressed bool) error {
	if m := code.Modifier(); m != 0 {
		if pressed {
			return w.RegisterMods(m)
		}
		return w.UnregisterMods(m)
	}
	if _, ok := HIDToLinux(code); !ok {
		return fmt.Errorf("keystroke: no evdev code for %s", code)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if pressed {
		w.keys[code] = true
	} else {
		delete(w.keys, code)
	}
	return nil
}

func (w *Writer) RegisterMods(m hid.Modifiers) error {
	w.mu.Lock()
	w.mods |= m
	w.mu.Unlock()
	return nil
}

func (w *Writer) UnregisterMods(m hid.Modifiers) error {
	w.mu.Lock()
	w.mods &^= m
	w.mu.Unlock()
	return nil
}

// Flush writes pending transitions. Key releases go first and key presses
// last so modifiers always wrap the keys they apply to.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf = w.buf[:0]
	for _, k := range sortedKeys(w.sentKeys) {
		if !w.keys[k] {
			w.appendKey(k, ValueRelease)
		}
	}
	for _, k := range (w.sentMods &^ w.mods).Keys() {
		w.appendKey(k, ValueRelease)
	}
	for _, k := range (w.mods &^ w.sentMods).Keys() {
		w.appendKey(k, ValuePress)
	}
	for _, k := range sortedKeys(w.keys) {
		if !w.sentKeys[k] {
			w.appendKey(k, ValuePress)
		}
	}
	if len(w.buf) == 0 {
		return nil
	}
	w.buf = InputEvent{Type: EvSyn, Code: SynReport}.appendTo(w.buf)
	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("keystroke: write report: %w", err)
	}

	clear(w.sentKeys)
	for k := range w.keys {
		w.sentKeys[k] = true
	}
	w.sentMods = w.mods
	return nil
}

// ReleaseAll releases every held key and modifier.
func (w *Writer) ReleaseAll() error {
	w.mu.Lock()
	clear(w.keys)
	w.mods = 0
	w.mu.Unlock()
	return w.Flush()
}

func (w *Writer) appendKey(k hid.Keycode, value int32) {
	code, _ := HIDToLinux(k)
	w.buf = InputEvent{Type: EvKey, Code: code, Value: value}.appendTo(w.buf)
}

func sortedKeys(m map[hid.Keycode]bool) []hid.Keycode {
	out := make([]hid.Keycode, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Uinput is a virtual keyboard. Synthetic reports written to it reach
// the host as if typed.
type Uinput struct {
	*Writer
	closer io.Closer
}

// Close releases held keys, then destroys the device.
func (u *Uinput) Close() error {
	if u == nil || u.closer == nil {
		return nil
	}
	relErr := u.ReleaseAll()
	if err := u.closer.Close(); err != nil {
		return err
	}
	return relErr
}
